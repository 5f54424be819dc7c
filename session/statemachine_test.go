// Copyright 2015 trivago GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import "testing"

func consumerInst(group GroupID, client ClientID, server ServerID) Instance {
	return NewConsumerInstance(FullConsumerID{GroupID: group, ClientID: client}, server)
}

// S1: quota enforced locally.
func TestAddInstance_QuotaEnforced(t *testing.T) {
	s := NewConsumerSession("g1", "g1", 2)

	if r := AddInstance(s, consumerInst("g1", "c1", "n1")); r.Kind != Updated {
		t.Fatalf("expected Updated, got %s", r.Kind)
	} else {
		s = r.Session
	}
	if r := AddInstance(s, consumerInst("g1", "c2", "n2")); r.Kind != Updated {
		t.Fatalf("expected Updated, got %s", r.Kind)
	} else {
		s = r.Session
	}

	r := AddInstance(s, consumerInst("g1", "c3", "n1"))
	if r.Kind != InstanceLimitReached {
		t.Fatalf("expected InstanceLimitReached, got %s", r.Kind)
	}
	if r.Session.Len() != 2 {
		t.Fatalf("expected session to still have 2 instances, got %d", r.Session.Len())
	}
	if !r.Session.Has(ConsumerFullClientID(FullConsumerID{GroupID: "g1", ClientID: "c1"})) {
		t.Fatal("expected c1 to still be present")
	}
	if !r.Session.Has(ConsumerFullClientID(FullConsumerID{GroupID: "g1", ClientID: "c2"})) {
		t.Fatal("expected c2 to still be present")
	}
}

// S2: kind mismatch.
func TestAddInstance_KindMismatch(t *testing.T) {
	s := NewConsumerSession("s1", "s1", 1)
	inst := NewProducerInstance(FullProducerID{ProducerID: "pX", InstanceID: "i1"}, "nA")

	r := AddInstance(s, inst)
	if r.Kind != InstanceTypeForSessionIncorrect {
		t.Fatalf("expected InstanceTypeForSessionIncorrect, got %s", r.Kind)
	}
	if r.Session.Len() != 0 {
		t.Fatalf("expected empty session, got %d instances", r.Session.Len())
	}
}

// S3: remove then re-add.
func TestRemoveThenReAdd(t *testing.T) {
	s := NewConsumerSession("g1", "g1", 2)
	s = AddInstance(s, consumerInst("g1", "c1", "n1")).Session
	s = AddInstance(s, consumerInst("g1", "c2", "n2")).Session

	r := RemoveInstance(s, ConsumerFullClientID(FullConsumerID{GroupID: "g1", ClientID: "c1"}))
	if r.Kind != Updated {
		t.Fatalf("expected Updated, got %s", r.Kind)
	}
	s = r.Session
	if s.Len() != 1 {
		t.Fatalf("expected 1 instance after removal, got %d", s.Len())
	}

	r = AddInstance(s, consumerInst("g1", "c1", "nZ"))
	if r.Kind != Updated {
		t.Fatalf("expected Updated, got %s", r.Kind)
	}
	if r.Session.Len() != 2 {
		t.Fatalf("expected 2 instances, got %d", r.Session.Len())
	}
}

// Invariant 2: adding an already-present instance is a no-op that leaves
// the session equal to the input.
func TestAddInstance_AlreadyPresentIsNoop(t *testing.T) {
	s := NewConsumerSession("g1", "g1", 0)
	s = AddInstance(s, consumerInst("g1", "c1", "n1")).Session
	before := s.Clone()

	r := AddInstance(s, consumerInst("g1", "c1", "n1"))
	if r.Kind != Unchanged {
		t.Fatalf("expected Unchanged, got %s", r.Kind)
	}
	if !r.Session.Equal(before) {
		t.Fatal("expected session to be structurally unchanged")
	}
}

// Invariant 3: removing an absent instance is a no-op that leaves the
// session equal to the input.
func TestRemoveInstance_AbsentIsNoop(t *testing.T) {
	s := NewConsumerSession("g1", "g1", 0)
	s = AddInstance(s, consumerInst("g1", "c1", "n1")).Session
	before := s.Clone()

	r := RemoveInstance(s, ConsumerFullClientID(FullConsumerID{GroupID: "g1", ClientID: "absent"}))
	if r.Kind != Unchanged {
		t.Fatalf("expected Unchanged, got %s", r.Kind)
	}
	if !r.Session.Equal(before) {
		t.Fatal("expected session to be structurally unchanged")
	}
}

// Invariant 8: removeInstance is idempotent across repeated calls.
func TestRemoveInstance_Idempotent(t *testing.T) {
	s := NewConsumerSession("g1", "g1", 0)
	s = AddInstance(s, consumerInst("g1", "c1", "n1")).Session
	id := ConsumerFullClientID(FullConsumerID{GroupID: "g1", ClientID: "c1"})

	first := RemoveInstance(s, id).Session
	second := RemoveInstance(first, id).Session
	third := RemoveInstance(second, id).Session

	if !first.Equal(second) || !second.Equal(third) {
		t.Fatal("expected repeated removal to converge to the same session")
	}
	if third.Len() != 0 {
		t.Fatalf("expected empty session, got %d", third.Len())
	}
}

// Invariant 5: canOpenSocket iff maxConnections==0 or len<max.
func TestCanOpenSocket(t *testing.T) {
	unlimited := NewConsumerSession("g1", "g1", 0)
	if !CanOpenSocket(unlimited) {
		t.Fatal("expected unlimited session to always allow opening a socket")
	}

	capped := NewConsumerSession("g2", "g2", 1)
	if !CanOpenSocket(capped) {
		t.Fatal("expected empty capped session to allow opening a socket")
	}
	capped = AddInstance(capped, consumerInst("g2", "c1", "n1")).Session
	if CanOpenSocket(capped) {
		t.Fatal("expected full capped session to refuse opening a socket")
	}
}

func TestAddInstance_PanicsOnConstructedKindViolation(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected insert of mismatched instance to panic")
		}
	}()
	s := NewConsumerSession("s1", "s1", 0)
	s.insert(NewProducerInstance(FullProducerID{ProducerID: "p"}, "n1"))
}
