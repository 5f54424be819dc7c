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

func TestCloneIsIndependent(t *testing.T) {
	s := NewConsumerSession("g1", "g1", 0)
	s = AddInstance(s, consumerInst("g1", "c1", "n1")).Session

	clone := s.Clone()
	clone = AddInstance(clone, consumerInst("g1", "c2", "n2")).Session

	if s.Len() != 1 {
		t.Fatalf("expected original session untouched, got %d instances", s.Len())
	}
	if clone.Len() != 2 {
		t.Fatalf("expected clone to have 2 instances, got %d", clone.Len())
	}
}

func TestFullProducerIDStringWithoutInstance(t *testing.T) {
	id := FullProducerID{ProducerID: "p1"}
	if id.String() != "p1" {
		t.Fatalf("expected bare producer id string, got %q", id.String())
	}
}

func TestSessionImmutableFields(t *testing.T) {
	s := NewProducerSession("p1", 3)
	if s.ID() != "p1" || s.Kind() != Producer || s.MaxConnections() != 3 {
		t.Fatal("unexpected immutable session fields")
	}
}
