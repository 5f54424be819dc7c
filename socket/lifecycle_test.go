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

package socket

import (
	"context"
	"testing"

	"github.com/kafkawsproxy/wsproxy/session"
)

type fakeRegistry struct {
	addConsumerResult session.OpResult
	addProducerResult session.OpResult

	removeConsumerCalls int
	removeProducerCalls int
}

func (r *fakeRegistry) InitSession(ctx context.Context, sessionID session.SessionID, kind session.Kind, maxConnections uint, groupID session.GroupID) session.OpResult {
	return session.OpResult{Kind: session.Updated}
}

func (r *fakeRegistry) AddConsumer(ctx context.Context, sessionID session.SessionID, id session.FullConsumerID, serverID session.ServerID) session.OpResult {
	return r.addConsumerResult
}

func (r *fakeRegistry) AddProducer(ctx context.Context, sessionID session.SessionID, id session.FullProducerID, serverID session.ServerID) session.OpResult {
	return r.addProducerResult
}

func (r *fakeRegistry) RemoveConsumer(ctx context.Context, sessionID session.SessionID, id session.FullConsumerID) session.OpResult {
	r.removeConsumerCalls++
	return session.OpResult{Kind: session.Updated}
}

func (r *fakeRegistry) RemoveProducer(ctx context.Context, sessionID session.SessionID, id session.FullProducerID) session.OpResult {
	r.removeProducerCalls++
	return session.OpResult{Kind: session.Updated}
}

func TestConsumerLifecycle_RegisterAndIdempotentClose(t *testing.T) {
	reg := &fakeRegistry{addConsumerResult: session.OpResult{Kind: session.Updated}}

	lc, result := NewConsumerLifecycle(context.Background(), reg, "s1", session.FullConsumerID{GroupID: "g1", ClientID: "c1"}, "server-a", "g1", 2)
	if result.Kind != session.Updated {
		t.Fatalf("expected Updated, got %v", result.Kind)
	}
	if lc == nil {
		t.Fatal("expected a non-nil lifecycle on success")
	}

	lc.Close(context.Background())
	lc.Close(context.Background())

	if reg.removeConsumerCalls != 1 {
		t.Fatalf("expected exactly one RemoveConsumer call, got %d", reg.removeConsumerCalls)
	}
}

func TestConsumerLifecycle_RejectsOnCapacity(t *testing.T) {
	reg := &fakeRegistry{addConsumerResult: session.OpResult{Kind: session.InstanceLimitReached}}

	lc, result := NewConsumerLifecycle(context.Background(), reg, "s1", session.FullConsumerID{GroupID: "g1", ClientID: "c1"}, "server-a", "g1", 1)
	if lc != nil {
		t.Fatal("expected a nil lifecycle on rejection")
	}

	err := RejectionError(result)
	if err.Kind != KindCapacity {
		t.Fatalf("expected KindCapacity, got %v", err.Kind)
	}
	if err.Kind.Status() != 409 {
		t.Fatalf("expected HTTP 409, got %d", err.Kind.Status())
	}
}

func TestProducerLifecycle_RegisterAndIdempotentClose(t *testing.T) {
	reg := &fakeRegistry{addProducerResult: session.OpResult{Kind: session.Updated}}

	lc, result := NewProducerLifecycle(context.Background(), reg, "s1", session.FullProducerID{ProducerID: "p1", InstanceID: "i1"}, "server-a", 0)
	if result.Kind != session.Updated {
		t.Fatalf("expected Updated, got %v", result.Kind)
	}

	lc.Close(context.Background())
	lc.Close(context.Background())

	if reg.removeProducerCalls != 1 {
		t.Fatalf("expected exactly one RemoveProducer call, got %d", reg.removeProducerCalls)
	}
}

func TestRejectionError_MapsEveryNonUpdatedKind(t *testing.T) {
	cases := []struct {
		kind     session.ResultKind
		wantKind ErrorKind
	}{
		{session.InstanceLimitReached, KindCapacity},
		{session.InstanceTypeForSessionIncorrect, KindRequestValidation},
		{session.IncompleteOp, KindUnavailable},
		{session.SessionNotFound, KindInternal},
	}
	for _, c := range cases {
		got := RejectionError(session.OpResult{Kind: c.kind})
		if got.Kind != c.wantKind {
			t.Errorf("kind %v: expected %v, got %v", c.kind, c.wantKind, got.Kind)
		}
	}
}
