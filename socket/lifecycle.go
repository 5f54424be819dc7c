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
	"sync"

	"github.com/kafkawsproxy/wsproxy/session"
)

// Registry is the subset of sessionhandler.Handler's RPC surface the
// socket lifecycle depends on. An interface here, rather than a direct
// dependency on *sessionhandler.Handler, keeps socket testable without a
// real actor and avoids a needless import-time coupling between two
// independently-grounded packages (spec.md §9 "Cyclic dependency
// between socket cleanup and handler" -> pass the handler as a
// capability/interface).
type Registry interface {
	InitSession(ctx context.Context, sessionID session.SessionID, kind session.Kind, maxConnections uint, groupID session.GroupID) session.OpResult
	AddConsumer(ctx context.Context, sessionID session.SessionID, id session.FullConsumerID, serverID session.ServerID) session.OpResult
	AddProducer(ctx context.Context, sessionID session.SessionID, id session.FullProducerID, serverID session.ServerID) session.OpResult
	RemoveConsumer(ctx context.Context, sessionID session.SessionID, id session.FullConsumerID) session.OpResult
	RemoveProducer(ctx context.Context, sessionID session.SessionID, id session.FullProducerID) session.OpResult
}

// ConsumerLifecycle runs the register -> stream -> remove flow for one
// consumer socket (spec.md §4.F). Cleanup is idempotent and safe to call
// from multiple exit paths (graceful close, error, cancellation).
type ConsumerLifecycle struct {
	registry  Registry
	sessionID session.SessionID
	id        session.FullConsumerID
	serverID  session.ServerID

	once sync.Once
}

// NewConsumerLifecycle registers id as a consumer instance of sessionID,
// lazily initializing the session at the given groupID/maxConnections if
// it does not already exist. The returned *ConsumerLifecycle is only
// valid to use (including Close) if the result is session.Updated;
// callers must check the returned OpResult first.
func NewConsumerLifecycle(ctx context.Context, registry Registry, sessionID session.SessionID, id session.FullConsumerID, serverID session.ServerID, groupID session.GroupID, maxConnections uint) (*ConsumerLifecycle, session.OpResult) {
	registry.InitSession(ctx, sessionID, session.Consumer, maxConnections, groupID)
	result := registry.AddConsumer(ctx, sessionID, id, serverID)
	if result.Kind != session.Updated {
		return nil, result
	}
	return &ConsumerLifecycle{registry: registry, sessionID: sessionID, id: id, serverID: serverID}, result
}

// Close removes this instance from the session registry. Idempotent:
// calling it more than once only issues the removal RPC the first time
// (spec.md §4.F step 5, invariant 8 "cleanup idempotence").
func (l *ConsumerLifecycle) Close(ctx context.Context) {
	l.once.Do(func() {
		l.registry.RemoveConsumer(ctx, l.sessionID, l.id)
	})
}

// ProducerLifecycle is the producer-socket analogue of ConsumerLifecycle.
type ProducerLifecycle struct {
	registry  Registry
	sessionID session.SessionID
	id        session.FullProducerID
	serverID  session.ServerID

	once sync.Once
}

// NewProducerLifecycle registers id as a producer instance of sessionID.
func NewProducerLifecycle(ctx context.Context, registry Registry, sessionID session.SessionID, id session.FullProducerID, serverID session.ServerID, maxConnections uint) (*ProducerLifecycle, session.OpResult) {
	registry.InitSession(ctx, sessionID, session.Producer, maxConnections, "")
	result := registry.AddProducer(ctx, sessionID, id, serverID)
	if result.Kind != session.Updated {
		return nil, result
	}
	return &ProducerLifecycle{registry: registry, sessionID: sessionID, id: id, serverID: serverID}, result
}

// Close removes this instance from the session registry. Idempotent.
func (l *ProducerLifecycle) Close(ctx context.Context) {
	l.once.Do(func() {
		l.registry.RemoveProducer(ctx, l.sessionID, l.id)
	})
}

// RejectionError maps a non-Updated OpResult to the socket.Error kind
// the HTTP layer needs, per spec.md §4.F step 4 "On any rejection ->
// respond with the corresponding 4xx/5xx and do not open a stream."
func RejectionError(result session.OpResult) *Error {
	switch result.Kind {
	case session.InstanceLimitReached:
		return NewError(KindCapacity, "session at capacity", nil)
	case session.InstanceTypeForSessionIncorrect:
		return NewError(KindRequestValidation, "instance kind does not match existing session", nil)
	case session.IncompleteOp:
		return NewError(KindUnavailable, "session registry did not respond in time: "+result.Message, nil)
	default:
		return NewError(KindInternal, "unexpected session registry result", nil)
	}
}
