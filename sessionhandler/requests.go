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

package sessionhandler

import (
	"context"
	"errors"
	"time"

	"github.com/kafkawsproxy/wsproxy/session"
	"github.com/kafkawsproxy/wsproxy/sessionlog"
)

// DefaultRPCTimeout is the default deadline for a session RPC, per
// spec.md §5 "Suspension points".
const DefaultRPCTimeout = 3 * time.Second

// ErrCaughtUpTimeout is returned by AwaitUpTo when the startup barrier
// does not clear in time.
var ErrCaughtUpTimeout = errors.New("sessionhandler: timed out waiting to catch up to the log tail")

// do sends req to the mailbox and waits for a reply or ctx expiry. A ctx
// without a deadline is bounded by DefaultRPCTimeout. On expiry the
// caller gets IncompleteOp; if the actor dequeues the request later
// anyway, it still runs to completion against the log (spec.md §5
// "Cancellation and timeouts": at-most-once-for-client,
// at-least-once-for-cluster).
func (h *Handler) do(ctx context.Context, req request) session.OpResult {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRPCTimeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return session.Incomplete("session RPC timed out: " + err.Error())
	}

	req.reply = make(chan session.OpResult, 1)
	select {
	case h.requests <- req:
	case <-ctx.Done():
		return session.Incomplete("session handler mailbox full or unavailable: " + ctx.Err().Error())
	}

	select {
	case res := <-req.reply:
		return res
	case <-ctx.Done():
		return session.Incomplete("session RPC timed out: " + ctx.Err().Error())
	}
}

// InitSession lazily creates a session bucket of the given kind if it
// does not already exist, and returns it either way.
func (h *Handler) InitSession(ctx context.Context, sessionID session.SessionID, kind session.Kind, maxConnections uint, groupID session.GroupID) session.OpResult {
	return h.do(ctx, request{
		kind:           opInitSession,
		sessionID:      sessionID,
		sessionKind:    kind,
		groupID:        groupID,
		maxConnections: maxConnections,
	})
}

// AddConsumer registers a consumer instance under sessionID, creating the
// session lazily if absent.
func (h *Handler) AddConsumer(ctx context.Context, sessionID session.SessionID, id session.FullConsumerID, serverID session.ServerID) session.OpResult {
	return h.do(ctx, request{
		kind:           opAddConsumer,
		sessionID:      sessionID,
		fullConsumerID: id,
		serverID:       serverID,
	})
}

// AddProducer registers a producer instance under sessionID, creating the
// session lazily if absent.
func (h *Handler) AddProducer(ctx context.Context, sessionID session.SessionID, id session.FullProducerID, serverID session.ServerID) session.OpResult {
	return h.do(ctx, request{
		kind:           opAddProducer,
		sessionID:      sessionID,
		fullProducerID: id,
		serverID:       serverID,
	})
}

// RemoveConsumer removes a consumer instance. Idempotent: removing an
// already-absent instance returns Unchanged, never an error.
func (h *Handler) RemoveConsumer(ctx context.Context, sessionID session.SessionID, id session.FullConsumerID) session.OpResult {
	return h.do(ctx, request{
		kind:           opRemoveConsumer,
		sessionID:      sessionID,
		fullConsumerID: id,
	})
}

// RemoveProducer removes a producer instance. Idempotent.
func (h *Handler) RemoveProducer(ctx context.Context, sessionID session.SessionID, id session.FullProducerID) session.OpResult {
	return h.do(ctx, request{
		kind:           opRemoveProducer,
		sessionID:      sessionID,
		fullProducerID: id,
	})
}

// SessionFor looks up the current session for sessionID.
func (h *Handler) SessionFor(ctx context.Context, sessionID session.SessionID) session.OpResult {
	return h.do(ctx, request{kind: opSessionFor, sessionID: sessionID})
}

// handleRequest runs on the actor goroutine only. It implements the
// producer flow from spec.md §4.D: run the pure state machine against
// the current snapshot; on rejection, reply without touching the log; on
// Updated, publish the event, await ack, apply it locally, then reply.
func (h *Handler) handleRequest(ctx context.Context, req request) {
	switch req.kind {
	case opInitSession:
		h.handleInit(req)
	case opAddConsumer:
		h.handleAddConsumer(req)
	case opAddProducer:
		h.handleAddProducer(req)
	case opRemoveConsumer:
		h.handleRemoveConsumer(req)
	case opRemoveProducer:
		h.handleRemoveProducer(req)
	case opSessionFor:
		h.handleSessionFor(req)
	}
}

func (h *Handler) handleInit(req request) {
	existing, ok := h.state[req.sessionID]
	if ok {
		req.reply <- session.OpResult{Kind: session.Unchanged, Session: existing}
		return
	}

	var fresh *session.Session
	if req.sessionKind == session.Consumer {
		fresh = session.NewConsumerSession(req.sessionID, req.groupID, req.maxConnections)
	} else {
		fresh = session.NewProducerSession(req.sessionID, req.maxConnections)
	}

	ev := sessionlog.NewSessionCreated(h.serverID, h.nextSeq(), fresh)
	if !h.publishAndApply(req.reply, ev) {
		return
	}
	req.reply <- session.OpResult{Kind: session.Updated, Session: h.state[req.sessionID]}
}

func (h *Handler) handleAddConsumer(req request) {
	s := h.sessionOrLazyInit(req.sessionID, session.Consumer, req.fullConsumerID.GroupID)
	inst := session.NewConsumerInstance(req.fullConsumerID, req.serverID)
	h.handleAdd(req, s, inst)
}

func (h *Handler) handleAddProducer(req request) {
	s := h.sessionOrLazyInit(req.sessionID, session.Producer, "")
	inst := session.NewProducerInstance(req.fullProducerID, req.serverID)
	h.handleAdd(req, s, inst)
}

// sessionOrLazyInit returns the current session for id, synthesizing a
// fresh one (not yet committed to the log or the map) if absent, per
// spec.md §4.D step (a): "or synthesizes a fresh Session for an init op".
// The default maxConnections of 1 matches spec.md §3.
func (h *Handler) sessionOrLazyInit(id session.SessionID, kind session.Kind, groupID session.GroupID) *session.Session {
	if s, ok := h.state[id]; ok {
		return s
	}
	if kind == session.Consumer {
		return session.NewConsumerSession(id, groupID, 1)
	}
	return session.NewProducerSession(id, 1)
}

func (h *Handler) handleAdd(req request, s *session.Session, inst session.Instance) {
	result := session.AddInstance(s, inst)

	switch result.Kind {
	case session.InstanceLimitReached, session.InstanceTypeForSessionIncorrect, session.Unchanged:
		// Reject or no-op: respond immediately, no log write (spec.md §4.D step b).
		req.reply <- result
		return
	}

	_, isNewSession := h.state[req.sessionID]
	isNewSession = !isNewSession

	events := make([]sessionlog.Event, 0, 2)
	if isNewSession {
		events = append(events, sessionlog.NewSessionCreated(h.serverID, h.nextSeq(), result.Session))
	}
	events = append(events, sessionlog.NewInstanceAdded(h.serverID, h.nextSeq(), req.sessionID, inst))

	for _, ev := range events {
		if !h.publishAndApply(req.reply, ev) {
			return
		}
	}

	// Read the state back out instead of trusting the locally-computed
	// result.Session: by the time our own write has round-tripped through
	// the log, a concurrent node's conflicting add may have been applied
	// too (and, if it lost the race, already compensated), and applyEvent
	// is the only place that decides that outcome (handler.go).
	req.reply <- session.OpResult{Kind: session.Updated, Session: h.state[req.sessionID]}
}

func (h *Handler) handleRemoveConsumer(req request) {
	h.handleRemove(req, session.ConsumerFullClientID(req.fullConsumerID))
}

func (h *Handler) handleRemoveProducer(req request) {
	h.handleRemove(req, session.ProducerFullClientID(req.fullProducerID))
}

func (h *Handler) handleRemove(req request, id session.FullClientID) {
	s, ok := h.state[req.sessionID]
	if !ok {
		req.reply <- session.OpResult{Kind: session.Unchanged}
		return
	}

	result := session.RemoveInstance(s, id)
	if result.Kind == session.Unchanged {
		req.reply <- result
		return
	}

	ev := sessionlog.NewInstanceRemoved(h.serverID, h.nextSeq(), req.sessionID, id)
	if !h.publishAndApply(req.reply, ev) {
		return
	}

	req.reply <- session.OpResult{Kind: session.Updated, Session: h.state[req.sessionID]}
}

func (h *Handler) handleSessionFor(req request) {
	s, ok := h.state[req.sessionID]
	if !ok {
		req.reply <- session.NotFound(req.sessionID)
		return
	}
	req.reply <- session.OpResult{Kind: session.Updated, Session: s}
}

// publishAndApply publishes ev synchronously (awaiting broker ack, or a
// bounded internal timeout) and then blocks, on the actor goroutine, until
// this exact event comes back around through the log consumer and is
// folded into h.state by applyEvent. On failure it replies IncompleteOp
// and returns false without mutating h.state (spec.md §4.D step c, §7
// "Partial-failure / IncompleteOp").
//
// Waiting for our own write to round-trip through the log — rather than
// updating h.state directly here — matters for correctness, not just
// style: applyEvent is the one place that detects a cross-node quota
// race and decides which instance to compensate, and it can only do that
// correctly if every mutation, including the writer's own, is folded in
// the order the log actually delivers it. A node that updated its state
// early would evaluate that race against a state the rest of the cluster
// never held.
func (h *Handler) publishAndApply(reply chan<- session.OpResult, ev sessionlog.Event) bool {
	data, err := sessionlog.Encode(ev)
	if err != nil {
		h.metrics.IncompleteOps.Inc(1)
		reply <- session.Incomplete("failed to encode session event: " + err.Error())
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultRPCTimeout)
	defer cancel()

	if err := h.producer.Publish(ctx, sessionlog.Key(session.SessionID(ev.SessionID)), data); err != nil {
		h.metrics.IncompleteOps.Inc(1)
		reply <- session.Incomplete("failed to publish session event: " + err.Error())
		return false
	}

	for {
		select {
		case incoming := <-h.events:
			h.applyEvent(incoming)
			if incoming.ServerID == ev.ServerID && incoming.Seq == ev.Seq {
				return true
			}
		case <-ctx.Done():
			h.metrics.IncompleteOps.Inc(1)
			reply <- session.Incomplete("timed out waiting for own write to replay: " + ctx.Err().Error())
			return false
		}
	}
}
