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

// Package sessionhandler implements the cluster-wide session registry:
// a single-writer actor that folds a replicated Kafka log into an
// in-memory map and serves an asynchronous request/response protocol to
// local socket handlers. See spec.md §4.D.
package sessionhandler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kafkawsproxy/wsproxy/session"
	"github.com/kafkawsproxy/wsproxy/sessionlog"
)

// LogProducer publishes one session-state event and waits for the
// broker's acknowledgement, or returns an error (including on timeout).
type LogProducer interface {
	Publish(ctx context.Context, key []byte, value []byte) error
	Close() error
}

// LogConsumer replays the session-state topic from the earliest offset,
// invoking onEvent for each record in log order, and closes caughtUp
// exactly once the consumer has drained every partition to the
// high-watermark captured when Subscribe was called.
type LogConsumer interface {
	Subscribe(ctx context.Context, onEvent func(sessionlog.Event), caughtUp chan<- struct{}) error
	Close() error
}

type opKind byte

const (
	opInitSession opKind = iota
	opAddConsumer
	opAddProducer
	opRemoveConsumer
	opRemoveProducer
	opSessionFor
)

type request struct {
	kind opKind

	sessionID      session.SessionID
	sessionKind    session.Kind
	groupID        session.GroupID
	maxConnections uint

	fullConsumerID session.FullConsumerID
	fullProducerID session.FullProducerID
	serverID       session.ServerID

	reply chan session.OpResult
}

// Handler is the single-writer session registry actor. All fields below
// the mailbox are owned exclusively by the goroutine started in Run; no
// other goroutine may touch them, which is what makes the map safe
// without a mutex.
type Handler struct {
	serverID session.ServerID
	log      *logrus.Entry

	producer LogProducer
	consumer LogConsumer

	requests chan request
	events   chan sessionlog.Event

	caughtUp     chan struct{}
	caughtUpOnce sync.Once

	evictions chan session.FullClientID

	seq uint64

	metrics *Metrics

	// actor-owned state (never touched outside the Run goroutine)
	state map[session.SessionID]*session.Session
}

// Config tunes the handler's mailbox sizing.
type Config struct {
	RequestQueueSize int
	EventQueueSize   int
}

// DefaultConfig returns sane defaults for Config.
func DefaultConfig() Config {
	return Config{RequestQueueSize: 256, EventQueueSize: 1024}
}

// New creates a Handler bound to the given server id and log transport.
// Call Run to start the actor goroutine before issuing any requests.
func New(serverID session.ServerID, producer LogProducer, consumer LogConsumer, cfg Config, metrics *Metrics, log *logrus.Entry) *Handler {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{
		serverID:  serverID,
		log:       log.WithField("serverId", string(serverID)),
		producer:  producer,
		consumer:  consumer,
		requests:  make(chan request, cfg.RequestQueueSize),
		events:    make(chan sessionlog.Event, cfg.EventQueueSize),
		caughtUp:  make(chan struct{}),
		evictions: make(chan session.FullClientID, cfg.RequestQueueSize),
		metrics:   metrics,
		state:     make(map[session.SessionID]*session.Session),
	}
}

// Evictions delivers the FullClientID of every local instance (hosted on
// this Handler's own serverID) that was compensated away by a
// cross-node quota race (spec.md §4.D). No code in wsapi or socket reads
// this channel, so the compensated socket itself is not closed.
func (h *Handler) Evictions() <-chan session.FullClientID {
	return h.evictions
}

// Run starts the actor's message loop. It blocks until ctx is canceled or
// the log consumer returns a fatal error. Run subscribes the LogConsumer
// in a separate goroutine and feeds received events into the same
// channel the mailbox loop selects on, so all state mutation — whether
// driven by an RPC or by a replayed log event — happens on one
// goroutine.
func (h *Handler) Run(ctx context.Context) error {
	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- h.consumer.Subscribe(ctx, h.deliverEvent, h.caughtUp)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-consumeErr:
			return err

		case ev := <-h.events:
			h.applyEvent(ev)

		case req := <-h.requests:
			h.handleRequest(ctx, req)
		}
	}
}

// deliverEvent is called by the LogConsumer goroutine; it only ever
// enqueues onto a channel the actor goroutine owns, so it introduces no
// additional mutation path into h.state.
func (h *Handler) deliverEvent(ev sessionlog.Event) {
	h.events <- ev
}

// markCaughtUp closes caughtUp at most once. The LogConsumer
// implementations close caughtUp directly rather than calling this.
func (h *Handler) markCaughtUp() {
	h.caughtUpOnce.Do(func() { close(h.caughtUp) })
}

// AwaitUpTo blocks until the local view has caught up to the tail of the
// log at subscribe time, or timeout elapses.
func (h *Handler) AwaitUpTo(timeout time.Duration) error {
	select {
	case <-h.caughtUp:
		return nil
	case <-time.After(timeout):
		return ErrCaughtUpTimeout
	}
}

func (h *Handler) nextSeq() uint64 {
	return atomic.AddUint64(&h.seq, 1)
}

// applyEvent folds one replicated event into h.state and, for
// InstanceAdded events that push a session over its quota, emits a
// best-effort compensating InstanceRemoved (spec.md §4.D). It also
// forwards compensating InstanceRemoved events targeting this node to
// h.evictions.
func (h *Handler) applyEvent(ev sessionlog.Event) {
	sessionID := session.SessionID(ev.SessionID)
	before, existed := h.state[sessionID]
	wasFull := existed && !session.CanOpenSocket(before)

	var addedID session.FullClientID
	var addedInstance session.Instance
	var alreadyPresent bool
	if ev.Kind == sessionlog.InstanceAdded && ev.Instance != nil {
		if inst, ok := ev.Instance.ToInstance(); ok {
			addedID = inst.FullClientID()
			addedInstance = inst
			alreadyPresent = existed && before.Has(addedID)
		}
	}

	sessionlog.Apply(h.state, ev)

	switch ev.Kind {
	case sessionlog.InstanceAdded:
		if wasFull && !alreadyPresent {
			h.log.WithFields(logrus.Fields{
				"sessionId": ev.SessionID,
				"instance":  addedID.String(),
			}).Warn("compensating over-quota instance add")
			h.metrics.CompensatingRemovals.Inc(1)
			go h.publishCompensation(sessionID, addedID, addedInstance.ServerID())
		}

	case sessionlog.InstanceRemoved:
		if ev.InstanceID == nil || !ev.Compensating {
			break
		}
		if session.ServerID(ev.TargetServerID) == h.serverID {
			h.evictions <- ev.InstanceID.ToFullClientID()
		}
	}

	h.refreshGauges()
}

func (h *Handler) publishCompensation(sessionID session.SessionID, id session.FullClientID, targetServerID session.ServerID) {
	ev := sessionlog.NewCompensatingRemoval(h.serverID, h.nextSeq(), sessionID, id, targetServerID)
	data, err := sessionlog.Encode(ev)
	if err != nil {
		h.log.WithError(err).Error("failed to encode compensating event")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.producer.Publish(ctx, sessionlog.Key(sessionID), data); err != nil {
		h.log.WithError(err).Error("failed to publish compensating event")
	}
}

func (h *Handler) refreshGauges() {
	var sessions, instances int64
	for _, s := range h.state {
		sessions++
		instances += int64(s.Len())
	}
	h.metrics.SessionsActive.Update(sessions)
	h.metrics.InstancesActive.Update(instances)
}
