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
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/kafkawsproxy/wsproxy/commitstack"
	"github.com/kafkawsproxy/wsproxy/session"
)

// KafkaMessage is one record delivered by a consumer-group source,
// shaped so the Commit Stack (commitstack.Stack) can enqueue it directly
// by its own coordinates.
type KafkaMessage struct {
	Topic     session.TopicName
	Partition session.Partition
	Offset    session.Offset
	Timestamp session.Timestamp
	Key       []byte
	Value     []byte
}

// KafkaConsumerGroup is the subset of a bsm/sarama-cluster consumer
// group a consumer stream needs: a channel of delivered records and a
// channel of broker errors (grounded on consumer/kafka.go's
// partCons.Messages()/Errors() select loop, generalized from a single
// PartitionConsumer to a rebalancing consumer group).
type KafkaConsumerGroup interface {
	Messages() <-chan KafkaMessage
	Errors() <-chan error
	Close() error
}

// ConsumerStream pumps Kafka records to a WebSocket client, respecting a
// rate limit and batch size, and reconciles client acks through a
// per-socket commitstack.Stack. Acks and autocommit sweeps and Kafka
// delivery all serialize through one goroutine (Run), matching spec.md
// §5's "Commit Stack ... access is single-threaded through the stream's
// operator chain."
type ConsumerStream struct {
	conn    WSConn
	group   KafkaConsumerGroup
	stack   *commitstack.Stack
	codec   FrameCodec
	limiter *rate.Limiter
	batch   int
	log     *logrus.Entry

	autoCommitInterval time.Duration
}

// partialBatchFlushInterval bounds how long a partial batch (fewer than
// batchSize records) can sit in pending before it is flushed anyway, so a
// low-volume topic still delivers in near-real-time (spec.md §1/§4.F)
// instead of waiting for batchSize records that may never arrive.
const partialBatchFlushInterval = 250 * time.Millisecond

// NewConsumerStream builds a stream bound to one already-upgraded
// WebSocket connection and its backing consumer-group source.
func NewConsumerStream(conn WSConn, group KafkaConsumerGroup, stack *commitstack.Stack, codec FrameCodec, ratePerSec int, batchSize int, autoCommitInterval time.Duration, log *logrus.Entry) *ConsumerStream {
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &ConsumerStream{
		conn: conn, group: group, stack: stack, codec: codec,
		limiter: limiter, batch: batchSize, log: log,
		autoCommitInterval: autoCommitInterval,
	}
}

// Run delivers records until ctx is canceled, the client disconnects, or
// a fatal error occurs. The client's acknowledgment frames are read on a
// dedicated goroutine and funneled back into Run's own select loop, so
// the commitstack.Stack is still touched from exactly one goroutine.
func (s *ConsumerStream) Run(ctx context.Context) error {
	acks := make(chan session.WsMessageID, 64)
	readErr := make(chan error, 1)
	go s.readAcks(acks, readErr)

	var ticker *time.Ticker
	var tick <-chan time.Time
	if s.autoCommitInterval > 0 {
		ticker = time.NewTicker(s.autoCommitInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	flushTicker := time.NewTicker(partialBatchFlushInterval)
	defer flushTicker.Stop()

	pending := make([]KafkaMessage, 0, s.batch)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		for _, msg := range pending {
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			data, err := s.codec.Encode(Frame{
				WsMessageID: session.WsMessageID{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset, Timestamp: msg.Timestamp},
				Topic:       msg.Topic,
				Key:         msg.Key,
				Value:       msg.Value,
			})
			if err != nil {
				s.log.WithError(err).Warn("dropping unencodable record")
				continue
			}
			// WriteMessage blocks under peer backpressure; because this is
			// the same goroutine driving group.Messages(), the consumer
			// naturally stops pulling more records until the client drains
			// (spec.md §5 "this backpressure MUST propagate upstream").
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
			s.stack.Enqueue(session.WsMessageID{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset, Timestamp: msg.Timestamp}, time.Now())
		}
		pending = pending[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()

		case err := <-readErr:
			flush()
			return err

		case err := <-s.group.Errors():
			s.log.WithError(err).Warn("kafka consumer group error")

		case id := <-acks:
			s.stack.Acknowledge(id)

		case <-tick:
			s.stack.Sweep(time.Now())

		case <-flushTicker.C:
			if err := flush(); err != nil {
				return err
			}

		case msg, ok := <-s.group.Messages():
			if !ok {
				flush()
				return nil
			}
			pending = append(pending, msg)
			if len(pending) >= s.batch {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}

func (s *ConsumerStream) readAcks(acks chan<- session.WsMessageID, readErr chan<- error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			readErr <- nil // treat any read failure as a graceful disconnect
			return
		}
		var ack AckFrame
		if err := json.Unmarshal(data, &ack); err != nil {
			s.log.WithError(err).Warn("dropping malformed ack frame")
			continue
		}
		acks <- ack.WsMessageID
	}
}
