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
	"sync"
	"testing"
	"time"

	"github.com/kafkawsproxy/wsproxy/commitstack"
	"github.com/kafkawsproxy/wsproxy/session"
)

type fakeCommitter struct {
	mu    sync.Mutex
	marks map[session.Partition]session.Offset
}

func newFakeCommitter() *fakeCommitter {
	return &fakeCommitter{marks: make(map[session.Partition]session.Offset)}
}

func (c *fakeCommitter) MarkOffset(topic string, partition session.Partition, offset session.Offset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marks[partition] = offset
}

func (c *fakeCommitter) CommitOffsets() error { return nil }

func (c *fakeCommitter) markFor(p session.Partition) session.Offset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.marks[p]
}

type fakeGroup struct {
	messages chan KafkaMessage
	errs     chan error
	closed   bool
}

func newFakeGroup() *fakeGroup {
	return &fakeGroup{messages: make(chan KafkaMessage, 16), errs: make(chan error, 1)}
}

func (g *fakeGroup) Messages() <-chan KafkaMessage { return g.messages }
func (g *fakeGroup) Errors() <-chan error          { return g.errs }
func (g *fakeGroup) Close() error                  { g.closed = true; return nil }

func TestConsumerStream_DeliversAndAcknowledges(t *testing.T) {
	group := newFakeGroup()
	committer := newFakeCommitter()
	stack := commitstack.New(session.FullConsumerID{}, "t1", committer, commitstack.DefaultConfig())

	conn := newFakeWSConn()

	s := NewConsumerStream(conn, group, stack, jsonCodec{}, 0, 1, 0, testLog())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	group.messages <- KafkaMessage{Topic: "t1", Partition: 0, Offset: 5, Value: []byte("hi")}

	deadline := time.After(2 * time.Second)
	for conn.outgoingLen() != 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the delivered record to reach the client")
		case <-time.After(5 * time.Millisecond):
		}
	}

	ack, _ := json.Marshal(AckFrame{WsMessageID: session.WsMessageID{Topic: "t1", Partition: 0, Offset: 5}})
	conn.push(ack)

	deadline = time.After(2 * time.Second)
	for committer.markFor(0) != 6 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for offset 6 to be committed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	conn.Close()
	<-done

	if stack.Len() != 0 {
		t.Fatalf("expected stack to be drained after ack, got %d entries", stack.Len())
	}
}

func TestConsumerStream_FlushesPartialBatchBelowBatchSize(t *testing.T) {
	group := newFakeGroup()
	committer := newFakeCommitter()
	stack := commitstack.New(session.FullConsumerID{}, "t1", committer, commitstack.DefaultConfig())

	conn := newFakeWSConn()

	s := NewConsumerStream(conn, group, stack, jsonCodec{}, 0, 100, 0, testLog())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	group.messages <- KafkaMessage{Topic: "t1", Partition: 0, Offset: 1, Value: []byte("one")}
	group.messages <- KafkaMessage{Topic: "t1", Partition: 0, Offset: 2, Value: []byte("two")}

	deadline := time.After(2 * time.Second)
	for conn.outgoingLen() != 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the partial batch to be flushed by the ticker")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	conn.Close()
	<-done
}

func TestConsumerStream_AutoCommitsOnTicker(t *testing.T) {
	group := newFakeGroup()
	committer := newFakeCommitter()
	cfg := commitstack.Config{MaxStackSize: 4096, AutoCommitEnabled: true, AutoCommitMaxAge: 0}
	stack := commitstack.New(session.FullConsumerID{}, "t1", committer, cfg)

	conn := newFakeWSConn()
	s := NewConsumerStream(conn, group, stack, jsonCodec{}, 0, 1, 10*time.Millisecond, testLog())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	group.messages <- KafkaMessage{Topic: "t1", Partition: 2, Offset: 9, Value: []byte("x")}

	deadline := time.After(2 * time.Second)
	for committer.markFor(2) != 10 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for autocommit sweep")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	conn.Close()
	<-done
}
