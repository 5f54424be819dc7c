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
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// fakeWSConn is a channel-backed stand-in for *websocket.Conn. incoming
// is fed by newFakeWSConn (fixed messages) or by push (messages added
// while a stream is already running); it is closed to simulate the
// client hanging up, which surfaces as io.EOF from ReadMessage.
type fakeWSConn struct {
	mu       sync.Mutex
	incoming chan []byte
	outgoing [][]byte
	closed   bool
}

func newFakeWSConn(messages ...[]byte) *fakeWSConn {
	c := &fakeWSConn{incoming: make(chan []byte, 64)}
	for _, m := range messages {
		c.incoming <- m
	}
	return c
}

// push enqueues another incoming message, safe to call while a stream
// reading from c is already running.
func (c *fakeWSConn) push(data []byte) { c.incoming <- data }

func (c *fakeWSConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-c.incoming
	if !ok {
		return 0, nil, io.EOF
	}
	return 1, msg, nil
}

func (c *fakeWSConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(data))
	copy(out, data)
	c.outgoing = append(c.outgoing, out)
	return nil
}

func (c *fakeWSConn) outgoingLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outgoing)
}

func (c *fakeWSConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.incoming)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []kafkaSend
	fail error
}

type kafkaSend struct {
	topic string
	key   []byte
	value []byte
}

func (p *fakePublisher) SendMessage(topic string, key, value []byte) (int32, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return 0, 0, p.fail
	}
	p.sent = append(p.sent, kafkaSend{topic: topic, key: key, value: value})
	return 0, int64(len(p.sent) - 1), nil
}

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestProducerStream_PublishesDecodedFrames(t *testing.T) {
	frame, _ := json.Marshal(Frame{Value: []byte("hello")})
	conn := newFakeWSConn(frame)
	conn.Close()
	pub := &fakePublisher{}

	s := NewProducerStream(conn, pub, jsonCodec{}, "t1", testLog())
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.sent) != 1 {
		t.Fatalf("expected 1 published record, got %d", len(pub.sent))
	}
	if string(pub.sent[0].value) != "hello" {
		t.Fatalf("unexpected published value: %q", pub.sent[0].value)
	}
}

func TestProducerStream_SkipsMalformedFrames(t *testing.T) {
	conn := newFakeWSConn([]byte("not json"))
	conn.Close()
	pub := &fakePublisher{}

	s := NewProducerStream(conn, pub, jsonCodec{}, "t1", testLog())
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.sent) != 0 {
		t.Fatalf("expected malformed frame to be dropped, got %d sends", len(pub.sent))
	}
}

func TestProducerStream_ReturnsErrorOnPublishFailure(t *testing.T) {
	frame, _ := json.Marshal(Frame{Value: []byte("hello")})
	conn := newFakeWSConn(frame)
	conn.Close()
	pub := &fakePublisher{fail: errors.New("broker unavailable")}

	s := NewProducerStream(conn, pub, jsonCodec{}, "t1", testLog())
	err := s.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error from a failed publish")
	}
	sockErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *socket.Error, got %T", err)
	}
	if sockErr.Kind != KindInternal {
		t.Fatalf("expected KindInternal, got %v", sockErr.Kind)
	}
}
