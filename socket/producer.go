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

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// WSConn is the subset of *gorilla/websocket.Conn a producer/consumer
// stream needs; an interface here keeps the stream loop testable
// without a real TCP connection.
type WSConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// KafkaPublisher is the subset of sarama.SyncProducer a producer stream
// needs: publish one record and learn where it landed.
type KafkaPublisher interface {
	SendMessage(topic string, key, value []byte) (partition int32, offset int64, err error)
}

// ProducerStream pumps frames read off a WebSocket into Kafka, grounded
// on producer/kafka.go's send-then-check-errors loop, generalized from
// "one Kafka record per gollum message" to "one Kafka record per framed
// WebSocket message", and on producer/websocket.go's per-connection
// read-until-close loop for driving the socket side.
type ProducerStream struct {
	conn      WSConn
	publisher KafkaPublisher
	codec     FrameCodec
	topic     string
	log       *logrus.Entry
}

// NewProducerStream builds a stream bound to one already-upgraded
// WebSocket connection.
func NewProducerStream(conn WSConn, publisher KafkaPublisher, codec FrameCodec, topic string, log *logrus.Entry) *ProducerStream {
	return &ProducerStream{conn: conn, publisher: publisher, codec: codec, topic: topic, log: log}
}

// Run reads frames until the client disconnects, ctx is canceled, or a
// fatal publish error occurs. It returns nil on a graceful client close.
func (s *ProducerStream) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil // client disconnected or closed the socket
		}

		frame, err := s.codec.Decode(data)
		if err != nil {
			s.log.WithError(err).Warn("dropping malformed producer frame")
			continue
		}

		topic := s.topic
		if frame.Topic != "" {
			topic = string(frame.Topic)
		}

		if _, _, err := s.publisher.SendMessage(topic, frame.Key, frame.Value); err != nil {
			return NewError(KindInternal, "kafka publish failed", errors.Wrap(err, "socket: producer stream"))
		}
	}
}
