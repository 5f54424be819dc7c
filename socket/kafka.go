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
	kafka "github.com/Shopify/sarama"
	cluster "github.com/bsm/sarama-cluster"

	"github.com/kafkawsproxy/wsproxy/session"
)

// saramaPublisher adapts a sarama.SyncProducer to KafkaPublisher,
// grounded on producer/kafka.go's send path but synchronous (SyncProducer
// instead of AsyncProducer) so a publish failure surfaces directly to
// the stream that issued it rather than on a side error channel.
type saramaPublisher struct {
	producer kafka.SyncProducer
}

// NewSaramaPublisher wraps an already-constructed sarama.SyncProducer.
func NewSaramaPublisher(producer kafka.SyncProducer) KafkaPublisher {
	return &saramaPublisher{producer: producer}
}

func (p *saramaPublisher) SendMessage(topic string, key, value []byte) (int32, int64, error) {
	msg := &kafka.ProducerMessage{Topic: topic, Value: kafka.ByteEncoder(value)}
	if key != nil {
		msg.Key = kafka.ByteEncoder(key)
	}
	return p.producer.SendMessage(msg)
}

// clusterConsumerGroup adapts a bsm/sarama-cluster *cluster.Consumer to
// KafkaConsumerGroup and to commitstack.Committer, so the one consumer
// group backs both the record stream and the commit-stack's offset
// commits (spec.md §4.E).
type clusterConsumerGroup struct {
	consumer *cluster.Consumer
	messages chan KafkaMessage
	done     chan struct{}
}

// NewClusterConsumerGroup wraps an already-constructed
// *cluster.Consumer, translating its sarama.ConsumerMessage stream into
// the KafkaMessage shape the rest of socket works with.
func NewClusterConsumerGroup(consumer *cluster.Consumer) *clusterConsumerGroup {
	g := &clusterConsumerGroup{
		consumer: consumer,
		messages: make(chan KafkaMessage, 256),
		done:     make(chan struct{}),
	}
	go g.pump()
	return g
}

func (g *clusterConsumerGroup) pump() {
	defer close(g.messages)
	for {
		select {
		case msg, ok := <-g.consumer.Messages():
			if !ok {
				return
			}
			g.messages <- KafkaMessage{
				Topic:     session.TopicName(msg.Topic),
				Partition: session.Partition(msg.Partition),
				Offset:    session.Offset(msg.Offset),
				Timestamp: session.Timestamp(msg.Timestamp.UnixNano() / int64(1e6)),
				Key:       msg.Key,
				Value:     msg.Value,
			}
		case <-g.done:
			return
		}
	}
}

func (g *clusterConsumerGroup) Messages() <-chan KafkaMessage { return g.messages }

func (g *clusterConsumerGroup) Errors() <-chan error { return g.consumer.Errors() }

func (g *clusterConsumerGroup) Close() error {
	close(g.done)
	return g.consumer.Close()
}

// MarkOffset implements commitstack.Committer, completing "committing
// offset N implicitly covers offsets < N on that partition" via the
// consumer-group protocol itself rather than reimplementing it.
func (g *clusterConsumerGroup) MarkOffset(topic string, partition session.Partition, offset session.Offset) {
	g.consumer.MarkPartitionOffset(topic, int32(partition), int64(offset), "")
}

// CommitOffsets implements commitstack.Committer.
func (g *clusterConsumerGroup) CommitOffsets() error {
	return g.consumer.CommitOffsets()
}
