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
	"sync"

	kafka "github.com/Shopify/sarama"

	"github.com/kafkawsproxy/wsproxy/sessionlog"
)

// saramaLogProducer adapts a sarama.SyncProducer to LogProducer, waiting
// for the broker's ack before returning (spec.md §4.D "mutation-requests
// -> log (sarama SyncProducer, ack-gated)").
type saramaLogProducer struct {
	producer kafka.SyncProducer
	topic    string
}

// NewSaramaLogProducer wraps an already-constructed sarama.SyncProducer
// bound to the session-state topic.
func NewSaramaLogProducer(producer kafka.SyncProducer, topic string) LogProducer {
	return &saramaLogProducer{producer: producer, topic: topic}
}

func (p *saramaLogProducer) Publish(ctx context.Context, key, value []byte) error {
	msg := &kafka.ProducerMessage{Topic: p.topic, Key: kafka.ByteEncoder(key), Value: kafka.ByteEncoder(value)}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *saramaLogProducer) Close() error {
	return p.producer.Close()
}

// saramaLogConsumer replays the session-state topic from the earliest
// offset on every partition, fanning all of them into one ordered
// channel the caller drains sequentially — every node needs to see the
// whole log, not a partitioned share of it, since the log is the shared
// source of truth rather than a work queue (spec.md §4.D).
type saramaLogConsumer struct {
	consumer kafka.Consumer
	topic    string

	mu  sync.Mutex
	pcs []kafka.PartitionConsumer
}

// NewSaramaLogConsumer wraps an already-constructed sarama.Consumer
// bound to the session-state topic.
func NewSaramaLogConsumer(consumer kafka.Consumer, topic string) LogConsumer {
	return &saramaLogConsumer{consumer: consumer, topic: topic}
}

// Subscribe starts one PartitionConsumer per partition from
// OffsetOldest, fans every record through the codec and onEvent, and
// closes caughtUp once every partition has replayed up to the
// high-watermark it observed when it started.
func (c *saramaLogConsumer) Subscribe(ctx context.Context, onEvent func(sessionlog.Event), caughtUp chan<- struct{}) error {
	partitions, err := c.consumer.Partitions(c.topic)
	if err != nil {
		return err
	}

	var remaining sync.WaitGroup
	remaining.Add(len(partitions))

	errs := make(chan error, len(partitions))

	for _, partition := range partitions {
		pc, err := c.consumer.ConsumePartition(c.topic, partition, kafka.OffsetOldest)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.pcs = append(c.pcs, pc)
		c.mu.Unlock()

		target := pc.HighWaterMarkOffset()
		go func(pc kafka.PartitionConsumer, target int64) {
			signaled := target <= 0
			if signaled {
				remaining.Done()
			}
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-pc.Messages():
					if !ok {
						return
					}
					ev, err := sessionlog.Decode(msg.Value)
					if err == nil {
						onEvent(ev)
					}
					if !signaled && msg.Offset+1 >= target {
						signaled = true
						remaining.Done()
					}
				case err, ok := <-pc.Errors():
					if !ok {
						return
					}
					errs <- err
					return
				}
			}
		}(pc, target)
	}

	go func() {
		remaining.Wait()
		close(caughtUp)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errs:
		return err
	}
}

func (c *saramaLogConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pc := range c.pcs {
		pc.AsyncClose()
	}
	return c.consumer.Close()
}
