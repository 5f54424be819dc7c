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

// Package commitstack implements the per-consumer ordered buffer that
// reconciles WebSocket-acknowledged message ids with the monotonic
// per-partition offset commits the Kafka commit API requires. See
// spec.md §4.E.
package commitstack

import (
	"time"

	"github.com/kafkawsproxy/wsproxy/session"
)

// Committer commits a partition offset to the broker's consumer-group
// coordinator. Backed by bsm/sarama-cluster's MarkOffset/CommitOffsets in
// production (socket/kafka.go); a fake in tests.
type Committer interface {
	MarkOffset(topic string, partition session.Partition, offset session.Offset)
	CommitOffsets() error
}

// CommitEntry is one outstanding WebSocket delivery awaiting
// acknowledgment, per spec.md §3.
type CommitEntry struct {
	WsMessageID session.WsMessageID
	Partition   session.Partition
	Offset      session.Offset
	Committable bool
	EnqueuedAt  time.Time
}

// Config tunes bounding and auto-commit behavior.
type Config struct {
	MaxStackSize      int
	AutoCommitEnabled bool
	AutoCommitMaxAge  time.Duration
}

// DefaultConfig returns the teacher-style defaults: auto-commit disabled
// and a generous 4096-entry stack bound, matching the conservative
// defaults consumer/kafka.go applies to its own tunables.
func DefaultConfig() Config {
	return Config{MaxStackSize: 4096, AutoCommitEnabled: false, AutoCommitMaxAge: 20 * time.Second}
}

// Stack is the ordered, per-FullConsumerID commit buffer. It is owned
// exclusively by the consumer socket's own goroutine (spec.md §5
// "Scheduling model") and is not safe for concurrent use by multiple
// goroutines.
type Stack struct {
	id        session.FullConsumerID
	topic     session.TopicName
	committer Committer
	cfg       Config
	metrics   *Metrics

	entries []CommitEntry
}

// New creates a Stack for one consumer instance.
func New(id session.FullConsumerID, topic session.TopicName, committer Committer, cfg Config) *Stack {
	return &Stack{id: id, topic: topic, committer: committer, cfg: cfg}
}

// Len reports the number of outstanding entries.
func (s *Stack) Len() int { return len(s.entries) }

// Enqueue records a delivered message, keyed by its own wire id (which
// already carries the partition/offset coordinates the commit needs).
// Entries are appended in delivery order; when the stack is at
// MaxStackSize, the oldest entry is force-committed and evicted to make
// room (spec.md §4.E "Enqueue").
func (s *Stack) Enqueue(id session.WsMessageID, now time.Time) {
	if s.cfg.MaxStackSize > 0 && len(s.entries) >= s.cfg.MaxStackSize {
		s.commitOne(s.entries[0])
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, CommitEntry{
		WsMessageID: id,
		Partition:   id.Partition,
		Offset:      id.Offset,
		Committable: true,
		EnqueuedAt:  now,
	})
	s.reportDepth()
}

// Acknowledge locates the entry matching wsMessageID and commits it,
// along with every older entry on the same partition (Kafka's commit of
// offset O implicitly covers every offset < O on that partition). Acking
// an unknown or already-evicted id is a no-op.
func (s *Stack) Acknowledge(wsMessageID session.WsMessageID) bool {
	idx := -1
	for i, e := range s.entries {
		if e.WsMessageID == wsMessageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	target := s.entries[idx]
	var toCommit []CommitEntry
	for _, e := range s.entries {
		if e.Partition == target.Partition && !offsetAfter(e.Offset, target.Offset) {
			toCommit = append(toCommit, e)
		}
	}
	for _, e := range toCommit {
		s.committer.MarkOffset(string(s.topic), e.Partition, e.Offset+1)
	}
	if err := s.committer.CommitOffsets(); err != nil {
		// The entries stay on the stack uncommitted; the next successful
		// Acknowledge or auto-commit sweep will retry them since they are
		// still <= a later offset on the same partition.
		return false
	}

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Partition == target.Partition && !offsetAfter(e.Offset, target.Offset) {
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	s.reportDepth()
	return true
}

// Sweep commits every entry whose age has reached autoCommitMaxAge,
// oldest first per partition, per spec.md §4.E "Auto-commit". It is a
// no-op when auto-commit is disabled.
func (s *Stack) Sweep(now time.Time) int {
	if !s.cfg.AutoCommitEnabled {
		return 0
	}

	due := make(map[session.Partition]session.Offset)
	for _, e := range s.entries {
		if now.Sub(e.EnqueuedAt) < s.cfg.AutoCommitMaxAge {
			continue
		}
		cur, ok := due[e.Partition]
		if !ok || offsetAfter(e.Offset, cur) {
			due[e.Partition] = e.Offset
		}
	}
	if len(due) == 0 {
		return 0
	}

	for partition, offset := range due {
		s.committer.MarkOffset(string(s.topic), partition, offset+1)
	}
	if err := s.committer.CommitOffsets(); err != nil {
		return 0
	}

	committed := 0
	kept := s.entries[:0]
	for _, e := range s.entries {
		if cur, ok := due[e.Partition]; ok && !offsetAfter(e.Offset, cur) {
			committed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	s.reportDepth()
	if s.metrics != nil && committed > 0 {
		s.metrics.AutoCommitSweeps.Inc(1)
	}
	return committed
}

// Close commits everything still committable and releases resources.
// Per spec.md §4.E "Close".
func (s *Stack) Close() error {
	if len(s.entries) == 0 {
		return nil
	}
	latest := make(map[session.Partition]session.Offset)
	for _, e := range s.entries {
		cur, ok := latest[e.Partition]
		if !ok || offsetAfter(e.Offset, cur) {
			latest[e.Partition] = e.Offset
		}
	}
	for partition, offset := range latest {
		s.committer.MarkOffset(string(s.topic), partition, offset+1)
	}
	err := s.committer.CommitOffsets()
	s.entries = nil
	s.reportDepth()
	return err
}

func (s *Stack) commitOne(e CommitEntry) {
	s.committer.MarkOffset(string(s.topic), e.Partition, e.Offset+1)
	s.committer.CommitOffsets()
}

func offsetAfter(o, other session.Offset) bool { return o > other }
