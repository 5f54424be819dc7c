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

package session

import "fmt"

// InvariantError is raised when a session is asked to hold an instance of
// the wrong kind at construction time. Per spec this is a caller error:
// it fails loudly rather than being swallowed.
type InvariantError struct {
	message string
}

// NewInvariantError creates a new InvariantError.
func NewInvariantError(format string, args ...interface{}) InvariantError {
	return InvariantError{message: fmt.Sprintf(format, args...)}
}

// Error satisfies the error interface.
func (e InvariantError) Error() string {
	return e.message
}

// Session is the unit of quota: a bucket of socket connections sharing
// one SessionID. Exactly one of the two kinds is valid at a time; the
// zero value is invalid (use NewConsumerSession/NewProducerSession).
type Session struct {
	id             SessionID
	kind           Kind
	groupID        GroupID // only meaningful for Consumer sessions
	maxConnections uint    // 0 means unlimited
	instances      map[string]Instance
}

// NewConsumerSession creates an empty consumer session. maxConnections==0
// disables the quota check (invariant 2); the conventional default when
// unconfigured is 1, applied by callers, not here.
func NewConsumerSession(id SessionID, groupID GroupID, maxConnections uint) *Session {
	return &Session{
		id:             id,
		kind:           Consumer,
		groupID:        groupID,
		maxConnections: maxConnections,
		instances:      make(map[string]Instance),
	}
}

// NewProducerSession creates an empty producer session.
func NewProducerSession(id SessionID, maxConnections uint) *Session {
	return &Session{
		id:             id,
		kind:           Producer,
		maxConnections: maxConnections,
		instances:      make(map[string]Instance),
	}
}

// ID returns the immutable session id.
func (s *Session) ID() SessionID { return s.id }

// Kind reports whether this is a consumer or producer session.
func (s *Session) Kind() Kind { return s.kind }

// GroupID returns the consumer group id. Only meaningful for consumer
// sessions.
func (s *Session) GroupID() GroupID { return s.groupID }

// MaxConnections returns the configured quota, 0 meaning unlimited.
func (s *Session) MaxConnections() uint { return s.maxConnections }

// Instances returns a snapshot slice of the current instance set. The
// returned slice is a copy; mutating it does not affect the session.
func (s *Session) Instances() []Instance {
	out := make([]Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst)
	}
	return out
}

// Len returns the number of instances currently registered.
func (s *Session) Len() int { return len(s.instances) }

// Has reports whether an instance with this key is already present.
func (s *Session) Has(fullClientID FullClientID) bool {
	_, ok := s.instances[fullClientID.String()]
	return ok
}

// Clone returns a deep copy of the session so the pure state-machine
// functions in statemachine.go can return a modified copy without
// aliasing the receiver.
func (s *Session) Clone() *Session {
	clone := &Session{
		id:             s.id,
		kind:           s.kind,
		groupID:        s.groupID,
		maxConnections: s.maxConnections,
		instances:      make(map[string]Instance, len(s.instances)),
	}
	for k, v := range s.instances {
		clone.instances[k] = v
	}
	return clone
}

// Equal reports structural equality: same id, kind, quota, and instance
// set (by instance id).
func (s *Session) Equal(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.id != other.id || s.kind != other.kind || s.groupID != other.groupID ||
		s.maxConnections != other.maxConnections || len(s.instances) != len(other.instances) {
		return false
	}
	for k, v := range s.instances {
		ov, ok := other.instances[k]
		if !ok || ov.ServerID() != v.ServerID() || ov.Kind() != v.Kind() {
			return false
		}
	}
	return true
}

// insert adds inst unconditionally, validating invariant 1 (kind match).
// Callers (statemachine.go) are expected to have already checked capacity
// and duplicate-id rules; insert only enforces the structural invariant
// that must never be violated even by a caller bug.
func (s *Session) insert(inst Instance) {
	if inst.Kind() != s.kind {
		panic(NewInvariantError("session %s (%s) cannot hold a %s instance", s.id, s.kind, inst.Kind()))
	}
	s.instances[inst.key()] = inst
}

// remove deletes the instance with the given id, if present.
func (s *Session) remove(fullClientID FullClientID) {
	delete(s.instances, fullClientID.String())
}

// ForceInsert adds inst unconditionally, bypassing the quota check in
// AddInstance. It exists for the log-replay path (sessionlog.Apply),
// where the replicated log is the authoritative order of events and an
// over-quota InstanceAdded must still be reflected in the map so the
// cluster can converge via a compensating removal (spec.md §4.D). It
// still enforces invariant 1 (kind match) by panicking on mismatch.
func (s *Session) ForceInsert(inst Instance) {
	s.insert(inst)
}
