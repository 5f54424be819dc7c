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

// ResultKind discriminates the outcome of a session operation.
type ResultKind byte

const (
	// Updated is a successful mutation.
	Updated = ResultKind(iota)
	// Unchanged is a legal no-op.
	Unchanged
	// InstanceLimitReached is an add refused by quota.
	InstanceLimitReached
	// InstanceTypeForSessionIncorrect is a producer instance offered to a
	// consumer session, or vice versa.
	InstanceTypeForSessionIncorrect
	// SessionNotFound is returned by lookup-style ops only.
	SessionNotFound
	// IncompleteOp is a transport/async failure surfaced by the handler,
	// never produced by the pure state machine itself.
	IncompleteOp
)

// String renders the result kind for logging.
func (k ResultKind) String() string {
	switch k {
	case Updated:
		return "Updated"
	case Unchanged:
		return "Unchanged"
	case InstanceLimitReached:
		return "InstanceLimitReached"
	case InstanceTypeForSessionIncorrect:
		return "InstanceTypeForSessionIncorrect"
	case SessionNotFound:
		return "SessionNotFound"
	case IncompleteOp:
		return "IncompleteOp"
	default:
		return "Unknown"
	}
}

// OpResult is the tagged outcome of a session operation. Exactly one of
// Session/SessionID/Message is meaningful, depending on Kind.
type OpResult struct {
	Kind      ResultKind
	Session   *Session
	SessionID SessionID // set on SessionNotFound
	Message   string    // set on IncompleteOp
}

// updated wraps a successful mutation.
func updated(s *Session) OpResult { return OpResult{Kind: Updated, Session: s} }

// unchanged wraps a legal no-op, returning the session as-is.
func unchanged(s *Session) OpResult { return OpResult{Kind: Unchanged, Session: s} }

// limitReached wraps a quota-refused add.
func limitReached(s *Session) OpResult { return OpResult{Kind: InstanceLimitReached, Session: s} }

// typeIncorrect wraps a kind-mismatched add.
func typeIncorrect(s *Session) OpResult {
	return OpResult{Kind: InstanceTypeForSessionIncorrect, Session: s}
}

// NotFound wraps a lookup miss.
func NotFound(id SessionID) OpResult { return OpResult{Kind: SessionNotFound, SessionID: id} }

// Incomplete wraps a transport/async failure.
func Incomplete(message string) OpResult { return OpResult{Kind: IncompleteOp, Message: message} }

// AddInstance attempts to add inst to s, returning the outcome. s is never
// mutated in place; the result's Session is either s unchanged or a new
// clone with inst applied.
//
//   - kind mismatch                              -> InstanceTypeForSessionIncorrect(s)
//   - inst.id already present                    -> Unchanged(s)
//   - maxConnections>0 && len(instances)>=max     -> InstanceLimitReached(s)
//   - otherwise                                   -> Updated(s')
func AddInstance(s *Session, inst Instance) OpResult {
	if inst.Kind() != s.kind {
		return typeIncorrect(s)
	}
	if s.Has(inst.FullClientID()) {
		return unchanged(s)
	}
	if s.maxConnections > 0 && uint(s.Len()) >= s.maxConnections {
		return limitReached(s)
	}
	next := s.Clone()
	next.insert(inst)
	return updated(next)
}

// RemoveInstance removes the instance identified by id from s.
//
//   - id absent    -> Unchanged(s)
//   - id present   -> Updated(s')
func RemoveInstance(s *Session, id FullClientID) OpResult {
	if !s.Has(id) {
		return unchanged(s)
	}
	next := s.Clone()
	next.remove(id)
	return updated(next)
}

// CanOpenSocket reports whether one more instance could be added right
// now: true iff maxConnections==0 or len(instances) < maxConnections.
func CanOpenSocket(s *Session) bool {
	return s.maxConnections == 0 || uint(s.Len()) < s.maxConnections
}
