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

package sessionlog

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/kafkawsproxy/wsproxy/session"
)

// Key returns the Kafka message key for an event: the session id, so
// that log compaction retains only the latest entry per session.
func Key(sessionID session.SessionID) []byte {
	return []byte(sessionID)
}

// Encode serializes an event deterministically. Field order in the
// struct is fixed, and encoding/json always emits struct fields in
// declaration order, so two calls with equal input produce byte-identical
// output.
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrap(err, "sessionlog: encode event")
	}
	return data, nil
}

// Decode parses an event envelope. Fields unknown to this version of the
// codec are silently ignored by encoding/json, satisfying the
// forwards-compatibility requirement.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, errors.Wrap(err, "sessionlog: decode event")
	}
	return ev, nil
}

// NewSessionCreated builds a SessionCreated event.
func NewSessionCreated(serverID session.ServerID, seq uint64, s *session.Session) Event {
	ev := Event{
		Kind:           SessionCreated,
		ServerID:       string(serverID),
		Seq:            seq,
		SessionID:      string(s.ID()),
		SessionKind:    s.Kind().String(),
		MaxConnections: s.MaxConnections(),
	}
	if s.Kind() == session.Consumer {
		ev.GroupID = string(s.GroupID())
	}
	return ev
}

// NewInstanceAdded builds an InstanceAdded event.
func NewInstanceAdded(serverID session.ServerID, seq uint64, sessionID session.SessionID, inst session.Instance) Event {
	ref := InstanceRefOf(inst)
	return Event{
		Kind:      InstanceAdded,
		ServerID:  string(serverID),
		Seq:       seq,
		SessionID: string(sessionID),
		Instance:  &ref,
	}
}

// NewInstanceRemoved builds a voluntary InstanceRemoved event, emitted by
// the node that itself hosted the instance (socket close, disconnect, or
// handler-driven eviction initiated locally).
func NewInstanceRemoved(serverID session.ServerID, seq uint64, sessionID session.SessionID, id session.FullClientID) Event {
	ref := IDRefOf(id)
	return Event{
		Kind:           InstanceRemoved,
		ServerID:       string(serverID),
		Seq:            seq,
		SessionID:      string(sessionID),
		InstanceID:     &ref,
		TargetServerID: string(serverID),
	}
}

// NewCompensatingRemoval builds the InstanceRemoved event a Session
// Handler emits when it observes a cross-node quota race (spec.md
// §4.D): emittingServerID is whichever node detected the violation while
// replaying the log; targetServerID is the hosting node of the
// over-quota instance, the only node expected to act on it (by closing
// the corresponding socket).
func NewCompensatingRemoval(emittingServerID session.ServerID, seq uint64, sessionID session.SessionID, id session.FullClientID, targetServerID session.ServerID) Event {
	ref := IDRefOf(id)
	return Event{
		Kind:           InstanceRemoved,
		ServerID:       string(emittingServerID),
		Seq:            seq,
		SessionID:      string(sessionID),
		InstanceID:     &ref,
		TargetServerID: string(targetServerID),
		Compensating:   true,
	}
}

// NewSessionRemoved builds a SessionRemoved event.
func NewSessionRemoved(serverID session.ServerID, seq uint64, sessionID session.SessionID) Event {
	return Event{
		Kind:      SessionRemoved,
		ServerID:  string(serverID),
		Seq:       seq,
		SessionID: string(sessionID),
	}
}

// NewSnapshot builds a full-session replacement event.
func NewSnapshot(serverID session.ServerID, seq uint64, s *session.Session) Event {
	snap := SnapshotRef{
		SessionKind:    s.Kind().String(),
		MaxConnections: s.MaxConnections(),
	}
	if s.Kind() == session.Consumer {
		snap.GroupID = string(s.GroupID())
	}
	for _, inst := range s.Instances() {
		snap.Instances = append(snap.Instances, InstanceRefOf(inst))
	}
	return Event{
		Kind:      SessionSnapshot,
		ServerID:  string(serverID),
		Seq:       seq,
		SessionID: string(s.ID()),
		Snapshot:  &snap,
	}
}
