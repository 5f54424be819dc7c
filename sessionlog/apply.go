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

import "github.com/kafkawsproxy/wsproxy/session"

// Apply folds one event into a map[SessionID]*session.Session, mutating
// it in place. It is the single fold function used both by the live
// Session Handler actor (applying events as they arrive from Kafka) and
// by tests asserting log-replay determinism (spec.md §8 property 6):
// folding the same sequence of events through Apply produces the same map
// on every node. The result depends on event order; a different ordering
// of the same events can produce a different map.
//
// Apply never drops an existing instance non-destructively (spec.md
// §4.D "Conflict resolution"): an InstanceAdded for a session already at
// capacity is still applied, over-populating the map; it is the Session
// Handler's job (not Apply's) to notice the over-quota condition and
// emit a compensating InstanceRemoved.
func Apply(state map[session.SessionID]*session.Session, ev Event) {
	id := session.SessionID(ev.SessionID)

	switch ev.Kind {
	case SessionCreated:
		if _, exists := state[id]; exists {
			return // already created; compacted log may repeat this
		}
		kind := parseKind(ev.SessionKind)
		if kind == session.Consumer {
			state[id] = session.NewConsumerSession(id, session.GroupID(ev.GroupID), ev.MaxConnections)
		} else {
			state[id] = session.NewProducerSession(id, ev.MaxConnections)
		}

	case InstanceAdded:
		s, ok := state[id]
		if !ok || ev.Instance == nil {
			return
		}
		inst, ok := ev.Instance.ToInstance()
		if !ok {
			return
		}
		state[id] = forceInsert(s, inst)

	case InstanceRemoved:
		s, ok := state[id]
		if !ok || ev.InstanceID == nil {
			return
		}
		result := session.RemoveInstance(s, ev.InstanceID.ToFullClientID())
		state[id] = result.Session

	case SessionRemoved:
		delete(state, id)

	case SessionSnapshot:
		if ev.Snapshot == nil {
			return
		}
		state[id] = snapshotToSession(id, *ev.Snapshot)
	}
}

func parseKind(s string) session.Kind {
	if s == session.Producer.String() {
		return session.Producer
	}
	return session.Consumer
}

// forceInsert applies an InstanceAdded unconditionally (bypassing the
// quota check in session.AddInstance), because the log is the
// authoritative order: a second InstanceAdded that violates capacity
// must still be reflected in the map so the cluster can converge via a
// compensating removal, per spec.md §4.D.
func forceInsert(s *session.Session, inst session.Instance) *session.Session {
	next := s.Clone()
	next.ForceInsert(inst)
	return next
}

func snapshotToSession(id session.SessionID, snap SnapshotRef) *session.Session {
	var s *session.Session
	if parseKind(snap.SessionKind) == session.Consumer {
		s = session.NewConsumerSession(id, session.GroupID(snap.GroupID), snap.MaxConnections)
	} else {
		s = session.NewProducerSession(id, snap.MaxConnections)
	}
	for _, ref := range snap.Instances {
		if inst, ok := ref.ToInstance(); ok {
			s.ForceInsert(inst)
		}
	}
	return s
}
