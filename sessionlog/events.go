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

// Package sessionlog implements the wire codec for the replicated,
// Kafka-backed session-state log: the envelope that session.Session
// mutations are serialized to and replayed from.
package sessionlog

import "github.com/kafkawsproxy/wsproxy/session"

// Kind discriminates the event envelope.
type Kind string

// Event kinds, matching spec.md §4.C.
const (
	SessionCreated   Kind = "SessionCreated"
	InstanceAdded    Kind = "InstanceAdded"
	InstanceRemoved  Kind = "InstanceRemoved"
	SessionRemoved   Kind = "SessionRemoved"
	SessionSnapshot  Kind = "SessionSnapshot"
)

// InstanceRef is the wire shape of a session.Instance: exactly one of
// Consumer/Producer is set.
type InstanceRef struct {
	Consumer *ConsumerInstanceRef `json:"consumer,omitempty"`
	Producer *ProducerInstanceRef `json:"producer,omitempty"`
}

// ConsumerInstanceRef is the wire shape of a session.ConsumerInstance.
type ConsumerInstanceRef struct {
	GroupID  string `json:"groupId"`
	ClientID string `json:"clientId"`
	ServerID string `json:"serverId"`
}

// ProducerInstanceRef is the wire shape of a session.ProducerInstance.
type ProducerInstanceRef struct {
	ProducerID string `json:"producerId"`
	InstanceID string `json:"instanceId,omitempty"`
	ServerID   string `json:"serverId"`
}

// ToInstance converts the wire shape back to a session.Instance.
func (r InstanceRef) ToInstance() (session.Instance, bool) {
	switch {
	case r.Consumer != nil:
		return session.NewConsumerInstance(session.FullConsumerID{
			GroupID:  session.GroupID(r.Consumer.GroupID),
			ClientID: session.ClientID(r.Consumer.ClientID),
		}, session.ServerID(r.Consumer.ServerID)), true
	case r.Producer != nil:
		return session.NewProducerInstance(session.FullProducerID{
			ProducerID: session.ProducerID(r.Producer.ProducerID),
			InstanceID: session.ProducerInstanceID(r.Producer.InstanceID),
		}, session.ServerID(r.Producer.ServerID)), true
	default:
		return session.Instance{}, false
	}
}

// InstanceRefOf converts a session.Instance to its wire shape.
func InstanceRefOf(inst session.Instance) InstanceRef {
	if c, ok := inst.AsConsumer(); ok {
		return InstanceRef{Consumer: &ConsumerInstanceRef{
			GroupID:  string(c.ID.GroupID),
			ClientID: string(c.ID.ClientID),
			ServerID: string(c.ServerID),
		}}
	}
	p, _ := inst.AsProducer()
	return InstanceRef{Producer: &ProducerInstanceRef{
		ProducerID: string(p.ID.ProducerID),
		InstanceID: string(p.ID.InstanceID),
		ServerID:   string(p.ServerID),
	}}
}

// IDRef is the wire shape of a session.FullClientID.
type IDRef struct {
	Consumer *ConsumerIDRef `json:"consumer,omitempty"`
	Producer *ProducerIDRef `json:"producer,omitempty"`
}

// ConsumerIDRef is the wire shape of a session.FullConsumerID.
type ConsumerIDRef struct {
	GroupID  string `json:"groupId"`
	ClientID string `json:"clientId"`
}

// ProducerIDRef is the wire shape of a session.FullProducerID.
type ProducerIDRef struct {
	ProducerID string `json:"producerId"`
	InstanceID string `json:"instanceId,omitempty"`
}

// ToFullClientID converts the wire shape back to a session.FullClientID.
func (r IDRef) ToFullClientID() session.FullClientID {
	switch {
	case r.Consumer != nil:
		return session.ConsumerFullClientID(session.FullConsumerID{
			GroupID:  session.GroupID(r.Consumer.GroupID),
			ClientID: session.ClientID(r.Consumer.ClientID),
		})
	case r.Producer != nil:
		return session.ProducerFullClientID(session.FullProducerID{
			ProducerID: session.ProducerID(r.Producer.ProducerID),
			InstanceID: session.ProducerInstanceID(r.Producer.InstanceID),
		})
	default:
		return session.FullClientID{}
	}
}

// IDRefOf converts a session.FullClientID to its wire shape.
func IDRefOf(id session.FullClientID) IDRef {
	switch {
	case id.Consumer != nil:
		return IDRef{Consumer: &ConsumerIDRef{GroupID: string(id.Consumer.GroupID), ClientID: string(id.Consumer.ClientID)}}
	case id.Producer != nil:
		return IDRef{Producer: &ProducerIDRef{ProducerID: string(id.Producer.ProducerID), InstanceID: string(id.Producer.InstanceID)}}
	default:
		return IDRef{}
	}
}

// Event is the envelope written to and read from the session-state topic.
// Only the fields relevant to Kind are populated; unknown fields present
// on read (from a newer writer) are ignored by encoding/json, satisfying
// the forwards-compatibility requirement in spec.md §4.C.
type Event struct {
	Kind     Kind      `json:"kind"`
	ServerID string    `json:"serverId"`
	Seq      uint64    `json:"seq"`

	SessionID string `json:"sessionId"`

	// SessionCreated
	SessionKind    string `json:"sessionKind,omitempty"`
	GroupID        string `json:"groupId,omitempty"`
	MaxConnections uint   `json:"maxConnections,omitempty"`

	// InstanceAdded
	Instance *InstanceRef `json:"instance,omitempty"`

	// InstanceRemoved
	InstanceID     *IDRef `json:"instanceId,omitempty"`
	TargetServerID string `json:"targetServerId,omitempty"`
	Compensating   bool   `json:"compensating,omitempty"`

	// SessionSnapshot
	Snapshot *SnapshotRef `json:"snapshot,omitempty"`
}

// SnapshotRef is a full-session replacement that Apply installs
// wholesale. NewSnapshot builds one; no component of the proxy emits
// snapshots on its own.
type SnapshotRef struct {
	SessionKind    string        `json:"sessionKind"`
	GroupID        string        `json:"groupId,omitempty"`
	MaxConnections uint          `json:"maxConnections"`
	Instances      []InstanceRef `json:"instances"`
}
