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

// Package session holds the pure data model and state machine for the
// session registry: sessions, instances and the operations between them.
package session

import "fmt"

// ServerID identifies one proxy node in the cluster.
type ServerID string

// SessionID identifies a session bucket. For consumer sessions this
// equals the consumer group id; for producer sessions the producer id.
type SessionID string

// GroupID identifies a Kafka consumer group.
type GroupID string

// ClientID identifies one client within a group or producer id.
type ClientID string

// ProducerID identifies a producer.
type ProducerID string

// ProducerInstanceID optionally disambiguates multiple instances of the
// same ProducerID.
type ProducerInstanceID string

// TopicName identifies a Kafka topic.
type TopicName string

// Partition is a Kafka partition number.
type Partition int32

// Offset is a Kafka offset.
type Offset int64

// Timestamp is milliseconds since epoch.
type Timestamp int64

// FullConsumerID is the globally unique identity of a consumer socket.
type FullConsumerID struct {
	GroupID  GroupID
	ClientID ClientID
}

// String renders the id for logging and as a map key.
func (id FullConsumerID) String() string {
	return fmt.Sprintf("%s/%s", id.GroupID, id.ClientID)
}

// FullProducerID is the globally unique identity of a producer socket.
// InstanceID is optional; an empty InstanceID still participates in
// equality/hashing as a distinct, stable value.
type FullProducerID struct {
	ProducerID ProducerID
	InstanceID ProducerInstanceID
}

// String renders the id for logging and as a map key.
func (id FullProducerID) String() string {
	if id.InstanceID == "" {
		return string(id.ProducerID)
	}
	return fmt.Sprintf("%s/%s", id.ProducerID, id.InstanceID)
}

// FullClientID is the tagged union of FullConsumerID and FullProducerID
// used wherever a caller refers to "whichever socket this is" without
// caring about its kind.
type FullClientID struct {
	Consumer *FullConsumerID
	Producer *FullProducerID
}

// ConsumerFullClientID builds a FullClientID tagged as a consumer.
func ConsumerFullClientID(id FullConsumerID) FullClientID {
	return FullClientID{Consumer: &id}
}

// ProducerFullClientID builds a FullClientID tagged as a producer.
func ProducerFullClientID(id FullProducerID) FullClientID {
	return FullClientID{Producer: &id}
}

// String renders whichever id is set.
func (id FullClientID) String() string {
	switch {
	case id.Consumer != nil:
		return id.Consumer.String()
	case id.Producer != nil:
		return id.Producer.String()
	default:
		return "<empty>"
	}
}

// WsMessageID identifies one record as it is framed over a WebSocket.
type WsMessageID struct {
	Topic     TopicName
	Partition Partition
	Offset    Offset
	Timestamp Timestamp
}
