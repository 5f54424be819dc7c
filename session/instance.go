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

// Kind tags whether an Instance/Session is a consumer or a producer.
type Kind byte

const (
	// Consumer tags a ConsumerSession / ConsumerInstance.
	Consumer = Kind(iota)
	// Producer tags a ProducerSession / ProducerInstance.
	Producer
)

// String renders the kind for logging.
func (k Kind) String() string {
	switch k {
	case Consumer:
		return "consumer"
	case Producer:
		return "producer"
	default:
		return "unknown"
	}
}

// Instance is one live socket's registration inside a session, tagged
// with the hosting ServerID. Exactly one of Consumer/Producer is set; the
// Kind() method reports which.
type Instance struct {
	consumer *ConsumerInstance
	producer *ProducerInstance
}

// ConsumerInstance tags an Instance as belonging to a consumer socket.
type ConsumerInstance struct {
	ID       FullConsumerID
	ServerID ServerID
}

// ProducerInstance tags an Instance as belonging to a producer socket.
type ProducerInstance struct {
	ID       FullProducerID
	ServerID ServerID
}

// NewConsumerInstance wraps a ConsumerInstance as an Instance.
func NewConsumerInstance(id FullConsumerID, serverID ServerID) Instance {
	return Instance{consumer: &ConsumerInstance{ID: id, ServerID: serverID}}
}

// NewProducerInstance wraps a ProducerInstance as an Instance.
func NewProducerInstance(id FullProducerID, serverID ServerID) Instance {
	return Instance{producer: &ProducerInstance{ID: id, ServerID: serverID}}
}

// Kind reports whether this is a consumer or producer instance.
func (i Instance) Kind() Kind {
	if i.producer != nil {
		return Producer
	}
	return Consumer
}

// AsConsumer returns the underlying ConsumerInstance and true, or the zero
// value and false if this Instance is a producer instance.
func (i Instance) AsConsumer() (ConsumerInstance, bool) {
	if i.consumer == nil {
		return ConsumerInstance{}, false
	}
	return *i.consumer, true
}

// AsProducer returns the underlying ProducerInstance and true, or the zero
// value and false if this Instance is a consumer instance.
func (i Instance) AsProducer() (ProducerInstance, bool) {
	if i.producer == nil {
		return ProducerInstance{}, false
	}
	return *i.producer, true
}

// FullClientID returns the id of the socket this instance represents.
func (i Instance) FullClientID() FullClientID {
	if c, ok := i.AsConsumer(); ok {
		return ConsumerFullClientID(c.ID)
	}
	p, _ := i.AsProducer()
	return ProducerFullClientID(p.ID)
}

// ServerID returns the hosting server id regardless of instance kind.
func (i Instance) ServerID() ServerID {
	if c, ok := i.AsConsumer(); ok {
		return c.ServerID
	}
	p, _ := i.AsProducer()
	return p.ServerID
}

// key returns the map key used to de-duplicate instances within a
// session's instance set (keyed by instance id, per invariant 3).
func (i Instance) key() string {
	return i.FullClientID().String()
}
