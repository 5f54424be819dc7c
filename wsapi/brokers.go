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

package wsapi

import (
	"github.com/kafkawsproxy/wsproxy/commitstack"
	"github.com/kafkawsproxy/wsproxy/socket"
)

// ConsumerSource is what a Brokers factory hands back for one consumer
// socket: a record stream and its offset committer, backed by the same
// bsm/sarama-cluster consumer group (socket.clusterConsumerGroup
// implements both).
type ConsumerSource interface {
	socket.KafkaConsumerGroup
	commitstack.Committer
}

// Brokers constructs the per-socket Kafka handles wsapi needs, keeping
// the HTTP layer free of any direct sarama/sarama-cluster dependency.
// main.go supplies the concrete implementation wired to the process's
// shared broker configuration.
type Brokers interface {
	Publisher() (socket.KafkaPublisher, error)
	ConsumerGroup(groupID string, topics []string) (ConsumerSource, error)
}
