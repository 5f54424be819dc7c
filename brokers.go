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

package main

import (
	kafka "github.com/Shopify/sarama"
	cluster "github.com/bsm/sarama-cluster"

	"github.com/kafkawsproxy/wsproxy/config"
	"github.com/kafkawsproxy/wsproxy/socket"
	"github.com/kafkawsproxy/wsproxy/wsapi"
)

// kafkaBrokers is the process's concrete wsapi.Brokers, opening one
// sarama.SyncProducer per producer socket and one bsm/sarama-cluster
// consumer group per consumer socket, per spec.md §4.F step 2.
type kafkaBrokers struct {
	cfg       config.AppCfg
	saramaCfg *kafka.Config
}

func newKafkaBrokers(cfg config.AppCfg, saramaCfg *kafka.Config) *kafkaBrokers {
	return &kafkaBrokers{cfg: cfg, saramaCfg: saramaCfg}
}

func (b *kafkaBrokers) Publisher() (socket.KafkaPublisher, error) {
	producer, err := kafka.NewSyncProducer(b.cfg.KafkaBootstrapURLs, b.saramaCfg)
	if err != nil {
		return nil, err
	}
	return socket.NewSaramaPublisher(producer), nil
}

func (b *kafkaBrokers) ConsumerGroup(groupID string, topics []string) (wsapi.ConsumerSource, error) {
	clusterCfg := cluster.NewConfig()
	clusterCfg.Config = *b.saramaCfg
	clusterCfg.Consumer.Return.Errors = true
	clusterCfg.Consumer.Offsets.Initial = kafka.OffsetNewest

	consumer, err := cluster.NewConsumer(b.cfg.KafkaBootstrapURLs, groupID, topics, clusterCfg)
	if err != nil {
		return nil, err
	}
	return socket.NewClusterConsumerGroup(consumer), nil
}
