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

// Package config holds the process-wide configuration surface: one
// struct read once at startup from a YAML file and never mutated
// afterward. See spec.md §6 "Configuration keys".
package config

import (
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v2"
)

// ServerCfg covers server.* keys.
type ServerCfg struct {
	ServerID string `yaml:"server-id"`
	Port     int    `yaml:"port"`
}

// SessionHandlerCfg covers session-handler.* keys.
type SessionHandlerCfg struct {
	SessionStateTopicName         string        `yaml:"session-state-topic-name"`
	SessionStateReplicationFactor int16         `yaml:"session-state-replication-factor"`
	SessionStateRetention         time.Duration `yaml:"session-state-retention"`
	// DefaultMaxConnections is the per-session instance quota applied when
	// a socket's session is first created; 0 means unlimited (spec.md §4.A).
	DefaultMaxConnections uint `yaml:"default-max-connections"`
}

// CommitHandlerCfg covers commit-handler.* keys.
type CommitHandlerCfg struct {
	MaxStackSize      int           `yaml:"max-stack-size"`
	AutoCommitEnabled bool          `yaml:"auto-commit-enabled"`
	AutoCommitInterval time.Duration `yaml:"auto-commit-interval"`
	AutoCommitMaxAge  time.Duration `yaml:"auto-commit-max-age"`
}

// ConsumerCfg covers consumer.* keys.
type ConsumerCfg struct {
	DefaultRateLimit  int `yaml:"default-rate-limit"`
	DefaultBatchSize  int `yaml:"default-batch-size"`
}

// BasicAuthCfg covers basic-auth.* keys.
type BasicAuthCfg struct {
	Enabled  bool   `yaml:"enabled"`
	Realm    string `yaml:"realm"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// OpenIDConnectCfg covers openid-connect.* keys.
type OpenIDConnectCfg struct {
	Enabled      bool   `yaml:"enabled"`
	Realm        string `yaml:"realm"`
	IssuerURL    string `yaml:"issuer-url"`
	ClientID     string `yaml:"client-id"`
	ClientSecret string `yaml:"client-secret"`
}

// AppCfg is the top-level configuration value, constructed once at
// startup and threaded through every component's constructor (spec.md
// §9 "Implicit configuration" -> "one explicit AppCfg value").
type AppCfg struct {
	Server             ServerCfg         `yaml:"server"`
	KafkaBootstrapURLs []string          `yaml:"kafka-bootstrap-urls"`
	SchemaRegistryURL  string            `yaml:"schema-registry-url"`
	AutoRegisterSchemas bool             `yaml:"auto-register-schemas"`
	SessionHandler     SessionHandlerCfg `yaml:"session-handler"`
	CommitHandler      CommitHandlerCfg  `yaml:"commit-handler"`
	Consumer           ConsumerCfg       `yaml:"consumer"`
	BasicAuth          BasicAuthCfg      `yaml:"basic-auth"`
	OpenIDConnect      OpenIDConnectCfg  `yaml:"openid-connect"`
}

// Default returns the stated defaults from spec.md §6 for any key the
// config file leaves unset.
func Default() AppCfg {
	return AppCfg{
		Server: ServerCfg{Port: 8080},
		SessionHandler: SessionHandlerCfg{
			SessionStateTopicName:         "_wsproxy.session.state",
			SessionStateReplicationFactor: 3,
			SessionStateRetention:         30 * 24 * time.Hour,
			DefaultMaxConnections:         1,
		},
		CommitHandler: CommitHandlerCfg{
			MaxStackSize:       4096,
			AutoCommitEnabled:  false,
			AutoCommitInterval: 5 * time.Second,
			AutoCommitMaxAge:   20 * time.Second,
		},
		Consumer: ConsumerCfg{
			DefaultRateLimit: 0,
			DefaultBatchSize: 100,
		},
	}
}

// Read parses a YAML config file at path over top of Default(), so
// unset keys keep their documented default rather than zeroing out.
func Read(path string) (AppCfg, error) {
	cfg := Default()

	buffer, err := ioutil.ReadFile(path)
	if err != nil {
		return AppCfg{}, err
	}
	if err := yaml.Unmarshal(buffer, &cfg); err != nil {
		return AppCfg{}, err
	}
	return cfg, nil
}
