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

// Package socket implements the per-connection lifecycle that joins
// auth, the session registry, and a Kafka producer/consumer stream into
// one long-lived WebSocket handler. See spec.md §4.F.
package socket

import (
	"encoding/json"
	"errors"

	"github.com/kafkawsproxy/wsproxy/session"
)

// Frame is the wire shape of one record crossing the WebSocket, in
// either direction: producer sockets decode it from the client, consumer
// sockets encode it for delivery.
type Frame struct {
	WsMessageID session.WsMessageID `json:"wsMessageId"`
	Topic       session.TopicName   `json:"topic"`
	Headers     map[string]string   `json:"headers,omitempty"`
	Key         []byte              `json:"key,omitempty"`
	Value       []byte              `json:"value"`
}

// AckFrame is what a consumer socket's client sends back to acknowledge
// delivery of one or more records.
type AckFrame struct {
	WsMessageID session.WsMessageID `json:"wsMessageId"`
}

// FrameCodec encodes/decodes the payload carried over the socket,
// chosen at socket setup from the socketPayload query parameter
// (spec.md §6). Keys always travel as raw bytes (Frame.Key): the keyType
// query parameter is parsed but no codec interprets it.
type FrameCodec interface {
	Encode(f Frame) ([]byte, error)
	Decode(data []byte) (Frame, error)
}

// ErrUnsupportedPayload is returned by CodecFor for a socketPayload value
// with no concrete implementation.
var ErrUnsupportedPayload = errors.New("socket: unsupported socketPayload")

// jsonCodec is the only FrameCodec actually implemented: an Avro codec
// would require a schema-registry client, which spec.md §1 places
// explicitly out of scope, so no concrete Avro codec is wired here even
// though the interface has room for one.
type jsonCodec struct{}

func (jsonCodec) Encode(f Frame) ([]byte, error) { return json.Marshal(f) }

func (jsonCodec) Decode(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}

// CodecFor resolves the socketPayload query parameter to a FrameCodec.
func CodecFor(socketPayload string) (FrameCodec, error) {
	switch socketPayload {
	case "json", "":
		return jsonCodec{}, nil
	default:
		return nil, ErrUnsupportedPayload
	}
}
