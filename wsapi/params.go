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
	"net/http"
	"strconv"

	"github.com/kafkawsproxy/wsproxy/socket"
)

// producerParams is the parsed query string for /socket/in, per spec.md
// §6: clientId is required; instanceId/topic/keyType/valType/socketPayload
// are optional (a missing topic is filled in per-frame, see
// socket.ProducerStream).
type producerParams struct {
	clientID      string
	instanceID    string
	topic         string
	keyType       string
	valType       string
	socketPayload string
}

func parseProducerParams(r *http.Request) (producerParams, *socket.Error) {
	q := r.URL.Query()
	p := producerParams{
		clientID:      q.Get("clientId"),
		instanceID:    q.Get("instanceId"),
		topic:         q.Get("topic"),
		keyType:       q.Get("keyType"),
		valType:       q.Get("valType"),
		socketPayload: q.Get("socketPayload"),
	}
	if p.clientID == "" {
		return p, socket.NewError(socket.KindRequestValidation, "missing required query parameter: clientId", nil)
	}
	return p, nil
}

// consumerParams is the parsed query string for /socket/out, per spec.md
// §6: clientId/groupId/topic are required; keyType/valType are carried
// through but not currently interpreted by the JSON codec;
// rate/batchSize/autoCommit fall back to the process defaults in
// config.AppCfg.Consumer/CommitHandler when absent.
type consumerParams struct {
	clientID      string
	groupID       string
	topic         string
	keyType       string
	valType       string
	socketPayload string

	rate       int
	batchSize  int
	autoCommit bool
}

func parseConsumerParams(r *http.Request, defaultRate, defaultBatchSize int, defaultAutoCommit bool) (consumerParams, *socket.Error) {
	q := r.URL.Query()
	p := consumerParams{
		clientID:      q.Get("clientId"),
		groupID:       q.Get("groupId"),
		topic:         q.Get("topic"),
		keyType:       q.Get("keyType"),
		valType:       q.Get("valType"),
		socketPayload: q.Get("socketPayload"),
		rate:          defaultRate,
		batchSize:     defaultBatchSize,
		autoCommit:    defaultAutoCommit,
	}

	switch {
	case p.clientID == "":
		return p, socket.NewError(socket.KindRequestValidation, "missing required query parameter: clientId", nil)
	case p.groupID == "":
		return p, socket.NewError(socket.KindRequestValidation, "missing required query parameter: groupId", nil)
	case p.topic == "":
		return p, socket.NewError(socket.KindRequestValidation, "missing required query parameter: topic", nil)
	}

	if v := q.Get("rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, socket.NewError(socket.KindRequestValidation, "invalid query parameter: rate", nil)
		}
		p.rate = n
	}
	if v := q.Get("batchSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, socket.NewError(socket.KindRequestValidation, "invalid query parameter: batchSize", nil)
		}
		p.batchSize = n
	}
	if v := q.Get("autoCommit"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, socket.NewError(socket.KindRequestValidation, "invalid query parameter: autoCommit", nil)
		}
		p.autoCommit = b
	}

	return p, nil
}
