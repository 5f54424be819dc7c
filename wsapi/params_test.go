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
	"net/http/httptest"
	"testing"

	"github.com/kafkawsproxy/wsproxy/socket"
)

func TestParseProducerParams_RequiresClientID(t *testing.T) {
	r := httptest.NewRequest("GET", "/socket/in?topic=t1", nil)
	_, err := parseProducerParams(r)
	if err == nil {
		t.Fatal("expected an error for a missing clientId")
	}
	if err.Kind != socket.KindRequestValidation {
		t.Fatalf("expected KindRequestValidation, got %v", err.Kind)
	}
}

func TestParseProducerParams_AcceptsOptionalFields(t *testing.T) {
	r := httptest.NewRequest("GET", "/socket/in?clientId=c1&instanceId=i1&topic=t1&socketPayload=json", nil)
	p, err := parseProducerParams(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.clientID != "c1" || p.instanceID != "i1" || p.topic != "t1" || p.socketPayload != "json" {
		t.Fatalf("unexpected parsed params: %+v", p)
	}
}

func TestParseConsumerParams_RequiresClientGroupAndTopic(t *testing.T) {
	cases := []string{
		"/socket/out?groupId=g1&topic=t1",
		"/socket/out?clientId=c1&topic=t1",
		"/socket/out?clientId=c1&groupId=g1",
	}
	for _, url := range cases {
		r := httptest.NewRequest("GET", url, nil)
		_, err := parseConsumerParams(r, 0, 100, false)
		if err == nil {
			t.Fatalf("expected an error for %s", url)
		}
		if err.Kind != socket.KindRequestValidation {
			t.Fatalf("%s: expected KindRequestValidation, got %v", url, err.Kind)
		}
	}
}

func TestParseConsumerParams_FallsBackToDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/socket/out?clientId=c1&groupId=g1&topic=t1", nil)
	p, err := parseConsumerParams(r, 50, 200, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.rate != 50 || p.batchSize != 200 || p.autoCommit != true {
		t.Fatalf("expected defaults to carry through, got %+v", p)
	}
}

func TestParseConsumerParams_OverridesDefaultsFromQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/socket/out?clientId=c1&groupId=g1&topic=t1&rate=10&batchSize=5&autoCommit=true", nil)
	p, err := parseConsumerParams(r, 0, 100, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.rate != 10 || p.batchSize != 5 || !p.autoCommit {
		t.Fatalf("expected query overrides to apply, got %+v", p)
	}
}

func TestParseConsumerParams_RejectsInvalidRate(t *testing.T) {
	r := httptest.NewRequest("GET", "/socket/out?clientId=c1&groupId=g1&topic=t1&rate=not-a-number", nil)
	_, err := parseConsumerParams(r, 0, 100, false)
	if err == nil {
		t.Fatal("expected an error for a malformed rate")
	}
}
