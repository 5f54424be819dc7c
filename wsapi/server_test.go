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
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/kafkawsproxy/wsproxy/auth"
	"github.com/kafkawsproxy/wsproxy/config"
	"github.com/kafkawsproxy/wsproxy/session"
	"github.com/kafkawsproxy/wsproxy/socket"
)

type denyingAuth struct{}

func (denyingAuth) Authenticate(r *http.Request) (string, error) {
	return "", &auth.Error{Kind: auth.KindAuthentication, Message: "missing credentials"}
}

type noopRegistry struct{}

func (noopRegistry) InitSession(ctx context.Context, sessionID session.SessionID, kind session.Kind, maxConnections uint, groupID session.GroupID) session.OpResult {
	return session.OpResult{Kind: session.Updated}
}
func (noopRegistry) AddConsumer(ctx context.Context, sessionID session.SessionID, id session.FullConsumerID, serverID session.ServerID) session.OpResult {
	return session.OpResult{Kind: session.Updated}
}
func (noopRegistry) AddProducer(ctx context.Context, sessionID session.SessionID, id session.FullProducerID, serverID session.ServerID) session.OpResult {
	return session.OpResult{Kind: session.Updated}
}
func (noopRegistry) RemoveConsumer(ctx context.Context, sessionID session.SessionID, id session.FullConsumerID) session.OpResult {
	return session.OpResult{Kind: session.Updated}
}
func (noopRegistry) RemoveProducer(ctx context.Context, sessionID session.SessionID, id session.FullProducerID) session.OpResult {
	return session.OpResult{Kind: session.Updated}
}

type noopBrokers struct{}

func (noopBrokers) Publisher() (socket.KafkaPublisher, error) { return nil, nil }
func (noopBrokers) ConsumerGroup(groupID string, topics []string) (ConsumerSource, error) {
	return nil, nil
}

func testServer(directive auth.Directive) *Server {
	log := logrus.NewEntry(func() *logrus.Logger {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}())
	return NewServer(config.Default(), directive, noopRegistry{}, noopBrokers{}, nil, log)
}

func TestServer_UnmatchedRouteReturns404(t *testing.T) {
	srv := testServer(auth.Disabled{})
	ts := httptest.NewServer(srv.mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/not/a/route")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	assertJSONMessage(t, resp)
}

func TestServer_ProducerSocketRejectedByAuth(t *testing.T) {
	srv := testServer(denyingAuth{})
	ts := httptest.NewServer(srv.mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/socket/in?clientId=c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	assertJSONMessage(t, resp)
}

func TestServer_ConsumerSocketRejectedOnMissingParams(t *testing.T) {
	srv := testServer(auth.Disabled{})
	ts := httptest.NewServer(srv.mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/socket/out?clientId=c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	assertJSONMessage(t, resp)
}

func assertJSONMessage(t *testing.T, resp *http.Response) {
	t.Helper()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Message == "" {
		t.Fatal("expected a non-empty message")
	}
}
