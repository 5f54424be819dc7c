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

// Package wsapi wires the HTTP/WebSocket surface described in spec.md
// §6 to auth, the session registry and Kafka streams: it upgrades
// /socket/in and /socket/out, parses and validates query parameters,
// and renders every rejection as the {"message": "..."} JSON envelope.
// Grounded on producer/websocket.go's http.Handle/http.ListenAndServe
// pairing, generalized from a single fire-and-forget handler to the
// full register/stream/remove lifecycle in socket/lifecycle.go.
package wsapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/kafkawsproxy/wsproxy/auth"
	"github.com/kafkawsproxy/wsproxy/commitstack"
	"github.com/kafkawsproxy/wsproxy/config"
	"github.com/kafkawsproxy/wsproxy/session"
	"github.com/kafkawsproxy/wsproxy/socket"
)

// Server is the process's HTTP/WebSocket listener.
type Server struct {
	cfg           config.AppCfg
	auth          auth.Directive
	registry      socket.Registry
	brokers       Brokers
	commitMetrics *commitstack.Metrics
	log           *logrus.Entry

	upgrader websocket.Upgrader
	mux      *http.ServeMux
	http     *http.Server
}

// NewServer builds a Server bound to the given registry and broker
// factory; directive is the result of a prior auth.Select call. A nil
// commitMetrics falls back to commitstack.NewMetrics(nil), same
// nil-means-default-registry convention as sessionhandler.New.
func NewServer(cfg config.AppCfg, directive auth.Directive, registry socket.Registry, brokers Brokers, commitMetrics *commitstack.Metrics, log *logrus.Entry) *Server {
	if commitMetrics == nil {
		commitMetrics = commitstack.NewMetrics(nil)
	}
	s := &Server{
		cfg:           cfg,
		auth:          directive,
		registry:      registry,
		commitMetrics: commitMetrics,
		brokers:  brokers,
		log:      log,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("/socket/in", s.handleProducer)
	s.mux.HandleFunc("/socket/out", s.handleConsumer)
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { writeNotFound(w, r) })
	return s
}

// ListenAndServe blocks serving HTTP on cfg.Server.Port, mirroring the
// teacher's http.ListenAndServe call in producer/websocket.go's Produce.
func (s *Server) ListenAndServe() error {
	s.http = &http.Server{Addr: portAddr(s.cfg.Server.Port), Handler: s.recoverMiddleware(s.mux)}
	return s.http.ListenAndServe()
}

// recoverMiddleware is the exception handler spec.md §7 describes: logs
// with uri and cause, then completes the request with the mapped JSON
// error instead of crashing the process. Per-handler cleanup (closing the
// session lifecycle and the Kafka source/publisher) already runs via
// each handler's own defers before a panic would unwind past them.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.WithField("uri", r.URL.Path).WithField("cause", rec).Error("panic recovered")
				writeJSONError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully stops accepting new connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleProducer(w http.ResponseWriter, r *http.Request) {
	principal, authErr := s.auth.Authenticate(r)
	if authErr != nil {
		s.log.WithField("uri", r.URL.Path).WithError(authErr).Warn("producer socket rejected by auth")
		writeAuthError(w, authErr)
		return
	}

	params, perr := parseProducerParams(r)
	if perr != nil {
		writeSocketError(w, perr)
		return
	}

	fullID := session.FullProducerID{ProducerID: session.ProducerID(params.clientID), InstanceID: session.ProducerInstanceID(params.instanceID)}
	sessionID := session.SessionID(params.clientID)

	ctx := r.Context()
	lifecycle, result := socket.NewProducerLifecycle(ctx, s.registry, sessionID, fullID, session.ServerID(s.cfg.Server.ServerID), s.cfg.SessionHandler.DefaultMaxConnections)
	if lifecycle == nil {
		writeSocketError(w, socket.RejectionError(result))
		return
	}

	codec, cerr := socket.CodecFor(params.socketPayload)
	if cerr != nil {
		lifecycle.Close(ctx)
		writeSocketError(w, socket.NewError(socket.KindRequestValidation, cerr.Error(), cerr))
		return
	}

	publisher, err := s.brokers.Publisher()
	if err != nil {
		lifecycle.Close(ctx)
		writeSocketError(w, socket.BrokerError(err))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		lifecycle.Close(ctx)
		return
	}
	defer lifecycle.Close(ctx)
	defer conn.Close()

	log := s.log.WithField("sessionId", string(sessionID)).WithField("principal", principal)
	stream := socket.NewProducerStream(conn, publisher, codec, params.topic, log)
	if err := stream.Run(ctx); err != nil {
		log.WithError(err).Warn("producer stream ended with an error")
	}
}

func (s *Server) handleConsumer(w http.ResponseWriter, r *http.Request) {
	principal, authErr := s.auth.Authenticate(r)
	if authErr != nil {
		s.log.WithField("uri", r.URL.Path).WithError(authErr).Warn("consumer socket rejected by auth")
		writeAuthError(w, authErr)
		return
	}

	params, perr := parseConsumerParams(r, s.cfg.Consumer.DefaultRateLimit, s.cfg.Consumer.DefaultBatchSize, s.cfg.CommitHandler.AutoCommitEnabled)
	if perr != nil {
		writeSocketError(w, perr)
		return
	}

	fullID := session.FullConsumerID{GroupID: session.GroupID(params.groupID), ClientID: session.ClientID(params.clientID)}
	sessionID := session.SessionID(params.groupID)

	ctx := r.Context()
	lifecycle, result := socket.NewConsumerLifecycle(ctx, s.registry, sessionID, fullID, session.ServerID(s.cfg.Server.ServerID), session.GroupID(params.groupID), s.cfg.SessionHandler.DefaultMaxConnections)
	if lifecycle == nil {
		writeSocketError(w, socket.RejectionError(result))
		return
	}

	codec, cerr := socket.CodecFor(params.socketPayload)
	if cerr != nil {
		lifecycle.Close(ctx)
		writeSocketError(w, socket.NewError(socket.KindRequestValidation, cerr.Error(), cerr))
		return
	}

	source, err := s.brokers.ConsumerGroup(params.groupID, []string{params.topic})
	if err != nil {
		lifecycle.Close(ctx)
		writeSocketError(w, socket.BrokerError(err))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		lifecycle.Close(ctx)
		source.Close()
		return
	}
	defer lifecycle.Close(ctx)
	defer conn.Close()
	defer source.Close()

	stackCfg := commitstack.Config{
		MaxStackSize:      s.cfg.CommitHandler.MaxStackSize,
		AutoCommitEnabled: params.autoCommit,
		AutoCommitMaxAge:  s.cfg.CommitHandler.AutoCommitMaxAge,
	}
	stack := commitstack.New(fullID, session.TopicName(params.topic), source, stackCfg).WithMetrics(s.commitMetrics)
	defer stack.Close()

	log := s.log.WithField("sessionId", string(sessionID)).WithField("principal", principal)
	stream := socket.NewConsumerStream(conn, source, stack, codec, params.rate, params.batchSize, s.cfg.CommitHandler.AutoCommitInterval, log)
	if err := stream.Run(ctx); err != nil {
		log.WithError(err).Warn("consumer stream ended with an error")
	}
}

func portAddr(port int) string {
	if port <= 0 {
		port = 8080
	}
	return ":" + strconv.Itoa(port)
}
