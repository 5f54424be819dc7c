// Copyright 2015-2016 trivago GmbH
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
	"context"
	"os"
	"os/signal"
	"strconv"
	"time"

	kafka "github.com/Shopify/sarama"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"

	"github.com/kafkawsproxy/wsproxy/auth"
	"github.com/kafkawsproxy/wsproxy/commitstack"
	"github.com/kafkawsproxy/wsproxy/config"
	"github.com/kafkawsproxy/wsproxy/session"
	"github.com/kafkawsproxy/wsproxy/sessionhandler"
	"github.com/kafkawsproxy/wsproxy/wsapi"
)

const (
	coordinatorStateConfigure          = coordinatorState(iota)
	coordinatorStateStartSessionHandler = coordinatorState(iota)
	coordinatorStateStartSocketServer   = coordinatorState(iota)
	coordinatorStateRunning             = coordinatorState(iota)
	coordinatorStateShutdown            = coordinatorState(iota)
	coordinatorStateStopped             = coordinatorState(iota)
)

const (
	signalNone = signalType(iota)
	signalExit = signalType(iota)
	signalRoll = signalType(iota)
)

// sessionHandlerCaughtUpTimeout bounds how long startup waits for the
// local view to replay the session-state log's tail (spec.md §5).
const sessionHandlerCaughtUpTimeout = 30 * time.Second

// shutdownTimeout bounds the graceful-shutdown window for both the
// socket server and the session handler actor.
const shutdownTimeout = 10 * time.Second

type coordinatorState byte
type signalType byte

// Coordinator owns process startup and shutdown: wiring the session
// handler's Kafka-backed log transport, the Prometheus exporter and the
// HTTP/WebSocket surface, then blocking on OS signals (spec.md §4.K:
// "configure -> startSessionHandler -> startSocketServer -> running ->
// shutdown -> stopped", adapted from the teacher's own Coordinator state
// machine of the same name).
type Coordinator struct {
	cfg       config.AppCfg
	saramaCfg *kafka.Config
	registry  metrics.Registry

	handler      *sessionhandler.Handler
	handlerCtx   context.Context
	handlerStop  context.CancelFunc
	handlerDone  chan error

	server      *wsapi.Server
	metricsStop func()

	state  coordinatorState
	signal chan os.Signal
}

// NewCoordinator creates a Coordinator in its initial, unconfigured state.
func NewCoordinator() *Coordinator {
	return &Coordinator{state: coordinatorStateConfigure}
}

// Configure builds the sarama config, the session-state log transport,
// the Session Handler, the auth directive and the wsapi.Server. It does
// not start anything — call StartSessionHandler/StartSocketServer next.
func (co *Coordinator) Configure(cfg config.AppCfg) error {
	co.cfg = cfg
	co.registry = metrics.NewRegistry()

	co.saramaCfg = kafka.NewConfig()
	co.saramaCfg.MetricRegistry = co.registry
	co.saramaCfg.Version = kafka.V1_0_0_0
	co.saramaCfg.Producer.Return.Successes = true

	producer, err := kafka.NewSyncProducer(cfg.KafkaBootstrapURLs, co.saramaCfg)
	if err != nil {
		return err
	}
	consumer, err := kafka.NewConsumer(cfg.KafkaBootstrapURLs, co.saramaCfg)
	if err != nil {
		return err
	}

	logProducer := sessionhandler.NewSaramaLogProducer(producer, cfg.SessionHandler.SessionStateTopicName)
	logConsumer := sessionhandler.NewSaramaLogConsumer(consumer, cfg.SessionHandler.SessionStateTopicName)
	handlerMetrics := sessionhandler.NewMetrics(co.registry)

	co.handler = sessionhandler.New(
		session.ServerID(cfg.Server.ServerID),
		logProducer,
		logConsumer,
		sessionhandler.DefaultConfig(),
		handlerMetrics,
		logrus.NewEntry(logrus.StandardLogger()),
	)

	directive, err := auth.Select(context.Background(), cfg)
	if err != nil {
		return err
	}

	brokers := newKafkaBrokers(cfg, co.saramaCfg)
	commitMetrics := commitstack.NewMetrics(co.registry)
	co.server = wsapi.NewServer(cfg, directive, co.handler, brokers, commitMetrics, logrus.NewEntry(logrus.StandardLogger()))

	return nil
}

// StartMetrics serves the Prometheus exporter on port, if port is
// nonzero, bridging the same registry sarama and the session
// handler/commit stack report into (spec.md §4.J).
func (co *Coordinator) StartMetrics(port int) {
	if port == 0 {
		return
	}
	co.metricsStop = startPrometheusMetricsService(":"+strconv.Itoa(port), co.registry)
}

// StartSessionHandler runs the Session Handler's actor loop in the
// background and blocks until its local view has caught up to the tail
// of the session-state log at subscribe time.
func (co *Coordinator) StartSessionHandler() error {
	co.state = coordinatorStateStartSessionHandler
	co.handlerCtx, co.handlerStop = context.WithCancel(context.Background())
	co.handlerDone = make(chan error, 1)

	go func() {
		co.handlerDone <- co.handler.Run(co.handlerCtx)
	}()

	return co.handler.AwaitUpTo(sessionHandlerCaughtUpTimeout)
}

// StartSocketServer starts the HTTP/WebSocket listener in the background.
func (co *Coordinator) StartSocketServer() {
	co.state = coordinatorStateStartSocketServer
	go func() {
		if err := co.server.ListenAndServe(); err != nil {
			logrus.WithError(err).Error("socket server stopped")
		}
	}()
}

// Run blocks on the signal channel until a shutdown signal arrives.
func (co *Coordinator) Run() {
	co.state = coordinatorStateRunning
	co.signal = newSignalHandler()
	defer signal.Stop(co.signal)

	logrus.Info("wsproxy is serving")

	for {
		sig := <-co.signal
		switch translateSignal(sig) {
		case signalExit:
			logrus.Info("shutdown requested")
			return // ### return, exit requested ###

		case signalRoll:
			logrus.Info("SIGHUP received; configuration is immutable post-startup, ignoring")

		default:
		}
	}
}

// Shutdown stops the socket server, then the session handler, in that
// order so in-flight requests finish against a still-running handler.
func (co *Coordinator) Shutdown() {
	logrus.Info("shutting down")
	co.state = coordinatorStateShutdown

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := co.server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("error shutting down socket server")
	}

	co.handlerStop()
	select {
	case <-co.handlerDone:
	case <-ctx.Done():
		logrus.Warn("timed out waiting for session handler to stop")
	}

	if co.metricsStop != nil {
		co.metricsStop()
	}

	co.state = coordinatorStateStopped
}
