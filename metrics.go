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
	"context"
	"net/http"
	"time"

	promMetrics "github.com/CrowdStrike/go-metrics-prometheus"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// startPrometheusMetricsService bridges registry — the same
// rcrowley/go-metrics registry sarama, the session handler and the
// commit stack all report into — onto a Prometheus HTTP endpoint. Same
// three-library chain as the teacher's own metrics.go, repointed at our
// own registry instead of gollum's internal one (spec.md §4.J).
func startPrometheusMetricsService(address string, registry metrics.Registry) func() {
	srv := &http.Server{Addr: address}
	quit := make(chan struct{})
	prometheusRegistry := prometheus.NewRegistry()

	flushInterval := 3 * time.Second
	promClient := promMetrics.NewPrometheusProvider(registry, "wsproxy", "", prometheusRegistry, flushInterval)

	go func() {
		for {
			select {
			case <-time.After(flushInterval):
				if err := promClient.UpdatePrometheusMetricsOnce(); err != nil {
					logrus.WithError(err).Warn("Error updating metrics")
				}
			case <-quit:
				return
			}
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/prometheus", promhttp.HandlerFor(prometheusRegistry, promhttp.HandlerOpts{
			ErrorLog:      logrus.StandardLogger(),
			ErrorHandling: promhttp.ContinueOnError,
		}))
		srv.Handler = mux

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("Failed to start metrics http server")
		}
	}()

	logrus.WithField("address", address).Info("Started metric service")

	return func() {
		close(quit)
		if err := srv.Shutdown(context.Background()); err != nil {
			logrus.WithError(err).Error("Failed to shutdown metrics http server")
		}
	}
}
