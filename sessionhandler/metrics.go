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

package sessionhandler

import metrics "github.com/rcrowley/go-metrics"

// Metrics holds the go-metrics instruments the handler updates as it folds
// the log. A process-wide metrics.Registry feeds these into Prometheus via
// CrowdStrike/go-metrics-prometheus, the same provider chain the root
// metrics service already registers (metrics.go).
type Metrics struct {
	SessionsActive       metrics.Gauge
	InstancesActive      metrics.Gauge
	CompensatingRemovals metrics.Counter
	IncompleteOps        metrics.Counter
}

// NewMetrics registers the handler's instruments under registry. A nil
// registry is replaced with metrics.DefaultRegistry so the handler is
// always usable standalone (e.g. in tests).
func NewMetrics(registry metrics.Registry) *Metrics {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	return &Metrics{
		SessionsActive:       metrics.GetOrRegisterGauge("sessionhandler.sessions_active", registry),
		InstancesActive:      metrics.GetOrRegisterGauge("sessionhandler.instances_active", registry),
		CompensatingRemovals: metrics.GetOrRegisterCounter("sessionhandler.compensating_removals", registry),
		IncompleteOps:        metrics.GetOrRegisterCounter("sessionhandler.incomplete_ops", registry),
	}
}
