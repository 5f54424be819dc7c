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

package commitstack

import metrics "github.com/rcrowley/go-metrics"

// Metrics holds the go-metrics instruments a Stack updates as it fills
// and drains, fed into the same process-wide registry as
// sessionhandler.Metrics (see metrics.go at the repository root).
type Metrics struct {
	Depth            metrics.Gauge
	AutoCommitSweeps metrics.Counter
}

// NewMetrics registers the commit-stack instruments under registry. A
// nil registry falls back to metrics.DefaultRegistry.
func NewMetrics(registry metrics.Registry) *Metrics {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	return &Metrics{
		Depth:            metrics.GetOrRegisterGauge("commitstack.depth", registry),
		AutoCommitSweeps: metrics.GetOrRegisterCounter("commitstack.auto_commit_sweeps", registry),
	}
}

// WithMetrics attaches an instrument set to an already-constructed
// Stack; every depth-changing operation after this call updates it.
func (s *Stack) WithMetrics(m *Metrics) *Stack {
	s.metrics = m
	s.reportDepth()
	return s
}

func (s *Stack) reportDepth() {
	if s.metrics != nil {
		s.metrics.Depth.Update(int64(len(s.entries)))
	}
}
