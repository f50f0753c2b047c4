// Copyright 2025 Blink Labs Software
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

package epoch

import "github.com/prometheus/client_golang/prometheus"

type clockMetrics struct {
	current     prometheus.Gauge
	transitions prometheus.Counter
}

func newClockMetrics(promRegistry prometheus.Registerer) *clockMetrics {
	m := &clockMetrics{
		current: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roster_epoch_current",
			Help: "most recent epoch the clock has published",
		}),
		transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roster_epoch_transitions_total",
			Help: "epoch transitions published",
		}),
	}
	promRegistry.MustRegister(m.current, m.transitions)
	return m
}
