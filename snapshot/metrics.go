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

package snapshot

import "github.com/prometheus/client_golang/prometheus"

type exporterMetrics struct {
	exports    *prometheus.CounterVec
	lastBytes  prometheus.Gauge
	lastExport prometheus.Gauge
}

func newExporterMetrics(reg prometheus.Registerer) *exporterMetrics {
	m := &exporterMetrics{
		exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roster_snapshot_exports_total",
				Help: "Snapshot exports by result",
			},
			[]string{"result"},
		),
		lastBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roster_snapshot_last_export_bytes",
			Help: "Size of the most recent snapshot export",
		}),
		lastExport: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roster_snapshot_last_export_timestamp_seconds",
			Help: "Unix time of the most recent successful snapshot export",
		}),
	}
	reg.MustRegister(m.exports, m.lastBytes, m.lastExport)
	return m
}
