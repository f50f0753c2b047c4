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

package registry

import (
	"time"

	"github.com/blinklabs-io/roster/database"
	"github.com/blinklabs-io/roster/database/types"
	"github.com/prometheus/client_golang/prometheus"
)

const metricNamePrefix = "roster_registry_"

type registryMetrics struct {
	operations      *prometheus.CounterVec
	operationTime   *prometheus.HistogramVec
	rebuilds        prometheus.Counter
	rebuildDuration prometheus.Histogram
	indexEntries    prometheus.Gauge
}

func (r *Registry) initMetrics() {
	m := &registryMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricNamePrefix + "operations_total",
				Help: "registry operations by name and result",
			},
			[]string{"op", "result"},
		),
		operationTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricNamePrefix + "operation_duration_seconds",
				Help:    "registry operation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricNamePrefix + "index_rebuilds_total",
			Help: "completed alert index rebuilds",
		}),
		rebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricNamePrefix + "index_rebuild_duration_seconds",
			Help:    "alert index rebuild latency",
			Buckets: prometheus.DefBuckets,
		}),
		indexEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricNamePrefix + "index_entries",
			Help: "alert index entries after the last rebuild",
		}),
	}
	collectors := []prometheus.Collector{
		m.operations,
		m.operationTime,
		m.rebuilds,
		m.rebuildDuration,
		m.indexEntries,
	}
	// Entity counts are read from the store on scrape
	for name, prefix := range map[string]string{
		"members":  types.MemberKeyPrefix,
		"services": types.ServiceKeyPrefix,
		"curators": types.CuratorKeyPrefix,
		"monitors": types.MonitorKeyPrefix,
		"alerts":   types.AlertKeyPrefix,
	} {
		collectors = append(collectors, prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricNamePrefix + name,
				Help: "current number of " + name,
			},
			r.countFunc(prefix),
		))
	}
	for _, c := range collectors {
		if err := r.promRegistry.Register(c); err != nil {
			r.logger.Warn("failed to register registry metric", "error", err)
		}
	}
	r.metrics = m
}

func (r *Registry) countFunc(prefix string) func() float64 {
	return func() float64 {
		var count int
		err := r.view(func(txn *database.Txn) error {
			keys, err := txn.Keys([]byte(prefix))
			count = len(keys)
			return err
		})
		if err != nil {
			r.logger.Debug("failed to count keys", "prefix", prefix, "error", err)
			return 0
		}
		return float64(count)
	}
}

func (r *Registry) observe(op string, err error, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	r.metrics.operations.WithLabelValues(op, result).Inc()
	r.metrics.operationTime.WithLabelValues(op).Observe(elapsed.Seconds())
}
