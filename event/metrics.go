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

package event

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricNamePrefix = "roster_event_"

type eventMetrics struct {
	eventsTotal    *prometheus.CounterVec
	subscribers    *prometheus.GaugeVec
	deliveryErrors *prometheus.CounterVec
	dropped        *prometheus.CounterVec
}

func (e *EventBus) initMetrics(promRegistry prometheus.Registerer) {
	m := &eventMetrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricNamePrefix + "published_total",
				Help: "total events published by type",
			},
			[]string{"type"},
		),
		subscribers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricNamePrefix + "subscribers",
				Help: "current subscribers by event type and kind",
			},
			[]string{"type", "kind"},
		),
		deliveryErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricNamePrefix + "delivery_errors_total",
				Help: "failed event deliveries by event type and subscriber kind",
			},
			[]string{"type", "kind"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricNamePrefix + "dropped_total",
				Help: "events dropped because a subscriber buffer was full",
			},
			[]string{"type"},
		),
	}
	for _, c := range []prometheus.Collector{
		m.eventsTotal,
		m.subscribers,
		m.deliveryErrors,
		m.dropped,
	} {
		if err := promRegistry.Register(c); err != nil {
			e.logger.Warn("failed to register event metric", "error", err)
		}
	}
	e.metrics = m
}
