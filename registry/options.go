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
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

type Option func(*Registry)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) Option {
	return func(r *Registry) {
		r.promRegistry = registry
	}
}

// WithTracerProvider specifies the OpenTelemetry tracer provider for
// operation spans. The global provider is used by default
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Registry) {
		r.tracerProvider = tp
	}
}

// WithUndeleteStatus selects the status that Undelete moves members and
// services to. The default, UndeleteToDeleted, leaves them Deleted
func WithUndeleteStatus(status UndeleteStatus) Option {
	return func(r *Registry) {
		r.undeleteStatus = status
	}
}

// WithBatchSize caps the writes per transaction when an index rebuild or a
// state import runs in batches. Values below one keep DefaultBatchSize
func WithBatchSize(size int) Option {
	return func(r *Registry) {
		if size > 0 {
			r.batchSize = size
		}
	}
}
