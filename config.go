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

package roster

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/roster/database"
	"github.com/blinklabs-io/roster/registry"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultShutdownTimeout = 30 * time.Second
	DefaultEpochLength     = 24 * time.Hour
)

type Config struct {
	promRegistry     prometheus.Registerer
	logger           *slog.Logger
	epochGenesis     time.Time
	dataDir          string
	blobPlugin       string
	metadataPlugin   string
	metadataDsn      string
	metricsAddress   string
	snapshotUrl      string
	kafkaTopic       string
	kafkaBrokers     []string
	epochLength      time.Duration
	shutdownTimeout  time.Duration
	snapshotInterval time.Duration
	undeleteStatus   registry.UndeleteStatus
	snapshotEncrypt  bool
	tracing          bool
	tracingStdout    bool
}

type ConfigOptionFunc func(*Config)

// NewConfig creates a new roster config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		blobPlugin:      database.DefaultBlobPlugin,
		metadataPlugin:  database.DefaultMetadataPlugin,
		epochLength:     DefaultEpochLength,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c *Config) validate() error {
	var errs []error
	if c.epochLength <= 0 {
		errs = append(errs, errors.New("epoch length must be positive"))
	}
	if c.snapshotInterval < 0 {
		errs = append(errs, errors.New("snapshot interval must not be negative"))
	}
	if c.snapshotInterval > 0 && c.snapshotUrl == "" {
		errs = append(errs, errors.New("snapshot interval requires a snapshot url"))
	}
	if len(c.kafkaBrokers) > 0 && c.kafkaTopic == "" {
		errs = append(errs, errors.New("event forwarding requires a kafka topic"))
	}
	return errors.Join(errs...)
}

// WithLogger specifies the logger to use. Components add their own
// "component" attribute
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithMetadataDsn specifies the connection string for the postgres and
// mysql metadata plugins
func WithMetadataDsn(dsn string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataDsn = dsn
	}
}

// WithEpoch specifies the start of epoch 0 and the length of every epoch
func WithEpoch(genesis time.Time, length time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.epochGenesis = genesis
		c.epochLength = length
	}
}

// WithUndeleteStatus selects the state undelete moves members and services to
func WithUndeleteStatus(status registry.UndeleteStatus) ConfigOptionFunc {
	return func(c *Config) {
		c.undeleteStatus = status
	}
}

// WithMetricsAddress serves /metrics on address while running. Empty disables it
func WithMetricsAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.metricsAddress = address
	}
}

// WithSnapshot configures the snapshot sink. A positive interval exports
// periodically while running
func WithSnapshot(
	url string,
	encrypt bool,
	interval time.Duration,
) ConfigOptionFunc {
	return func(c *Config) {
		c.snapshotUrl = url
		c.snapshotEncrypt = encrypt
		c.snapshotInterval = interval
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout bounds how long Stop waits for background work
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithEventForwarding publishes every registry event to topic on the given
// Kafka brokers. No brokers disables forwarding
func WithEventForwarding(brokers []string, topic string) ConfigOptionFunc {
	return func(c *Config) {
		c.kafkaBrokers = brokers
		c.kafkaTopic = topic
	}
}
