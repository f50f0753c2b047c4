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
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/blinklabs-io/roster/database"
	"github.com/blinklabs-io/roster/epoch"
	"github.com/blinklabs-io/roster/event"
	"github.com/blinklabs-io/roster/event/kafkasink"
	"github.com/blinklabs-io/roster/registry"
	"github.com/blinklabs-io/roster/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

// Roster owns the database, the event bus and the registry built over them,
// plus the background services of a long-running instance: the epoch clock,
// periodic snapshots and the metrics listener
type Roster struct {
	config         Config
	db             *database.Database
	eventBus       *event.EventBus
	registry       *registry.Registry
	clock          *epoch.Clock
	exporter       *snapshot.Exporter
	sink           snapshot.Sink
	metricsServer  *http.Server
	metricsAddr    net.Addr
	tracerProvider trace.TracerProvider
	cancel         context.CancelFunc
	shutdownFuncs  []func(context.Context) error
	wg             sync.WaitGroup
	mu             sync.Mutex
	done           chan struct{}
	shutdownOnce   sync.Once
	opened         bool
	started        bool
}

func New(cfg Config) (*Roster, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Roster{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		done:     make(chan struct{}),
	}, nil
}

// Open loads the database and builds the registry without starting any
// background service. It is enough for one-shot operations
func (r *Roster) Open(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opened {
		return nil
	}
	if r.config.tracing {
		if err := r.setupTracing(ctx); err != nil {
			return err
		}
	}
	db, err := database.New(&database.Config{
		DataDir:        r.config.dataDir,
		Logger:         r.config.logger,
		PromRegistry:   r.config.promRegistry,
		BlobPlugin:     r.config.blobPlugin,
		MetadataPlugin: r.config.metadataPlugin,
		MetadataDsn:    r.config.metadataDsn,
	})
	if err != nil {
		var tsErr database.CommitTimestampError
		if db == nil || !errors.As(err, &tsErr) {
			return fmt.Errorf("failed to open database: %w", err)
		}
		// The collections live in the blob store. The next commit writes a
		// fresh timestamp to both stores
		r.config.logger.Warn(
			"journal is behind the registry collections",
			"component", "roster",
			"error", err,
		)
	}
	r.db = db
	opts := []registry.Option{
		registry.WithLogger(r.config.logger),
		registry.WithUndeleteStatus(r.config.undeleteStatus),
	}
	if r.config.promRegistry != nil {
		opts = append(opts, registry.WithPromRegistry(r.config.promRegistry))
	}
	if r.tracerProvider != nil {
		opts = append(opts, registry.WithTracerProvider(r.tracerProvider))
	}
	reg, err := registry.New(db, r.eventBus, opts...)
	if err != nil {
		return errors.Join(err, db.Close())
	}
	r.registry = reg
	r.opened = true
	return nil
}

// Start opens the instance if needed and starts the background services
func (r *Roster) Start(ctx context.Context) error {
	if err := r.Open(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	bgCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	if err := r.startForwarding(); err != nil {
		return err
	}
	if err := r.startEpochClock(ctx, bgCtx); err != nil {
		return err
	}
	if err := r.startSnapshots(ctx, bgCtx); err != nil {
		return err
	}
	if err := r.startMetrics(); err != nil {
		return err
	}
	r.started = true
	return nil
}

// Run starts the instance and blocks until ctx is done or Stop is called.
// It does not stop the instance itself
func (r *Roster) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-r.done:
	}
	return nil
}

// startForwarding attaches the Kafka forwarder to every registry event. The
// bus closes it on Stop, which flushes pending messages
func (r *Roster) startForwarding() error {
	if len(r.config.kafkaBrokers) == 0 {
		return nil
	}
	fwd, err := kafkasink.New(kafkasink.Config{
		Logger:  r.config.logger,
		Brokers: r.config.kafkaBrokers,
		Topic:   r.config.kafkaTopic,
	})
	if err != nil {
		return err
	}
	fwd.Attach(r.eventBus, registry.EventTypes...)
	return nil
}

func (r *Roster) startEpochClock(ctx, bgCtx context.Context) error {
	clock, err := epoch.New(epoch.Config{
		Logger:       r.config.logger,
		EventBus:     r.eventBus,
		PromRegistry: r.config.promRegistry,
		Genesis:      r.config.epochGenesis,
		EpochLength:  r.config.epochLength,
	})
	if err != nil {
		return err
	}
	r.clock = clock
	r.eventBus.SubscribeFunc(
		event.EpochTransitionEventType,
		func(evt event.Event) {
			data, ok := evt.Data.(event.EpochTransitionEvent)
			if !ok {
				return
			}
			if err := r.registry.Alerts.OnEpochStart(bgCtx, data.NewEpoch); err != nil {
				r.config.logger.Error(
					"alert index rebuild failed",
					"component", "roster",
					"epoch", data.NewEpoch,
					"error", err,
				)
			}
		},
	)
	// Catch up on a boundary crossed while the instance was down
	current := clock.CurrentEpoch()
	last, err := r.db.GetLastIndexRebuild()
	if err != nil {
		return fmt.Errorf("read last index rebuild: %w", err)
	}
	if last == nil || last.Epoch < current {
		if err := r.registry.Alerts.OnEpochStart(ctx, current); err != nil {
			return fmt.Errorf("initial index rebuild: %w", err)
		}
	}
	clock.SetLastEmittedEpoch(current)
	clock.Start(bgCtx)
	return nil
}

func (r *Roster) startSnapshots(ctx, bgCtx context.Context) error {
	if r.config.snapshotUrl == "" {
		return nil
	}
	sink, err := snapshot.Open(ctx, r.config.snapshotUrl, r.config.logger)
	if err != nil {
		return err
	}
	r.sink = sink
	r.exporter = snapshot.NewExporter(
		r.registry,
		sink,
		snapshot.WithLogger(r.config.logger),
		snapshot.WithPromRegistry(r.config.promRegistry),
		snapshot.WithEncryption(r.config.snapshotEncrypt),
	)
	if r.config.snapshotInterval > 0 {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.exporter.Run(bgCtx, r.config.snapshotInterval)
		}()
	}
	return nil
}

func (r *Roster) startMetrics() error {
	if r.config.metricsAddress == "" {
		return nil
	}
	handler := promhttp.Handler()
	if gatherer, ok := r.config.promRegistry.(prometheus.Gatherer); ok &&
		r.config.promRegistry != prometheus.DefaultRegisterer {
		handler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	listener, err := net.Listen("tcp", r.config.metricsAddress)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	r.metricsAddr = listener.Addr()
	r.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	r.config.logger.Info(
		"serving prometheus metrics on "+r.metricsAddr.String(),
		"component", "roster",
	)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.metricsServer.Serve(listener); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			r.config.logger.Error(
				"metrics listener failed",
				"component", "roster",
				"error", err,
			)
		}
	}()
	return nil
}

// Registry returns the registry, or nil before Open
func (r *Roster) Registry() *registry.Registry {
	return r.registry
}

func (r *Roster) Database() *database.Database {
	return r.db
}

func (r *Roster) EventBus() *event.EventBus {
	return r.eventBus
}

// Snapshots returns the exporter for the configured sink, or nil when no
// snapshot url is set or the instance is not started
func (r *Roster) Snapshots() *snapshot.Exporter {
	return r.exporter
}

// MetricsAddr returns the bound metrics address, or nil when not serving
func (r *Roster) MetricsAddr() net.Addr {
	return r.metricsAddr
}

func (r *Roster) Stop() error {
	var err error
	r.shutdownOnce.Do(func() {
		err = r.shutdown()
	})
	return err
}

func (r *Roster) shutdown() error {
	ctx, cancel := context.WithTimeout(
		context.Background(),
		r.config.shutdownTimeout,
	)
	defer cancel()
	logger := r.config.logger.With("component", "roster")
	var err error

	logger.Debug("shutdown phase 1: stopping background services")
	if r.clock != nil {
		r.clock.Stop()
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.metricsServer != nil {
		if stopErr := r.metricsServer.Shutdown(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("metrics server shutdown: %w", stopErr))
		}
	}
	r.wg.Wait()

	logger.Debug("shutdown phase 2: draining events")
	r.eventBus.Stop()

	logger.Debug("shutdown phase 3: closing storage")
	if r.sink != nil {
		if closeErr := r.sink.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("snapshot sink close: %w", closeErr))
		}
	}
	if r.db != nil {
		if closeErr := r.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	for _, fn := range r.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	r.shutdownFuncs = nil

	logger.Debug("graceful shutdown complete")
	close(r.done)
	return err
}
