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

// Package registry implements the role-gated member, service and alert
// stores. Every mutation runs as one database transaction that also appends
// a journal row, and publishes exactly one event after it commits.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/roster/database"
	"github.com/blinklabs-io/roster/database/models"
	"github.com/blinklabs-io/roster/database/types"
	"github.com/blinklabs-io/roster/event"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/blinklabs-io/roster/registry"

// DefaultBatchSize is the number of writes per transaction used by batched
// index rebuilds and state imports
const DefaultBatchSize = 1000

var ErrNilDatabase = errors.New("registry requires a database")

// Registry owns the four stores. They share one database, event bus and
// writer lock
type Registry struct {
	Roles    *RoleStore
	Members  *MemberStore
	Services *ServiceStore
	Alerts   *AlertRegistry

	db             *database.Database
	eventBus       *event.EventBus
	logger         *slog.Logger
	promRegistry   prometheus.Registerer
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	metrics        *registryMetrics
	rebuildGroup   singleflight.Group
	// mu serializes writers. Readers use snapshot transactions and never
	// take it
	mu sync.Mutex
	// gate holds readers back while a state import replaces the collections
	// across several transactions
	gate           sync.RWMutex
	importPending  atomic.Bool
	batchSize      int
	undeleteStatus UndeleteStatus
}

// New builds a Registry over db. Events go to eventBus, which may be nil
func New(
	db *database.Database,
	eventBus *event.EventBus,
	opts ...Option,
) (*Registry, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	r := &Registry{
		db:        db,
		eventBus:  eventBus,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	r.logger = r.logger.With("component", "registry")
	if r.tracerProvider == nil {
		r.tracerProvider = otel.GetTracerProvider()
	}
	r.tracer = r.tracerProvider.Tracer(tracerName)
	var pending bool
	if err := db.View(func(txn *database.Txn) error {
		var err error
		pending, err = txn.Has([]byte(types.ImportPendingKey))
		return err
	}); err != nil {
		return nil, err
	}
	if pending {
		r.logger.Warn("a state import was interrupted, import a state again to continue")
	}
	r.importPending.Store(pending)
	if r.promRegistry != nil {
		r.initMetrics()
	}
	r.Roles = &RoleStore{r: r}
	r.Members = &MemberStore{r: r}
	r.Services = &ServiceStore{r: r}
	r.Alerts = &AlertRegistry{r: r}
	return r, nil
}

// Database returns the backing database
func (r *Registry) Database() *database.Database {
	return r.db
}

// notification is what a successful mutation reports. It becomes both the
// journal row and the published event
type notification struct {
	data      any
	eventType event.EventType
	subject   string
}

// mutate runs fn as one read-write transaction under the writer lock. On
// success the journal row commits with fn's writes and the event is
// published before the lock is released, so events arrive in commit order
func (r *Registry) mutate(
	ctx context.Context,
	op string,
	fn func(txn *database.Txn) (notification, error),
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run(ctx, op, func(ctx context.Context) (notification, error) {
		if err := r.ready(); err != nil {
			return notification{}, err
		}
		return r.commit(ctx, fn)
	})
}

// run traces and meters one operation and publishes the event for the
// notification fn returns. The caller holds r.mu
func (r *Registry) run(
	ctx context.Context,
	op string,
	fn func(ctx context.Context) (notification, error),
) error {
	ctx, span := r.tracer.Start(
		ctx,
		"registry."+op,
		trace.WithAttributes(attribute.String("registry.op", op)),
	)
	defer span.End()
	start := time.Now()
	n, err := fn(ctx)
	r.observe(op, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		switch {
		case KindOf(err) != KindUnknown:
			r.logger.Debug("registry operation rejected", "op", op, "error", err)
		case errors.Is(err, context.Canceled),
			errors.Is(err, context.DeadlineExceeded):
			r.logger.Debug("registry operation abandoned", "op", op, "error", err)
		default:
			r.logger.Error("registry operation failed", "op", op, "error", err)
		}
		return err
	}
	span.SetAttributes(attribute.String("registry.subject", n.subject))
	r.logger.Debug(
		"registry operation",
		"op", op,
		"event", n.eventType,
		"subject", n.subject,
	)
	if r.eventBus != nil {
		r.eventBus.Publish(n.eventType, event.NewEvent(n.eventType, n.data))
	}
	return nil
}

// commit runs fn in one read-write transaction together with the journal row
// for the notification it returns. Nothing is written if ctx is done by the
// time fn finishes
func (r *Registry) commit(
	ctx context.Context,
	fn func(txn *database.Txn) (notification, error),
) (notification, error) {
	var n notification
	err := r.db.Update(func(txn *database.Txn) error {
		var err error
		n, err = fn(txn)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(n.data)
		if err != nil {
			return err
		}
		if err := r.db.AddNotification(
			models.NewNotification(
				string(n.eventType),
				n.subject,
				payload,
				time.Now(),
			),
			txn,
		); err != nil {
			return err
		}
		return ctx.Err()
	})
	return n, err
}

// ready refuses work while an interrupted state import is outstanding
func (r *Registry) ready() error {
	if r.importPending.Load() {
		return ErrImportIncomplete
	}
	return nil
}

// view runs fn against a read-only snapshot
func (r *Registry) view(fn func(txn *database.Txn) error) error {
	r.gate.RLock()
	defer r.gate.RUnlock()
	if err := r.ready(); err != nil {
		return err
	}
	return r.db.View(fn)
}

// writeBatches calls op for each item, committing every r.batchSize items.
// It stops at the first error and checks ctx between batches. Batches that
// already committed stay committed
func writeBatches[T any](
	ctx context.Context,
	r *Registry,
	items []T,
	op func(txn *database.Txn, item T) error,
) error {
	for batch := range slices.Chunk(items, r.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := r.db.Update(func(txn *database.Txn) error {
			for _, item := range batch {
				if err := op(txn, item); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// requireCurator resolves the signing account of origin and checks it is a
// curator
func requireCurator(txn *database.Txn, origin Origin) (AccountId, error) {
	caller, err := ensureSigned(origin)
	if err != nil {
		return "", err
	}
	ok, err := isCurator(txn, caller)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotACurator
	}
	return caller, nil
}
