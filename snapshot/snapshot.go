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

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/blinklabs-io/roster/registry"
	"github.com/blinklabs-io/roster/snapshot/sops"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namePrefix = "roster-"
	nameSuffix = ".json"
	nameLayout = "20060102T150405Z"

	DefaultAttempts   = 3
	DefaultRetryDelay = time.Second
)

// Name returns the snapshot name for an export taken at t. Names sort in
// time order
func Name(t time.Time) string {
	return namePrefix + t.UTC().Format(nameLayout) + nameSuffix
}

func isSnapshotName(name string) bool {
	return strings.HasPrefix(name, namePrefix) &&
		strings.HasSuffix(name, nameSuffix)
}

// Encode renders state as JSON, wrapped in a sops document when encrypt is
// set
func Encode(state *registry.State, encrypt bool) ([]byte, error) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, err
	}
	if !encrypt {
		return data, nil
	}
	return sops.Encrypt(data)
}

// Decode reverses Encode, detecting encryption from the document
func Decode(data []byte) (*registry.State, error) {
	if sops.IsEncrypted(data) {
		plain, err := sops.Decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("decrypt snapshot: %w", err)
		}
		data = plain
	}
	var state registry.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &state, nil
}

func contentType(data []byte) string {
	if sops.IsEncrypted(data) {
		return "application/vnd.sops+json"
	}
	return "application/json"
}

// Exporter moves registry state between the database and a sink
type Exporter struct {
	registry     *registry.Registry
	sink         Sink
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	metrics      *exporterMetrics
	nowFunc      func() time.Time
	attempts     uint
	retryDelay   time.Duration
	encrypt      bool
}

type ExporterOptionFunc func(*Exporter)

func WithLogger(logger *slog.Logger) ExporterOptionFunc {
	return func(e *Exporter) {
		e.logger = logger
	}
}

func WithPromRegistry(reg prometheus.Registerer) ExporterOptionFunc {
	return func(e *Exporter) {
		e.promRegistry = reg
	}
}

// WithEncryption wraps exports in sops using the KMS keys from the
// environment
func WithEncryption(encrypt bool) ExporterOptionFunc {
	return func(e *Exporter) {
		e.encrypt = encrypt
	}
}

// WithRetry sets how many times a sink call is attempted and the initial
// backoff between attempts
func WithRetry(attempts uint, delay time.Duration) ExporterOptionFunc {
	return func(e *Exporter) {
		e.attempts = attempts
		e.retryDelay = delay
	}
}

func NewExporter(
	reg *registry.Registry,
	sink Sink,
	opts ...ExporterOptionFunc,
) *Exporter {
	e := &Exporter{
		registry:   reg,
		sink:       sink,
		nowFunc:    time.Now,
		attempts:   DefaultAttempts,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e.logger = e.logger.With("component", "snapshot")
	if e.attempts == 0 {
		e.attempts = 1
	}
	if e.promRegistry != nil {
		e.metrics = newExporterMetrics(e.promRegistry)
	}
	return e
}

func (e *Exporter) retry(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(e.attempts),
		retry.Delay(e.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrNotFound) &&
				!errors.Is(err, ErrInvalidName)
		}),
		retry.OnRetry(func(attempt uint, err error) {
			e.logger.Warn(
				"snapshot sink call failed, retrying",
				"op", op,
				"attempt", attempt+1,
				"error", err,
			)
		}),
	)
}

// Export writes the current state to the sink and returns its name
func (e *Exporter) Export(ctx context.Context) (string, error) {
	name, size, err := e.export(ctx)
	if m := e.metrics; m != nil {
		if err != nil {
			m.exports.WithLabelValues("error").Inc()
		} else {
			m.exports.WithLabelValues("ok").Inc()
			m.lastBytes.Set(float64(size))
			m.lastExport.SetToCurrentTime()
		}
	}
	return name, err
}

func (e *Exporter) export(ctx context.Context) (string, int, error) {
	state, err := e.registry.ExportState()
	if err != nil {
		return "", 0, err
	}
	data, err := Encode(state, e.encrypt)
	if err != nil {
		return "", 0, err
	}
	name := Name(e.nowFunc())
	if err := e.retry(ctx, "put", func() error {
		return e.sink.Put(ctx, name, data)
	}); err != nil {
		return "", 0, err
	}
	e.logger.Info(
		"exported snapshot",
		"name", name,
		"bytes", len(data),
		"members", len(state.Members),
		"alerts", len(state.Alerts),
		"encrypted", e.encrypt,
	)
	return name, len(data), nil
}

// Latest returns the name of the newest snapshot in the sink
func (e *Exporter) Latest(ctx context.Context) (string, error) {
	var names []string
	err := e.retry(ctx, "list", func() error {
		var err error
		names, err = e.sink.List(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	for i := len(names) - 1; i >= 0; i-- {
		if isSnapshotName(names[i]) {
			return names[i], nil
		}
	}
	return "", ErrNotFound
}

// Load fetches and decodes the named snapshot, or the newest one when
// name is empty
func (e *Exporter) Load(ctx context.Context, name string) (*registry.State, error) {
	if name == "" {
		var err error
		if name, err = e.Latest(ctx); err != nil {
			return nil, err
		}
	}
	var data []byte
	err := e.retry(ctx, "get", func() error {
		var err error
		data, err = e.sink.Get(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Import loads a snapshot and replaces the registry state with it. It
// returns the name that was imported
func (e *Exporter) Import(
	ctx context.Context,
	origin registry.Origin,
	name string,
) (string, error) {
	if name == "" {
		var err error
		if name, err = e.Latest(ctx); err != nil {
			return "", err
		}
	}
	state, err := e.Load(ctx, name)
	if err != nil {
		return "", err
	}
	if err := e.registry.ImportState(ctx, origin, state); err != nil {
		return "", err
	}
	e.logger.Info(
		"imported snapshot",
		"name", name,
		"members", len(state.Members),
		"alerts", len(state.Alerts),
	)
	return name, nil
}

// Run exports every interval until ctx is done. Failed exports are logged
// and retried at the next tick
func (e *Exporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Export(ctx); err != nil && ctx.Err() == nil {
				e.logger.Error("periodic snapshot export failed", "error", err)
			}
		}
	}
}
