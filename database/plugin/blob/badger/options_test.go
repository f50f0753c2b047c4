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

package badger

import (
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()
	b := &BlobStoreBadger{memTableSize: DefaultMemTableSize}
	for _, opt := range []BlobStoreBadgerOptionFunc{
		WithDataDir("/tmp/test"),
		WithLogger(logger),
		WithPromRegistry(registry),
		WithMemTableSize(1 << 21),
	} {
		opt(b)
	}
	assert.Equal(t, "/tmp/test", b.dataDir)
	assert.Same(t, logger, b.logger)
	assert.Equal(t, registry, b.promRegistry)
	assert.Equal(t, int64(1<<21), b.memTableSize)

	// Zero leaves the size alone
	WithMemTableSize(0)(b)
	assert.Equal(t, int64(1<<21), b.memTableSize)
}

func TestBadgerOptionsFollowDataDir(t *testing.T) {
	b := &BlobStoreBadger{memTableSize: 1 << 20}
	opts := b.badgerOptions()
	assert.True(t, opts.InMemory)
	assert.Equal(t, int64(1<<20), opts.MemTableSize)
	assert.Equal(t, DefaultValueThreshold, opts.ValueThreshold)

	b.dataDir = "/tmp/roster"
	opts = b.badgerOptions()
	assert.False(t, opts.InMemory)
	assert.Equal(t, "/tmp/roster/blob", opts.Dir)
}
