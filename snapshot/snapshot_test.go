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
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/roster/internal/test/testutil"
	"github.com/blinklabs-io/roster/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil/promlint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// flakySink fails the first n calls of every method
type flakySink struct {
	Sink
	mu    sync.Mutex
	fails int
	calls int
}

func (s *flakySink) fail() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fails > 0 {
		s.fails--
		return errors.New("transient")
	}
	return nil
}

func (s *flakySink) Put(ctx context.Context, name string, data []byte) error {
	if err := s.fail(); err != nil {
		return err
	}
	return s.Sink.Put(ctx, name, data)
}

func (s *flakySink) Get(ctx context.Context, name string) ([]byte, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	return s.Sink.Get(ctx, name)
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(testutil.NewTestDatabase(t), nil)
	require.NoError(t, err)
	ctx := t.Context()
	require.NoError(t, reg.Roles.AssignCurator(ctx, registry.None(), "curator"))
	require.NoError(t, reg.Members.Register(ctx, registry.Signed("alice")))
	require.NoError(t, reg.Members.Unlock(ctx, registry.Signed("curator"), "alice"))
	require.NoError(t, reg.Roles.AssignMonitor(ctx, registry.Signed("curator"), "alice"))
	require.NoError(t, reg.Services.Register(ctx, registry.Signed("curator"), registry.ServiceRegistration{
		Id:     "rpc",
		Status: registry.ServiceActive,
	}))
	require.NoError(t, reg.Alerts.Register(ctx, registry.Signed("alice"), registry.AlertRegistration{
		AlertId: 1,
		Member:  "alice",
		Service: "rpc",
		Type:    "Down",
	}))
	return reg
}

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ret := now
		now = now.Add(time.Minute)
		return ret
	}
}

func TestNameSortsByTime(t *testing.T) {
	early := Name(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	late := Name(time.Date(2026, 11, 2, 3, 4, 5, 0, time.UTC))
	assert.Equal(t, "roster-20260102T030405Z.json", early)
	assert.Less(t, early, late)
	assert.True(t, isSnapshotName(early))
	assert.False(t, isSnapshotName(".roster-1.json.123"))
}

func TestExportImportThroughFileSink(t *testing.T) {
	src := newRegistry(t)
	dir := t.TempDir()
	sink, err := Open(t.Context(), "file://"+dir, nil)
	require.NoError(t, err)
	exp := NewExporter(src, sink)
	exp.nowFunc = fixedClock(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))

	first, err := exp.Export(t.Context())
	require.NoError(t, err)
	require.NoError(t, src.Members.Register(t.Context(), registry.Signed("bob")))
	second, err := exp.Export(t.Context())
	require.NoError(t, err)
	assert.Less(t, first, second)

	names, err := sink.List(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, names)
	latest, err := exp.Latest(t.Context())
	require.NoError(t, err)
	assert.Equal(t, second, latest)

	dst, err := registry.New(testutil.NewTestDatabase(t), nil)
	require.NoError(t, err)
	imp := NewExporter(dst, sink)
	name, err := imp.Import(t.Context(), registry.Root(), "")
	require.NoError(t, err)
	assert.Equal(t, second, name)

	members, err := dst.Members.List()
	require.NoError(t, err)
	assert.Len(t, members, 2)
	assert.True(t, dst.Roles.IsCurator("curator"))
	entries, err := dst.Alerts.IndexEntries()
	require.NoError(t, err)
	assert.Equal(
		t,
		[]registry.AlertIndexKey{{Member: "alice", Service: "rpc", Type: "Down"}},
		entries,
	)

	// The older snapshot is still addressable by name
	_, err = imp.Import(t.Context(), registry.Root(), first)
	require.NoError(t, err)
	members, err = dst.Members.List()
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestImportRequiresRoot(t *testing.T) {
	src := newRegistry(t)
	sink := NewFileSink(t.TempDir(), nil)
	_, err := NewExporter(src, sink).Export(t.Context())
	require.NoError(t, err)

	_, err = NewExporter(src, sink).Import(t.Context(), registry.Signed("curator"), "")
	require.ErrorIs(t, err, registry.ErrNotAuthorized)
}

func TestImportFromEmptySink(t *testing.T) {
	reg := newRegistry(t)
	exp := NewExporter(reg, NewFileSink(filepath.Join(t.TempDir(), "missing"), nil))
	_, err := exp.Import(t.Context(), registry.Root(), "")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = exp.Load(t.Context(), "roster-20260101T000000Z.json")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExportRetriesSinkFailures(t *testing.T) {
	reg := newRegistry(t)
	sink := &flakySink{Sink: NewFileSink(t.TempDir(), nil), fails: 2}
	exp := NewExporter(reg, sink, WithRetry(3, time.Millisecond))
	name, err := exp.Export(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, sink.calls)

	sink.fails = 2
	sink.calls = 0
	_, err = exp.Load(t.Context(), name)
	require.NoError(t, err)
	assert.Equal(t, 3, sink.calls)

	sink.fails = 5
	sink.calls = 0
	_, err = exp.Export(t.Context())
	require.Error(t, err)
	assert.Equal(t, 3, sink.calls)

	// A missing snapshot is not retried
	sink.calls = 0
	_, err = exp.Load(t.Context(), "roster-20200101T000000Z.json")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, sink.calls)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	_, err := Open(t.Context(), "ftp://host/dir", nil)
	require.ErrorIs(t, err, ErrUnknownScheme)
	_, err = Open(t.Context(), "", nil)
	require.Error(t, err)
	_, err = Open(t.Context(), "s3:///prefix", nil)
	require.Error(t, err)
	_, err = Open(t.Context(), "gs://bucket/x?credentials=/does/not/exist.json", nil)
	require.ErrorContains(t, err, "does not exist")

	dir := t.TempDir()
	sink, err := Open(t.Context(), dir, nil)
	require.NoError(t, err)
	require.NoError(t, sink.Put(t.Context(), "a.json", []byte("{}")))
	_, err = os.Stat(filepath.Join(dir, "a.json"))
	require.NoError(t, err)

	schemes := []string{}
	for _, entry := range Sinks() {
		schemes = append(schemes, entry.Scheme)
	}
	assert.Equal(t, []string{"file", "gs", "s3"}, schemes)
}

func TestFileSinkNames(t *testing.T) {
	sink := NewFileSink(t.TempDir(), nil)
	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		require.ErrorIs(t, sink.Put(t.Context(), name, nil), ErrInvalidName, name)
	}
	require.NoError(t, sink.Put(t.Context(), "b", []byte("2")))
	require.NoError(t, sink.Put(t.Context(), "a", []byte("1")))
	require.NoError(t, sink.Put(t.Context(), "a", []byte("3")))
	names, err := sink.List(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
	data, err := sink.Get(t.Context(), "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), data)
}

func TestRunExportsPeriodically(t *testing.T) {
	reg := newRegistry(t)
	// The database is closed by t.Cleanup, after deferred calls run
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	sink := NewFileSink(t.TempDir(), nil)
	promReg := prometheus.NewRegistry()
	exp := NewExporter(reg, sink, WithPromRegistry(promReg))
	exp.nowFunc = fixedClock(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		exp.Run(ctx, 10*time.Millisecond)
	}()
	testutil.WaitForCondition(t, func() bool {
		names, err := sink.List(t.Context())
		return err == nil && len(names) >= 2
	}, 2*time.Second, "periodic exports")
	cancel()
	<-done

	families, err := promReg.Gather()
	require.NoError(t, err)
	problems, err := promlint.NewWithMetricFamilies(families).Lint()
	require.NoError(t, err)
	assert.Empty(t, problems)
}
