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
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/blinklabs-io/roster/event"
	"github.com/blinklabs-io/roster/internal/test/testutil"
	"github.com/blinklabs-io/roster/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestConfigValidation(t *testing.T) {
	_, err := New(NewConfig(WithEpoch(time.Time{}, 0)))
	require.ErrorContains(t, err, "epoch length")
	_, err = New(NewConfig(WithSnapshot("", false, time.Hour)))
	require.ErrorContains(t, err, "snapshot url")
	_, err = New(NewConfig(WithEventForwarding([]string{"localhost:9092"}, "")))
	require.ErrorContains(t, err, "kafka topic")

	cfg := NewConfig(WithUndeleteStatus(registry.UndeleteToActive))
	assert.Equal(t, registry.UndeleteToActive, cfg.undeleteStatus)
	assert.Equal(t, DefaultEpochLength, cfg.epochLength)
	assert.Equal(t, "badger", cfg.blobPlugin)
}

func TestOpenWithoutBackgroundServices(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	r, err := New(NewConfig())
	require.NoError(t, err)
	require.NoError(t, r.Open(t.Context()))
	require.NotNil(t, r.Registry())
	require.NoError(t, r.Registry().Roles.AssignCurator(t.Context(), registry.None(), "curator"))
	assert.Nil(t, r.MetricsAddr())
	assert.Nil(t, r.Snapshots())
	last, err := r.Database().GetLastIndexRebuild()
	require.NoError(t, err)
	assert.Nil(t, last)
	require.NoError(t, r.Stop())
	// Stop is idempotent
	require.NoError(t, r.Stop())
}

func TestStartRebuildsOnEpochTransition(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	promReg := prometheus.NewRegistry()
	genesis := time.Now().Add(-90 * time.Minute)
	r, err := New(NewConfig(
		WithEpoch(genesis, time.Hour),
		WithPrometheusRegistry(promReg),
		WithMetricsAddress("127.0.0.1:0"),
		WithSnapshot(filepath.Join(t.TempDir(), "snapshots"), false, 0),
	))
	require.NoError(t, err)
	require.NoError(t, r.Start(t.Context()))

	// Start rebuilds for the current epoch when none was recorded
	last, err := r.Database().GetLastIndexRebuild()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, uint64(1), last.Epoch)

	r.EventBus().Publish(
		event.EpochTransitionEventType,
		event.NewEvent(
			event.EpochTransitionEventType,
			event.EpochTransitionEvent{PreviousEpoch: 1, NewEpoch: 2},
		),
	)
	testutil.WaitForCondition(t, func() bool {
		last, err := r.Database().GetLastIndexRebuild()
		return err == nil && last != nil && last.Epoch == 2
	}, 5*time.Second, "rebuild for epoch 2")

	require.NotNil(t, r.Snapshots())
	name, err := r.Snapshots().Export(t.Context())
	require.NoError(t, err)
	assert.NotEmpty(t, name)

	require.NotNil(t, r.MetricsAddr())
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + r.MetricsAddr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "roster_registry_index_rebuilds_total 2")
	assert.Contains(t, string(body), "roster_snapshot_exports_total")

	require.NoError(t, r.Stop())
}

func TestRunReturnsOnStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	r, err := New(NewConfig())
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run(t.Context())
	}()
	testutil.WaitForCondition(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.started
	}, 5*time.Second, "roster started")
	require.NoError(t, r.Stop())
	require.NoError(t, testutil.RequireReceive(t, errCh, 5*time.Second, "run result"))
}
