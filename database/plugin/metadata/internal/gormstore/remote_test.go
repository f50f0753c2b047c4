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

package gormstore_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/blinklabs-io/roster/database/models"
	"github.com/blinklabs-io/roster/database/plugin"
	"github.com/blinklabs-io/roster/database/plugin/metadata/internal/gormstore"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryDsn stands in for a server DSN so that Start can run without one
func memoryDsn() string {
	return fmt.Sprintf("file:remote-%s?mode=memory&cache=shared", uuid.NewString())
}

func TestRemoteRequiresDsn(t *testing.T) {
	_, err := gormstore.NewRemote("mysql", sqlite.Open, plugin.Config{Dsn: "  "})
	require.ErrorContains(t, err, "mysql metadata store requires a DSN")
}

func TestRemoteStartAndRestore(t *testing.T) {
	dsn := memoryDsn()
	r, err := gormstore.NewRemote(
		"sqlite",
		sqlite.Open,
		plugin.Config{Dsn: " " + dsn + " ", PromRegistry: prometheus.NewRegistry()},
	)
	require.NoError(t, err)
	assert.Equal(t, dsn, r.Dsn())
	// Nothing is opened until Start, and closing an unopened store is fine
	assert.Nil(t, r.Store)
	require.NoError(t, r.Close())

	require.NoError(t, r.Start())
	require.NoError(t, r.Start())
	t.Cleanup(func() {
		require.NoError(t, r.Stop())
	})

	n := models.NewNotification("registry.member.registered", "alice", []byte(`{}`), time.Now())
	txn := r.Transaction()
	require.NoError(t, r.AddNotification(n, txn))
	require.NoError(t, txn.Commit())

	// Restoring a row that already landed leaves a single copy
	replay := *n
	replay.ID = 0
	txn = r.Transaction()
	require.NoError(t, r.RestoreNotification(&replay, txn))
	require.NoError(t, r.RestoreNotification(
		models.NewNotification("registry.member.status", "alice", nil, time.Now()),
		txn,
	))
	require.NoError(t, txn.Commit())
	rows, err := r.GetNotifications(models.NotificationFilter{}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "registry.member.status", rows[0].EventType)

	rebuild := &models.IndexRebuild{RunId: uuid.NewString(), Epoch: 4}
	for range 2 {
		txn = r.Transaction()
		require.NoError(t, r.RestoreIndexRebuild(rebuild, txn))
		require.NoError(t, txn.Commit())
		rebuild = &models.IndexRebuild{RunId: rebuild.RunId, Epoch: 4}
	}
	var count int64
	require.NoError(t, r.DB().Model(&models.IndexRebuild{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
