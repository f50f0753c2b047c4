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

package database

import (
	"errors"
	"testing"
	"time"

	"github.com/blinklabs-io/roster/database/models"
	"github.com/blinklabs-io/roster/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenCommit stands in for a metadata store that drops its connection
// during commit
type brokenCommit struct {
	types.Txn
}

func (b brokenCommit) Commit() error {
	_ = b.Txn.Rollback()
	return errors.New("connection reset")
}

func journalIds(t *testing.T, db *Database) []string {
	t.Helper()
	rows, err := db.GetNotifications(models.NotificationFilter{})
	require.NoError(t, err)
	ret := make([]string, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, row.EventId)
	}
	return ret
}

func requireNoPending(t *testing.T, db *Database) {
	t.Helper()
	count, err := db.PendingJournalRows()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCommitClearsPendingMarkers(t *testing.T) {
	db, err := New(&Config{})
	require.NoError(t, err)
	defer db.Close()
	n := models.NewNotification("test.set", "alice", nil, time.Now())
	require.NoError(t, db.Update(func(txn *Txn) error {
		if err := txn.Set([]byte("mbalice"), []byte("one")); err != nil {
			return err
		}
		if err := db.AddNotification(n, txn); err != nil {
			return err
		}
		// The marker is written alongside the registry change
		ok, err := txn.Has(types.PendingJournalKey(n.EventId))
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	}))
	assert.Equal(t, []string{n.EventId}, journalIds(t, db))
	requireNoPending(t, db)
}

func TestMetadataCommitFailureKeepsJournal(t *testing.T) {
	dir := t.TempDir()
	db, err := New(&Config{DataDir: dir})
	require.NoError(t, err)

	n := models.NewNotification("test.set", "bob", []byte(`{"x":1}`), time.Now())
	txn := db.Transaction(true)
	require.NoError(t, txn.Set([]byte("mbbob"), []byte("two")))
	require.NoError(t, db.AddNotification(n, txn))
	require.NoError(t, db.AddIndexRebuild(&models.IndexRebuild{Epoch: 9, Entries: 1}, txn))
	txn.metadataTxn = brokenCommit{Txn: txn.metadataTxn}
	// The blob half landed, so the change stands
	require.NoError(t, txn.Commit())

	require.NoError(t, db.View(func(txn *Txn) error {
		val, err := txn.Get([]byte("mbbob"))
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), val)
		return nil
	}))
	assert.Equal(t, []string{n.EventId}, journalIds(t, db))
	rows, err := db.GetNotifications(models.NotificationFilter{})
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"x":1}`), rows[0].Payload)
	last, err := db.GetLastIndexRebuild()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, uint64(9), last.Epoch)
	requireNoPending(t, db)
	require.NoError(t, db.Close())

	// Both halves agree on the commit timestamp after the restore
	db, err = New(&Config{DataDir: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{n.EventId}, journalIds(t, db))
	require.NoError(t, db.Close())
}

func TestPendingJournalRestoredOnOpen(t *testing.T) {
	dir := t.TempDir()
	db, err := New(&Config{DataDir: dir})
	require.NoError(t, err)
	first := models.NewNotification("test.set", "alice", nil, time.Now())
	require.NoError(t, db.Update(func(txn *Txn) error {
		return db.AddNotification(first, txn)
	}))

	// Stop between the two commits
	n := models.NewNotification("test.set", "carol", nil, time.Now())
	txn := db.Transaction(true)
	require.NoError(t, txn.Set([]byte("mbcarol"), []byte("three")))
	require.NoError(t, db.AddNotification(n, txn))
	require.NoError(t, db.updateCommitTimestamp(txn, time.Now().UnixMilli()+1))
	require.NoError(t, txn.blobTxn.Commit())
	require.NoError(t, txn.metadataTxn.Rollback())
	txn.finished = true
	assert.Equal(t, []string{first.EventId}, journalIds(t, db))
	require.NoError(t, db.Close())

	db, err = New(&Config{DataDir: dir})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, []string{n.EventId, first.EventId}, journalIds(t, db))
	requireNoPending(t, db)

	// Restoring twice stores nothing new
	require.NoError(t, db.restoreJournal(0))
	assert.Len(t, journalIds(t, db), 2)
}
