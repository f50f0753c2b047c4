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

package badger_test

import (
	"fmt"
	"testing"

	"github.com/blinklabs-io/roster/database/plugin/blob/badger"
	"github.com/blinklabs-io/roster/database/types"
	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *badger.BlobStoreBadger {
	t.Helper()
	store, err := badger.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestSetGetDelete(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("mbalice"), []byte("one")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	val, err := store.Get(txn, []byte("mbalice"))
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), val)
	_, err = store.Get(txn, []byte("mbbob"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	// Writes are rejected in a read-only transaction
	require.ErrorIs(
		t,
		store.Set(txn, []byte("mbbob"), []byte("two")),
		types.ErrReadOnlyTxn,
	)
	require.NoError(t, txn.Rollback())

	txn = store.NewTransaction(true)
	require.NoError(t, store.Delete(txn, []byte("mbalice")))
	require.NoError(t, txn.Commit())
	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err = store.Get(txn, []byte("mbalice"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("svrpc"), []byte("x")))
	require.NoError(t, txn.Rollback())
	// A finished transaction can no longer be used
	_, err := store.Get(txn, []byte("svrpc"))
	require.Error(t, err)

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err = store.Get(txn, []byte("svrpc"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestIteratorPrefix(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	for _, key := range []string{"rcb", "rca", "rmz", "mbq"} {
		require.NoError(t, store.Set(txn, []byte(key), []byte(key)))
	}
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	iter := store.NewIterator(
		txn,
		types.BlobIteratorOptions{Prefix: []byte("rc")},
	)
	defer iter.Close()
	var keys []string
	for iter.Rewind(); iter.ValidForPrefix([]byte("rc")); iter.Next() {
		item := iter.Item()
		keys = append(keys, string(item.Key()))
		val, err := item.ValueCopy(nil)
		require.NoError(t, err)
		assert.Equal(t, item.Key(), val)
	}
	require.NoError(t, iter.Err())
	assert.Equal(t, []string{"rca", "rcb"}, keys)
}

func TestIteratorInvalidTxn(t *testing.T) {
	store := newTestStore(t)
	iter := store.NewIterator(nil, types.BlobIteratorOptions{})
	assert.False(t, iter.Valid())
	require.ErrorIs(t, iter.Err(), types.ErrNilTxn)
}

func TestCommitTimestamp(t *testing.T) {
	store := newTestStore(t)
	ts, err := store.GetCommitTimestamp()
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	assert.Zero(t, ts)
	txn := store.NewTransaction(true)
	require.NoError(t, store.SetCommitTimestamp(1700000000000, txn))
	require.NoError(t, txn.Commit())
	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), ts)

	txn = store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte(types.CommitTimestampKey), []byte{1, 2, 3}))
	require.NoError(t, txn.Commit())
	_, err = store.GetCommitTimestamp()
	require.Error(t, err)
}

func TestMemTableSizeCapsTransaction(t *testing.T) {
	store, err := badger.New(badger.WithMemTableSize(1 << 20))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	txn := store.NewTransaction(true)
	defer txn.Rollback() //nolint:errcheck
	for i := range 5000 {
		err = store.Set(txn, fmt.Appendf(nil, "al%08d", i), []byte{1})
		if err != nil {
			break
		}
	}
	require.ErrorIs(t, err, dgbadger.ErrTxnTooBig)
}

func TestPersistentStoreMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	store, err := badger.New(
		badger.WithDataDir(t.TempDir()),
		badger.WithPromRegistry(registry),
	)
	require.NoError(t, err)
	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "roster_blob_badger_lsm_size_bytes")
	assert.Contains(t, names, "roster_blob_badger_vlog_size_bytes")
	require.NoError(t, store.Close())
}
