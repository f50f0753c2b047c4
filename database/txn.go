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
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/roster/database/types"
)

// Txn pairs a blob transaction, which carries the registry collections, with
// a metadata transaction, which carries the journal. Journal rows are also
// written to the blob half as pending markers. The blob half commits first,
// so a committed change always has its journal rows somewhere durable, and
// the markers are dropped once the metadata half lands
type Txn struct {
	db          *Database
	blobTxn     types.Txn
	metadataTxn types.Txn
	pending     [][]byte
	lock        sync.Mutex
	finished    bool
	readWrite   bool
}

func NewTxn(db *Database, readWrite bool) *Txn {
	t := &Txn{db: db, readWrite: readWrite}
	if bs := db.Blob(); bs != nil {
		t.blobTxn = bs.NewTransaction(readWrite)
	}
	if ms := db.Metadata(); ms != nil {
		t.metadataTxn = ms.Transaction()
	}
	return t
}

// NewBlobOnlyTxn opens a transaction without a metadata half. Journal rows
// cannot be added to it
func NewBlobOnlyTxn(db *Database, readWrite bool) *Txn {
	t := &Txn{db: db, readWrite: readWrite}
	if bs := db.Blob(); bs != nil {
		t.blobTxn = bs.NewTransaction(readWrite)
	}
	return t
}

func (t *Txn) DB() *Database {
	return t.db
}

// Metadata returns the underlying metadata transaction handle
func (t *Txn) Metadata() types.Txn {
	return t.metadataTxn
}

// Blob returns the blob transaction handle
func (t *Txn) Blob() types.Txn {
	return t.blobTxn
}

// Do runs fn in the transaction. It commits if fn returns nil and rolls back
// otherwise
func (t *Txn) Do(fn func(*Txn) error) error {
	if err := fn(t); err != nil {
		if err2 := t.Rollback(); err2 != nil {
			return fmt.Errorf(
				"rollback failed: %w: original error: %w",
				err2,
				err,
			)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// addPending stores rec as a pending journal marker in the blob half
func (t *Txn) addPending(rec *pendingRecord) error {
	if t.blobTxn == nil {
		return nil
	}
	data, err := cbor.Encode(rec)
	if err != nil {
		return err
	}
	key := types.PendingJournalKey(rec.Id)
	if err := t.Set(key, data); err != nil {
		return err
	}
	t.pending = append(t.pending, key)
	return nil
}

// Commit commits the blob half and then the metadata half. If the metadata
// half fails after the blob half landed, the change stands: its journal rows
// are restored from the pending markers, right away if the metadata store
// takes them and otherwise when the database is next opened
func (t *Txn) Commit() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.finished {
		return nil
	}
	// Fail fast if neither store is available for a read-write transaction
	if t.readWrite && t.blobTxn == nil && t.metadataTxn == nil {
		t.finished = true
		return types.ErrNoStoreAvailable
	}
	// No need to commit for read-only, but we do want to free up resources
	if !t.readWrite {
		return t.rollback()
	}
	t.db.commitMu.Lock()
	defer t.db.commitMu.Unlock()
	t.finished = true
	var commitTimestamp int64
	if t.blobTxn != nil && t.metadataTxn != nil {
		commitTimestamp = time.Now().UnixMilli()
		if err := t.db.updateCommitTimestamp(t, commitTimestamp); err != nil {
			return errors.Join(
				fmt.Errorf("failed to update commit timestamp: %w", err),
				t.blobTxn.Rollback(),
				t.metadataTxn.Rollback(),
			)
		}
	}
	if t.blobTxn != nil {
		if err := t.blobTxn.Commit(); err != nil {
			if t.metadataTxn != nil {
				_ = t.metadataTxn.Rollback()
			}
			return fmt.Errorf("blob commit failed: %w", err)
		}
	}
	if t.metadataTxn == nil {
		return nil
	}
	if err := t.metadataTxn.Commit(); err != nil {
		_ = t.metadataTxn.Rollback()
		if t.blobTxn == nil {
			return fmt.Errorf("metadata commit failed: %w", err)
		}
		t.db.logger.Warn(
			"metadata commit failed after blob commit, restoring journal rows",
			"component", "database",
			"rows", len(t.pending),
			"error", err,
		)
		if err := t.db.restoreJournal(commitTimestamp); err != nil {
			t.db.logger.Error(
				"journal rows left pending until the database is reopened",
				"component", "database",
				"error", err,
			)
		}
		return nil
	}
	if len(t.pending) > 0 {
		if err := t.db.clearPending(t.pending); err != nil {
			// Leftover markers are restored idempotently on open
			t.db.logger.Warn(
				"failed to clear pending journal markers",
				"component", "database",
				"error", err,
			)
		}
	}
	return nil
}

func (t *Txn) Rollback() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.rollback()
}

func (t *Txn) rollback() error {
	if t.finished {
		return nil
	}
	var errs []error
	if t.blobTxn != nil {
		if err := t.blobTxn.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("blob rollback: %w", err))
		}
	}
	if t.metadataTxn != nil {
		if err := t.metadataTxn.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("metadata rollback: %w", err))
		}
	}
	t.finished = true
	return errors.Join(errs...)
}

// Release frees the transaction. It rolls back anything not committed and
// only logs a failure, so it is safe to defer
func (t *Txn) Release() {
	if err := t.Rollback(); err != nil {
		t.db.logger.Debug(
			"transaction release failed",
			"error", err,
			"read_write", t.readWrite,
		)
	}
}
