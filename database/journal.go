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
	"slices"
	"time"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/roster/database/models"
	"github.com/blinklabs-io/roster/database/types"
	"github.com/google/uuid"
)

// pendingBatchSize bounds the markers cleared per blob transaction
const pendingBatchSize = 1000

const (
	pendingNotification uint8 = iota
	pendingIndexRebuild
)

// pendingRecord is a journal row held in the blob store until the metadata
// store has it
type pendingRecord struct {
	cbor.StructAsArray
	Kind       uint8
	Id         string
	CreatedAt  int64
	EventType  string
	Subject    string
	Payload    []byte
	Epoch      uint64
	Alerts     uint64
	Entries    uint64
	DurationMs int64
}

// AddNotification appends a journal row to txn. The blob half of txn also
// records it as pending, so the row survives a failed metadata commit
func (d *Database) AddNotification(
	notification *models.Notification,
	txn *Txn,
) error {
	if txn == nil || txn.Metadata() == nil {
		return types.ErrNilTxn
	}
	if err := txn.addPending(&pendingRecord{
		Kind:      pendingNotification,
		Id:        notification.EventId,
		CreatedAt: notification.CreatedAt.UnixMicro(),
		EventType: notification.EventType,
		Subject:   notification.Subject,
		Payload:   notification.Payload,
	}); err != nil {
		return err
	}
	return d.metadata.AddNotification(notification, txn.Metadata())
}

// GetNotifications returns journal rows matching filter, newest first
func (d *Database) GetNotifications(
	filter models.NotificationFilter,
) ([]models.Notification, error) {
	return d.metadata.GetNotifications(filter, nil)
}

// AddIndexRebuild records an alert index rebuild in txn, pending in the blob
// half like a journal row
func (d *Database) AddIndexRebuild(
	rebuild *models.IndexRebuild,
	txn *Txn,
) error {
	if txn == nil || txn.Metadata() == nil {
		return types.ErrNilTxn
	}
	if rebuild.RunId == "" {
		rebuild.RunId = uuid.NewString()
	}
	if err := txn.addPending(&pendingRecord{
		Kind:       pendingIndexRebuild,
		Id:         rebuild.RunId,
		CreatedAt:  time.Now().UnixMicro(),
		Epoch:      rebuild.Epoch,
		Alerts:     uint64(rebuild.Alerts),  // #nosec G115
		Entries:    uint64(rebuild.Entries), // #nosec G115
		DurationMs: rebuild.DurationMs,
	}); err != nil {
		return err
	}
	return d.metadata.AddIndexRebuild(rebuild, txn.Metadata())
}

// GetLastIndexRebuild returns the most recent rebuild record, or nil
func (d *Database) GetLastIndexRebuild() (*models.IndexRebuild, error) {
	return d.metadata.GetLastIndexRebuild(nil)
}

// PendingJournalRows counts journal rows not yet confirmed by the metadata
// store
func (d *Database) PendingJournalRows() (int, error) {
	var count int
	err := d.View(func(txn *Txn) error {
		keys, err := txn.Keys([]byte(types.PendingJournalKeyPrefix))
		count = len(keys)
		return err
	})
	return count, err
}

// restoreJournal copies every pending row into the metadata store, moves
// the metadata commit timestamp up to timestamp and then drops the markers.
// Rows already present are left alone, so it can run any number of times.
// A zero timestamp leaves the metadata timestamp unchanged
func (d *Database) restoreJournal(timestamp int64) error {
	var keys [][]byte
	var records []pendingRecord
	err := d.View(func(txn *Txn) error {
		return txn.Iterate(
			[]byte(types.PendingJournalKeyPrefix),
			func(key, val []byte) error {
				var rec pendingRecord
				if _, err := cbor.Decode(val, &rec); err != nil {
					return fmt.Errorf("decode pending journal row %q: %w", key, err)
				}
				keys = append(keys, key)
				records = append(records, rec)
				return nil
			},
		)
	})
	if err != nil || len(keys) == 0 {
		return err
	}
	mtxn := d.metadata.Transaction()
	for _, rec := range records {
		createdAt := time.UnixMicro(rec.CreatedAt)
		switch rec.Kind {
		case pendingNotification:
			err = d.metadata.RestoreNotification(
				&models.Notification{
					EventId:   rec.Id,
					EventType: rec.EventType,
					Subject:   rec.Subject,
					Payload:   rec.Payload,
					CreatedAt: createdAt,
				},
				mtxn,
			)
		case pendingIndexRebuild:
			err = d.metadata.RestoreIndexRebuild(
				&models.IndexRebuild{
					RunId:      rec.Id,
					Epoch:      rec.Epoch,
					Alerts:     int(rec.Alerts),  // #nosec G115
					Entries:    int(rec.Entries), // #nosec G115
					DurationMs: rec.DurationMs,
					CreatedAt:  createdAt,
				},
				mtxn,
			)
		default:
			err = fmt.Errorf("pending journal row %s has unknown kind %d", rec.Id, rec.Kind)
		}
		if err != nil {
			return errors.Join(err, mtxn.Rollback())
		}
	}
	if timestamp > 0 {
		if err := d.metadata.SetCommitTimestamp(timestamp, mtxn); err != nil {
			return errors.Join(err, mtxn.Rollback())
		}
	}
	if err := mtxn.Commit(); err != nil {
		return errors.Join(err, mtxn.Rollback())
	}
	d.logger.Info(
		"restored pending journal rows",
		"component", "database",
		"rows", len(records),
	)
	return d.clearPending(keys)
}

// clearPending drops markers whose rows the metadata store has confirmed
func (d *Database) clearPending(keys [][]byte) error {
	for chunk := range slices.Chunk(keys, pendingBatchSize) {
		txn := d.Blob().NewTransaction(true)
		for _, key := range chunk {
			if err := d.Blob().Delete(txn, key); err != nil {
				return errors.Join(err, txn.Rollback())
			}
		}
		if err := txn.Commit(); err != nil {
			return err
		}
	}
	return nil
}
