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

package gormstore

import (
	"errors"

	"github.com/blinklabs-io/roster/database/models"
	"github.com/blinklabs-io/roster/database/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AddNotification appends a journal row inside txn
func (s *Store) AddNotification(
	notification *models.Notification,
	txn types.Txn,
) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(notification).Error
}

// RestoreNotification inserts a journal row unless a row with the same event
// id is already present
func (s *Store) RestoreNotification(
	notification *models.Notification,
	txn types.Txn,
) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(notification).Error
}

// GetNotifications returns journal rows matching filter, newest first
func (s *Store) GetNotifications(
	filter models.NotificationFilter,
	txn types.Txn,
) ([]models.Notification, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	query := db.Model(&models.Notification{})
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.Subject != "" {
		query = query.Where("subject = ?", filter.Subject)
	}
	query = query.Order("id DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var ret []models.Notification
	if result := query.Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// AddIndexRebuild records a completed alert index rebuild inside txn
func (s *Store) AddIndexRebuild(
	rebuild *models.IndexRebuild,
	txn types.Txn,
) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if rebuild.RunId == "" {
		rebuild.RunId = uuid.NewString()
	}
	return db.Create(rebuild).Error
}

// RestoreIndexRebuild inserts a rebuild record unless a record with the same
// run id is already present
func (s *Store) RestoreIndexRebuild(
	rebuild *models.IndexRebuild,
	txn types.Txn,
) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}},
		DoNothing: true,
	}).Create(rebuild).Error
}

// GetLastIndexRebuild returns the most recent rebuild record, or nil if the
// index has never been rebuilt
func (s *Store) GetLastIndexRebuild(
	txn types.Txn,
) (*models.IndexRebuild, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret models.IndexRebuild
	result := db.Order("id DESC").First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &ret, nil
}
