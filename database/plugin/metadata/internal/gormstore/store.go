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

// Package gormstore holds the metadata store logic shared by every gorm
// dialect. The dialect plugins only open the connection
package gormstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/roster/database/models"
	"github.com/blinklabs-io/roster/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Store implements the metadata store on top of an open gorm connection
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New configures tracing on db and migrates the metadata schema
func New(
	db *gorm.DB,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
	metricsName string,
) (*Store, error) {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Store{
		db:     db,
		logger: logger,
	}
	// Configure tracing for GORM
	if err := s.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	if promRegistry != nil {
		if err := s.registerMetrics(promRegistry, metricsName); err != nil {
			s.logger.Warn(
				"failed to register metadata store metrics",
				"component", "database",
				"error", err,
			)
		}
	}
	// Create table schemas
	if err := s.db.AutoMigrate(&CommitTimestamp{}); err != nil {
		return nil, err
	}
	for _, model := range models.MigrateModels {
		s.logger.Debug(
			fmt.Sprintf("creating table: %T", model),
			"component", "database",
		)
		if err := s.db.AutoMigrate(model); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) registerMetrics(
	promRegistry prometheus.Registerer,
	metricsName string,
) error {
	sqlDb, err := s.db.DB()
	if err != nil {
		return err
	}
	return promRegistry.Register(
		collectors.NewDBStatsCollector(sqlDb, "roster_metadata_"+metricsName),
	)
}

// DB returns the underlying GORM database handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	sqlDb, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDb.Close()
}

// Transaction starts a new metadata transaction
func (s *Store) Transaction() types.Txn {
	tx := s.db.Begin()
	if tx.Error != nil {
		return &gormTxn{store: s, beginErr: tx.Error}
	}
	return &gormTxn{store: s, tx: tx}
}

// resolveDB returns the gorm handle for txn, or the base handle when txn is nil
func (s *Store) resolveDB(txn types.Txn) (*gorm.DB, error) {
	if txn == nil {
		return s.db, nil
	}
	gTxn, ok := txn.(*gormTxn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if gTxn.store != s {
		return nil, errors.New("transaction from different store")
	}
	if gTxn.beginErr != nil {
		return nil, gTxn.beginErr
	}
	if gTxn.finished {
		return nil, errors.New("transaction already finished")
	}
	return gTxn.tx, nil
}

// gormTxn wraps a gorm transaction and implements types.Txn
type gormTxn struct {
	store    *Store
	tx       *gorm.DB
	beginErr error
	finished bool
}

func (t *gormTxn) Commit() error {
	if t.beginErr != nil {
		return t.beginErr
	}
	if t.finished {
		return nil
	}
	if result := t.tx.Commit(); result.Error != nil {
		return result.Error
	}
	t.finished = true
	return nil
}

func (t *gormTxn) Rollback() error {
	if t.beginErr != nil || t.finished {
		return nil
	}
	t.finished = true
	if result := t.tx.Rollback(); result.Error != nil {
		return result.Error
	}
	return nil
}
