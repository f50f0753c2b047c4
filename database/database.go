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
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/roster/database/plugin"
	"github.com/blinklabs-io/roster/database/plugin/blob"
	"github.com/blinklabs-io/roster/database/plugin/metadata"
	"github.com/blinklabs-io/roster/database/types"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
)

// Config represents the configuration for a database instance
type Config struct {
	PromRegistry   prometheus.Registerer
	Logger         *slog.Logger
	BlobPlugin     string
	MetadataPlugin string
	// MetadataDsn is the connection string for network-backed metadata plugins
	MetadataDsn string
	// DataDir is the on-disk location. An empty value keeps everything in memory
	DataDir string
	// BlobMemTableSize sizes the blob store memtable in bytes, which also caps
	// how much one transaction can write. Zero keeps the plugin default
	BlobMemTableSize int64
}

// Database pairs the blob store, which holds the registry collections, with
// the metadata store, which holds the notification journal
type Database struct {
	config   *Config
	logger   *slog.Logger
	blob     blob.BlobStore
	metadata metadata.MetadataStore
	// commitMu orders coordinated commits so that journal restores see a
	// settled commit timestamp
	commitMu sync.Mutex
}

// Blob returns the underling blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.config.DataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// Transaction starts a new database transaction and returns a handle to it
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Update runs fn in a read-write transaction spanning both stores. The
// transaction commits if fn returns nil and rolls back otherwise
func (d *Database) Update(fn func(*Txn) error) error {
	return d.Transaction(true).Do(fn)
}

// View runs fn in a read-only snapshot of the blob store
func (d *Database) View(fn func(*Txn) error) error {
	txn := NewBlobOnlyTxn(d, false)
	defer txn.Release()
	return fn(txn)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		err = errors.Join(err, d.metadata.Close())
	}
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	return err
}

func (d *Database) init() error {
	// Journal rows left pending by an interrupted commit belong to blob
	// writes that landed, so the metadata side catches up to the blob side
	blobTimestamp, err := d.Blob().GetCommitTimestamp()
	if err != nil && !errors.Is(err, types.ErrBlobKeyNotFound) {
		return fmt.Errorf("failed to get blob timestamp from plugin: %w", err)
	}
	if err := d.restoreJournal(blobTimestamp); err != nil {
		return fmt.Errorf("restore pending journal rows: %w", err)
	}
	return d.checkCommitTimestamp()
}

// New creates a new database instance with optional persistence using the provided data directory
func New(config *Config) (*Database, error) {
	if config == nil {
		config = &Config{}
	}
	tmpConfig := *config
	if tmpConfig.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		tmpConfig.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if tmpConfig.BlobPlugin == "" {
		tmpConfig.BlobPlugin = DefaultBlobPlugin
	}
	if tmpConfig.MetadataPlugin == "" {
		tmpConfig.MetadataPlugin = DefaultMetadataPlugin
	}
	metadataDb, err := metadata.New(
		tmpConfig.MetadataPlugin,
		plugin.Config{
			Logger:       tmpConfig.Logger,
			PromRegistry: tmpConfig.PromRegistry,
			DataDir:      tmpConfig.DataDir,
			Dsn:          tmpConfig.MetadataDsn,
		},
	)
	if err != nil {
		return nil, err
	}
	blobDb, err := blob.New(
		tmpConfig.BlobPlugin,
		plugin.Config{
			Logger:       tmpConfig.Logger,
			PromRegistry: tmpConfig.PromRegistry,
			DataDir:      tmpConfig.DataDir,
			MemTableSize: tmpConfig.BlobMemTableSize,
		},
	)
	if err != nil {
		_ = metadataDb.Close()
		return nil, err
	}
	db := &Database{
		config:   &tmpConfig,
		logger:   tmpConfig.Logger,
		blob:     blobDb,
		metadata: metadataDb,
	}
	if err := db.init(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	return db, nil
}
