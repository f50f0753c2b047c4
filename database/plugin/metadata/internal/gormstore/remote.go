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
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/blinklabs-io/roster/database/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Remote is a metadata store on a database server. The DSN is checked when
// the plugin is built and the connection is opened by Start
type Remote struct {
	*Store

	dialect      func(dsn string) gorm.Dialector
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	name         string
	dsn          string
}

// NewRemote prepares a server-backed store named name. dialect turns the DSN
// from cfg into a gorm dialector
func NewRemote(
	name string,
	dialect func(dsn string) gorm.Dialector,
	cfg plugin.Config,
) (*Remote, error) {
	r := &Remote{
		dialect:      dialect,
		promRegistry: cfg.PromRegistry,
		logger:       cfg.Logger,
		name:         name,
		dsn:          strings.TrimSpace(cfg.Dsn),
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if r.dsn == "" {
		return nil, fmt.Errorf("%s metadata store requires a DSN", name)
	}
	return r, nil
}

// Dsn returns the trimmed connection string
func (r *Remote) Dsn() string {
	return r.dsn
}

// Start opens the connection and migrates the schema. Starting twice is a
// no-op
func (r *Remote) Start() error {
	if r.Store != nil {
		return nil
	}
	db, err := gorm.Open(
		r.dialect(r.dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return fmt.Errorf("open %s metadata store: %w", r.name, err)
	}
	store, err := New(db, r.logger, r.promRegistry, r.name)
	if err != nil {
		if sqlDb, dbErr := db.DB(); dbErr == nil {
			_ = sqlDb.Close()
		}
		return err
	}
	r.Store = store
	return nil
}

// Stop implements the plugin.Plugin interface
func (r *Remote) Stop() error {
	return r.Close()
}

// Close closes the connection pool if Start opened one
func (r *Remote) Close() error {
	if r.Store == nil {
		return nil
	}
	return r.Store.Close()
}
