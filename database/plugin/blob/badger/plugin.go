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

package badger

import (
	"github.com/blinklabs-io/roster/database/plugin"
)

// Defaults sized for registry records, which are small and few compared to
// the block data badger is usually tuned for
const (
	DefaultBlockCacheSize   int64 = 67108864 // 64MB
	DefaultIndexCacheSize   int64 = 33554432 // 32MB
	DefaultValueLogFileSize int64 = 67108864 // 64MB
	DefaultMemTableSize     int64 = 16777216 // 16MB
	DefaultValueThreshold   int64 = 1024
)

// Register plugin
func init() {
	plugin.Register(
		plugin.PluginEntry{
			Type:        plugin.PluginTypeBlob,
			Name:        "badger",
			Description: "BadgerDB local key-value store",
			NewFunc:     NewFromConfig,
		},
	)
}

// NewFromConfig creates a badger blob store from the shared plugin config
func NewFromConfig(cfg plugin.Config) (plugin.Plugin, error) {
	opts := []BlobStoreBadgerOptionFunc{
		WithDataDir(cfg.DataDir),
		WithLogger(cfg.Logger),
		WithPromRegistry(cfg.PromRegistry),
		WithMemTableSize(cfg.MemTableSize),
	}
	p, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}
