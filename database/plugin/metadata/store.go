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

package metadata

import (
	"fmt"

	"github.com/blinklabs-io/roster/database/models"
	"github.com/blinklabs-io/roster/database/plugin"
	_ "github.com/blinklabs-io/roster/database/plugin/metadata/mysql"
	_ "github.com/blinklabs-io/roster/database/plugin/metadata/postgres"
	_ "github.com/blinklabs-io/roster/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/roster/database/types"
	"gorm.io/gorm"
)

type MetadataStore interface {
	plugin.Plugin

	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Journal
	AddNotification(*models.Notification, types.Txn) error
	RestoreNotification(*models.Notification, types.Txn) error
	GetNotifications(
		models.NotificationFilter,
		types.Txn,
	) ([]models.Notification, error)
	AddIndexRebuild(*models.IndexRebuild, types.Txn) error
	RestoreIndexRebuild(*models.IndexRebuild, types.Txn) error
	GetLastIndexRebuild(types.Txn) (*models.IndexRebuild, error)
}

// New returns the started metadata plugin selected by name
func New(pluginName string, cfg plugin.Config) (MetadataStore, error) {
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName, cfg)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		_ = p.Stop()
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
