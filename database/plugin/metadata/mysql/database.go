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

package mysql

import (
	"github.com/blinklabs-io/roster/database/plugin"
	"github.com/blinklabs-io/roster/database/plugin/metadata/internal/gormstore"
	"gorm.io/driver/mysql"
)

// MetadataStoreMysql keeps the notification journal and index rebuild history
// on a Mysql server
type MetadataStoreMysql struct {
	*gormstore.Remote
}

// New checks the DSN in cfg. The connection is opened by Start
func New(cfg plugin.Config) (*MetadataStoreMysql, error) {
	remote, err := gormstore.NewRemote("mysql", mysql.Open, cfg)
	if err != nil {
		return nil, err
	}
	return &MetadataStoreMysql{Remote: remote}, nil
}
