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

package models

import (
	"time"
)

// IndexRebuild records one full rebuild of the alert index
type IndexRebuild struct {
	CreatedAt  time.Time `gorm:"index"`
	// RunId identifies the rebuild so that a replayed record is not stored
	// twice
	RunId      string `gorm:"size:36;uniqueIndex;not null"`
	Epoch      uint64
	Alerts     int
	Entries    int
	DurationMs int64
	ID         uint `gorm:"primarykey"`
}

func (IndexRebuild) TableName() string {
	return "index_rebuild"
}
