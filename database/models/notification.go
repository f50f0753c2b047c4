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

	"github.com/google/uuid"
)

// Notification is the journal row written alongside every successful
// registry mutation
type Notification struct {
	CreatedAt time.Time `gorm:"index"`
	EventId   string    `gorm:"size:36;uniqueIndex;not null"`
	EventType string    `gorm:"size:64;index;not null"`
	// Subject is the primary entity the event concerns, such as a member or
	// service id
	Subject string `gorm:"size:255;index"`
	Payload []byte
	ID      uint `gorm:"primarykey"`
}

func (Notification) TableName() string {
	return "notification"
}

// NewNotification builds a journal row with a fresh event id
func NewNotification(
	eventType string,
	subject string,
	payload []byte,
	createdAt time.Time,
) *Notification {
	return &Notification{
		EventId:   uuid.NewString(),
		EventType: eventType,
		Subject:   subject,
		Payload:   payload,
		CreatedAt: createdAt,
	}
}

// NotificationFilter narrows a journal query. Empty fields match everything
type NotificationFilter struct {
	EventType string
	Subject   string
	// Limit caps the number of rows returned, newest first. Zero means no limit
	Limit int
}
