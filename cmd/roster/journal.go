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


package main

import (
	"encoding/json"
	"time"

	"github.com/blinklabs-io/roster/database/models"
	"github.com/blinklabs-io/roster/registry"
	"github.com/spf13/cobra"
)

type journalEntry struct {
	CreatedAt time.Time       `json:"createdAt"`
	EventId   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	Subject   string          `json:"subject,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func journalCommand() *cobra.Command {
	var filter models.NotificationFilter
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recorded registry events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd, func(reg *registry.Registry) error {
				rows, err := reg.Database().GetNotifications(filter)
				if err != nil {
					return err
				}
				entries := make([]journalEntry, 0, len(rows))
				for _, row := range rows {
					entry := journalEntry{
						CreatedAt: row.CreatedAt,
						EventId:   row.EventId,
						EventType: row.EventType,
						Subject:   row.Subject,
					}
					if json.Valid(row.Payload) {
						entry.Payload = row.Payload
					}
					entries = append(entries, entry)
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
	cmd.Flags().StringVar(&filter.EventType, "type", "", "only show this event type")
	cmd.Flags().StringVar(&filter.Subject, "subject", "", "only show events about this subject")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 50, "maximum number of events, 0 for all")
	return cmd
}
