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
	"errors"

	"github.com/blinklabs-io/roster/registry"
	"github.com/spf13/cobra"
)

var errIndexInconsistent = errors.New("alert index is inconsistent")

func indexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect and rebuild the alert index",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "rebuild",
			Short: "Rebuild the alert index from the stored alerts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(cmd, func(reg *registry.Registry) error {
					res, err := reg.Alerts.RebuildIndex(cmd.Context())
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"alerts":   res.Alerts,
						"entries":  res.Entries,
						"removed":  res.Removed,
						"duration": res.Duration.String(),
					})
				})
			},
		},
		&cobra.Command{
			Use:   "verify",
			Short: "Compare the alert index against the stored alerts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(cmd, func(reg *registry.Registry) error {
					report, err := reg.Alerts.VerifyIndex()
					if err != nil {
						return err
					}
					if err := printJSON(cmd.OutOrStdout(), report); err != nil {
						return err
					}
					if !report.Consistent() {
						return errIndexInconsistent
					}
					return nil
				})
			},
		},
	)
	return cmd
}
