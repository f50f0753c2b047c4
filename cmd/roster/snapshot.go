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
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/roster/internal/config"
	"github.com/blinklabs-io/roster/registry"
	"github.com/blinklabs-io/roster/snapshot"
	"github.com/spf13/cobra"
)

var errNoSnapshotUrl = errors.New("no snapshot url configured, use --url or snapshot.url")

type snapshotFlags struct {
	url     string
	encrypt bool
}

// withExporter opens the registry and the snapshot sink for one command
func withExporter(
	cmd *cobra.Command,
	flags *snapshotFlags,
	fn func(*snapshot.Exporter) error,
) error {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return errNoConfig
	}
	url := cfg.Snapshot.Url
	if flags.url != "" {
		url = flags.url
	}
	if url == "" {
		return errNoSnapshotUrl
	}
	encrypt := cfg.Snapshot.Encrypt || flags.encrypt
	return withRegistry(cmd, func(reg *registry.Registry) error {
		logger := slog.Default()
		sink, err := snapshot.Open(cmd.Context(), url, logger)
		if err != nil {
			return err
		}
		exporter := snapshot.NewExporter(
			reg,
			sink,
			snapshot.WithLogger(logger),
			snapshot.WithEncryption(encrypt),
		)
		return errors.Join(fn(exporter), sink.Close())
	})
}

func snapshotCommand() *cobra.Command {
	flags := &snapshotFlags{}
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export and import registry snapshots",
	}
	cmd.PersistentFlags().
		StringVar(&flags.url, "url", "", "snapshot location, overrides snapshot.url")
	cmd.AddCommand(
		func() *cobra.Command {
			c := &cobra.Command{
				Use:   "export",
				Short: "Write a snapshot of the registry",
				Args:  cobra.NoArgs,
				RunE: func(cmd *cobra.Command, args []string) error {
					return withExporter(cmd, flags, func(e *snapshot.Exporter) error {
						name, err := e.Export(cmd.Context())
						if err != nil {
							return err
						}
						fmt.Fprintln(cmd.OutOrStdout(), name)
						return nil
					})
				},
			}
			c.Flags().BoolVar(&flags.encrypt, "encrypt", false, "encrypt the snapshot with sops")
			return c
		}(),
		&cobra.Command{
			Use:   "import [name]",
			Short: "Replace the registry with a snapshot, the newest when no name is given",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var name string
				if len(args) > 0 {
					name = args[0]
				}
				return withExporter(cmd, flags, func(e *snapshot.Exporter) error {
					imported, err := e.Import(cmd.Context(), originFromFlags(), name)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), imported)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show [name]",
			Short: "Print a snapshot, the newest when no name is given",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var name string
				if len(args) > 0 {
					name = args[0]
				}
				return withExporter(cmd, flags, func(e *snapshot.Exporter) error {
					state, err := e.Load(cmd.Context(), name)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), state)
				})
			},
		},
	)
	return cmd
}
