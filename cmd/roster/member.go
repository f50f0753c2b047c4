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
	"context"

	"github.com/blinklabs-io/roster/registry"
	"github.com/spf13/cobra"
)

func memberCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage members",
	}
	self := func(use, short string, op func(*registry.MemberStore, context.Context, registry.Origin) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(cmd, func(reg *registry.Registry) error {
					return op(reg.Members, cmd.Context(), originFromFlags())
				})
			},
		}
	}
	curated := func(use, short string, op func(*registry.MemberStore, context.Context, registry.Origin, registry.AccountId) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <account>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(cmd, func(reg *registry.Registry) error {
					return op(
						reg.Members,
						cmd.Context(),
						originFromFlags(),
						registry.AccountId(args[0]),
					)
				})
			},
		}
	}
	cmd.AddCommand(
		self("register", "Register the signing account as a member", (*registry.MemberStore).Register),
		self("chill", "Chill the signing member", (*registry.MemberStore).Chill),
		self("unchill", "Reactivate the signing member", (*registry.MemberStore).Unchill),
		curated("lock", "Lock a member", (*registry.MemberStore).Lock),
		curated("unlock", "Unlock a member", (*registry.MemberStore).Unlock),
		curated("delete", "Delete a member", (*registry.MemberStore).Delete),
		curated("undelete", "Undelete a member", (*registry.MemberStore).Undelete),
		&cobra.Command{
			Use:   "level <account> <level>",
			Short: "Set the membership level of a member",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				level, err := parseLevel(args[1])
				if err != nil {
					return err
				}
				return withRegistry(cmd, func(reg *registry.Registry) error {
					return reg.Members.UpdateLevel(
						cmd.Context(),
						originFromFlags(),
						registry.AccountId(args[0]),
						level,
					)
				})
			},
		},
		&cobra.Command{
			Use:   "get <account>",
			Short: "Show a member",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(cmd, func(reg *registry.Registry) error {
					m, err := reg.Members.Get(registry.AccountId(args[0]))
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), m)
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List all members",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(cmd, func(reg *registry.Registry) error {
					members, err := reg.Members.List()
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), members)
				})
			},
		},
	)
	return cmd
}
