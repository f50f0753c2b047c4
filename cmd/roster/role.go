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

type roleOps struct {
	assign func(*registry.RoleStore, context.Context, registry.Origin, registry.AccountId) error
	remove func(*registry.RoleStore, context.Context, registry.Origin, registry.AccountId) error
	list   func(*registry.RoleStore) ([]registry.AccountId, error)
}

var roles = map[string]roleOps{
	"curator": {
		assign: (*registry.RoleStore).AssignCurator,
		remove: (*registry.RoleStore).RemoveCurator,
		list:   (*registry.RoleStore).Curators,
	},
	"monitor": {
		assign: (*registry.RoleStore).AssignMonitor,
		remove: (*registry.RoleStore).RemoveMonitor,
		list:   (*registry.RoleStore).Monitors,
	},
}

// roleCommand builds the curator and monitor commands, which differ only in
// the role set they touch
func roleCommand(role string) *cobra.Command {
	ops := roles[role]
	cmd := &cobra.Command{
		Use:   role,
		Short: "Manage the " + role + " set",
	}
	mutate := func(use string, op func(*registry.RoleStore, context.Context, registry.Origin, registry.AccountId) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <account>",
			Short: use + " the " + role + " role",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(cmd, func(reg *registry.Registry) error {
					return op(
						reg.Roles,
						cmd.Context(),
						originFromFlags(),
						registry.AccountId(args[0]),
					)
				})
			},
		}
	}
	cmd.AddCommand(
		mutate("assign", ops.assign),
		mutate("remove", ops.remove),
		&cobra.Command{
			Use:   "list",
			Short: "List every " + role,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(cmd, func(reg *registry.Registry) error {
					ids, err := ops.list(reg.Roles)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), ids)
				})
			},
		},
	)
	return cmd
}
