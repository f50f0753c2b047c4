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

func serviceRegisterCommand() *cobra.Command {
	var flags struct {
		chain       string
		serviceType string
		status      string
		level       uint8
	}
	cmd := &cobra.Command{
		Use:   "register <service>",
		Short: "Register a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serviceType, err := registry.ParseServiceType(flags.serviceType)
			if err != nil {
				return err
			}
			status, err := registry.ParseServiceStatus(flags.status)
			if err != nil {
				return err
			}
			reg := registry.ServiceRegistration{
				Id:      registry.ServiceId(args[0]),
				ChainId: registry.ChainId(flags.chain),
				Type:    serviceType,
				Level:   registry.MembershipLevel(flags.level),
				Status:  status,
			}
			return withRegistry(cmd, func(r *registry.Registry) error {
				return r.Services.Register(cmd.Context(), originFromFlags(), reg)
			})
		},
	}
	cmd.Flags().StringVar(&flags.chain, "chain", "", "chain the service runs on")
	cmd.Flags().StringVar(&flags.serviceType, "type", "rpc", "service type: none, rpc or boot")
	cmd.Flags().StringVar(&flags.status, "status", "active", "initial status")
	cmd.Flags().Uint8Var(&flags.level, "level", 0, "required membership level")
	return cmd
}

func serviceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage services",
	}
	curated := func(use, short string, op func(*registry.ServiceStore, context.Context, registry.Origin, registry.ServiceId) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <service>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(cmd, func(reg *registry.Registry) error {
					return op(
						reg.Services,
						cmd.Context(),
						originFromFlags(),
						registry.ServiceId(args[0]),
					)
				})
			},
		}
	}
	cmd.AddCommand(
		serviceRegisterCommand(),
		curated("lock", "Lock a service", (*registry.ServiceStore).Lock),
		curated("unlock", "Unlock a service", (*registry.ServiceStore).Unlock),
		curated("delete", "Delete a service", (*registry.ServiceStore).Delete),
		curated("undelete", "Undelete a service", (*registry.ServiceStore).Undelete),
		&cobra.Command{
			Use:   "level <service> <level>",
			Short: "Set the membership level a service requires",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				level, err := parseLevel(args[1])
				if err != nil {
					return err
				}
				return withRegistry(cmd, func(reg *registry.Registry) error {
					return reg.Services.UpdateLevel(
						cmd.Context(),
						originFromFlags(),
						registry.ServiceId(args[0]),
						level,
					)
				})
			},
		},
		&cobra.Command{
			Use:   "get <service>",
			Short: "Show a service",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(cmd, func(reg *registry.Registry) error {
					svc, err := reg.Services.Get(registry.ServiceId(args[0]))
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), svc)
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List all services",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(cmd, func(reg *registry.Registry) error {
					services, err := reg.Services.List()
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), services)
				})
			},
		},
	)
	return cmd
}
