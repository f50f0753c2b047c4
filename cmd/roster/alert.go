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
	"github.com/blinklabs-io/roster/registry"
	"github.com/spf13/cobra"
)

func alertRegisterCommand() *cobra.Command {
	var flags struct {
		service   string
		domain    string
		alertType string
	}
	cmd := &cobra.Command{
		Use:   "register <alert-id> <member>",
		Short: "Raise an alert against a member's service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			alertId, err := parseAlertId(args[0])
			if err != nil {
				return err
			}
			reg := registry.AlertRegistration{
				AlertId: alertId,
				Member:  registry.AccountId(args[1]),
				Service: registry.ServiceId(flags.service),
				Domain:  registry.DomainId(flags.domain),
				Type:    registry.AlertType(flags.alertType),
			}
			return withRegistry(cmd, func(r *registry.Registry) error {
				return r.Alerts.Register(cmd.Context(), originFromFlags(), reg)
			})
		},
	}
	cmd.Flags().StringVar(&flags.service, "service", "", "service the alert concerns")
	cmd.Flags().StringVar(&flags.domain, "domain", "", "domain the alert concerns")
	cmd.Flags().StringVar(&flags.alertType, "type", "", "alert type")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func alertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Manage monitoring alerts",
	}
	cmd.AddCommand(
		alertRegisterCommand(),
		&cobra.Command{
			Use:   "clear <alert-id>",
			Short: "Clear an alert raised by the signing monitor",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				alertId, err := parseAlertId(args[0])
				if err != nil {
					return err
				}
				return withRegistry(cmd, func(reg *registry.Registry) error {
					return reg.Alerts.Clear(cmd.Context(), originFromFlags(), alertId)
				})
			},
		},
		&cobra.Command{
			Use:   "clear-as-curator <monitor> <alert-id>",
			Short: "Clear any monitor's alert as a curator",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				alertId, err := parseAlertId(args[1])
				if err != nil {
					return err
				}
				return withRegistry(cmd, func(reg *registry.Registry) error {
					return reg.Alerts.ClearAsCurator(
						cmd.Context(),
						originFromFlags(),
						registry.AccountId(args[0]),
						alertId,
					)
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List all alerts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(cmd, func(reg *registry.Registry) error {
					alerts, err := reg.Alerts.List()
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), alerts)
				})
			},
		},
	)
	return cmd
}
