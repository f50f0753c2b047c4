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
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/blinklabs-io/roster"
	"github.com/blinklabs-io/roster/internal/config"
	"github.com/spf13/cobra"
)

func serveRun(cmd *cobra.Command, cfg *config.Config) error {
	logger := commonRun(cfg)
	opts, err := rosterOptions(cfg, logger, true)
	if err != nil {
		return err
	}
	r, err := roster.New(roster.NewConfig(opts...))
	if err != nil {
		return err
	}

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		cmd.Context(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	if err := r.Start(signalCtx); err != nil {
		logger.Error("startup failed", "component", programName, "error", err)
		return errors.Join(err, r.Stop())
	}
	logger.Info(
		"roster started",
		"component", programName,
		"database", cfg.DatabasePath,
		"metrics", r.MetricsAddr(),
	)
	runErr := r.Run(signalCtx)
	if signalCtx.Err() != nil {
		logger.Info("signal received, initiating graceful shutdown", "component", programName)
	}
	if err := r.Stop(); err != nil {
		logger.Error("shutdown errors occurred", "component", programName, "error", err)
		return errors.Join(runErr, err)
	}
	logger.Info("shutdown complete", "component", programName)
	return runErr
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the registry with its epoch clock, snapshots and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errNoConfig
			}
			if err := serveRun(cmd, cfg); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
}
