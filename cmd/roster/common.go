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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"

	"github.com/blinklabs-io/roster"
	"github.com/blinklabs-io/roster/internal/config"
	"github.com/blinklabs-io/roster/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var errNoConfig = errors.New("no config found in context")

// rosterOptions maps the loaded config onto instance options. Background
// services are only configured when serve is set
func rosterOptions(
	cfg *config.Config,
	logger *slog.Logger,
	serve bool,
) ([]roster.ConfigOptionFunc, error) {
	genesis, length, err := cfg.Epoch()
	if err != nil {
		return nil, err
	}
	undelete, err := registry.ParseUndeleteStatus(cfg.UndeleteStatus)
	if err != nil {
		return nil, err
	}
	opts := []roster.ConfigOptionFunc{
		roster.WithLogger(logger),
		roster.WithDatabasePath(cfg.DatabasePath),
		roster.WithBlobPlugin(cfg.BlobPlugin),
		roster.WithMetadataPlugin(cfg.MetadataPlugin),
		roster.WithMetadataDsn(cfg.MetadataDsn),
		roster.WithEpoch(genesis, length),
		roster.WithUndeleteStatus(undelete),
	}
	if !serve {
		return opts, nil
	}
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return nil, err
	}
	interval, err := cfg.SnapshotInterval()
	if err != nil {
		return nil, err
	}
	opts = append(
		opts,
		roster.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		roster.WithShutdownTimeout(shutdownTimeout),
		roster.WithSnapshot(cfg.Snapshot.Url, cfg.Snapshot.Encrypt, interval),
		roster.WithTracing(cfg.Tracing),
		roster.WithTracingStdout(cfg.TracingStdout),
		roster.WithEventForwarding(cfg.Kafka.Brokers, cfg.Kafka.Topic),
	)
	if cfg.MetricsPort > 0 {
		opts = append(
			opts,
			roster.WithMetricsAddress(
				net.JoinHostPort(cfg.BindAddr, strconv.FormatUint(uint64(cfg.MetricsPort), 10)),
			),
		)
	}
	return opts, nil
}

// withRegistry opens the instance for a one-shot command, runs fn and closes
// the instance again
func withRegistry(
	cmd *cobra.Command,
	fn func(*registry.Registry) error,
) error {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return errNoConfig
	}
	logger := commonRun(cfg)
	opts, err := rosterOptions(cfg, logger, false)
	if err != nil {
		return err
	}
	r, err := roster.New(roster.NewConfig(opts...))
	if err != nil {
		return err
	}
	if err := r.Open(cmd.Context()); err != nil {
		return err
	}
	err = fn(r.Registry())
	return errors.Join(err, r.Stop())
}

// originFromFlags maps --as and --root onto the caller's origin. Neither
// flag means an unsigned call
func originFromFlags() registry.Origin {
	switch {
	case globalFlags.root:
		return registry.Root()
	case globalFlags.as != "":
		return registry.Signed(registry.AccountId(globalFlags.as))
	default:
		return registry.None()
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseLevel(s string) (registry.MembershipLevel, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid level %q: %w", s, err)
	}
	return registry.MembershipLevel(v), nil
}

func parseAlertId(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid alert id %q: %w", s, err)
	}
	return v, nil
}
