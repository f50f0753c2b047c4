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
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/blinklabs-io/roster/database/plugin"
	"github.com/blinklabs-io/roster/internal/config"
	"github.com/blinklabs-io/roster/internal/version"
	"github.com/blinklabs-io/roster/snapshot"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

const (
	programName = "roster"
)

func slogPrintf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...),
		"component", programName,
	)
}

var (
	globalFlags = struct {
		debug bool
		as    string
		root  bool
	}{}
	configFile string
)

// commonRun configures the default logger. Logs go to stderr so command
// output on stdout stays machine readable
func commonRun(cfg *config.Config) *slog.Logger {
	return newLogger(os.Stderr, globalFlags.debug || (cfg != nil && cfg.Debug))
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	logLevel := slog.LevelInfo
	addSource := false
	if debug {
		logLevel = slog.LevelDebug
		addSource = true
	}
	logger := slog.New(
		slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: addSource,
			Level:     logLevel,
		}),
	)
	slog.SetDefault(logger)
	// Configure max processes with our logger wrapper, toss undo func
	_, err := maxprocs.Set(maxprocs.Logger(slogPrintf))
	if err != nil {
		// If we hit this, something really wrong happened
		slog.Error(err.Error())
		os.Exit(1)
	}
	logger.Debug(
		"version: "+version.GetVersionString(),
		"component", programName,
	)
	return logger
}

func listAll() string {
	var buf strings.Builder
	buf.WriteString("Blob Storage Plugins:\n")
	for _, p := range plugin.GetPlugins(plugin.PluginTypeBlob) {
		fmt.Fprintf(&buf, "  %s: %s\n", p.Name, p.Description)
	}
	buf.WriteString("\nMetadata Storage Plugins:\n")
	for _, p := range plugin.GetPlugins(plugin.PluginTypeMetadata) {
		fmt.Fprintf(&buf, "  %s: %s\n", p.Name, p.Description)
	}
	buf.WriteString("\nSnapshot Sinks:\n")
	for _, s := range snapshot.Sinks() {
		fmt.Fprintf(&buf, "  %s: %s\n", s.Scheme, s.Description)
	}
	return buf.String()
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available storage plugins and snapshot sinks",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), listAll())
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(
				cmd.OutOrStdout(),
				"%s %s\n",
				programName,
				version.GetVersionString(),
			)
		},
	}
}

func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Role-gated registry of members, services and monitoring alerts",
		SilenceUsage:  true,
	}

	// Global flags
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().
		StringP("blob", "b", config.DefaultConfig().BlobPlugin, "blob store plugin to use")
	rootCmd.PersistentFlags().
		StringP("metadata", "m", config.DefaultConfig().MetadataPlugin, "metadata store plugin to use")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.as, "as", "", "account that signs the operation")
	rootCmd.PersistentFlags().
		BoolVar(&globalFlags.root, "root", false, "run the operation with the root origin")
	rootCmd.MarkFlagsMutuallyExclusive("as", "root")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		// Override config with command line flags
		flags := cmd.Root().PersistentFlags()
		if flags.Changed("blob") {
			cfg.BlobPlugin, _ = flags.GetString("blob")
		}
		if flags.Changed("metadata") {
			cfg.MetadataPlugin, _ = flags.GetString("metadata")
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	// Subcommands
	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(memberCommand())
	rootCmd.AddCommand(serviceCommand())
	rootCmd.AddCommand(roleCommand("curator"))
	rootCmd.AddCommand(roleCommand("monitor"))
	rootCmd.AddCommand(alertCommand())
	rootCmd.AddCommand(indexCommand())
	rootCmd.AddCommand(snapshotCommand())
	rootCmd.AddCommand(journalCommand())
	rootCmd.AddCommand(listCommand())
	rootCmd.AddCommand(versionCommand())
	return rootCmd
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		// NOTE: we purposely don't display the error, since cobra will have already displayed it
		os.Exit(1)
	}
}
