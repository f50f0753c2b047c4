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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	genesis, length, err := cfg.Epoch()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), genesis)
	assert.Equal(t, 24*time.Hour, length)
	interval, err := cfg.SnapshotInterval()
	require.NoError(t, err)
	assert.Zero(t, interval)
}

func TestLoadYamlThenEnv(t *testing.T) {
	path := writeConfig(t, `
databasePath: /var/lib/roster
metadataPlugin: postgres
metadataDsn: "host=db user=roster"
metricsPort: 9100
epochLength: 1h
undeleteStatus: locked
tracing: true
snapshot:
  url: s3://backups/roster
  encrypt: true
  interval: 6h
`)
	t.Setenv("ROSTER_METRICS_PORT", "9200")
	t.Setenv("ROSTER_SNAPSHOT_INTERVAL", "12h")
	t.Setenv("ROSTER_TRACING_STDOUT", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	expected := DefaultConfig()
	expected.DatabasePath = "/var/lib/roster"
	expected.MetadataPlugin = "postgres"
	expected.MetadataDsn = "host=db user=roster"
	expected.MetricsPort = 9200
	expected.EpochLength = "1h"
	expected.UndeleteStatus = "locked"
	expected.Tracing = true
	expected.TracingStdout = true
	expected.Snapshot = SnapshotConfig{
		Url:      "s3://backups/roster",
		Encrypt:  true,
		Interval: "12h",
	}
	assert.Equal(t, expected, cfg)
}

func TestLoadSearchesHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".roster"), 0o750))
	require.NoError(t, os.WriteFile(
		filepath.Join(home, ".roster", "roster.yaml"),
		[]byte("bindAddr: 127.0.0.1\n"),
		0o600,
	))
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.BindAddr)
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"bad yaml", "metricsPort: [", "error parsing config file"},
		{"bad genesis", "epochGenesis: yesterday", "epochGenesis"},
		{"zero epoch", "epochLength: 0s", "epochLength"},
		{"bad timeout", "shutdownTimeout: soon", "shutdownTimeout"},
		{"bad undelete", "undeleteStatus: chilled", "undeleteStatus"},
		{"interval without url", "snapshot:\n  interval: 1h", "snapshot.interval"},
		{"encrypt without url", "snapshot:\n  encrypt: true", "snapshot.encrypt"},
		{"brokers without topic", "kafka:\n  brokers: [localhost:9092]", "kafka.topic"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			require.ErrorContains(t, err, tc.errMsg)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "error reading config file")
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := DefaultConfig()
	ctx := WithContext(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
}
