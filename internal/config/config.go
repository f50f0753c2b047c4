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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/roster/database"
	"github.com/blinklabs-io/roster/registry"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "roster.config"

const (
	EnvPrefix = "roster"

	DefaultShutdownTimeout = "30s"
	DefaultEpochLength     = "24h"
	DefaultEpochGenesis    = "2025-01-01T00:00:00Z"
	DefaultMetricsPort     = 12798
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type SnapshotConfig struct {
	// Url is a file path or a file://, s3:// or gs:// URL
	Url     string `yaml:"url"`
	Encrypt bool   `yaml:"encrypt"`
	// Interval between exports in serve mode. Empty or zero disables them
	Interval string `yaml:"interval"`
}

// KafkaConfig enables forwarding of registry events to a Kafka topic
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Config struct {
	DatabasePath    string         `yaml:"databasePath"    split_words:"true"`
	BlobPlugin      string         `yaml:"blobPlugin"      split_words:"true"`
	MetadataPlugin  string         `yaml:"metadataPlugin"  split_words:"true"`
	MetadataDsn     string         `yaml:"metadataDsn"     split_words:"true"`
	BindAddr        string         `yaml:"bindAddr"        split_words:"true"`
	EpochLength     string         `yaml:"epochLength"     split_words:"true"`
	EpochGenesis    string         `yaml:"epochGenesis"    split_words:"true"`
	UndeleteStatus  string         `yaml:"undeleteStatus"  split_words:"true"`
	ShutdownTimeout string         `yaml:"shutdownTimeout" split_words:"true"`
	Snapshot        SnapshotConfig `yaml:"snapshot"`
	Kafka           KafkaConfig    `yaml:"kafka"`
	MetricsPort     uint           `yaml:"metricsPort"     split_words:"true"`
	Tracing         bool           `yaml:"tracing"`
	TracingStdout   bool           `yaml:"tracingStdout"   split_words:"true"`
	Debug           bool           `yaml:"debug"`
}

// DefaultConfig returns the settings used when neither a file nor the
// environment says otherwise
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    ".roster",
		BlobPlugin:      database.DefaultBlobPlugin,
		MetadataPlugin:  database.DefaultMetadataPlugin,
		BindAddr:        "0.0.0.0",
		MetricsPort:     DefaultMetricsPort,
		EpochLength:     DefaultEpochLength,
		EpochGenesis:    DefaultEpochGenesis,
		UndeleteStatus:  registry.UndeleteToDeleted.String(),
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// searchPaths lists the config files tried, in order, when none is given
func searchPaths() []string {
	var ret []string
	if homeDir, err := os.UserHomeDir(); err == nil {
		ret = append(ret, filepath.Join(homeDir, ".roster", "roster.yaml"))
	}
	return append(ret, "/etc/roster/roster.yaml")
}

// LoadConfig layers the YAML file and then ROSTER_* environment variables
// over the defaults. An empty configFile selects the first file found in
// ~/.roster/roster.yaml or /etc/roster/roster.yaml
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		for _, path := range searchPaths() {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every value that is parsed later
func (c *Config) Validate() error {
	var errs []error
	if _, _, err := c.Epoch(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SnapshotInterval(); err != nil {
		errs = append(errs, err)
	}
	if _, err := registry.ParseUndeleteStatus(c.UndeleteStatus); err != nil {
		errs = append(errs, fmt.Errorf("undeleteStatus: %w", err))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.brokers requires kafka.topic"))
	}
	if c.Snapshot.Encrypt && c.Snapshot.Url == "" {
		errs = append(errs, errors.New("snapshot.encrypt requires snapshot.url"))
	}
	return errors.Join(errs...)
}

// Epoch returns the parsed genesis time and epoch length
func (c *Config) Epoch() (time.Time, time.Duration, error) {
	genesis, err := time.Parse(time.RFC3339, c.EpochGenesis)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("epochGenesis: %w", err)
	}
	length, err := time.ParseDuration(c.EpochLength)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("epochLength: %w", err)
	}
	if length <= 0 {
		return time.Time{}, 0, fmt.Errorf("epochLength: must be positive, got %s", length)
	}
	return genesis, length, nil
}

func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("shutdownTimeout: %w", err)
	}
	return d, nil
}

// SnapshotInterval returns zero when periodic export is disabled
func (c *Config) SnapshotInterval() (time.Duration, error) {
	if c.Snapshot.Interval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Snapshot.Interval)
	if err != nil {
		return 0, fmt.Errorf("snapshot.interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("snapshot.interval: must not be negative, got %s", d)
	}
	if d > 0 && c.Snapshot.Url == "" {
		return 0, errors.New("snapshot.interval requires snapshot.url")
	}
	return d, nil
}
