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

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
)

// FileSink keeps snapshots as files in a directory
type FileSink struct {
	logger *slog.Logger
	dir    string
}

func newFileSink(_ context.Context, u *url.URL, logger *slog.Logger) (Sink, error) {
	// file://relative/dir parses the first element as the host
	dir := u.Host + u.Path
	if dir == "" {
		return nil, errors.New("file sink: directory not set")
	}
	return NewFileSink(dir, logger), nil
}

func NewFileSink(dir string, logger *slog.Logger) *FileSink {
	return &FileSink{dir: dir, logger: logger}
}

// Put writes to a temporary file and renames it into place, so readers
// never see a partial snapshot
func (s *FileSink) Put(_ context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file sink: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file sink: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	s.logger.Debug(
		"wrote snapshot",
		"path", filepath.Join(s.dir, name),
		"bytes", len(data),
	)
	return nil
}

func (s *FileSink) Get(_ context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("file sink: %w", err)
	}
	return data, nil
}

func (s *FileSink) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("file sink: %w", err)
	}
	var ret []string
	for _, entry := range entries {
		// Skip directories and in-flight temporary files
		if !entry.Type().IsRegular() || entry.Name()[0] == '.' {
			continue
		}
		ret = append(ret, entry.Name())
	}
	slices.Sort(ret)
	return ret, nil
}

func (s *FileSink) Close() error {
	return nil
}
