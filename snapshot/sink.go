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
	"io"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
)

var (
	ErrNotFound      = errors.New("snapshot not found")
	ErrInvalidName   = errors.New("invalid snapshot name")
	ErrUnknownScheme = errors.New("unknown snapshot url scheme")
)

// Sink stores named snapshot documents
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
	// Get returns ErrNotFound when no document has the given name
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns the stored names in ascending order
	List(ctx context.Context) ([]string, error)
	Close() error
}

// SinkFunc opens a sink for a parsed snapshot URL
type SinkFunc func(ctx context.Context, u *url.URL, logger *slog.Logger) (Sink, error)

type SinkEntry struct {
	NewFunc     SinkFunc
	Scheme      string
	Description string
}

var (
	sinkEntries   = map[string]SinkEntry{}
	sinkEntriesMu sync.RWMutex
)

// RegisterSink makes a sink available under its URL scheme
func RegisterSink(entry SinkEntry) {
	sinkEntriesMu.Lock()
	defer sinkEntriesMu.Unlock()
	sinkEntries[entry.Scheme] = entry
}

// Sinks returns the registered sinks sorted by scheme
func Sinks() []SinkEntry {
	sinkEntriesMu.RLock()
	defer sinkEntriesMu.RUnlock()
	ret := make([]SinkEntry, 0, len(sinkEntries))
	for _, entry := range sinkEntries {
		ret = append(ret, entry)
	}
	slices.SortFunc(ret, func(a, b SinkEntry) int {
		return strings.Compare(a.Scheme, b.Scheme)
	})
	return ret
}

func init() {
	RegisterSink(SinkEntry{
		Scheme:      "file",
		Description: "local directory",
		NewFunc:     newFileSink,
	})
	RegisterSink(SinkEntry{
		Scheme:      "s3",
		Description: "AWS S3 bucket (s3://bucket/prefix?region=&endpoint=)",
		NewFunc:     newS3Sink,
	})
	RegisterSink(SinkEntry{
		Scheme:      "gs",
		Description: "Google Cloud Storage bucket (gs://bucket/prefix?credentials=)",
		NewFunc:     newGCSSink,
	})
}

// Open returns the sink for rawURL. A value without a scheme is a local
// directory
func Open(ctx context.Context, rawURL string, logger *slog.Logger) (Sink, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if rawURL == "" {
		return nil, errors.New("snapshot url not set")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "file://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot url: %w", err)
	}
	sinkEntriesMu.RLock()
	entry, ok := sinkEntries[u.Scheme]
	sinkEntriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, u.Scheme)
	}
	return entry.NewFunc(ctx, u, logger.With("component", "snapshot"))
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// objectPrefix turns a URL path into a key prefix ending in a slash
func objectPrefix(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return ""
	}
	return path + "/"
}
