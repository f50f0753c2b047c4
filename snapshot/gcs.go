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
	"os"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const gcsDialTimeout = 30 * time.Second

// GCSSink keeps snapshots as objects under a prefix of a GCS bucket
type GCSSink struct {
	logger *slog.Logger
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

// newGCSSink accepts gs://bucket[/prefix]. The credentials query parameter
// names a service account file; otherwise default credentials apply
func newGCSSink(ctx context.Context, u *url.URL, logger *slog.Logger) (Sink, error) {
	if u.Host == "" {
		return nil, errors.New("gcs sink: bucket not set (expected gs://<bucket>[/prefix])")
	}
	credentialsFile := u.Query().Get("credentials")
	if err := validateCredentials(credentialsFile); err != nil {
		return nil, err
	}
	clientOpts := []option.ClientOption{storage.WithDisabledClientMetrics()}
	if credentialsFile != "" {
		clientOpts = append(
			clientOpts,
			option.WithCredentialsFile(credentialsFile),
		)
	}
	dialCtx, cancel := context.WithTimeout(ctx, gcsDialTimeout)
	defer cancel()
	client, err := storage.NewGRPCClient(dialCtx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gcs sink: failed in creating storage client: %w", err)
	}
	return &GCSSink{
		logger: logger,
		client: client,
		bucket: client.Bucket(u.Host),
		prefix: objectPrefix(u.Path),
	}, nil
}

func validateCredentials(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("GCS credentials file does not exist: %s", path)
		}
		return fmt.Errorf("GCS credentials file: %w", err)
	}
	return nil
}

func (s *GCSSink) Put(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	w := s.bucket.Object(s.prefix + name).NewWriter(ctx)
	w.ContentType = contentType(data)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		s.logger.Error("gcs write failed", "object", s.prefix+name, "error", err)
		return err
	}
	if err := w.Close(); err != nil {
		s.logger.Error("gcs close failed", "object", s.prefix+name, "error", err)
		return err
	}
	s.logger.Debug("gcs put ok", "object", s.prefix+name, "bytes", len(data))
	return nil
}

func (s *GCSSink) Get(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	r, err := s.bucket.Object(s.prefix + name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *GCSSink) List(ctx context.Context) ([]string, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: s.prefix})
	var ret []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		name := strings.TrimPrefix(attrs.Name, s.prefix)
		if validateName(name) == nil {
			ret = append(ret, name)
		}
	}
	slices.Sort(ret)
	return ret, nil
}

func (s *GCSSink) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
