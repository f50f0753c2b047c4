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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Sink keeps snapshots as objects under a prefix of an S3 bucket
type S3Sink struct {
	logger *slog.Logger
	client *s3.Client
	bucket string
	prefix string
}

// newS3Sink accepts s3://bucket[/prefix]. The region and endpoint query
// parameters override the shared AWS config; a custom endpoint switches to
// path-style addressing for S3-compatible servers
func newS3Sink(ctx context.Context, u *url.URL, logger *slog.Logger) (Sink, error) {
	if u.Host == "" {
		return nil, errors.New("s3 sink: bucket not set (expected s3://<bucket>[/prefix])")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 sink: load default AWS config: %w", err)
	}
	query := u.Query()
	if region := query.Get("region"); region != "" {
		awsCfg.Region = region
	}
	endpoint := query.Get("endpoint")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Sink{
		logger: logger,
		client: client,
		bucket: u.Host,
		prefix: objectPrefix(u.Path),
	}, nil
}

func (s *S3Sink) Put(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(data)),
	})
	if err != nil {
		s.logger.Error("s3 put failed", "key", s.prefix+name, "error", err)
		return err
	}
	s.logger.Debug("s3 put ok", "key", s.prefix+name, "bytes", len(data))
	return nil
}

func (s *S3Sink) Get(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Sink) List(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	var ret []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if validateName(name) == nil {
				ret = append(ret, name)
			}
		}
	}
	slices.Sort(ret)
	return ret, nil
}

// Close is a no-op; the S3 client holds no connections of its own
func (s *S3Sink) Close() error {
	return nil
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
		return true
	}
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &noSuchKey)
}
