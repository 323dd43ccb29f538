// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of the S3 client the backend needs.
type s3API interface {
	GetObject(ctx context.Context, in *s3v2.GetObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3v2.PutObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error)
}

// s3Backend stores entries as <prefix>/currency-converter-db/<store>/<key>.json
// objects and the schema version in <prefix>/currency-converter-db/VERSION.
type s3Backend struct {
	client s3API
	bucket string
	prefix string
}

func newS3(client s3API, bucket, prefix string) *s3Backend {
	return &s3Backend{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (b *s3Backend) objectKey(parts ...string) string {
	return path.Join(append([]string{b.prefix, DBName}, parts...)...)
}

func (b *s3Backend) get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := b.client.GetObject(ctx, &s3v2.GetObjectInput{
		Bucket: awsv2.String(b.bucket),
		Key:    awsv2.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("s3 get s3://%s/%s: %w", b.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("s3 read s3://%s/%s: %w", b.bucket, key, err)
	}
	return data, true, nil
}

func (b *s3Backend) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3v2.PutObjectInput{
		Bucket:      awsv2.String(b.bucket),
		Key:         awsv2.String(key),
		Body:        bytes.NewReader(data),
		ContentType: awsv2.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put s3://%s/%s: %w", b.bucket, key, err)
	}
	return nil
}

func (b *s3Backend) Get(ctx context.Context, storeName, key string) ([]byte, bool, error) {
	return b.get(ctx, b.objectKey(storeName, key+".json"))
}

func (b *s3Backend) Put(ctx context.Context, storeName, key string, data []byte) error {
	return b.put(ctx, b.objectKey(storeName, key+".json"), data, "application/json")
}

func (b *s3Backend) Version(ctx context.Context) (int, error) {
	data, found, err := b.get(ctx, b.objectKey(versionKey))
	if err != nil || !found {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("corrupt version object: %w", err)
	}
	return v, nil
}

func (b *s3Backend) Upgrade(ctx context.Context, _ int) error {
	return b.put(ctx, b.objectKey(versionKey), []byte(strconv.Itoa(DBVersion)), "text/plain")
}

func (b *s3Backend) Close() error { return nil }
