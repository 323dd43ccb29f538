// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/apex/log"

	"github.com/staranto/cconv/internal/aws"
	"github.com/staranto/cconv/internal/cacheutil"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendS3     = "s3"
	BackendNone   = "none"
)

// Backends lists the accepted values for Config.Backend.
var Backends = []string{BackendFile, BackendSQLite, BackendRedis, BackendS3, BackendNone}

// Config selects and parameterizes a backend.
type Config struct {
	Backend string

	// SQLitePath overrides the default <cache dir>/currency-converter-db.sqlite.
	SQLitePath string

	// RedisURL is a redis:// URL understood by redigo's DialURL.
	RedisURL string

	S3Bucket   string
	S3Prefix   string
	S3Region   string
	S3Profile  string
	S3Endpoint string
}

// Open returns the Store described by cfg. Null is returned when the backend
// is "none", when caching is disabled, or when a local backend has no cache
// directory to live in. Configuration mistakes are errors. No backend I/O
// happens here; the returned DB opens on first use.
func Open(cfg Config) (Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendFile
	}

	if backend == BackendNone {
		return Null{}, nil
	}
	if !cacheutil.Enabled() {
		log.Debug("offline storage disabled by CCONV_CACHE")
		return Null{}, nil
	}

	switch backend {
	case BackendFile:
		if !cacheutil.Available() {
			log.Debug("no cache directory, offline storage unavailable")
			return Null{}, nil
		}
		return NewDB(BackendFile, func(context.Context) (Backend, error) {
			return openFile()
		}), nil

	case BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			base, ok := cacheutil.Dir()
			if !ok {
				log.Debug("no cache directory, offline storage unavailable")
				return Null{}, nil
			}
			path = filepath.Join(base, DBName+".sqlite")
		}
		return NewDB(BackendSQLite, func(context.Context) (Backend, error) {
			return openSQLite(path)
		}), nil

	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis backend requires a redis url")
		}
		url := cfg.RedisURL
		return NewDB(BackendRedis, func(context.Context) (Backend, error) {
			return newRedis(newRedisPool(url)), nil
		}), nil

	case BackendS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 backend requires a bucket")
		}
		return NewDB(BackendS3, func(ctx context.Context) (Backend, error) {
			awsCfg, err := aws.LoadAWSConfig(ctx,
				aws.WithProfile(cfg.S3Profile),
				aws.WithRegion(cfg.S3Region),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to load aws config: %w", err)
			}
			client := aws.NewS3(awsCfg, aws.WithS3Endpoint(cfg.S3Endpoint))
			return newS3(client, cfg.S3Bucket, cfg.S3Prefix), nil
		}), nil
	}

	return nil, fmt.Errorf("unknown store backend %q, must be one of %v", backend, Backends)
}
