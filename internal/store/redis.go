// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// redisBackend maps every entry to a plain string key
// currency-converter-db:<store>:<key>. Named stores are only key prefixes, so
// the upgrade merely records the version.
type redisBackend struct {
	pool *redis.Pool
}

func newRedisPool(url string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     3,                 //nolint:mnd
		IdleTimeout: 240 * time.Second, //nolint:mnd
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialURLContext(ctx, url)
		},
	}
}

func newRedis(pool *redis.Pool) *redisBackend {
	return &redisBackend{pool: pool}
}

func redisKey(storeName, key string) string {
	return DBName + ":" + storeName + ":" + key
}

func (b *redisBackend) Get(ctx context.Context, storeName, key string) ([]byte, bool, error) {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", redisKey(storeName, key)))
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

func (b *redisBackend) Put(ctx context.Context, storeName, key string, data []byte) error {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("SET", redisKey(storeName, key), data); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *redisBackend) Version(ctx context.Context) (int, error) {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	v, err := redis.Int(conn.Do("GET", DBName+":"+versionKey))
	if errors.Is(err, redis.ErrNil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis version: %w", err)
	}
	return v, nil
}

func (b *redisBackend) Upgrade(ctx context.Context, _ int) error {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("SET", DBName+":"+versionKey, DBVersion); err != nil {
		return fmt.Errorf("redis upgrade: %w", err)
	}
	return nil
}

func (b *redisBackend) Close() error {
	return b.pool.Close()
}
