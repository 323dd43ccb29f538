// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/staranto/cconv/internal/cacheutil"
)

const versionKey = "VERSION"

// fileBackend keeps each named store in a directory below
// <cache dir>/currency-converter-db. Entry filenames are hashed keys, the same
// layout cacheutil uses for everything else.
type fileBackend struct{}

func openFile() (*fileBackend, error) {
	if _, ok, err := cacheutil.EnsureBaseDir(); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("cache directory unavailable")
	}
	return &fileBackend{}, nil
}

func (b *fileBackend) Get(_ context.Context, storeName, key string) ([]byte, bool, error) {
	entry, ok := cacheutil.Read([]string{DBName, storeName}, key)
	if !ok {
		return nil, false, nil
	}
	return entry.Data, true, nil
}

func (b *fileBackend) Put(_ context.Context, storeName, key string, data []byte) error {
	return cacheutil.Write([]string{DBName, storeName}, key, data)
}

func (b *fileBackend) Version(context.Context) (int, error) {
	entry, ok := cacheutil.Read([]string{DBName}, versionKey)
	if !ok {
		return 0, nil
	}
	v, err := strconv.Atoi(string(entry.Data))
	if err != nil {
		return 0, fmt.Errorf("corrupt version file %s: %w", entry.Path, err)
	}
	return v, nil
}

func (b *fileBackend) Upgrade(_ context.Context, oldVersion int) error {
	if oldVersion == 0 {
		for _, name := range StoreNames {
			dir, ok := cacheutil.Path(DBName, name)
			if !ok {
				return fmt.Errorf("cache directory unavailable")
			}
			if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
				return fmt.Errorf("failed to create store %s: %w", name, err)
			}
		}
	}
	return cacheutil.Write([]string{DBName}, versionKey, []byte(strconv.Itoa(DBVersion)))
}

func (b *fileBackend) Close() error { return nil }
