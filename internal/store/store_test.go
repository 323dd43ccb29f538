// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/cconv/internal/currency"
)

// memBackend is an in-memory Backend that records upgrades.
type memBackend struct {
	mu       sync.Mutex
	data     map[string][]byte
	version  int
	upgrades []int
	closed   bool
}

func newMemBackend(version int) *memBackend {
	return &memBackend{data: map[string][]byte{}, version: version}
}

func (m *memBackend) Get(_ context.Context, storeName, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[storeName+"/"+key]
	return v, ok, nil
}

func (m *memBackend) Put(_ context.Context, storeName, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[storeName+"/"+key] = data
	return nil
}

func (m *memBackend) Version(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version, nil
}

func (m *memBackend) Upgrade(_ context.Context, old int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upgrades = append(m.upgrades, old)
	m.version = DBVersion
	return nil
}

func (m *memBackend) Close() error {
	m.closed = true
	return nil
}

func TestDB_LazyOpenOnce(t *testing.T) {
	var opens atomic.Int32
	be := newMemBackend(0)
	db := NewDB("mem", func(context.Context) (Backend, error) {
		opens.Add(1)
		return be, nil
	})

	assert.Equal(t, int32(0), opens.Load(), "must not open before first use")

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := db.Currencies(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	assert.Equal(t, []int{0}, be.upgrades, "upgrade runs once from version 0")
}

func TestDB_ExistingVersionNotUpgraded(t *testing.T) {
	for _, version := range []int{1, 2} {
		be := newMemBackend(version)
		db := NewDB("mem", func(context.Context) (Backend, error) { return be, nil })

		_, found, err := db.ExchangeRate(context.Background(), "USD_EUR")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, be.upgrades)
	}
}

func TestDB_OpenErrorMemoized(t *testing.T) {
	var opens atomic.Int32
	boom := errors.New("boom")
	db := NewDB("broken", func(context.Context) (Backend, error) {
		opens.Add(1)
		return nil, boom
	})

	ctx := context.Background()
	_, _, err := db.Currencies(ctx)
	assert.ErrorIs(t, err, boom)

	err = db.PutExchangeRate(ctx, currency.ExchangeRate{ID: "USD_EUR", Val: 0.9})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, int32(1), opens.Load())
	assert.NoError(t, db.Close())
}

func TestDB_RoundTrip(t *testing.T) {
	be := newMemBackend(0)
	db := NewDB("mem", func(context.Context) (Backend, error) { return be, nil })
	ctx := context.Background()

	list := currency.List{
		{ID: "USD", CurrencyName: "US Dollar", CurrencySymbol: "$"},
		{ID: "XAF", CurrencyName: "CFA Franc"},
	}
	require.NoError(t, db.PutCurrencies(ctx, list))

	got, found, err := db.Currencies(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, list, got)

	rate := currency.ExchangeRate{ID: "USD_XAF", Val: 605.5, From: "USD", To: "XAF"}
	require.NoError(t, db.PutExchangeRate(ctx, rate))

	// Overwrite, never merge.
	rate.Val = 610.25
	require.NoError(t, db.PutExchangeRate(ctx, rate))

	gotRate, found, err := db.ExchangeRate(ctx, "USD_XAF")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, rate, gotRate)

	_, found, err = db.ExchangeRate(ctx, "XAF_USD")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, db.Close())
	assert.True(t, be.closed)
}

func TestDB_CorruptEntry(t *testing.T) {
	be := newMemBackend(1)
	be.data[RatesStore+"/USD_EUR"] = []byte("{not json")
	db := NewDB("mem", func(context.Context) (Backend, error) { return be, nil })

	_, found, err := db.ExchangeRate(context.Background(), "USD_EUR")
	assert.Error(t, err)
	assert.False(t, found)
}

func TestDB_CloseUnopened(t *testing.T) {
	var opens atomic.Int32
	db := NewDB("mem", func(context.Context) (Backend, error) {
		opens.Add(1)
		return newMemBackend(0), nil
	})
	assert.NoError(t, db.Close())
	assert.Equal(t, int32(0), opens.Load())
}

func TestNull(t *testing.T) {
	ctx := context.Background()
	var s Store = Null{}

	assert.NoError(t, s.PutCurrencies(ctx, currency.List{{ID: "USD"}}))
	assert.NoError(t, s.PutExchangeRate(ctx, currency.ExchangeRate{ID: "USD_EUR"}))

	list, found, err := s.Currencies(ctx)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, list)

	_, found, err = s.ExchangeRate(ctx, "USD_EUR")
	assert.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, s.Close())
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		cache    string
		wantNull bool
		wantErr  bool
	}{
		{name: "none backend", cfg: Config{Backend: BackendNone}, wantNull: true},
		{name: "cache disabled", cfg: Config{Backend: BackendFile}, cache: "0", wantNull: true},
		{name: "cache disabled false", cfg: Config{Backend: BackendSQLite}, cache: "false", wantNull: true},
		{name: "default is file", cfg: Config{}},
		{name: "sqlite", cfg: Config{Backend: BackendSQLite}},
		{name: "redis without url", cfg: Config{Backend: BackendRedis}, wantErr: true},
		{name: "redis", cfg: Config{Backend: BackendRedis, RedisURL: "redis://localhost:6379/0"}},
		{name: "s3 without bucket", cfg: Config{Backend: BackendS3}, wantErr: true},
		{name: "s3", cfg: Config{Backend: BackendS3, S3Bucket: "bucket"}},
		{name: "unknown backend", cfg: Config{Backend: "indexeddb"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CCONV_CACHE_DIR", t.TempDir())
			t.Setenv("CCONV_CACHE", tt.cache)

			s, err := Open(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			if tt.wantNull {
				assert.IsType(t, Null{}, s)
			} else {
				assert.IsType(t, &DB{}, s)
			}
			assert.NoError(t, s.Close())
		})
	}
}
