// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/apex/log"

	"github.com/staranto/cconv/internal/currency"
)

const (
	// DBName and DBVersion identify the database in every backend.
	DBName    = "currency-converter-db"
	DBVersion = 1

	CurrenciesStore = "currencies"
	RatesStore      = "exchange-rates"

	// currenciesKey is the single fixed key the whole list lives under.
	currenciesKey = "currencies"
)

// StoreNames lists the named stores created by the upgrade from version 0.
var StoreNames = []string{CurrenciesStore, RatesStore}

// Store is the offline persistence used by the converter.
type Store interface {
	PutCurrencies(ctx context.Context, list currency.List) error
	PutExchangeRate(ctx context.Context, rate currency.ExchangeRate) error
	Currencies(ctx context.Context) (currency.List, bool, error)
	ExchangeRate(ctx context.Context, key string) (currency.ExchangeRate, bool, error)
	Close() error
}

// Backend is the raw key/value layer underneath a DB.
type Backend interface {
	Get(ctx context.Context, storeName, key string) ([]byte, bool, error)
	Put(ctx context.Context, storeName, key string, data []byte) error
	// Version reports the schema version, 0 for a database that was never
	// initialized.
	Version(ctx context.Context) (int, error)
	// Upgrade brings the database from oldVersion to DBVersion.
	Upgrade(ctx context.Context, oldVersion int) error
	Close() error
}

// Opener creates a Backend. It is called at most once per DB.
type Opener func(ctx context.Context) (Backend, error)

// DB is a Store over a lazily opened Backend. The first operation opens and,
// when needed, upgrades the backend; concurrent first calls share one open.
// A failed open is remembered and returned by every later call.
type DB struct {
	name   string
	opened atomic.Bool
	open   func() (Backend, error)
}

var _ Store = (*DB)(nil)

// NewDB returns a DB that will open its backend with opener on first use. name
// is only used in log output.
func NewDB(name string, opener Opener) *DB {
	db := &DB{name: name}
	db.open = sync.OnceValues(func() (Backend, error) {
		db.opened.Store(true)

		// The open outlives whichever call triggered it.
		ctx := context.Background()

		be, err := opener(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", name, err)
		}

		version, err := be.Version(ctx)
		if err != nil {
			_ = be.Close()
			return nil, fmt.Errorf("failed to read %s store version: %w", name, err)
		}
		if version == 0 {
			log.WithField("backend", name).Debugf("upgrading %s from version 0 to %d", DBName, DBVersion)
			if err := be.Upgrade(ctx, version); err != nil {
				_ = be.Close()
				return nil, fmt.Errorf("failed to upgrade %s store: %w", name, err)
			}
		}

		return be, nil
	})
	return db
}

func (db *DB) String() string {
	return db.name
}

func (db *DB) PutCurrencies(ctx context.Context, list currency.List) error {
	return db.put(ctx, CurrenciesStore, currenciesKey, list)
}

func (db *DB) PutExchangeRate(ctx context.Context, rate currency.ExchangeRate) error {
	return db.put(ctx, RatesStore, rate.ID, rate)
}

func (db *DB) Currencies(ctx context.Context) (currency.List, bool, error) {
	var list currency.List
	found, err := db.get(ctx, CurrenciesStore, currenciesKey, &list)
	return list, found, err
}

func (db *DB) ExchangeRate(ctx context.Context, key string) (currency.ExchangeRate, bool, error) {
	var rate currency.ExchangeRate
	found, err := db.get(ctx, RatesStore, key, &rate)
	return rate, found, err
}

// Close closes the backend if it was ever opened.
func (db *DB) Close() error {
	if !db.opened.Load() {
		return nil
	}
	be, err := db.open()
	if err != nil {
		return nil
	}
	return be.Close()
}

func (db *DB) put(ctx context.Context, storeName, key string, v any) error {
	be, err := db.open()
	if err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", storeName, key, err)
	}

	if err := be.Put(ctx, storeName, key, data); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", storeName, key, err)
	}
	return nil
}

func (db *DB) get(ctx context.Context, storeName, key string, v any) (bool, error) {
	be, err := db.open()
	if err != nil {
		return false, err
	}

	data, found, err := be.Get(ctx, storeName, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s/%s: %w", storeName, key, err)
	}
	if !found {
		return false, nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s/%s: %w", storeName, key, err)
	}
	return true, nil
}

// Null is the store used when offline storage is unavailable. Reads miss and
// writes are dropped. It never errors.
type Null struct{}

var _ Store = Null{}

func (Null) PutCurrencies(context.Context, currency.List) error { return nil }

func (Null) PutExchangeRate(context.Context, currency.ExchangeRate) error { return nil }

func (Null) Currencies(context.Context) (currency.List, bool, error) {
	return nil, false, nil
}

func (Null) ExchangeRate(context.Context, string) (currency.ExchangeRate, bool, error) {
	return currency.ExchangeRate{}, false, nil
}

func (Null) Close() error { return nil }

func (Null) String() string { return "none" }
