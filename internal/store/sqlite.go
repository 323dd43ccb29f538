// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// tables maps store names to sqlite table names.
var tables = map[string]string{
	CurrenciesStore: "currencies",
	RatesStore:      "exchange_rates",
}

// sqliteBackend keeps each named store in its own table. The schema version
// lives in PRAGMA user_version.
type sqliteBackend struct {
	sqlDB *sql.DB
}

func openSQLite(path string) (*sqliteBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	return &sqliteBackend{sqlDB: sqlDB}, nil
}

func (b *sqliteBackend) table(storeName string) (string, error) {
	t, ok := tables[storeName]
	if !ok {
		return "", fmt.Errorf("unknown store %q", storeName)
	}
	return t, nil
}

func (b *sqliteBackend) Get(ctx context.Context, storeName, key string) ([]byte, bool, error) {
	t, err := b.table(storeName)
	if err != nil {
		return nil, false, err
	}

	var value []byte
	row := b.sqlDB.QueryRowContext(ctx, `SELECT value FROM `+t+` WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s: %w", t, err)
	}
	return value, true, nil
}

func (b *sqliteBackend) Put(ctx context.Context, storeName, key string, data []byte) error {
	t, err := b.table(storeName)
	if err != nil {
		return err
	}

	_, err = b.sqlDB.ExecContext(ctx,
		`INSERT INTO `+t+` (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", t, err)
	}
	return nil
}

func (b *sqliteBackend) Version(ctx context.Context) (int, error) {
	var v int
	if err := b.sqlDB.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

func (b *sqliteBackend) Upgrade(ctx context.Context, oldVersion int) error {
	tx, err := b.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upgrade: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if oldVersion == 0 {
		for _, name := range StoreNames {
			stmt := `CREATE TABLE IF NOT EXISTS ` + tables[name] + ` (
				key   TEXT PRIMARY KEY,
				value BLOB NOT NULL
			)`
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create %s: %w", tables[name], err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, DBVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return tx.Commit()
}

func (b *sqliteBackend) Close() error {
	if b == nil || b.sqlDB == nil {
		return nil
	}
	return b.sqlDB.Close()
}
