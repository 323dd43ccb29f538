// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package store persists the currency list and exchange rates so they can be
// served when the remote API is unreachable. The database is a versioned set
// of two named key/value stores, "currencies" and "exchange-rates", kept in
// one of several backends: plain files under the cache directory, sqlite,
// redis or S3.
//
// When offline storage is unavailable Open returns Null, whose reads always
// miss and whose writes are dropped. Callers never have to check.
package store
