// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package currency holds the two entity kinds cconv fetches and caches: the
// currency list and the exchange rate.
package currency
