// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package remote talks to the currency converter API. Exchange rates are
// remembered in memory for the life of the Client; the currency list is
// always fetched.
package remote
