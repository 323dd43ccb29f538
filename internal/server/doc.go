// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package server is the HTTP face of cconv serve: a small JSON API for the
// converter page, the prometheus endpoint, and the page's static files served
// through the asset registration so they keep working offline.
package server
