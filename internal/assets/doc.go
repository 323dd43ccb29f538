// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package assets keeps the static files of the converter page available
// offline.
//
// Files are kept in named buckets under a Storage root. A Worker owns one
// bucket generation, "<app>-static-v<N>": Install fills it from the manifest,
// Activate evicts older generations of the same app, and ServeHTTP answers
// requests from the bucket before falling back to the network. A
// Registration decides which Worker is in control, holding a newly installed
// one back until the current one is gone or it is told to skip waiting.
package assets
