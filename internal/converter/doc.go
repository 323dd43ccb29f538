// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package converter combines the remote API and the offline store. Every
// lookup goes to the network first; only when that fails is the store
// consulted, exactly once. Successful network results are written back to the
// store for next time.
package converter
