// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// cconv is the main package for the cconv currency converter. It wires the
// CLI, delegates to internal packages, and serves as the entry point.
package main
