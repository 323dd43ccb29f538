// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package assets

import "sync/atomic"

// ReloadGuard runs a reload when the controller changes, but never while a
// previous reload is still in progress.
type ReloadGuard struct {
	refreshing atomic.Bool
	reload     func()
}

func NewReloadGuard(reload func()) *ReloadGuard {
	return &ReloadGuard{reload: reload}
}

// Fire runs the reload unless one is already underway and reports whether it
// ran.
func (g *ReloadGuard) Fire() bool {
	if !g.refreshing.CompareAndSwap(false, true) {
		return false
	}
	g.reload()
	return true
}

// Rearm allows the next Fire once the reload has completed.
func (g *ReloadGuard) Rearm() {
	g.refreshing.Store(false)
}

// Listener adapts the guard for Registration.OnControllerChange.
func (g *ReloadGuard) Listener() func(*Worker) {
	return func(*Worker) { g.Fire() }
}
