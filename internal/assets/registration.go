// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/apex/log"

	"github.com/staranto/cconv/internal/cacheutil"
)

const (
	// ActionSkipWaiting asks the waiting worker to take control now.
	ActionSkipWaiting = "skipWaiting"

	stateFile = ".registration.json"
)

// Message is posted to a Registration, typically from the page.
type Message struct {
	Action string `json:"action"`
}

// savedState is what a Registration remembers across processes.
type savedState struct {
	Active  string `json:"active,omitempty"`
	Waiting string `json:"waiting,omitempty"`
}

// Registration tracks the worker in control (the controller) and at most one
// installed worker waiting to replace it.
type Registration struct {
	storage *Storage
	network http.Handler

	mu        sync.Mutex
	active    *Worker
	waiting   *Worker
	listeners []func(*Worker)
}

// NewRegistration returns a registration with no controller. network answers
// requests while no worker is in control.
func NewRegistration(storage *Storage, network http.Handler) *Registration {
	if network == nil {
		network = http.NotFoundHandler()
	}
	return &Registration{storage: storage, network: network}
}

// Restore reinstates the active and waiting workers saved by an earlier
// process. base supplies the app, origin and manifest; each worker's version
// comes from its saved cache name. Workers whose bucket is gone are dropped.
func (r *Registration) Restore(base Config, opts ...WorkerOption) error {
	var st savedState
	data, err := os.ReadFile(filepath.Join(r.storage.Root(), stateFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read registration: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("corrupt registration: %w", err)
	}

	restore := func(name string, state State) *Worker {
		if name == "" {
			return nil
		}
		v, ok := ParseCacheVersion(base.App, name)
		if !ok {
			return nil
		}
		if has, err := r.storage.Has(name); err != nil || !has {
			log.WithField("cache", name).Debug("saved cache is gone")
			return nil
		}
		cfg := base
		cfg.Version = v
		w := NewWorker(cfg, r.storage, opts...)
		w.state = state
		return w
	}

	r.mu.Lock()
	r.active = restore(st.Active, StateActivated)
	r.waiting = restore(st.Waiting, StateInstalled)
	if r.active == nil && r.waiting != nil {
		// Nothing in control, nothing to wait for.
		return r.promoteAndNotify(context.Background(), r.waiting)
	}
	r.mu.Unlock()
	return nil
}

// Register installs w. It takes control immediately when nothing else is in
// control or when it was told to skip waiting; otherwise it waits. A worker
// for the generation already in control is a no-op.
func (r *Registration) Register(ctx context.Context, w *Worker) error {
	r.mu.Lock()
	if r.active != nil && r.active.Config().CacheName() == w.Config().CacheName() {
		r.mu.Unlock()
		log.WithField("cache", w.Config().CacheName()).Debug("already in control")
		return nil
	}
	r.mu.Unlock()

	if err := w.Install(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	if r.active == nil || w.skipsWaiting() {
		return r.promoteAndNotify(ctx, w)
	}
	defer r.mu.Unlock()

	if r.waiting != nil && r.waiting != w {
		r.waiting.setState(StateRedundant)
	}
	r.waiting = w
	log.WithField("cache", w.Config().CacheName()).Info("installed, waiting for the current worker to go away")
	return r.save()
}

// PostMessage delivers msg to the registration. Unknown actions are ignored.
func (r *Registration) PostMessage(ctx context.Context, msg Message) error {
	if msg.Action != ActionSkipWaiting {
		log.WithField("action", msg.Action).Debug("ignoring message")
		return nil
	}

	r.mu.Lock()
	if r.waiting == nil {
		r.mu.Unlock()
		return nil
	}
	return r.promoteAndNotify(ctx, r.waiting)
}

// promoteAndNotify activates w and makes it the controller. It must be called
// with r.mu held and releases it before running the listeners.
func (r *Registration) promoteAndNotify(ctx context.Context, w *Worker) error {
	err := r.promote(ctx, w)
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()

	if err != nil {
		return err
	}
	for _, fn := range listeners {
		fn(w)
	}
	return nil
}

func (r *Registration) promote(ctx context.Context, w *Worker) error {
	if err := w.Activate(ctx); err != nil {
		return err
	}

	prev := r.active
	if prev != nil && prev != w {
		prev.setState(StateRedundant)
	}
	r.active = w
	if r.waiting == w {
		r.waiting = nil
	}
	if err := r.save(); err != nil {
		return err
	}

	log.WithField("cache", w.Config().CacheName()).Info("controller changed")
	return nil
}

func (r *Registration) save() error {
	var st savedState
	if r.active != nil {
		st.Active = r.active.Config().CacheName()
	}
	if r.waiting != nil {
		st.Waiting = r.waiting.Config().CacheName()
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.storage.Root(), 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to save registration: %w", err)
	}
	return cacheutil.WriteFileAtomic(filepath.Join(r.storage.Root(), stateFile), data)
}

// Forget drops both workers and the saved state.
func (r *Registration) Forget() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active, r.waiting = nil, nil
	err := os.Remove(filepath.Join(r.storage.Root(), stateFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// OnControllerChange registers fn to run, with the new controller, every time
// control changes hands.
func (r *Registration) OnControllerChange(fn func(*Worker)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Controller is the worker in control, or nil.
func (r *Registration) Controller() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Waiting is the installed worker waiting for control, or nil.
func (r *Registration) Waiting() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting
}

// ServeHTTP routes through the controller, or straight to the network when
// there is none.
func (r *Registration) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if ctrl := r.Controller(); ctrl != nil {
		ctrl.ServeHTTP(w, req)
		return
	}
	r.network.ServeHTTP(w, req)
}
