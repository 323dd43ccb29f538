// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/apex/log"

	"github.com/staranto/cconv/internal/metrics"
)

// State is a Worker's lifecycle state.
type State int

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Worker manages one generation of cached assets.
type Worker struct {
	cfg     Config
	storage *Storage
	doer    Doer
	metrics *metrics.Metrics

	mu          sync.Mutex
	state       State
	skipWaiting bool
}

type WorkerOption func(*Worker)

// WithDoer sets the client used for install and network fallback requests.
func WithDoer(d Doer) WorkerOption {
	return func(w *Worker) { w.doer = d }
}

func WithMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

func NewWorker(cfg Config, storage *Storage, opts ...WorkerOption) *Worker {
	w := &Worker{
		cfg:     cfg,
		storage: storage,
		doer:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Config() Config {
	return w.cfg
}

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	log.WithFields(log.Fields{"cache": w.cfg.CacheName(), "state": s}).Debug("worker state")
}

// SkipWaiting lets the worker take control as soon as it is installed, even
// if another worker is active.
func (w *Worker) SkipWaiting() {
	w.mu.Lock()
	w.skipWaiting = true
	w.mu.Unlock()
}

func (w *Worker) skipsWaiting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.skipWaiting
}

// Install fills the worker's bucket with every manifest entry. If any entry
// cannot be fetched nothing is stored and the worker becomes redundant.
func (w *Worker) Install(ctx context.Context) error {
	w.setState(StateInstalling)

	urls, err := w.cfg.URLs()
	if err == nil {
		err = w.storage.AddAll(ctx, w.cfg.CacheName(), w.doer, urls)
	}
	if err != nil {
		w.setState(StateRedundant)
		return fmt.Errorf("install %s: %w", w.cfg.CacheName(), err)
	}

	w.setState(StateInstalled)
	return nil
}

// Activate deletes every bucket of this app other than the worker's own.
// Buckets of other apps are left alone.
func (w *Worker) Activate(context.Context) error {
	w.setState(StateActivating)

	names, err := w.storage.Keys()
	if err != nil {
		return fmt.Errorf("activate %s: %w", w.cfg.CacheName(), err)
	}

	current := w.cfg.CacheName()
	for _, name := range names {
		if !strings.HasPrefix(name, w.cfg.Prefix()) || name == current {
			continue
		}
		if _, err := w.storage.Delete(name); err != nil {
			return fmt.Errorf("activate %s: %w", current, err)
		}
		log.WithField("cache", name).Info("evicted stale cache")
	}

	w.setState(StateActivated)
	return nil
}

// ServeHTTP answers a request the way the page expects while offline. The page
// itself is only ever served from the cached root entry; a missing root entry
// is a 504. Anything else comes from the cache when present and otherwise
// from the network. Nothing is ever added to the cache here.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	target := w.requestURL(r)
	ll := log.WithFields(log.Fields{"cache": w.cfg.CacheName(), "url": target.String()})

	if sameOrigin(target, w.cfg.Origin) && target.Path == "/" {
		e, ok, err := w.match(w.cfg.RootKey())
		if err != nil {
			ll.WithError(err).Warn("cache lookup failed")
		}
		if !ok {
			w.metrics.Asset("miss")
			http.Error(rw, "page not cached", http.StatusGatewayTimeout)
			return
		}
		w.metrics.Asset("cache")
		if err := e.Write(rw); err != nil {
			ll.WithError(err).Warn("failed to write cached response")
		}
		return
	}

	e, ok, err := w.match(Key(target))
	if err != nil {
		ll.WithError(err).Warn("cache lookup failed")
	}
	if ok {
		w.metrics.Asset("cache")
		if err := e.Write(rw); err != nil {
			ll.WithError(err).Warn("failed to write cached response")
		}
		return
	}

	w.metrics.Asset("network")
	w.forward(rw, r, target)
}

// match looks key up in the worker's own generation first, then in every
// bucket. Bucket names sort lexically, so v10 would otherwise be searched
// before v7.
func (w *Worker) match(key string) (*Entry, bool, error) {
	name := w.cfg.CacheName()
	if has, err := w.storage.Has(name); err == nil && has {
		c, err := w.storage.Open(name)
		if err != nil {
			return nil, false, err
		}
		if e, ok, err := c.Match(key); err != nil || ok {
			return e, ok, err
		}
	}
	return w.storage.Match(key)
}

// requestURL makes r's URL absolute. Requests that reached the local server
// carry only a path and belong to the worker's origin.
func (w *Worker) requestURL(r *http.Request) *url.URL {
	if r.URL.IsAbs() {
		return r.URL
	}
	u := *w.cfg.Origin
	u.Path = r.URL.Path
	u.RawPath = r.URL.RawPath
	u.RawQuery = r.URL.RawQuery
	u.Fragment = ""
	return &u
}

func (w *Worker) forward(rw http.ResponseWriter, r *http.Request, target *url.URL) {
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadGateway)
		return
	}
	req.Header = r.Header.Clone()
	req.Header.Set(BypassHeader, "1")

	resp, err := w.doer.Do(req)
	if err != nil {
		log.WithError(err).WithField("url", target.String()).Warn("network fetch failed")
		http.Error(rw, "network fetch failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		for _, v := range vs {
			rw.Header().Add(k, v)
		}
	}
	rw.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(rw, resp.Body)
}

func sameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}
