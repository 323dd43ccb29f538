// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cconv"

// Metrics groups the counters cconv exports. All methods are safe on a nil
// receiver so callers that don't care about metrics can pass nil.
type Metrics struct {
	registry *prometheus.Registry

	fetches   *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	storeOps  *prometheus.CounterVec
	assets    *prometheus.CounterVec
}

// New returns a Metrics registered on its own registry. A private registry
// keeps tests and multiple servers in one process from colliding.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_fetches_total",
			Help:      "Remote data requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Offline store fallbacks by kind and whether data was found.",
		}, []string{"kind", "found"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Offline store writes by kind and outcome.",
		}, []string{"kind", "outcome"}),
		assets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_requests_total",
			Help:      "Asset requests by how they were answered.",
		}, []string{"source"}),
	}

	m.registry.MustRegister(m.fetches, m.fallbacks, m.storeOps, m.assets)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Fetch(kind string, err error) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(kind, outcome(err)).Inc()
}

func (m *Metrics) Fallback(kind string, found bool) {
	if m == nil {
		return
	}
	f := "false"
	if found {
		f = "true"
	}
	m.fallbacks.WithLabelValues(kind, f).Inc()
}

func (m *Metrics) StoreWrite(kind string, err error) {
	if m == nil {
		return
	}
	m.storeOps.WithLabelValues(kind, outcome(err)).Inc()
}

// Asset counts an asset request. source is one of cache, network or miss.
func (m *Metrics) Asset(source string) {
	if m == nil {
		return
	}
	m.assets.WithLabelValues(source).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
