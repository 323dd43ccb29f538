// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"github.com/gorilla/mux"

	"github.com/staranto/cconv/internal/assets"
	"github.com/staranto/cconv/internal/converter"
	"github.com/staranto/cconv/internal/currency"
	"github.com/staranto/cconv/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Converter is what the API handlers need from a *converter.Converter.
type Converter interface {
	GetCurrencies(ctx context.Context) converter.Result[currency.List]
	Convert(ctx context.Context, from, to string, amount float64) converter.Result[converter.Conversion]
}

// Config wires a Server.
type Config struct {
	// NewConverter builds the page-level converter. It is called again on
	// every reload, which drops the in-memory rate cache.
	NewConverter func() Converter
	// Registration serves the page's files; nil serves Site directly.
	Registration *assets.Registration
	// Site serves the page's files from disk. Worker requests carrying
	// assets.BypassHeader always go here.
	Site    http.Handler
	Metrics *metrics.Metrics
}

type Server struct {
	cfg    Config
	conv   atomic.Pointer[Converter]
	guard  *assets.ReloadGuard
	router *mux.Router
}

func New(cfg Config) *Server {
	if cfg.Site == nil {
		cfg.Site = http.NotFoundHandler()
	}

	s := &Server{cfg: cfg}
	s.storeConverter()

	s.guard = assets.NewReloadGuard(func() {
		defer s.guard.Rearm()
		s.storeConverter()
		log.Info("controller changed, page state reloaded")
	})
	if cfg.Registration != nil {
		cfg.Registration.OnControllerChange(s.guard.Listener())
	}

	s.router = s.routes()
	return s
}

func (s *Server) storeConverter() {
	c := s.cfg.NewConverter()
	s.conv.Store(&c)
}

func (s *Server) converter() Converter {
	return *s.conv.Load()
}

// Reload rebuilds page-level state unless a reload is already running.
func (s *Server) Reload() bool {
	return s.guard.Fire()
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
		return req.Header.Get(assets.BypassHeader) != ""
	}).Handler(s.cfg.Site)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/currencies", s.handleCurrencies).Methods(http.MethodGet)
	api.HandleFunc("/currencies/{id}", s.handleCurrency).Methods(http.MethodGet)
	api.HandleFunc("/convert", s.handleConvert).Methods(http.MethodGet)
	api.HandleFunc("/sw", s.handleWorkerState).Methods(http.MethodGet)
	api.HandleFunc("/sw/skip-waiting", s.handleSkipWaiting).Methods(http.MethodPost)

	r.Handle("/metrics", s.cfg.Metrics.Handler()).Methods(http.MethodGet)

	var pages http.Handler = s.cfg.Site
	if s.cfg.Registration != nil {
		pages = s.cfg.Registration
	}
	r.PathPrefix("/").Handler(pages)

	return r
}

// Handler returns the router wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return withLogging(s.router)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second, //nolint:mnd
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.WithField("addr", ln.Addr().String()).Info("started serving requests")
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		log.Info("stopped serving requests")
		return nil
	}
	return err
}
