// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"net/http"
	"time"

	"github.com/apex/log"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type logger struct {
	handler http.Handler
}

func (l *logger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	l.handler.ServeHTTP(rec, r)
	log.WithFields(log.Fields{
		"method":   r.Method,
		"url":      r.URL.String(),
		"status":   rec.status,
		"duration": time.Since(t).String(),
	}).Info("request")
}

func withLogging(h http.Handler) http.Handler {
	return &logger{h}
}
