// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/apex/log"
	"github.com/gorilla/mux"

	"github.com/staranto/cconv/internal/assets"
	"github.com/staranto/cconv/internal/converter"
	"github.com/staranto/cconv/internal/currency"
)

type currenciesResponse struct {
	Source     converter.Source `json:"source"`
	Currencies currency.List    `json:"currencies"`
}

type currencyResponse struct {
	Source   converter.Source  `json:"source"`
	Currency currency.Currency `json:"currency"`
}

type convertResponse struct {
	From   string           `json:"from"`
	To     string           `json:"to"`
	Amount float64          `json:"amount"`
	Rate   float64          `json:"rate"`
	Result float64          `json:"result"`
	Source converter.Source `json:"source"`
}

type workerResponse struct {
	Controller string `json:"controller,omitempty"`
	Waiting    string `json:"waiting,omitempty"`
}

// writeJSON encodes v before committing the status so an encoding failure
// still reaches the client as a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		log.WithError(err).Error("failed to encode response")
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

// handleCurrencies answers 204 when neither the network nor the store had a
// list. The page treats that as "nothing to populate".
func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	res := s.converter().GetCurrencies(r.Context())
	if !res.Found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, currenciesResponse{Source: res.Source, Currencies: res.Value})
}

// handleCurrency answers a single currency of the list, 404 when the list
// does not have it.
func (s *Server) handleCurrency(w http.ResponseWriter, r *http.Request) {
	id, err := currency.ParseCode(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res := s.converter().GetCurrencies(r.Context())
	if !res.Found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	c, ok := res.Value.Find(id)
	if !ok {
		http.Error(w, "unknown currency: "+id, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, currencyResponse{Source: res.Source, Currency: c})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := currency.ParseCode(q.Get("from"))
	if err != nil {
		http.Error(w, "from: "+err.Error(), http.StatusBadRequest)
		return
	}
	to, err := currency.ParseCode(q.Get("to"))
	if err != nil {
		http.Error(w, "to: "+err.Error(), http.StatusBadRequest)
		return
	}

	amount := 1.0
	if a := q.Get("amount"); a != "" {
		if amount, err = currency.ParseAmount(a); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	res := s.converter().Convert(r.Context(), from, to, amount)
	if !res.Found {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, convertResponse{
		From:   from,
		To:     to,
		Amount: res.Value.Amount,
		Rate:   res.Value.Rate.Val,
		Result: res.Value.Value,
		Source: res.Source,
	})
}

func (s *Server) workerState() workerResponse {
	var resp workerResponse
	if s.cfg.Registration == nil {
		return resp
	}
	if c := s.cfg.Registration.Controller(); c != nil {
		resp.Controller = c.Config().CacheName()
	}
	if wt := s.cfg.Registration.Waiting(); wt != nil {
		resp.Waiting = wt.Config().CacheName()
	}
	return resp
}

func (s *Server) handleWorkerState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.workerState())
}

func (s *Server) handleSkipWaiting(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Registration == nil {
		http.Error(w, "asset cache disabled", http.StatusNotFound)
		return
	}
	msg := assets.Message{Action: assets.ActionSkipWaiting}
	if err := s.cfg.Registration.PostMessage(r.Context(), msg); err != nil {
		log.WithError(err).Error("skipWaiting failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.workerState())
}
