// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/cconv/internal/currency"
)

const currenciesBody = `{"results":{
	"USD":{"currencyName":"United States Dollar","currencySymbol":"$","id":"USD"},
	"XAF":{"currencyName":"CFA Franc","id":"XAF"},
	"EUR":{"currencyName":"Euro","currencySymbol":"€"}
}}`

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetchCurrencies(t *testing.T) {
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/currencies", r.URL.Path)
		_, _ = fmt.Fprint(w, currenciesBody)
	})

	c := New(srv.URL + "/api/v5/")
	list, err := c.FetchCurrencies(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 3)

	eur, ok := list.Find("EUR")
	require.True(t, ok)
	assert.Equal(t, currency.Currency{ID: "EUR", CurrencyName: "Euro", CurrencySymbol: "€"}, eur)

	// The list is never cached.
	_, err = c.FetchCurrencies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchCurrencies_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, wantStatus: 500},
		{name: "not found", status: http.StatusNotFound, body: ``, wantStatus: 404},
		{name: "missing results", status: http.StatusOK, body: `{"error":"quota"}`, wantStatus: 200},
		{name: "invalid json", status: http.StatusOK, body: `<html>`, wantStatus: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			})

			_, err := New(srv.URL).FetchCurrencies(context.Background())
			require.Error(t, err)
			assert.True(t, IsRequestError(err))

			var re *RequestError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.wantStatus, re.Status)
		})
	}
}

func TestFetchCurrencies_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New(srv.URL).FetchCurrencies(context.Background())
	require.Error(t, err)

	var re *RequestError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 0, re.Status)
}

func TestFetchExchangeRate_MemoryCache(t *testing.T) {
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/convert", r.URL.Path)
		assert.Equal(t, "USD_XAF", r.URL.Query().Get("q"))
		_, _ = fmt.Fprint(w, `{"results":{"USD_XAF":{"id":"USD_XAF","val":605.5,"to":"XAF","fr":"USD"}}}`)
	})

	c := New(srv.URL)
	want := currency.ExchangeRate{ID: "USD_XAF", Val: 605.5, From: "USD", To: "XAF"}

	for i := 0; i < 3; i++ {
		rate, err := c.FetchExchangeRate(context.Background(), "USD", "XAF")
		require.NoError(t, err)
		assert.Equal(t, want, rate)
	}
	assert.Equal(t, int32(1), hits.Load(), "second and later calls must be memory hits")
}

func TestFetchExchangeRate_ConcurrentSafe(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("q")
		_, _ = fmt.Fprintf(w, `{"results":{%q:{"id":%q,"val":2}}}`, key, key)
	})

	c := New(srv.URL)
	var wg sync.WaitGroup
	for _, to := range []string{"EUR", "GBP", "JPY", "EUR", "GBP", "JPY"} {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			rate, err := c.FetchExchangeRate(context.Background(), "USD", to)
			assert.NoError(t, err)
			assert.Equal(t, "USD_"+to, rate.ID)
		}(to)
	}
	wg.Wait()
}

func TestFetchExchangeRate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "bad status", status: http.StatusBadGateway, body: `{}`},
		{name: "missing entry", status: http.StatusOK, body: `{"results":{}}`},
		{name: "wrong key", status: http.StatusOK, body: `{"results":{"EUR_USD":{"id":"EUR_USD","val":1.1}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			})

			c := New(srv.URL)
			_, err := c.FetchExchangeRate(context.Background(), "USD", "EUR")
			require.Error(t, err)
			assert.True(t, IsRequestError(err))

			// Failures are not cached.
			_, err = c.FetchExchangeRate(context.Background(), "USD", "EUR")
			require.Error(t, err)
			assert.Equal(t, int32(2), hits.Load())
		})
	}
}

func TestFetchExchangeRate_KeyIsLiteral(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("q")
		_, _ = fmt.Fprintf(w, `{"results":{%q:{"val":3},"USD_EUR":{"val":0.9}}}`, key)
	})
	c := New(srv.URL)

	rate, err := c.FetchExchangeRate(context.Background(), "US.D", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "US.D_EUR", rate.ID)
	assert.Equal(t, 3.0, rate.Val)

	rate, err = c.FetchExchangeRate(context.Background(), "U*D", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "U*D_EUR", rate.ID)
	assert.Equal(t, 3.0, rate.Val)
}

func TestFetchExchangeRate_NoWildcardMatch(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"results":{"USD_EUR":{"id":"USD_EUR","val":0.9}}}`)
	})

	_, err := New(srv.URL).FetchExchangeRate(context.Background(), "U?D", "EUR")
	require.Error(t, err)
	assert.True(t, IsRequestError(err))
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, New("").BaseURL())
	assert.Equal(t, "http://localhost:9000/api", New("http://localhost:9000/api/").BaseURL())
}

func TestAPIKey(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s3cret", r.URL.Query().Get("apiKey"))
		_, _ = fmt.Fprint(w, currenciesBody)
	})

	_, err := New(srv.URL, WithAPIKey("s3cret")).FetchCurrencies(context.Background())
	require.NoError(t, err)
}

func TestContextCancel(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, currenciesBody)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.URL).FetchCurrencies(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestError(t *testing.T) {
	inner := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &RequestError{Op: "fetch currencies", URL: "http://x/currencies", Status: 503, Err: inner})

	assert.True(t, IsRequestError(err))
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "503 Service Unavailable")
	assert.False(t, IsRequestError(inner))
}
