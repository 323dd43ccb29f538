// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/tidwall/gjson"

	"github.com/staranto/cconv/internal/currency"
)

// DefaultBaseURL is the public API the converter was built against.
const DefaultBaseURL = "https://free.currencyconverterapi.com/api/v5"

// Client fetches currencies and exchange rates. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	mu    sync.RWMutex
	rates map[string]currency.ExchangeRate
}

type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithAPIKey adds an apiKey query parameter to every request. Empty keys are
// ignored.
func WithAPIKey(key string) Option {
	return func(cl *Client) { cl.apiKey = key }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		rates:   map[string]currency.ExchangeRate{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root requests are made against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchCurrencies returns every currency the API knows about, in no
// particular order.
func (c *Client) FetchCurrencies(ctx context.Context) (currency.List, error) {
	const op = "fetch currencies"

	u := c.endpoint("currencies", nil)
	body, err := c.get(ctx, op, u)
	if err != nil {
		return nil, err
	}

	results := gjson.GetBytes(body, "results")
	if !results.IsObject() {
		return nil, &RequestError{Op: op, URL: u, Status: http.StatusOK, Err: errMissingResults}
	}

	var list currency.List
	var decodeErr error
	results.ForEach(func(key, value gjson.Result) bool {
		var cur currency.Currency
		if err := json.Unmarshal([]byte(value.Raw), &cur); err != nil {
			decodeErr = fmt.Errorf("currency %s: %w", key.String(), err)
			return false
		}
		if cur.ID == "" {
			cur.ID = key.String()
		}
		list = append(list, cur)
		return true
	})
	if decodeErr != nil {
		return nil, &RequestError{Op: op, URL: u, Status: http.StatusOK, Err: decodeErr}
	}

	log.WithField("count", len(list)).Debug("fetched currencies")
	return list, nil
}

// FetchExchangeRate returns the rate converting from into to. A rate fetched
// once is served from memory afterwards without touching the network.
func (c *Client) FetchExchangeRate(ctx context.Context, from, to string) (currency.ExchangeRate, error) {
	const op = "fetch exchange rate"
	key := currency.RateKey(from, to)

	c.mu.RLock()
	rate, ok := c.rates[key]
	c.mu.RUnlock()
	if ok {
		log.WithField("key", key).Debug("exchange rate memory hit")
		return rate, nil
	}

	u := c.endpoint("convert", url.Values{"q": {key}})
	body, err := c.get(ctx, op, u)
	if err != nil {
		return currency.ExchangeRate{}, err
	}

	result := gjson.GetBytes(body, "results."+gjson.Escape(key))
	if !result.IsObject() {
		return currency.ExchangeRate{}, &RequestError{
			Op: op, URL: u, Status: http.StatusOK,
			Err: fmt.Errorf("%w for %s", errMissingResults, key),
		}
	}

	if err := json.Unmarshal([]byte(result.Raw), &rate); err != nil {
		return currency.ExchangeRate{}, &RequestError{Op: op, URL: u, Status: http.StatusOK, Err: err}
	}
	if rate.ID == "" {
		rate.ID = key
	}

	c.mu.Lock()
	c.rates[key] = rate
	c.mu.Unlock()

	return rate, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	if c.apiKey != "" {
		if q == nil {
			q = url.Values{}
		}
		q.Set("apiKey", c.apiKey)
	}
	u := c.baseURL + "/" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) get(ctx context.Context, op, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &RequestError{Op: op, URL: u, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Op: op, URL: u, Err: err}
	}
	defer resp.Body.Close()

	var doc bytes.Buffer
	if _, err := doc.ReadFrom(resp.Body); err != nil {
		return nil, &RequestError{Op: op, URL: u, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{Op: op, URL: u, Status: resp.StatusCode, Err: errBadStatus}
	}

	if !gjson.ValidBytes(doc.Bytes()) {
		return nil, &RequestError{Op: op, URL: u, Status: resp.StatusCode, Err: errors.New("response is not valid json")}
	}

	return doc.Bytes(), nil
}
