// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package converter

import (
	"context"

	"github.com/apex/log"

	"github.com/staranto/cconv/internal/currency"
	"github.com/staranto/cconv/internal/metrics"
	"github.com/staranto/cconv/internal/store"
)

const (
	kindCurrencies = "currencies"
	kindRate       = "rate"
)

// Fetcher is the network side of the converter, normally a *remote.Client.
type Fetcher interface {
	FetchCurrencies(ctx context.Context) (currency.List, error)
	FetchExchangeRate(ctx context.Context, from, to string) (currency.ExchangeRate, error)
}

type Converter struct {
	remote  Fetcher
	store   store.Store
	metrics *metrics.Metrics
}

type Option func(*Converter)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Converter) { c.metrics = m }
}

// New builds a Converter. A nil store behaves like store.Null.
func New(remote Fetcher, st store.Store, opts ...Option) *Converter {
	if st == nil {
		st = store.Null{}
	}
	c := &Converter{remote: remote, store: st}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetCurrencies returns the currency list sorted by name when it comes from
// the network. A list read back from the store is returned as it was saved.
func (c *Converter) GetCurrencies(ctx context.Context) Result[currency.List] {
	return fallback(c.remoteCurrencies, c.storedCurrencies)(ctx)
}

// GetExchangeRate returns the rate converting from into to.
func (c *Converter) GetExchangeRate(ctx context.Context, from, to string) Result[currency.ExchangeRate] {
	return fallback(
		func(ctx context.Context) Result[currency.ExchangeRate] { return c.remoteRate(ctx, from, to) },
		func(ctx context.Context) Result[currency.ExchangeRate] { return c.storedRate(ctx, from, to) },
	)(ctx)
}

// Conversion is an amount converted at a given rate.
type Conversion struct {
	Rate   currency.ExchangeRate
	Amount float64
	Value  float64
}

// Convert multiplies amount by the from/to exchange rate.
func (c *Converter) Convert(ctx context.Context, from, to string, amount float64) Result[Conversion] {
	r := c.GetExchangeRate(ctx, from, to)
	if !r.Found {
		return Result[Conversion]{Err: r.Err}
	}
	return Result[Conversion]{
		Value: Conversion{
			Rate:   r.Value,
			Amount: amount,
			Value:  r.Value.Convert(amount),
		},
		Found:  true,
		Source: r.Source,
		Err:    r.Err,
	}
}

func (c *Converter) remoteCurrencies(ctx context.Context) Result[currency.List] {
	list, err := c.remote.FetchCurrencies(ctx)
	c.metrics.Fetch(kindCurrencies, err)
	if err != nil {
		log.WithError(err).Warn("failed to fetch currencies, trying offline store")
		return Result[currency.List]{Err: err}
	}

	sorted := list.SortByName()
	err = c.store.PutCurrencies(ctx, sorted)
	c.metrics.StoreWrite(kindCurrencies, err)
	if err != nil {
		log.WithError(err).Warn("failed to save currencies")
	}

	return Result[currency.List]{Value: sorted, Found: true, Source: SourceRemote}
}

func (c *Converter) storedCurrencies(ctx context.Context) Result[currency.List] {
	list, found, err := c.store.Currencies(ctx)
	c.metrics.Fallback(kindCurrencies, found)
	if err != nil {
		log.WithError(err).Warn("failed to read saved currencies")
		return Result[currency.List]{Err: err}
	}
	if !found {
		log.Info("no saved currencies")
		return Result[currency.List]{}
	}
	return Result[currency.List]{Value: list, Found: true, Source: SourceStore}
}

func (c *Converter) remoteRate(ctx context.Context, from, to string) Result[currency.ExchangeRate] {
	rate, err := c.remote.FetchExchangeRate(ctx, from, to)
	c.metrics.Fetch(kindRate, err)
	if err != nil {
		log.WithError(err).WithField("key", currency.RateKey(from, to)).
			Warn("failed to fetch exchange rate, trying offline store")
		return Result[currency.ExchangeRate]{Err: err}
	}

	err = c.store.PutExchangeRate(ctx, rate)
	c.metrics.StoreWrite(kindRate, err)
	if err != nil {
		log.WithError(err).WithField("key", rate.ID).Warn("failed to save exchange rate")
	}

	return Result[currency.ExchangeRate]{Value: rate, Found: true, Source: SourceRemote}
}

func (c *Converter) storedRate(ctx context.Context, from, to string) Result[currency.ExchangeRate] {
	key := currency.RateKey(from, to)
	rate, found, err := c.store.ExchangeRate(ctx, key)
	c.metrics.Fallback(kindRate, found)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to read saved exchange rate")
		return Result[currency.ExchangeRate]{Err: err}
	}
	if !found {
		log.WithField("key", key).Info("no saved exchange rate")
		return Result[currency.ExchangeRate]{}
	}
	return Result[currency.ExchangeRate]{Value: rate, Found: true, Source: SourceStore}
}
