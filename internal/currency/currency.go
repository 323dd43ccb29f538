// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package currency

import (
	"slices"
	"strings"
)

// Currency is a single entry of the remote currency list.
type Currency struct {
	ID             string `json:"id"`
	CurrencyName   string `json:"currencyName"`
	CurrencySymbol string `json:"currencySymbol,omitempty"`
}

// List is a collection of currencies. Storage order is irrelevant; display
// order comes from SortByName.
type List []Currency

// SortByName returns a copy of l ordered by CurrencyName, ascending. Entries
// with equal names keep their relative order.
func (l List) SortByName() List {
	sorted := slices.Clone(l)
	slices.SortStableFunc(sorted, func(a, b Currency) int {
		return strings.Compare(a.CurrencyName, b.CurrencyName)
	})
	return sorted
}

// Find returns the currency with the given ISO code.
func (l List) Find(id string) (Currency, bool) {
	for _, c := range l {
		if c.ID == id {
			return c, true
		}
	}
	return Currency{}, false
}

// ExchangeRate is the multiplier converting one unit of From into To. ID is
// always RateKey(From, To).
type ExchangeRate struct {
	ID   string  `json:"id"`
	Val  float64 `json:"val"`
	From string  `json:"fr,omitempty"`
	To   string  `json:"to,omitempty"`
}

// Convert applies the rate to amount.
func (r ExchangeRate) Convert(amount float64) float64 {
	return amount * r.Val
}

// RateKey builds the composite key used for exchange rates everywhere: the
// memory cache, the remote query and the persistent store.
func RateKey(from, to string) string {
	return from + "_" + to
}
