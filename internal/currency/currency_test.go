// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestList_SortByName(t *testing.T) {
	tests := []struct {
		name string
		in   List
		want []string
	}{
		{
			name: "cfa franc before us dollar",
			in: List{
				{ID: "USD", CurrencyName: "US Dollar"},
				{ID: "XAF", CurrencyName: "CFA Franc"},
			},
			want: []string{"XAF", "USD"},
		},
		{
			name: "already sorted",
			in: List{
				{ID: "XAF", CurrencyName: "CFA Franc"},
				{ID: "USD", CurrencyName: "US Dollar"},
			},
			want: []string{"XAF", "USD"},
		},
		{
			name: "ties keep input order",
			in: List{
				{ID: "B", CurrencyName: "Same"},
				{ID: "A", CurrencyName: "Same"},
				{ID: "C", CurrencyName: "Aaa"},
			},
			want: []string{"C", "B", "A"},
		},
		{
			name: "empty",
			in:   List{},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.SortByName()
			ids := make([]string, 0, len(got))
			for _, c := range got {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestList_SortByName_DoesNotMutate(t *testing.T) {
	in := List{
		{ID: "USD", CurrencyName: "US Dollar"},
		{ID: "XAF", CurrencyName: "CFA Franc"},
	}
	_ = in.SortByName()
	assert.Equal(t, "USD", in[0].ID)
}

func TestList_Find(t *testing.T) {
	l := List{{ID: "USD", CurrencyName: "US Dollar"}}

	c, ok := l.Find("USD")
	assert.True(t, ok)
	assert.Equal(t, "US Dollar", c.CurrencyName)

	_, ok = l.Find("EUR")
	assert.False(t, ok)
}

func TestRateKey(t *testing.T) {
	assert.Equal(t, "USD_XAF", RateKey("USD", "XAF"))
}

func TestExchangeRate_Convert(t *testing.T) {
	r := ExchangeRate{ID: "USD_XAF", Val: 550.5}
	assert.InDelta(t, 1101.0, r.Convert(2), 0.0001)
	assert.Equal(t, 0.0, r.Convert(0))
}
