// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/cconv/internal/currency"
	"github.com/staranto/cconv/internal/meta"
	"github.com/staranto/cconv/internal/output"
)

var currencyColumns = output.Columns{
	{Key: "id", Title: "id"},
	{Key: "currencyName", Title: "name"},
	{Key: "currencySymbol", Title: "symbol"},
}

func CurrenciesCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := ActionRunner[currency.List]{
		CommandName: "currencies",
		Columns:     currencyColumns,
		FetchFn: func(ctx context.Context, cmd *cli.Command) (currency.List, bool, error) {
			conv, st, err := newConverter(cmd, nil)
			if err != nil {
				return nil, false, err
			}
			defer st.Close()

			res := conv.GetCurrencies(ctx)
			log.WithField("source", res.Source).Debugf("%d currencies", len(res.Value))
			return res.Value, res.Found, nil
		},
	}
	return runner.Run(ctx, cmd)
}

func CurrenciesCommandBuilder(meta meta.Meta) *cli.Command {
	src := meta.Config.Source

	builder := CommandBuilder{
		Name:      "currencies",
		Aliases:   []string{"cq"},
		Usage:     "currency list query",
		UsageText: `cconv currencies [options]`,
		Flags:     append(NewAPIFlags("currencies", src), NewStoreFlags("currencies", src)...),
		Action:    CurrenciesCommandAction,
		Meta:      meta,
		Output:    true,
	}
	return builder.Build()
}
