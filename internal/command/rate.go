// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/cconv/internal/converter"
	"github.com/staranto/cconv/internal/meta"
	"github.com/staranto/cconv/internal/output"
)

type rateRow struct {
	ID     string           `json:"id"`
	From   string           `json:"from"`
	To     string           `json:"to"`
	Rate   float64          `json:"rate"`
	Source converter.Source `json:"source"`
}

var rateColumns = output.Columns{
	{Key: "id", Title: "id"},
	{Key: "from", Title: "from", Hidden: true},
	{Key: "to", Title: "to", Hidden: true},
	{Key: "rate", Title: "rate"},
	{Key: "source", Title: "source"},
}

func RateCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := ActionRunner[rateRow]{
		CommandName: "rate",
		Columns:     rateColumns,
		FetchFn: func(ctx context.Context, cmd *cli.Command) (rateRow, bool, error) {
			args := cmd.Args().Slice()
			if len(args) != 2 { //nolint:mnd
				return rateRow{}, false, errors.New("usage: cconv rate FROM TO")
			}
			for _, a := range args {
				if err := CurrencyCodeValidator(a); err != nil {
					return rateRow{}, false, err
				}
			}
			from, to := strings.ToUpper(args[0]), strings.ToUpper(args[1])

			conv, st, err := newConverter(cmd, nil)
			if err != nil {
				return rateRow{}, false, err
			}
			defer st.Close()

			res := conv.GetExchangeRate(ctx, from, to)
			return rateRow{
				ID:     res.Value.ID,
				From:   from,
				To:     to,
				Rate:   res.Value.Val,
				Source: res.Source,
			}, res.Found, nil
		},
	}
	return runner.Run(ctx, cmd)
}

func RateCommandBuilder(meta meta.Meta) *cli.Command {
	src := meta.Config.Source

	builder := CommandBuilder{
		Name:      "rate",
		Usage:     "exchange rate query",
		UsageText: `cconv rate FROM TO [options]`,
		Flags:     append(NewAPIFlags("rate", src), NewStoreFlags("rate", src)...),
		Action:    RateCommandAction,
		Meta:      meta,
		Output:    true,
	}
	return builder.Build()
}
