// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/cconv/internal/converter"
	"github.com/staranto/cconv/internal/currency"
	"github.com/staranto/cconv/internal/meta"
	"github.com/staranto/cconv/internal/output"
)

const (
	defaultFrom   = "USD"
	defaultTo     = "XAF"
	defaultAmount = "1"
)

type conversionRow struct {
	From   string           `json:"from"`
	To     string           `json:"to"`
	Amount float64          `json:"amount"`
	Rate   float64          `json:"rate"`
	Result float64          `json:"result"`
	Source converter.Source `json:"source"`
}

var conversionColumns = output.Columns{
	{Key: "from", Title: "from"},
	{Key: "to", Title: "to"},
	{Key: "amount", Title: "amount"},
	{Key: "rate", Title: "rate"},
	{Key: "result", Title: "result"},
	{Key: "source", Title: "source"},
}

// conversionArgs resolves FROM, TO and AMOUNT from the positional args,
// falling back to the --from, --to and --amount flags.
//
//	cconv convert              USD XAF 1
//	cconv convert 250          USD XAF 250
//	cconv convert EUR GBP      EUR GBP 1
//	cconv convert EUR GBP 250  EUR GBP 250
func conversionArgs(cmd *cli.Command) (from, to string, amount float64, err error) {
	from, to = cmd.String("from"), cmd.String("to")
	amountSpec := cmd.String("amount")

	args := cmd.Args().Slice()
	switch len(args) {
	case 0:
	case 1:
		amountSpec = args[0]
	case 2: //nolint:mnd
		from, to = args[0], args[1]
	case 3: //nolint:mnd
		from, to, amountSpec = args[0], args[1], args[2]
	default:
		return "", "", 0, errors.New("usage: cconv convert [FROM TO] [AMOUNT]")
	}

	if from, err = currency.ParseCode(from); err != nil {
		return "", "", 0, err
	}
	if to, err = currency.ParseCode(to); err != nil {
		return "", "", 0, err
	}
	if amount, err = currency.ParseAmount(amountSpec); err != nil {
		return "", "", 0, err
	}

	if cmd.Bool("reverse") {
		from, to = to, from
	}
	return from, to, amount, nil
}

func ConvertCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := ActionRunner[conversionRow]{
		CommandName: "convert",
		Columns:     conversionColumns,
		FetchFn: func(ctx context.Context, cmd *cli.Command) (conversionRow, bool, error) {
			from, to, amount, err := conversionArgs(cmd)
			if err != nil {
				return conversionRow{}, false, err
			}

			conv, st, err := newConverter(cmd, nil)
			if err != nil {
				return conversionRow{}, false, err
			}
			defer st.Close()

			res := conv.Convert(ctx, from, to, amount)
			return conversionRow{
				From:   from,
				To:     to,
				Amount: amount,
				Rate:   res.Value.Rate.Val,
				Result: res.Value.Value,
				Source: res.Source,
			}, res.Found, nil
		},
	}
	return runner.Run(ctx, cmd)
}

func ConvertCommandBuilder(meta meta.Meta) *cli.Command {
	src := meta.Config.Source

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "from",
			Usage: "currency to convert from",
			Value: defaultFrom,
			Sources: cli.NewValueSourceChain(
				yaml.YAML("convert.from", altsrc.StringSourcer(src)),
			),
		},
		&cli.StringFlag{
			Name:  "to",
			Usage: "currency to convert to",
			Value: defaultTo,
			Sources: cli.NewValueSourceChain(
				yaml.YAML("convert.to", altsrc.StringSourcer(src)),
			),
		},
		&cli.StringFlag{
			Name:  "amount",
			Usage: "amount to convert",
			Value: defaultAmount,
			Sources: cli.NewValueSourceChain(
				yaml.YAML("convert.amount", altsrc.StringSourcer(src)),
			),
		},
		&cli.BoolFlag{
			Name:    "reverse",
			Aliases: []string{"r"},
			Usage:   "swap from and to",
		},
	}
	flags = append(flags, NewAPIFlags("convert", src)...)
	flags = append(flags, NewStoreFlags("convert", src)...)

	builder := CommandBuilder{
		Name:      "convert",
		Usage:     "convert an amount between currencies",
		UsageText: `cconv convert [FROM TO] [AMOUNT] [options]`,
		Flags:     flags,
		Action:    ConvertCommandAction,
		Meta:      meta,
		Output:    true,
	}
	return builder.Build()
}
