// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/cconv/internal/currency"
	"github.com/staranto/cconv/internal/store"
)

// GlobalFlagsValidator checks combinations of flags that no single flag
// validator can see.
func GlobalFlagsValidator(ctx context.Context, c *cli.Command) error {
	if !c.IsSet("store") {
		return nil
	}
	switch c.String("store") {
	case store.BackendRedis:
		if c.String("redis-url") == "" {
			return errors.New("--store=redis requires --redis-url")
		}
	case store.BackendS3:
		if c.String("s3-bucket") == "" {
			return errors.New("--store=s3 requires --s3-bucket")
		}
	}
	return nil
}

type FlagValidatorType func(any) error

func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// JammedFlagValidator verifies that the arg following a flag does not begin
// with '--'.  urfave/cli allows this and I don't see how to turn it off.
func JammedFlagValidator(value any) error {
	if strings.HasPrefix(value.(string), "--") {
		return errors.New("must not begin with '--'")
	}
	return nil
}

func OutputValidator(value any) error {
	var validOutputFlagValues = []string{"text", "json", "raw", "yaml"}
	if !slices.Contains(validOutputFlagValues, value.(string)) {
		return fmt.Errorf("must be one of %v", validOutputFlagValues)
	}
	return nil
}

func StoreValidator(value any) error {
	if !slices.Contains(store.Backends, value.(string)) {
		return fmt.Errorf("must be one of %v", store.Backends)
	}
	return nil
}

// URLValidator accepts an empty value or an absolute http(s) URL.
func URLValidator(value any) error {
	s := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("must be an absolute http(s) url, got %q", s)
	}
	return nil
}

// CurrencyCodeValidator accepts three letter codes in either case.
func CurrencyCodeValidator(value any) error {
	_, err := currency.ParseCode(value.(string))
	return err
}

// AmountValidator accepts any finite number.
func AmountValidator(value any) error {
	_, err := currency.ParseAmount(value.(string))
	return err
}
