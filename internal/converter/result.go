// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package converter

import (
	"context"
	"errors"
	"fmt"
)

// Source tells where a Result's value came from.
type Source int

const (
	SourceNone Source = iota
	SourceRemote
	SourceStore
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceStore:
		return "store"
	default:
		return "none"
	}
}

// MarshalText lets Source render as its name in json and yaml output.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText. Unknown names are an error.
func (s *Source) UnmarshalText(b []byte) error {
	for _, v := range []Source{SourceNone, SourceRemote, SourceStore} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown source %q", b)
}

// Result is the outcome of a lookup. Found is false when neither the network
// nor the store had anything; that is not a failure. Err keeps whatever went
// wrong along the way for diagnostics even when a later tier succeeded.
type Result[T any] struct {
	Value  T
	Found  bool
	Source Source
	Err    error
}

// tier is one level of the lookup chain.
type tier[T any] func(ctx context.Context) Result[T]

// fallback runs secondary only when primary found nothing. Errors from both
// are carried on the returned Result.
func fallback[T any](primary, secondary tier[T]) tier[T] {
	return func(ctx context.Context) Result[T] {
		r := primary(ctx)
		if r.Found {
			return r
		}
		s := secondary(ctx)
		s.Err = errors.Join(r.Err, s.Err)
		return s
	}
}
