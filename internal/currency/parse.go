// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package currency

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseCode normalizes an ISO code to upper case. Anything but three ASCII
// letters is rejected, which also keeps codes safe to use as lookup paths.
func ParseCode(s string) (string, error) {
	code := strings.TrimSpace(s)
	if len(code) != 3 { //nolint:mnd
		return "", fmt.Errorf("currency code must be three letters, got %q", s)
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return "", fmt.Errorf("currency code must be three letters, got %q", s)
		}
	}
	return strings.ToUpper(code), nil
}

// ParseAmount parses a finite number. NaN and infinities are rejected since
// they cannot be converted or encoded.
func ParseAmount(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("amount must be a number, got %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("amount must be finite, got %q", s)
	}
	return f, nil
}
