package model

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in minor currency units (cents).
type Money int64

// String formats m with two decimals and no currency symbol.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ParseMoney reads amounts the way they were typed into legacy forms:
// "12,50 €", "€12.5", "1.234,56", "1,234.56", "15". A separator followed by
// one or two digits is decimal; any other separator groups thousands.
func ParseMoney(raw string) (Money, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == ',' || r == '-' {
			return r
		}
		return -1
	}, raw)
	if s == "" || s == "-" {
		return 0, fmt.Errorf("%w: amount %q", ErrInvalid, raw)
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if strings.Contains(s, "-") {
		return 0, fmt.Errorf("%w: amount %q", ErrInvalid, raw)
	}

	whole, frac := s, ""
	if i := strings.LastIndexAny(s, ".,"); i >= 0 && len(s)-i-1 <= 2 {
		whole, frac = s[:i], s[i+1:]
	}
	whole = strings.NewReplacer(".", "", ",", "").Replace(whole)
	if whole == "" {
		whole = "0"
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q", ErrInvalid, raw)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q", ErrInvalid, raw)
	}
	m := Money(units*100 + cents)
	if neg {
		m = -m
	}
	return m, nil
}
