package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseAmount converts a user-entered amount to cents.
//
// Only digits and a single comma decimal separator are accepted, with at most
// two fractional digits. A period is rejected like any other character.
//
// Examples:
//
//	ParseAmount("19,99") -> 1999
//	ParseAmount("1999")  -> 199900
//	ParseAmount(",99")   -> error
//	ParseAmount("19,9,9") -> error
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if strings.Count(s, ",") > 1 {
		return Money{}, fmt.Errorf("%w: more than one decimal separator", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, ",") {
		return Money{}, fmt.Errorf("%w: cannot start with a separator", ErrInvalidAmount)
	}
	if strings.HasSuffix(s, ",") {
		return Money{}, fmt.Errorf("%w: separator must be followed by digits", ErrInvalidAmount)
	}

	intPart, fracPart, _ := strings.Cut(s, ",")
	for _, part := range []string{intPart, fracPart} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return Money{}, fmt.Errorf("%w: unexpected character %q", ErrInvalidAmount, r)
			}
		}
	}
	if len(fracPart) > 2 {
		return Money{}, fmt.Errorf("%w: at most two decimal digits", ErrInvalidAmount)
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidAmount, intPart)
	}

	var fracCents int64
	switch len(fracPart) {
	case 1:
		fracCents = int64(fracPart[0]-'0') * 10
	case 2:
		fracCents = int64(fracPart[0]-'0')*10 + int64(fracPart[1]-'0')
	}
	if iv > (math.MaxInt64-fracCents)/100 {
		return Money{}, fmt.Errorf("%w: too large", ErrInvalidAmount)
	}
	return Money{Cents: iv*100 + fracCents}, nil
}

// Euros returns the amount as a float for storage and display.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount with a comma separator, e.g. "19,99".
func (m Money) String() string {
	sign := ""
	c := m.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d,%02d", sign, c/100, c%100)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsZero() bool { return m.Cents == 0 }
