// Package core provides the domain model for the expense tracker.
//
// Monetary amounts are stored as integer cents in the base currency so that
// installment splitting and dashboard aggregation stay exact. Floats only
// appear at the API boundary and in derived percentages.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount of the base currency in cents.
type Money struct {
	Cents int64
}

// ParseAmount converts a decimal string to Money with half-up rounding on the
// third decimal place. Both dot and comma separators are accepted; only
// positive amounts are valid.
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return Money{}, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// MoneyFromFloat converts a decimal amount to cents, rounding half away from
// zero. Used where amounts arrive as JSON numbers.
func MoneyFromFloat(f float64) Money {
	return Money{Cents: int64(math.Round(f * 100))}
}

// Float returns the amount as a decimal number for display and JSON output.
// Calculations must stay in cents.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// Mul multiplies the amount by a rate, rounding to the nearest cent. Used for
// currency normalization.
func (m Money) Mul(rate float64) Money {
	return Money{Cents: int64(math.Round(float64(m.Cents) * rate))}
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Split divides the amount into n equal cent parts plus the remainder that
// integer division leaves over. part*n + remainder == m exactly.
func (m Money) Split(n int) (part, remainder Money) {
	if n <= 0 {
		return m, Money{}
	}
	p := m.Cents / int64(n)
	return Money{Cents: p}, Money{Cents: m.Cents - p*int64(n)}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON encodes the amount as a decimal number with two places.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Float(), 'f', 2, 64)), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*m = Money{}
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return ErrInvalidAmount
	}
	*m = MoneyFromFloat(f)
	return nil
}
