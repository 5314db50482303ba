// Package core provides money parsing and handling utilities.
//
// Amounts are fixed-point decimals with two fractional digits. Arithmetic
// is exact; binary floating point never touches a stored amount.
package core

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for every amount.
const MoneyScale = 2

// MaxAmount is the largest value a numeric(10,2) column can hold.
var MaxAmount = Money{value: decimal.RequireFromString("99999999.99")}

// Money is an exact decimal amount rounded to MoneyScale digits.
type Money struct {
	value decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// NewMoney rounds d half away from zero to two fractional digits.
func NewMoney(d decimal.Decimal) Money {
	return Money{value: d.Round(MoneyScale)}
}

// MoneyFromCents builds an amount from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{value: decimal.New(cents, -MoneyScale)}
}

// MustMoney parses s and panics on error. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney parses a decimal string into Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rounds half-up on the third decimal place. Negative and zero values are
// accepted; use ParseAmount for transaction amounts.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return NewMoney(d), nil
}

// ParseAmount parses a transaction amount. The result is strictly positive
// and fits a numeric(10,2) column.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil (rounds half-up)
//	ParseAmount("0.001")  -> error (rounds to zero)
func ParseAmount(s string) (Money, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return Money{}, err
	}
	if !m.IsPositive() || m.GreaterThan(MaxAmount) {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

func (m Money) Add(n Money) Money { return Money{value: m.value.Add(n.value)} }
func (m Money) Sub(n Money) Money { return Money{value: m.value.Sub(n.value)} }
func (m Money) Neg() Money { return Money{value: m.value.Neg()} }

func (m Money) IsZero() bool { return m.value.IsZero() }
func (m Money) IsPositive() bool { return m.value.IsPositive() }
func (m Money) IsNegative() bool { return m.value.IsNegative() }
func (m Money) Equal(n Money) bool { return m.value.Equal(n.value) }
func (m Money) GreaterThan(n Money) bool { return m.value.GreaterThan(n.value) }
func (m Money) LessThan(n Money) bool { return m.value.LessThan(n.value) }
func (m Money) Decimal() decimal.Decimal { return m.value }
func (m Money) Cmp(n Money) int { return m.value.Cmp(n.value) }

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 {
	return m.value.Shift(MoneyScale).IntPart()
}

// String returns the amount with exactly two fractional digits, e.g. "100.00".
func (m Money) String() string {
	return m.value.StringFixed(MoneyScale)
}

// Format renders the amount for display in the given ISO currency, e.g. "€1,234.50".
func (m Money) Format(currency string) string {
	return money.New(m.Cents(), currency).Display()
}

// Scan implements sql.Scanner. Stores hand back numeric columns as text,
// []byte or int64; all of them are read exactly.
func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	m.value = d.Round(MoneyScale)
	return nil
}

// Value implements driver.Valuer. Amounts are persisted as fixed-point text.
func (m Money) Value() (driver.Value, error) {
	return m.value.StringFixed(MoneyScale), nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		m.value = decimal.Zero
		return nil
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
