package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits of the store currency (OMR baisa).
const MoneyScale = 3

// Money is an amount in currency minor units (1 OMR = 1000 baisa).
type Money int64

var ErrMoneyOutOfRange = errors.New("money amount out of range")

var (
	minMoney = decimal.NewFromInt(math.MinInt64)
	maxMoney = decimal.NewFromInt(math.MaxInt64)
)

// ParseMoney parses a decimal string such as "4.200" into minor units.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}

	m, err := moneyFromDecimal(d)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	return m, nil
}

func moneyFromDecimal(d decimal.Decimal) (Money, error) {
	units := d.Shift(MoneyScale).Round(0)
	if units.LessThan(minMoney) || units.GreaterThan(maxMoney) {
		return 0, ErrMoneyOutOfRange
	}
	return Money(units.IntPart()), nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -MoneyScale)
}

// Mul multiplies the amount by a quantity.
func (m Money) Mul(quantity int) Money {
	return m * Money(quantity)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(MoneyScale)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("decode money: %w", err)
	}

	parsed, err := moneyFromDecimal(d)
	if err != nil {
		return fmt.Errorf("decode money: %w", err)
	}
	*m = parsed
	return nil
}

// Value stores the amount as a decimal string, suitable for NUMERIC columns.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return m.scanString(string(v))
	case string:
		return m.scanString(v)
	case int64:
		return m.scanDecimal(decimal.NewFromInt(v))
	case float64:
		return m.scanDecimal(decimal.NewFromFloat(v))
	default:
		return fmt.Errorf("scan money: unsupported type %T", src)
	}
}

func (m *Money) scanDecimal(d decimal.Decimal) error {
	parsed, err := moneyFromDecimal(d)
	if err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	*m = parsed
	return nil
}

func (m *Money) scanString(s string) error {
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
