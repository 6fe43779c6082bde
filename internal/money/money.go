// Package money implements the fixed-point amounts and basis-point rates used
// by the vault ledger.
//
// A Money is an integer count of the token's smallest unit (10^8 per whole
// token). There is no floating point anywhere in this package: products are
// evaluated in a 256-bit unsigned domain (holiman/uint256) and narrowed back
// to int64 with an explicit overflow check. Division always floors.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of one whole token.
const Decimals = 8

// Unit is one whole token expressed in smallest units. NAV-per-share values
// use the same scale, so a NAV-per-share of 1.0 is Unit.
const Unit Money = 100_000_000

var (
	// ErrOverflow is returned when a result exceeds the representable maximum.
	ErrOverflow = errors.New("money: overflow")

	// ErrUnderflow is returned when a result falls below the representable
	// minimum.
	ErrUnderflow = errors.New("money: underflow")

	// ErrDivideByZero is returned for a zero divisor.
	ErrDivideByZero = errors.New("money: division by zero")

	// ErrNegativeOperand is returned by the widened helpers, which only
	// accept non-negative operands.
	ErrNegativeOperand = errors.New("money: negative operand")

	// ErrInvalidAmount is returned when a decimal string cannot be parsed.
	ErrInvalidAmount = errors.New("money: invalid amount")
)

var (
	maxDecimal = decimal.NewFromInt(math.MaxInt64)
	minDecimal = decimal.NewFromInt(math.MinInt64)
)

// Money is a signed amount in smallest token units.
type Money int64

// Tokens returns n whole tokens. It does not check for overflow and is meant
// for constants and tests.
func Tokens(n int64) Money {
	return Money(n) * Unit
}

func (m Money) IsZero() bool     { return m == 0 }
func (m Money) IsPositive() bool { return m > 0 }
func (m Money) IsNegative() bool { return m < 0 }

// Add returns m+n.
func (m Money) Add(n Money) (Money, error) {
	s := m + n
	if n > 0 && s < m {
		return 0, ErrOverflow
	}
	if n < 0 && s > m {
		return 0, ErrUnderflow
	}
	return s, nil
}

// Sub returns m-n.
func (m Money) Sub(n Money) (Money, error) {
	d := m - n
	if n < 0 && d < m {
		return 0, ErrOverflow
	}
	if n > 0 && d > m {
		return 0, ErrUnderflow
	}
	return d, nil
}

// Mul returns m*k.
func (m Money) Mul(k int64) (Money, error) {
	if m == 0 || k == 0 {
		return 0, nil
	}
	negative := (m < 0) != (k < 0)
	p := int64(m) * k
	if p/k != int64(m) || (m == -1 && k == math.MinInt64) || (k == -1 && m == math.MinInt64) {
		if negative {
			return 0, ErrUnderflow
		}
		return 0, ErrOverflow
	}
	return Money(p), nil
}

// Div returns m/k truncated toward zero.
func (m Money) Div(k int64) (Money, error) {
	if k == 0 {
		return 0, ErrDivideByZero
	}
	if m == math.MinInt64 && k == -1 {
		return 0, ErrOverflow
	}
	return m / Money(k), nil
}

// Neg returns -m.
func (m Money) Neg() (Money, error) {
	if m == math.MinInt64 {
		return 0, ErrOverflow
	}
	return -m, nil
}

// MulDiv returns floor(a*b/c) for non-negative operands without intermediate
// overflow.
func MulDiv(a, b, c Money) (Money, error) {
	return Ratio(int64(c), int64(a), int64(b))
}

// Ratio returns floor(f1*f2*...*fn/den). All operands must be non-negative
// and den must be positive. The product is accumulated in 256 bits.
func Ratio(den int64, factors ...int64) (Money, error) {
	if den == 0 {
		return 0, ErrDivideByZero
	}
	if den < 0 {
		return 0, ErrNegativeOperand
	}
	acc := uint256.NewInt(1)
	for _, f := range factors {
		if f < 0 {
			return 0, ErrNegativeOperand
		}
		var overflow bool
		acc, overflow = new(uint256.Int).MulOverflow(acc, uint256.NewInt(uint64(f)))
		if overflow {
			return 0, ErrOverflow
		}
	}
	acc.Div(acc, uint256.NewInt(uint64(den)))
	if !acc.IsUint64() || acc.Uint64() > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return Money(acc.Uint64()), nil
}

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Money) Money {
	if a > b {
		return a
	}
	return b
}

// --- Decimal conversion ---

// FromDecimal converts a caller-facing token amount to smallest units using
// floor(v * 10^8).
func FromDecimal(v decimal.Decimal) (Money, error) {
	scaled := v.Shift(Decimals).Floor()
	if scaled.GreaterThan(maxDecimal) {
		return 0, ErrOverflow
	}
	if scaled.LessThan(minDecimal) {
		return 0, ErrUnderflow
	}
	return Money(scaled.IntPart()), nil
}

// ParseMoney parses a decimal token amount such as "100.5".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// Decimal returns m as a token amount (m / 10^8). The conversion is exact.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -Decimals)
}

// String renders m in whole tokens, e.g. "116" or "0.00000001".
func (m Money) String() string {
	return m.Decimal().String()
}
