package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// BasisPoints is the denominator of a Rate: 10000 bps is 100%.
const BasisPoints = 10_000

// MaxRate is 100%.
const MaxRate Rate = BasisPoints

// ErrRateOutOfRange is returned when a rate exceeds its ceiling.
var ErrRateOutOfRange = errors.New("money: rate out of range")

// Rate is a percentage in basis points (100 = 1%).
type Rate uint32

// Validate checks that r is at most ceiling and never above 100%.
func (r Rate) Validate(ceiling Rate) error {
	if ceiling > MaxRate {
		ceiling = MaxRate
	}
	if r > ceiling {
		return fmt.Errorf("%w: %d bps exceeds %d bps", ErrRateOutOfRange, uint32(r), uint32(ceiling))
	}
	return nil
}

// Apply returns floor(m * r / 10000). m must be non-negative.
func (r Rate) Apply(m Money) (Money, error) {
	return Ratio(BasisPoints, int64(m), int64(r))
}

// Percent returns r as a percentage, e.g. 200 bps is 2.
func (r Rate) Percent() decimal.Decimal {
	return decimal.New(int64(r), -2)
}

func (r Rate) String() string {
	return r.Percent().String() + "%"
}
