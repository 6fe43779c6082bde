// Package fee computes vault management and performance fees.
//
// Everything here is pure: vault state is passed in as arguments and the
// result is returned, never stored. The ledger decides what to do with it.
//
// Management fee: an annual rate prorated by the elapsed time since the
// previous collection, applied to the current NAV.
//
// Performance fee: charged only on NAV-per-share above the high-water mark,
// so the same gain is never charged twice.
//
// NAV-per-share and the high-water mark are fixed-point values scaled by
// money.Unit (1.0 == 10^8).
package fee

import (
	"errors"
	"math"
	"time"

	"github.com/holiman/uint256"

	"github.com/atmx/vault-engine/internal/money"
)

// SecondsPerYear is the proration base of the management fee (365 days).
const SecondsPerYear = 365 * 24 * 60 * 60

// ErrInvalidInput is returned for negative NAV, shares or high-water mark.
var ErrInvalidInput = errors.New("fee: negative input")

// Input is the vault state the fee computation depends on.
type Input struct {
	TotalValue     money.Money
	TotalShares    money.Money
	ManagementFee  money.Rate
	PerformanceFee money.Rate
	HighWaterMark  money.Money
	Elapsed        time.Duration
}

// Result holds the fees due and the high-water mark to store afterwards.
type Result struct {
	ManagementFee  money.Money `json:"management_fee"`
	PerformanceFee money.Money `json:"performance_fee"`
	HighWaterMark  money.Money `json:"high_water_mark"`
}

// Total returns the sum of both fees. Compute caps the sum at the NAV, so it
// cannot overflow.
func (r Result) Total() money.Money {
	return r.ManagementFee + r.PerformanceFee
}

// NAVPerShare returns floor(totalValue * 10^8 / totalShares), or zero for a
// vault without shares. A ratio too large for Money is money.ErrOverflow.
func NAVPerShare(totalValue, totalShares money.Money) (money.Money, error) {
	if totalShares <= 0 {
		return 0, nil
	}
	return narrow(navPerShare(totalValue, totalShares))
}

// Management returns floor(totalValue * bps * seconds / (10000 * SecondsPerYear)),
// capped at totalValue. Sub-second and negative elapsed times accrue nothing.
func Management(totalValue money.Money, rate money.Rate, elapsed time.Duration) (money.Money, error) {
	secs := int64(elapsed / time.Second)
	if secs <= 0 || totalValue <= 0 || rate == 0 {
		return 0, nil
	}
	acc := wide(totalValue)
	acc.Mul(acc, uint256.NewInt(uint64(rate)))
	acc.Mul(acc, uint256.NewInt(uint64(secs)))
	acc.Div(acc, uint256.NewInt(money.BasisPoints*SecondsPerYear))
	if acc.Gt(wide(totalValue)) {
		return totalValue, nil
	}
	return narrow(acc)
}

// Performance returns the fee on the NAV-per-share gain above hwm:
// floor((nps - hwm) * totalShares * bps / (10^8 * 10000)), with nps taken
// from totalValue and totalShares. The whole chain stays in 256 bits.
func Performance(totalValue, totalShares money.Money, rate money.Rate, hwm money.Money) (money.Money, error) {
	if totalShares <= 0 || totalValue <= 0 || rate == 0 {
		return 0, nil
	}
	if hwm < 0 {
		return 0, ErrInvalidInput
	}
	nps := navPerShare(totalValue, totalShares)
	mark := wide(hwm)
	if !nps.Gt(mark) {
		return 0, nil
	}
	acc := new(uint256.Int).Sub(nps, mark)
	acc.Mul(acc, wide(totalShares))
	acc.Mul(acc, uint256.NewInt(uint64(rate)))
	acc.Div(acc, uint256.NewInt(uint64(money.Unit)*money.BasisPoints))
	return narrow(acc)
}

// navPerShare is floor(totalValue * 10^8 / totalShares) for positive shares.
// Both operands fit in 63 bits, so the product cannot overflow 256 bits.
func navPerShare(totalValue, totalShares money.Money) *uint256.Int {
	acc := wide(totalValue)
	acc.Mul(acc, uint256.NewInt(uint64(money.Unit)))
	return acc.Div(acc, wide(totalShares))
}

// wide lifts a non-negative amount into the 256-bit domain.
func wide(m money.Money) *uint256.Int {
	return uint256.NewInt(uint64(m))
}

func narrow(x *uint256.Int) (money.Money, error) {
	if !x.IsUint64() || x.Uint64() > math.MaxInt64 {
		return 0, money.ErrOverflow
	}
	return money.Money(x.Uint64()), nil
}

// Compute returns the management and performance fees due for in, and the
// high-water mark after both have been deducted.
//
// Both fees are evaluated on the pre-fee NAV. The management fee is capped at
// the NAV and the performance fee at what remains, so the post-fee NAV is
// never negative. The high-water mark never decreases. Only the stored
// results are narrowed to Money; a post-fee NAV-per-share beyond its range
// is money.ErrOverflow.
func Compute(in Input) (Result, error) {
	if in.TotalValue < 0 || in.TotalShares < 0 || in.HighWaterMark < 0 {
		return Result{}, ErrInvalidInput
	}

	res := Result{HighWaterMark: in.HighWaterMark}
	if in.TotalShares == 0 {
		return res, nil
	}

	mgmt, err := Management(in.TotalValue, in.ManagementFee, in.Elapsed)
	if err != nil {
		return Result{}, err
	}
	mgmt = money.Min(mgmt, in.TotalValue)

	perf, err := Performance(in.TotalValue, in.TotalShares, in.PerformanceFee, in.HighWaterMark)
	if err != nil {
		return Result{}, err
	}
	perf = money.Min(perf, in.TotalValue-mgmt)

	after, err := NAVPerShare(in.TotalValue-mgmt-perf, in.TotalShares)
	if err != nil {
		return Result{}, err
	}

	res.ManagementFee = mgmt
	res.PerformanceFee = perf
	res.HighWaterMark = money.Max(in.HighWaterMark, after)
	return res, nil
}
