// Package ledger implements the per-vault accounting state machine: NAV,
// shares, status, high-water mark, fee clock and investor positions.
//
// Operations never modify a State. Each one checks its preconditions against
// the current state and returns a Mutation holding the new vault record, the
// changed positions and the journal event. The caller persists the Mutation
// and then installs it with State.Apply, so a rejected or failed operation has
// nothing to undo.
//
// Share pricing floors in favour of the vault: deposits mint
// floor(amount * shares / NAV) and withdrawals return
// floor(shares * NAV / shares_outstanding).
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/atmx/vault-engine/internal/fee"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/money"
)

// Config holds the ledger-wide policy knobs.
type Config struct {
	// MaxManagementFee and MaxPerformanceFee bound the fee rates accepted
	// at creation. Each is checked independently.
	MaxManagementFee  money.Rate
	MaxPerformanceFee money.Rate

	// RejectEmptyCollection makes an unforced collection with zero fees
	// fail with ErrNothingToCollect instead of succeeding as a no-op.
	RejectEmptyCollection bool

	// HistoryCapacity is the number of NAV-per-share samples kept per vault.
	HistoryCapacity int
}

// DefaultConfig returns a 10% management and 30% performance fee ceiling,
// strict empty collections and 1000 retained samples.
func DefaultConfig() Config {
	return Config{
		MaxManagementFee:      1000,
		MaxPerformanceFee:     3000,
		RejectEmptyCollection: true,
		HistoryCapacity:       1000,
	}
}

// CreateParams are the caller-supplied fields of a new vault.
type CreateParams struct {
	Manager        string      `json:"manager"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	ManagementFee  money.Rate  `json:"management_fee_bps"`
	PerformanceFee money.Rate  `json:"performance_fee_bps"`
	MinDeposit     money.Money `json:"min_deposit"`
}

// TradeOutcome describes the NAV change applied by a trade result.
type TradeOutcome struct {
	PnL        money.Money `json:"pnl"`
	TotalValue money.Money `json:"total_value"`
	// NavFloored is set when a loss larger than the NAV was clamped to zero.
	NavFloored bool `json:"nav_floored"`
}

// Ledger applies the vault state machine under a fixed Config.
type Ledger struct {
	cfg Config
}

// New creates a ledger. A non-positive history capacity falls back to the
// default.
func New(cfg Config) *Ledger {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = DefaultConfig().HistoryCapacity
	}
	return &Ledger{cfg: cfg}
}

// Config returns the ledger's configuration.
func (l *Ledger) Config() Config {
	return l.cfg
}

// NewState wraps a stored vault record using the configured history capacity.
func (l *Ledger) NewState(v model.Vault) *State {
	return NewState(v, l.cfg.HistoryCapacity)
}

// Create validates p and returns the initial state of vault id.
func (l *Ledger) Create(id uint64, p CreateParams, now time.Time) (*State, model.Event, error) {
	if p.Manager == "" {
		return nil, model.Event{}, fmt.Errorf("%w: manager is required", ErrInvalidParameters)
	}
	if err := p.ManagementFee.Validate(l.cfg.MaxManagementFee); err != nil {
		return nil, model.Event{}, fmt.Errorf("%w: management fee: %v", ErrInvalidParameters, err)
	}
	if err := p.PerformanceFee.Validate(l.cfg.MaxPerformanceFee); err != nil {
		return nil, model.Event{}, fmt.Errorf("%w: performance fee: %v", ErrInvalidParameters, err)
	}
	if p.MinDeposit <= 0 {
		return nil, model.Event{}, fmt.Errorf("%w: min deposit must be positive", ErrInvalidParameters)
	}

	v := model.Vault{
		ID:                id,
		Manager:           p.Manager,
		Name:              p.Name,
		Description:       p.Description,
		ManagementFee:     p.ManagementFee,
		PerformanceFee:    p.PerformanceFee,
		MinDeposit:        p.MinDeposit,
		Status:            model.StatusActive,
		LastFeeCollection: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	ev := model.Event{
		VaultID:   id,
		Kind:      model.EventCreated,
		Caller:    p.Manager,
		Status:    v.Status,
		Timestamp: now,
	}
	return l.NewState(v), ev, nil
}

// Deposit mints shares for amount. The first deposit into an empty vault
// mints 1:1, sets the high-water mark to 1.0 and restarts the fee clock.
func (l *Ledger) Deposit(s *State, investor string, amount money.Money, now time.Time) (money.Money, Mutation, error) {
	v := s.Vault
	if investor == "" {
		return 0, Mutation{}, fmt.Errorf("%w: investor is required", ErrInvalidParameters)
	}
	if err := tradable(v.Status); err != nil {
		return 0, Mutation{}, err
	}
	if amount < v.MinDeposit {
		return 0, Mutation{}, fmt.Errorf("%w: %s < %s", ErrBelowMinimumDeposit, amount, v.MinDeposit)
	}

	var (
		minted money.Money
		sample *model.NavSample
		err    error
	)
	if v.TotalShares == 0 {
		minted = amount
		v.HighWaterMark = money.Unit
		v.LastFeeCollection = now
		sample = &model.NavSample{At: now, NAVPerShare: money.Unit}
	} else {
		if v.TotalValue == 0 {
			return 0, Mutation{}, ErrNavDepleted
		}
		minted, err = money.MulDiv(amount, v.TotalShares, v.TotalValue)
		if err != nil {
			return 0, Mutation{}, fmt.Errorf("price deposit: %w", err)
		}
		if minted == 0 {
			return 0, Mutation{}, ErrZeroSharesMinted
		}
	}

	if v.TotalValue, err = v.TotalValue.Add(amount); err != nil {
		return 0, Mutation{}, fmt.Errorf("total value: %w", err)
	}
	if v.TotalShares, err = v.TotalShares.Add(minted); err != nil {
		return 0, Mutation{}, fmt.Errorf("total shares: %w", err)
	}
	position, err := s.Shares(investor).Add(minted)
	if err != nil {
		return 0, Mutation{}, fmt.Errorf("position: %w", err)
	}
	if err := representable(v); err != nil {
		return 0, Mutation{}, err
	}
	v.UpdatedAt = now

	return minted, Mutation{
		Vault:     v,
		Positions: map[string]money.Money{investor: position},
		Sample:    sample,
		Event:     event(v, model.EventDeposit, investor, amount, minted, now),
	}, nil
}

// Withdraw burns shares and returns their floored proportional value.
// Withdrawals are allowed in every status.
func (l *Ledger) Withdraw(s *State, investor string, shares money.Money, now time.Time) (money.Money, Mutation, error) {
	v := s.Vault
	held := s.Shares(investor)
	if shares <= 0 || shares > held {
		return 0, Mutation{}, fmt.Errorf("%w: requested %s, held %s", ErrInsufficientShares, shares, held)
	}

	amount, err := money.MulDiv(shares, v.TotalValue, v.TotalShares)
	if err != nil {
		return 0, Mutation{}, fmt.Errorf("price withdrawal: %w", err)
	}
	if v.TotalValue, err = nonNegativeSub(v.TotalValue, amount); err != nil {
		return 0, Mutation{}, fmt.Errorf("total value: %w", err)
	}
	if v.TotalShares, err = nonNegativeSub(v.TotalShares, shares); err != nil {
		return 0, Mutation{}, fmt.Errorf("total shares: %w", err)
	}
	v.UpdatedAt = now

	return amount, Mutation{
		Vault:     v,
		Positions: map[string]money.Money{investor: held - shares},
		Event:     event(v, model.EventWithdraw, investor, amount, shares, now),
	}, nil
}

// RecordTradeResult applies realized P&L reported for the vault. A loss can
// never push NAV below zero; clamping is reported through NavFloored. A gain
// that would take NAV-per-share beyond the Money range fails with
// money.ErrOverflow.
func (l *Ledger) RecordTradeResult(s *State, caller string, pnl money.Money, now time.Time) (TradeOutcome, Mutation, error) {
	v := s.Vault
	if caller != v.Manager {
		return TradeOutcome{}, Mutation{}, ErrUnauthorized
	}
	if err := tradable(v.Status); err != nil {
		return TradeOutcome{}, Mutation{}, err
	}
	if v.TotalShares == 0 {
		return TradeOutcome{}, Mutation{}, fmt.Errorf("%w: vault holds no capital", ErrInvalidParameters)
	}

	nav, err := v.TotalValue.Add(pnl)
	switch {
	case errors.Is(err, money.ErrUnderflow):
		nav = -1
	case err != nil:
		return TradeOutcome{}, Mutation{}, fmt.Errorf("total value: %w", err)
	}
	out := TradeOutcome{PnL: pnl}
	if nav < 0 {
		nav = 0
		out.NavFloored = true
	}
	out.TotalValue = nav
	v.TotalValue = nav
	if err := representable(v); err != nil {
		return TradeOutcome{}, Mutation{}, err
	}
	v.UpdatedAt = now

	return out, Mutation{
		Vault: v,
		Event: event(v, model.EventTradeResult, caller, pnl, 0, now),
	}, nil
}

// CollectFees charges the management and performance fees accrued since the
// last collection. Fees reduce NAV; shares are untouched.
//
// When both fees are zero: with force the fee clock and high-water mark are
// advanced; otherwise the call fails with ErrNothingToCollect if the ledger
// is configured to reject empty collections, or succeeds without touching the
// vault so that sub-unit management accrual is kept.
func (l *Ledger) CollectFees(s *State, caller string, force bool, now time.Time) (fee.Result, Mutation, error) {
	v := s.Vault
	if caller != v.Manager {
		return fee.Result{}, Mutation{}, ErrUnauthorized
	}

	res, err := fee.Compute(fee.Input{
		TotalValue:     v.TotalValue,
		TotalShares:    v.TotalShares,
		ManagementFee:  v.ManagementFee,
		PerformanceFee: v.PerformanceFee,
		HighWaterMark:  v.HighWaterMark,
		Elapsed:        now.Sub(v.LastFeeCollection),
	})
	if err != nil {
		return fee.Result{}, Mutation{}, fmt.Errorf("compute fees: %w", err)
	}

	total := res.Total()
	if total == 0 && !force {
		if l.cfg.RejectEmptyCollection {
			return fee.Result{}, Mutation{}, ErrNothingToCollect
		}
		res.HighWaterMark = v.HighWaterMark
		return res, Mutation{
			Vault: v,
			Event: feeEvent(v, caller, res, now),
		}, nil
	}

	if v.TotalValue, err = nonNegativeSub(v.TotalValue, total); err != nil {
		return fee.Result{}, Mutation{}, fmt.Errorf("total value: %w", err)
	}
	if v.FeesCollected, err = v.FeesCollected.Add(total); err != nil {
		return fee.Result{}, Mutation{}, fmt.Errorf("fees collected: %w", err)
	}
	v.HighWaterMark = res.HighWaterMark
	v.LastFeeCollection = now
	v.UpdatedAt = now

	return res, Mutation{
		Vault: v,
		Event: feeEvent(v, caller, res, now),
	}, nil
}

// transitions lists the allowed targets per status. Closed is terminal.
var transitions = map[model.Status][]model.Status{
	model.StatusActive: {model.StatusPaused, model.StatusClosed},
	model.StatusPaused: {model.StatusActive, model.StatusClosed},
}

// SetStatus moves the vault through the state machine.
func (l *Ledger) SetStatus(s *State, caller string, next model.Status, now time.Time) (Mutation, error) {
	v := s.Vault
	if caller != v.Manager {
		return Mutation{}, ErrUnauthorized
	}
	if _, err := model.ParseStatus(string(next)); err != nil {
		return Mutation{}, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if !canTransition(v.Status, next) {
		return Mutation{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, v.Status, next)
	}
	v.Status = next
	v.UpdatedAt = now

	return Mutation{
		Vault: v,
		Event: event(v, model.EventStatusChanged, caller, 0, 0, now),
	}, nil
}

func canTransition(from, to model.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// tradable gates deposits and trade execution.
func tradable(s model.Status) error {
	switch s {
	case model.StatusActive:
		return nil
	case model.StatusClosed:
		return ErrVaultClosed
	default:
		return ErrVaultNotActive
	}
}

// representable rejects a state whose NAV-per-share does not fit in a Money.
// Deposits and gains are the operations that raise NAV-per-share.
func representable(v model.Vault) error {
	if _, err := fee.NAVPerShare(v.TotalValue, v.TotalShares); err != nil {
		return fmt.Errorf("nav per share: %w", err)
	}
	return nil
}

func nonNegativeSub(a, b money.Money) (money.Money, error) {
	d, err := a.Sub(b)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, money.ErrUnderflow
	}
	return d, nil
}

func event(v model.Vault, kind model.EventKind, caller string, amount, shares money.Money, now time.Time) model.Event {
	return model.Event{
		VaultID:     v.ID,
		Kind:        kind,
		Caller:      caller,
		Amount:      amount,
		Shares:      shares,
		TotalValue:  v.TotalValue,
		TotalShares: v.TotalShares,
		Status:      v.Status,
		Timestamp:   now,
	}
}

func feeEvent(v model.Vault, caller string, res fee.Result, now time.Time) model.Event {
	ev := event(v, model.EventFeesCollected, caller, res.Total(), 0, now)
	ev.ManagementFee = res.ManagementFee
	ev.PerformanceFee = res.PerformanceFee
	return ev
}
