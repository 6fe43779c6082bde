package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/atmx/vault-engine/internal/fee"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/money"
)

// Return windows for the performance view.
const (
	Week  = 7 * 24 * time.Hour
	Month = 30 * 24 * time.Hour
)

// State is the complete accounting state of one vault. It is not safe for
// concurrent use; the registry guards each State with its own lock.
type State struct {
	Vault     model.Vault
	Positions map[string]money.Money // investor -> shares, zero balances removed
	History   *History
}

// NewState wraps a vault record with empty positions and history.
func NewState(v model.Vault, historyCapacity int) *State {
	return &State{
		Vault:     v,
		Positions: make(map[string]money.Money),
		History:   NewHistory(historyCapacity),
	}
}

// Mutation is the outcome of a successful operation, not yet applied.
type Mutation struct {
	Vault     model.Vault
	Positions map[string]money.Money // changed balances only; zero means removed
	Sample    *model.NavSample
	Event     model.Event
}

// Apply installs m. It must only be called with a Mutation produced from
// this State by the Ledger, after it has been persisted.
func (s *State) Apply(m Mutation) {
	s.Vault = m.Vault
	for investor, shares := range m.Positions {
		if shares == 0 {
			delete(s.Positions, investor)
			continue
		}
		s.Positions[investor] = shares
	}
	if m.Sample != nil {
		s.History.Add(*m.Sample)
	}
}

// Shares returns the investor's share balance.
func (s *State) Shares(investor string) money.Money {
	return s.Positions[investor]
}

// Depleted reports whether shares are outstanding against a zero NAV.
func (s *State) Depleted() bool {
	return s.Vault.TotalShares > 0 && s.Vault.TotalValue == 0
}

// NAVPerShare returns the current NAV-per-share scaled by money.Unit, or
// money.ErrOverflow when the ratio does not fit in a Money.
func (s *State) NAVPerShare() (money.Money, error) {
	nps, err := fee.NAVPerShare(s.Vault.TotalValue, s.Vault.TotalShares)
	if err != nil {
		return 0, fmt.Errorf("vault %d nav per share: %w", s.Vault.ID, err)
	}
	return nps, nil
}

// RedemptionValue returns floor(shares * NAV / total shares).
func (s *State) RedemptionValue(shares money.Money) money.Money {
	if s.Vault.TotalShares == 0 || shares <= 0 {
		return 0
	}
	v, err := money.MulDiv(shares, s.Vault.TotalValue, s.Vault.TotalShares)
	if err != nil {
		return 0
	}
	return v
}

// --- Views ---

// Info returns the public view of the vault.
func (s *State) Info() (model.VaultInfo, error) {
	nps, err := s.NAVPerShare()
	if err != nil {
		return model.VaultInfo{}, err
	}
	return model.VaultInfo{
		Vault:       s.Vault,
		NAVPerShare: nps,
		Investors:   len(s.Positions),
	}, nil
}

// Position returns one investor's position; absent investors hold zero.
func (s *State) Position(investor string) model.InvestorPosition {
	shares := s.Positions[investor]
	return model.InvestorPosition{
		VaultID:  s.Vault.ID,
		Investor: investor,
		Shares:   shares,
		Value:    s.RedemptionValue(shares),
	}
}

// Investors returns every non-zero position ordered by investor.
func (s *State) Investors() []model.InvestorPosition {
	out := make([]model.InvestorPosition, 0, len(s.Positions))
	for investor := range s.Positions {
		out = append(out, s.Position(investor))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Investor < out[j].Investor })
	return out
}

// Performance computes NAV-per-share returns. All-time is measured against
// the bootstrap price of 1.0; month and week against the latest sample at or
// before the window start, or the oldest retained sample for younger vaults.
func (s *State) Performance(now time.Time) (model.Performance, error) {
	p := model.Performance{
		VaultID: s.Vault.ID,
		Samples: s.History.Len(),
		AsOf:    now,
	}
	if s.Vault.TotalShares == 0 {
		return p, nil
	}
	cur, err := s.NAVPerShare()
	if err != nil {
		return model.Performance{}, err
	}
	p.NAVPerShare = cur
	if p.AllTime, err = returnBps(cur, money.Unit); err != nil {
		return model.Performance{}, fmt.Errorf("all-time return: %w", err)
	}
	if s.History.Len() == 0 {
		return p, nil
	}
	if p.Month, err = returnBps(cur, s.baseline(now.Add(-Month))); err != nil {
		return model.Performance{}, fmt.Errorf("month return: %w", err)
	}
	if p.Week, err = returnBps(cur, s.baseline(now.Add(-Week))); err != nil {
		return model.Performance{}, fmt.Errorf("week return: %w", err)
	}
	return p, nil
}

func (s *State) baseline(t time.Time) money.Money {
	if smp, ok := s.History.AtOrBefore(t); ok {
		return smp.NAVPerShare
	}
	smp, _ := s.History.Oldest()
	return smp.NAVPerShare
}

// returnBps returns (cur - base) / base in basis points, truncated toward
// zero. Both operands are non-negative NAV-per-share values.
func returnBps(cur, base money.Money) (int64, error) {
	if base <= 0 {
		return 0, nil
	}
	if cur < base {
		r, err := money.Ratio(int64(base), int64(base-cur), money.BasisPoints)
		return -int64(r), err
	}
	r, err := money.Ratio(int64(base), int64(cur-base), money.BasisPoints)
	return int64(r), err
}
