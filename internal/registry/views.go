package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/atmx/vault-engine/internal/ledger"
	"github.com/atmx/vault-engine/internal/metrics"
	"github.com/atmx/vault-engine/internal/model"
)

// GetVaultInfo returns a consistent snapshot of one vault.
func (r *Registry) GetVaultInfo(id uint64) (model.VaultInfo, error) {
	var info model.VaultInfo
	err := r.read(id, func(s *ledger.State) (err error) {
		info, err = s.Info()
		return err
	})
	return info, err
}

// GetInvestorShares returns the investor's position; unknown investors hold
// zero shares.
func (r *Registry) GetInvestorShares(id uint64, investor string) (model.InvestorPosition, error) {
	var pos model.InvestorPosition
	err := r.read(id, func(s *ledger.State) error {
		pos = s.Position(investor)
		return nil
	})
	return pos, err
}

// GetVaultInvestors lists every non-zero position in the vault.
func (r *Registry) GetVaultInvestors(id uint64) ([]model.InvestorPosition, error) {
	var out []model.InvestorPosition
	err := r.read(id, func(s *ledger.State) error {
		out = s.Investors()
		return nil
	})
	return out, err
}

// GetVaultPerformance returns NAV-per-share returns as of now.
func (r *Registry) GetVaultPerformance(id uint64) (model.Performance, error) {
	var p model.Performance
	now := r.now()
	err := r.read(id, func(s *ledger.State) (err error) {
		p, err = s.Performance(now)
		return err
	})
	return p, err
}

// GetNavHistory returns the retained NAV-per-share samples, oldest first.
func (r *Registry) GetNavHistory(id uint64) ([]model.NavSample, error) {
	var out []model.NavSample
	err := r.read(id, func(s *ledger.State) error {
		out = s.History.Samples()
		return nil
	})
	return out, err
}

// GetVaultEvents returns the most recent journal events of a vault.
func (r *Registry) GetVaultEvents(ctx context.Context, id uint64, limit int) ([]model.Event, error) {
	if _, err := r.entry(id); err != nil {
		return nil, err
	}
	events, err := r.store.GetEvents(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	return events, nil
}

// GetVaultsByManager returns the ids of the vaults managed by manager.
func (r *Registry) GetVaultsByManager(manager string) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]uint64{}, r.byManager[manager]...)
}

// GetVaultsByInvestor returns the ids of the vaults in which investor holds
// shares, ascending.
func (r *Registry) GetVaultsByInvestor(investor string) []uint64 {
	r.mu.RLock()
	ids := make([]uint64, 0, len(r.byInvestor[investor]))
	for id := range r.byInvestor[investor] {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ListVaults returns every vault ordered by id.
func (r *Registry) ListVaults() ([]model.VaultInfo, error) {
	entries := r.entries()
	out := make([]model.VaultInfo, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		info, err := e.state.Info()
		e.mu.RUnlock()
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// Len returns the number of vaults.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.vaults)
}

// GetTotalValueLocked sums NAV across all vaults.
func (r *Registry) GetTotalValueLocked() (model.TotalValueLocked, error) {
	entries := r.entries()
	tvl := model.TotalValueLocked{Vaults: len(entries)}
	for _, e := range entries {
		e.mu.RLock()
		v := e.state.Vault.TotalValue
		e.mu.RUnlock()

		var err error
		if tvl.TotalValue, err = tvl.TotalValue.Add(v); err != nil {
			return model.TotalValueLocked{}, fmt.Errorf("total value locked: %w", err)
		}
	}
	return tvl, nil
}

// SampleNAV records the current NAV-per-share of every vault with shares
// outstanding. It returns the number of samples written; vaults whose sample
// could not be persisted are skipped and reported in the joined error.
func (r *Registry) SampleNAV(ctx context.Context) (int, error) {
	now := r.now()
	var (
		n    int
		errs []error
	)
	for _, e := range r.entries() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ok, err := r.sample(ctx, e, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			n++
		}
	}
	metrics.NavSamples.Add(float64(n))
	return n, errors.Join(errs...)
}

func (r *Registry) sample(ctx context.Context, e *entry, now time.Time) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state
	if s.Vault.TotalShares == 0 {
		return false, nil
	}
	if latest, ok := s.History.Latest(); ok && now.Before(latest.At) {
		return false, nil
	}
	nps, err := s.NAVPerShare()
	if err != nil {
		return false, err
	}
	smp := model.NavSample{At: now, NAVPerShare: nps}
	if err := r.store.AppendSample(ctx, s.Vault.ID, smp); err != nil {
		slog.Error("persist nav sample failed", "vault_id", s.Vault.ID, "err", err)
		return false, fmt.Errorf("vault %d: %w", s.Vault.ID, err)
	}
	s.History.Add(smp)
	return true, nil
}
