// Package registry owns the collection of vaults. It issues sequential vault
// ids, indexes vaults by manager and investor, serializes mutations per vault
// and writes every change through the store before it becomes visible.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atmx/vault-engine/internal/fee"
	"github.com/atmx/vault-engine/internal/ledger"
	"github.com/atmx/vault-engine/internal/metrics"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/money"
	"github.com/atmx/vault-engine/internal/store"
)

// ErrVaultNotFound is returned for unknown vault ids.
var ErrVaultNotFound = errors.New("registry: vault not found")

// Notifier receives every committed event.
type Notifier interface {
	Publish(ev model.Event)
}

// Options configures a Registry.
type Options struct {
	Ledger   ledger.Config
	Now      func() time.Time // defaults to time.Now in UTC
	Notifier Notifier         // optional
}

type entry struct {
	mu    sync.RWMutex
	state *ledger.State
}

// Registry is safe for concurrent use. Lock order is vault, then registry.
type Registry struct {
	store  store.Store
	ledger *ledger.Ledger
	now    func() time.Time
	notify Notifier

	createMu sync.Mutex // serializes id allocation with persistence

	mu         sync.RWMutex
	vaults     map[uint64]*entry
	nextID     uint64
	byManager  map[string][]uint64
	byInvestor map[string]map[uint64]struct{}
}

// New creates an empty registry backed by st.
func New(st store.Store, opts Options) *Registry {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Registry{
		store:      st,
		ledger:     ledger.New(opts.Ledger),
		now:        now,
		notify:     opts.Notifier,
		vaults:     make(map[uint64]*entry),
		byManager:  make(map[string][]uint64),
		byInvestor: make(map[string]map[uint64]struct{}),
	}
}

// Load rebuilds the registry from the store. It must be called before the
// registry serves requests.
func (r *Registry) Load(ctx context.Context) error {
	snaps, err := r.store.LoadVaults(ctx, r.ledger.Config().HistoryCapacity)
	if err != nil {
		return fmt.Errorf("load vaults: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var tvl money.Money
	active := 0
	for _, snap := range snaps {
		st := r.ledger.NewState(snap.Vault)
		for _, p := range snap.Positions {
			st.Positions[p.Investor] = p.Shares
			r.indexInvestor(p.Investor, snap.Vault.ID, p.Shares)
		}
		for _, smp := range snap.Samples {
			st.History.Add(smp)
		}
		id := snap.Vault.ID
		r.vaults[id] = &entry{state: st}
		r.byManager[snap.Vault.Manager] = append(r.byManager[snap.Vault.Manager], id)
		if id > r.nextID {
			r.nextID = id
		}
		if snap.Vault.Status == model.StatusActive {
			active++
		}
		if tvl, err = tvl.Add(snap.Vault.TotalValue); err != nil {
			return fmt.Errorf("total value locked: %w", err)
		}
	}

	metrics.ActiveVaults.Set(float64(active))
	metrics.TotalValueLocked.Set(tvl.Decimal().InexactFloat64())
	slog.Info("registry loaded", "vaults", len(snaps), "next_id", r.nextID+1)
	return nil
}

// --- Operations ---

// Create registers a new vault managed by p.Manager.
func (r *Registry) Create(ctx context.Context, p ledger.CreateParams) (info model.VaultInfo, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation("create", start, err) }()

	r.createMu.Lock()
	defer r.createMu.Unlock()

	r.mu.RLock()
	id := r.nextID + 1
	r.mu.RUnlock()

	st, ev, err := r.ledger.Create(id, p, r.now())
	if err != nil {
		return model.VaultInfo{}, err
	}
	ev.ID = uuid.NewString()
	if err := r.store.CreateVault(ctx, &st.Vault, &ev); err != nil {
		slog.Error("persist vault failed", "vault_id", id, "err", err)
		return model.VaultInfo{}, fmt.Errorf("persist vault: %w", err)
	}

	r.mu.Lock()
	r.vaults[id] = &entry{state: st}
	r.nextID = id
	r.byManager[p.Manager] = append(r.byManager[p.Manager], id)
	r.mu.Unlock()

	metrics.ActiveVaults.Inc()
	slog.Info("vault created",
		"vault_id", id,
		"manager", p.Manager,
		"management_fee", p.ManagementFee.String(),
		"performance_fee", p.PerformanceFee.String(),
		"min_deposit", p.MinDeposit.String(),
	)
	r.publish(ev)
	return st.Info()
}

// Deposit adds amount to the vault for investor and returns the shares minted.
func (r *Registry) Deposit(ctx context.Context, id uint64, investor string, amount money.Money) (money.Money, error) {
	var minted money.Money
	_, err := r.mutate(ctx, "deposit", id, func(s *ledger.State, now time.Time) (ledger.Mutation, error) {
		var (
			m   ledger.Mutation
			err error
		)
		minted, m, err = r.ledger.Deposit(s, investor, amount, now)
		return m, err
	})
	if err != nil {
		return 0, err
	}
	slog.Info("deposit",
		"vault_id", id,
		"investor", investor,
		"amount", amount.String(),
		"shares", minted.String(),
	)
	return minted, nil
}

// Withdraw burns shares held by investor and returns the amount paid out.
func (r *Registry) Withdraw(ctx context.Context, id uint64, investor string, shares money.Money) (money.Money, error) {
	var amount money.Money
	_, err := r.mutate(ctx, "withdraw", id, func(s *ledger.State, now time.Time) (ledger.Mutation, error) {
		var (
			m   ledger.Mutation
			err error
		)
		amount, m, err = r.ledger.Withdraw(s, investor, shares, now)
		return m, err
	})
	if err != nil {
		return 0, err
	}
	slog.Info("withdraw",
		"vault_id", id,
		"investor", investor,
		"shares", shares.String(),
		"amount", amount.String(),
	)
	return amount, nil
}

// RecordTradeResult applies realized P&L reported by the vault manager.
func (r *Registry) RecordTradeResult(ctx context.Context, id uint64, caller string, pnl money.Money) (ledger.TradeOutcome, error) {
	var out ledger.TradeOutcome
	_, err := r.mutate(ctx, "trade_result", id, func(s *ledger.State, now time.Time) (ledger.Mutation, error) {
		var (
			m   ledger.Mutation
			err error
		)
		out, m, err = r.ledger.RecordTradeResult(s, caller, pnl, now)
		return m, err
	})
	if err != nil {
		return ledger.TradeOutcome{}, err
	}
	if out.NavFloored {
		metrics.NavFloored.Inc()
		slog.Warn("trade loss exceeded NAV, floored at zero",
			"vault_id", id,
			"pnl", pnl.String(),
		)
	} else {
		slog.Info("trade result recorded",
			"vault_id", id,
			"pnl", pnl.String(),
			"total_value", out.TotalValue.String(),
		)
	}
	return out, nil
}

// CollectFees charges accrued management and performance fees.
func (r *Registry) CollectFees(ctx context.Context, id uint64, caller string, force bool) (fee.Result, error) {
	var res fee.Result
	_, err := r.mutate(ctx, "collect_fees", id, func(s *ledger.State, now time.Time) (ledger.Mutation, error) {
		var (
			m   ledger.Mutation
			err error
		)
		res, m, err = r.ledger.CollectFees(s, caller, force, now)
		return m, err
	})
	if err != nil {
		return fee.Result{}, err
	}
	metrics.FeesCollected.WithLabelValues("management").Add(res.ManagementFee.Decimal().InexactFloat64())
	metrics.FeesCollected.WithLabelValues("performance").Add(res.PerformanceFee.Decimal().InexactFloat64())
	slog.Info("fees collected",
		"vault_id", id,
		"management_fee", res.ManagementFee.String(),
		"performance_fee", res.PerformanceFee.String(),
		"high_water_mark", res.HighWaterMark.String(),
		"forced", force,
	)
	return res, nil
}

// SetStatus moves the vault through its lifecycle.
func (r *Registry) SetStatus(ctx context.Context, id uint64, caller string, next model.Status) (model.VaultInfo, error) {
	var prev model.Status
	info, err := r.mutate(ctx, "set_status", id, func(s *ledger.State, now time.Time) (ledger.Mutation, error) {
		prev = s.Vault.Status
		return r.ledger.SetStatus(s, caller, next, now)
	})
	if err != nil {
		return model.VaultInfo{}, err
	}
	switch {
	case prev == model.StatusActive:
		metrics.ActiveVaults.Dec()
	case next == model.StatusActive:
		metrics.ActiveVaults.Inc()
	}
	slog.Info("vault status changed", "vault_id", id, "from", prev, "to", next)
	return info, nil
}

// mutate runs fn under the vault's write lock, persists its Mutation and
// then installs it. Nothing changes in memory unless the store accepts the
// commit.
func (r *Registry) mutate(ctx context.Context, op string, id uint64, fn func(*ledger.State, time.Time) (ledger.Mutation, error)) (info model.VaultInfo, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(op, start, err) }()

	e, err := r.entry(id)
	if err != nil {
		return model.VaultInfo{}, err
	}

	e.mu.Lock()
	prev := e.state.Vault
	m, err := fn(e.state, r.now())
	if err != nil {
		e.mu.Unlock()
		return model.VaultInfo{}, err
	}
	m.Event.ID = uuid.NewString()
	if err := r.store.Commit(ctx, commitOf(id, m)); err != nil {
		e.mu.Unlock()
		slog.Error("persist mutation failed", "op", op, "vault_id", id, "err", err)
		return model.VaultInfo{}, fmt.Errorf("persist %s: %w", op, err)
	}
	e.state.Apply(m)
	if len(m.Positions) > 0 {
		r.mu.Lock()
		for investor, shares := range m.Positions {
			r.indexInvestor(investor, id, shares)
		}
		r.mu.Unlock()
	}
	info, infoErr := e.state.Info()
	if infoErr != nil {
		// The mutation is committed; only NAV-per-share is missing from the view.
		info = model.VaultInfo{Vault: e.state.Vault, Investors: len(e.state.Positions)}
	}
	e.mu.Unlock()
	if infoErr != nil {
		slog.Warn("nav per share unavailable after commit", "op", op, "vault_id", id, "err", infoErr)
	}

	if delta := m.Vault.TotalValue - prev.TotalValue; delta != 0 {
		metrics.TotalValueLocked.Add(delta.Decimal().InexactFloat64())
	}
	r.publish(m.Event)
	return info, nil
}

func commitOf(id uint64, m ledger.Mutation) *store.Commit {
	c := &store.Commit{Vault: m.Vault, Sample: m.Sample, Event: m.Event}
	for investor, shares := range m.Positions {
		c.Positions = append(c.Positions, model.InvestorPosition{
			VaultID:  id,
			Investor: investor,
			Shares:   shares,
		})
	}
	sort.Slice(c.Positions, func(i, j int) bool { return c.Positions[i].Investor < c.Positions[j].Investor })
	return c
}

// indexInvestor must be called with r.mu held for writing.
func (r *Registry) indexInvestor(investor string, id uint64, shares money.Money) {
	if shares == 0 {
		if ids, ok := r.byInvestor[investor]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(r.byInvestor, investor)
			}
		}
		return
	}
	ids, ok := r.byInvestor[investor]
	if !ok {
		ids = make(map[uint64]struct{})
		r.byInvestor[investor] = ids
	}
	ids[id] = struct{}{}
}

func (r *Registry) publish(ev model.Event) {
	if r.notify != nil {
		r.notify.Publish(ev)
	}
}

func (r *Registry) entry(id uint64) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.vaults[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrVaultNotFound, id)
	}
	return e, nil
}

// entries returns every vault ordered by id.
func (r *Registry) entries() []*entry {
	r.mu.RLock()
	ids := make([]uint64, 0, len(r.vaults))
	for id := range r.vaults {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*entry, len(ids))
	for i, id := range ids {
		out[i] = r.vaults[id]
	}
	r.mu.RUnlock()
	return out
}

// read runs fn under the vault's read lock.
func (r *Registry) read(id uint64, fn func(*ledger.State) error) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(e.state)
}
