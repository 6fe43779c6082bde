package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/atmx/vault-engine/internal/fee"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/money"
)

const manager = "manager-1"

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func tok(n int64) money.Money { return money.Tokens(n) }

// newVault creates an active vault with 2%/20% fees and a 100-token minimum.
func newVault(t *testing.T, l *Ledger) *State {
	t.Helper()
	s, _, err := l.Create(1, CreateParams{
		Manager:        manager,
		Name:           "alpha",
		ManagementFee:  200,
		PerformanceFee: 2000,
		MinDeposit:     tok(100),
	}, t0)
	if err != nil {
		t.Fatalf("create vault: %v", err)
	}
	return s
}

func mustDeposit(t *testing.T, l *Ledger, s *State, investor string, amount money.Money, at time.Time) money.Money {
	t.Helper()
	minted, m, err := l.Deposit(s, investor, amount, at)
	if err != nil {
		t.Fatalf("deposit %s for %s: %v", amount, investor, err)
	}
	s.Apply(m)
	return minted
}

func sumPositions(s *State) money.Money {
	var total money.Money
	for _, sh := range s.Positions {
		total += sh
	}
	return total
}

// --- Create ---

func TestCreate_Initialises(t *testing.T) {
	l := New(DefaultConfig())
	s, ev, err := l.Create(7, CreateParams{
		Manager: manager, ManagementFee: 200, PerformanceFee: 2000, MinDeposit: 1,
	}, t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := s.Vault
	if v.ID != 7 || v.Status != model.StatusActive {
		t.Errorf("unexpected vault: %+v", v)
	}
	if v.TotalValue != 0 || v.TotalShares != 0 || v.HighWaterMark != 0 {
		t.Errorf("expected empty vault, got %+v", v)
	}
	if !v.LastFeeCollection.Equal(t0) || !v.CreatedAt.Equal(t0) {
		t.Errorf("timestamps should equal creation time")
	}
	if ev.Kind != model.EventCreated || ev.Caller != manager {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestCreate_InvalidParameters(t *testing.T) {
	l := New(DefaultConfig())
	tests := []struct {
		name string
		p    CreateParams
	}{
		{"no manager", CreateParams{MinDeposit: 1}},
		{"management fee above ceiling", CreateParams{Manager: manager, ManagementFee: 1001, MinDeposit: 1}},
		{"performance fee above ceiling", CreateParams{Manager: manager, PerformanceFee: 5000, MinDeposit: 1}},
		{"zero min deposit", CreateParams{Manager: manager}},
		{"negative min deposit", CreateParams{Manager: manager, MinDeposit: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := l.Create(1, tt.p, t0)
			if !errors.Is(err, ErrInvalidParameters) {
				t.Errorf("expected ErrInvalidParameters, got %v", err)
			}
		})
	}
}

func TestCreate_CustomCeiling(t *testing.T) {
	l := New(Config{MaxManagementFee: 100, MaxPerformanceFee: 5000})
	if _, _, err := l.Create(1, CreateParams{Manager: manager, ManagementFee: 100, PerformanceFee: 5000, MinDeposit: 1}, t0); err != nil {
		t.Errorf("rates at their ceilings should be allowed: %v", err)
	}
	_, _, err := l.Create(1, CreateParams{Manager: manager, ManagementFee: 200, PerformanceFee: 2000, MinDeposit: 1}, t0)
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("management fee above its own ceiling should be rejected, got %v", err)
	}
}

func TestCreate_DefaultsAdmitTwoAndTwenty(t *testing.T) {
	s, _, err := New(DefaultConfig()).Create(1, CreateParams{
		Manager: manager, ManagementFee: 200, PerformanceFee: 2000, MinDeposit: tok(100),
	}, t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Vault.ManagementFee != 200 || s.Vault.PerformanceFee != 2000 {
		t.Errorf("unexpected fees: %+v", s.Vault)
	}
}

// --- Deposit ---

func TestDeposit_Bootstrap(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)

	later := t0.Add(48 * time.Hour)
	minted := mustDeposit(t, l, s, "alice", tok(100), later)

	if minted != tok(100) {
		t.Errorf("bootstrap should mint 1:1, got %s", minted)
	}
	if nps, err := s.NAVPerShare(); err != nil || nps != money.Unit {
		t.Errorf("expected NAV-per-share 1.0, got %s (%v)", nps, err)
	}
	if s.Vault.HighWaterMark != money.Unit {
		t.Errorf("expected high-water mark 1.0, got %s", s.Vault.HighWaterMark)
	}
	if !s.Vault.LastFeeCollection.Equal(later) {
		t.Errorf("bootstrap should restart the fee clock")
	}
	if s.History.Len() != 1 {
		t.Errorf("bootstrap should record a NAV sample, got %d", s.History.Len())
	}
}

func TestDeposit_Proportional(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	s.Vault.MinDeposit = 1
	s.Vault.TotalValue = 1000
	s.Vault.TotalShares = 500
	s.Positions["seed"] = 500

	amount := money.Money(333)
	minted, m, err := l.Deposit(s, "bob", amount, t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if minted != 166 {
		t.Errorf("expected floor(333*500/1000)=166, got %d", minted)
	}
	s.Apply(m)

	returned, m, err := l.Withdraw(s, "bob", minted, t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if returned > amount {
		t.Errorf("round trip created value: deposited %d, got back %d", amount, returned)
	}
	if returned != 332 {
		t.Errorf("expected floor(166*1333/666)=332, got %d", returned)
	}
	s.Apply(m)
	if sumPositions(s) != s.Vault.TotalShares {
		t.Errorf("share conservation violated")
	}
}

func TestDeposit_Rejections(t *testing.T) {
	l := New(DefaultConfig())

	t.Run("below minimum", func(t *testing.T) {
		s := newVault(t, l)
		_, _, err := l.Deposit(s, "alice", tok(99), t0)
		if !errors.Is(err, ErrBelowMinimumDeposit) {
			t.Errorf("expected ErrBelowMinimumDeposit, got %v", err)
		}
	})

	t.Run("paused", func(t *testing.T) {
		s := newVault(t, l)
		s.Vault.Status = model.StatusPaused
		_, _, err := l.Deposit(s, "alice", tok(100), t0)
		if !errors.Is(err, ErrVaultNotActive) {
			t.Errorf("expected ErrVaultNotActive, got %v", err)
		}
	})

	t.Run("closed", func(t *testing.T) {
		s := newVault(t, l)
		s.Vault.Status = model.StatusClosed
		_, _, err := l.Deposit(s, "alice", tok(100), t0)
		if !errors.Is(err, ErrVaultClosed) {
			t.Errorf("expected ErrVaultClosed, got %v", err)
		}
	})

	t.Run("dust", func(t *testing.T) {
		s := newVault(t, l)
		s.Vault.MinDeposit = 1
		s.Vault.TotalValue = 1000
		s.Vault.TotalShares = 1
		s.Positions["seed"] = 1
		_, _, err := l.Deposit(s, "alice", 999, t0)
		if !errors.Is(err, ErrZeroSharesMinted) {
			t.Errorf("expected ErrZeroSharesMinted, got %v", err)
		}
	})

	t.Run("depleted", func(t *testing.T) {
		s := newVault(t, l)
		s.Vault.TotalShares = tok(1)
		s.Positions["seed"] = tok(1)
		_, _, err := l.Deposit(s, "alice", tok(100), t0)
		if !errors.Is(err, ErrNavDepleted) {
			t.Errorf("expected ErrNavDepleted, got %v", err)
		}
	})

	t.Run("no investor", func(t *testing.T) {
		s := newVault(t, l)
		_, _, err := l.Deposit(s, "", tok(100), t0)
		if !errors.Is(err, ErrInvalidParameters) {
			t.Errorf("expected ErrInvalidParameters, got %v", err)
		}
	})
}

// --- Withdraw ---

func TestWithdraw_InsufficientShares(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	mustDeposit(t, l, s, "alice", tok(100), t0)
	before := s.Vault

	for _, shares := range []money.Money{0, -1, tok(100) + 1} {
		_, _, err := l.Withdraw(s, "alice", shares, t0)
		if !errors.Is(err, ErrInsufficientShares) {
			t.Errorf("withdraw %d: expected ErrInsufficientShares, got %v", shares, err)
		}
	}
	if _, _, err := l.Withdraw(s, "mallory", 1, t0); !errors.Is(err, ErrInsufficientShares) {
		t.Errorf("expected ErrInsufficientShares for unknown investor, got %v", err)
	}
	if s.Vault != before || s.Shares("alice") != tok(100) {
		t.Errorf("failed withdrawal changed state")
	}
}

func TestWithdraw_AllowedInEveryStatus(t *testing.T) {
	l := New(DefaultConfig())
	for _, st := range []model.Status{model.StatusActive, model.StatusPaused, model.StatusClosed} {
		s := newVault(t, l)
		mustDeposit(t, l, s, "alice", tok(100), t0)
		s.Vault.Status = st

		amount, m, err := l.Withdraw(s, "alice", tok(40), t0)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", st, err)
		}
		if amount != tok(40) {
			t.Errorf("%s: expected 40 tokens, got %s", st, amount)
		}
		s.Apply(m)
		if s.Vault.TotalValue != tok(60) || s.Vault.TotalShares != tok(60) {
			t.Errorf("%s: unexpected totals %+v", st, s.Vault)
		}
	}
}

func TestWithdraw_FullExitEmptiesVault(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	mustDeposit(t, l, s, "alice", tok(100), t0)
	_, m, _ := l.RecordTradeResult(s, manager, 12_345, t0)
	s.Apply(m)

	amount, m, err := l.Withdraw(s, "alice", tok(100), t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Apply(m)
	if amount != tok(100)+12_345 {
		t.Errorf("sole holder should receive the full NAV, got %s", amount)
	}
	if s.Vault.TotalValue != 0 || s.Vault.TotalShares != 0 {
		t.Errorf("expected empty vault, got %+v", s.Vault)
	}
	if _, ok := s.Positions["alice"]; ok {
		t.Errorf("zero balance should be removed")
	}
}

// --- Trade results ---

func TestRecordTradeResult_Gain(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	mustDeposit(t, l, s, "alice", tok(100), t0)

	out, m, err := l.RecordTradeResult(s, manager, tok(20), t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Apply(m)
	if out.NavFloored {
		t.Error("gain must not be floored")
	}
	if s.Vault.TotalValue != tok(120) {
		t.Errorf("expected NAV 120, got %s", s.Vault.TotalValue)
	}
	if s.Vault.TotalShares != tok(100) {
		t.Errorf("trade results must not change shares")
	}
}

func TestRecordTradeResult_LossFlooredAtZero(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	mustDeposit(t, l, s, "alice", tok(100), t0)

	for _, pnl := range []money.Money{-tok(500), money.Money(-1 << 63)} {
		out, m, err := l.RecordTradeResult(s, manager, pnl, t0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !out.NavFloored || m.Vault.TotalValue != 0 {
			t.Errorf("pnl %d: expected floored NAV of 0, got %+v", pnl, out)
		}
	}
}

func TestRecordTradeResult_Gating(t *testing.T) {
	l := New(DefaultConfig())

	s := newVault(t, l)
	if _, _, err := l.RecordTradeResult(s, manager, 1, t0); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("empty vault: expected ErrInvalidParameters, got %v", err)
	}

	mustDeposit(t, l, s, "alice", tok(100), t0)
	if _, _, err := l.RecordTradeResult(s, "alice", 1, t0); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	s.Vault.Status = model.StatusPaused
	if _, _, err := l.RecordTradeResult(s, manager, 1, t0); !errors.Is(err, ErrVaultNotActive) {
		t.Errorf("expected ErrVaultNotActive, got %v", err)
	}
	s.Vault.Status = model.StatusClosed
	if _, _, err := l.RecordTradeResult(s, manager, 1, t0); !errors.Is(err, ErrVaultClosed) {
		t.Errorf("expected ErrVaultClosed, got %v", err)
	}
}

// --- Fees ---

func TestCollectFees_ReferenceScenario(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	mustDeposit(t, l, s, "alice", tok(100), t0)
	_, m, _ := l.RecordTradeResult(s, manager, tok(20), t0)
	s.Apply(m)

	res, m, err := l.CollectFees(s, manager, false, t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Apply(m)

	if res.ManagementFee != 0 {
		t.Errorf("expected zero management fee, got %s", res.ManagementFee)
	}
	if res.PerformanceFee != tok(4) {
		t.Errorf("expected 4 tokens performance fee, got %s", res.PerformanceFee)
	}
	if s.Vault.TotalValue != tok(116) {
		t.Errorf("expected NAV 116, got %s", s.Vault.TotalValue)
	}
	if s.Vault.HighWaterMark != 116_000_000 {
		t.Errorf("expected high-water mark 1.16, got %s", s.Vault.HighWaterMark)
	}
	if s.Vault.TotalShares != tok(100) {
		t.Errorf("fee collection must not burn shares")
	}
	if s.Vault.FeesCollected != tok(4) {
		t.Errorf("expected 4 tokens collected, got %s", s.Vault.FeesCollected)
	}
}

func TestCollectFees_SecondCollectionNoPerformanceFee(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	mustDeposit(t, l, s, "alice", tok(100), t0)
	_, m, _ := l.RecordTradeResult(s, manager, tok(20), t0)
	s.Apply(m)

	_, m, _ = l.CollectFees(s, manager, false, t0)
	s.Apply(m)

	res, m, err := l.CollectFees(s, manager, false, t0.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PerformanceFee != 0 {
		t.Errorf("expected no performance fee without growth, got %s", res.PerformanceFee)
	}
	if res.ManagementFee == 0 {
		t.Errorf("a day of 2%% on 116 tokens should accrue a management fee")
	}
	s.Apply(m)
	if s.Vault.HighWaterMark != 116_000_000 {
		t.Errorf("high-water mark should not move, got %s", s.Vault.HighWaterMark)
	}
}

func TestCollectFees_ManagementProration(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	mustDeposit(t, l, s, "alice", tok(100), t0)

	res, _, err := l.CollectFees(s, manager, false, t0.Add(fee.SecondsPerYear*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ManagementFee != tok(2) {
		t.Errorf("expected 2 tokens for a full year at 2%%, got %s", res.ManagementFee)
	}
}

func TestCollectFees_NothingToCollect(t *testing.T) {
	s0 := func(l *Ledger) *State {
		s := newVault(t, l)
		s.Vault.ManagementFee = 0
		mustDeposit(t, l, s, "alice", tok(100), t0)
		return s
	}

	t.Run("rejected", func(t *testing.T) {
		l := New(DefaultConfig())
		s := s0(l)
		if _, _, err := l.CollectFees(s, manager, false, t0); !errors.Is(err, ErrNothingToCollect) {
			t.Errorf("expected ErrNothingToCollect, got %v", err)
		}
	})

	t.Run("silent", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RejectEmptyCollection = false
		l := New(cfg)
		s := s0(l)
		before := s.Vault
		res, m, err := l.CollectFees(s, manager, false, t0.Add(time.Second))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Total() != 0 {
			t.Errorf("expected zero fees, got %+v", res)
		}
		if m.Vault != before {
			t.Errorf("silent empty collection must leave the vault unchanged")
		}
	})

	t.Run("forced", func(t *testing.T) {
		l := New(DefaultConfig())
		s := s0(l)
		now := t0.Add(time.Second)
		_, m, err := l.CollectFees(s, manager, true, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !m.Vault.LastFeeCollection.Equal(now) {
			t.Errorf("forced collection should advance the fee clock")
		}
	})
}

func TestCollectFees_Unauthorized(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	if _, _, err := l.CollectFees(s, "alice", true, t0); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCollectFees_AllowedWhenClosed(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	mustDeposit(t, l, s, "alice", tok(100), t0)
	s.Vault.Status = model.StatusClosed

	res, _, err := l.CollectFees(s, manager, false, t0.Add(30*24*time.Hour))
	if err != nil {
		t.Fatalf("closed vaults still settle fees: %v", err)
	}
	if res.ManagementFee == 0 {
		t.Error("expected accrued management fee")
	}
}

// --- Status ---

func TestSetStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to model.Status
		ok       bool
	}{
		{model.StatusActive, model.StatusPaused, true},
		{model.StatusPaused, model.StatusActive, true},
		{model.StatusActive, model.StatusClosed, true},
		{model.StatusPaused, model.StatusClosed, true},
		{model.StatusClosed, model.StatusActive, false},
		{model.StatusClosed, model.StatusPaused, false},
		{model.StatusActive, model.StatusActive, false},
		{model.StatusPaused, model.StatusPaused, false},
	}
	l := New(DefaultConfig())
	for _, tt := range tests {
		s := newVault(t, l)
		s.Vault.Status = tt.from
		m, err := l.SetStatus(s, manager, tt.to, t0)
		if tt.ok {
			if err != nil {
				t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
			} else if m.Vault.Status != tt.to {
				t.Errorf("%s -> %s: got %s", tt.from, tt.to, m.Vault.Status)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tt.from, tt.to, err)
		}
	}
}

func TestSetStatus_Errors(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	if _, err := l.SetStatus(s, "alice", model.StatusPaused, t0); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := l.SetStatus(s, manager, "frozen", t0); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("expected ErrInvalidParameters, got %v", err)
	}
}

// --- Invariants over a sequence ---

func TestShareConservation_Sequence(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	s.Vault.MinDeposit = 1
	investors := []string{"alice", "bob", "carol"}
	now := t0

	for i := 0; i < 200; i++ {
		now = now.Add(time.Hour)
		inv := investors[i%len(investors)]
		switch i % 5 {
		case 0, 1:
			if _, m, err := l.Deposit(s, inv, money.Money(1_000_003*(i+1)), now); err == nil {
				s.Apply(m)
			}
		case 2:
			if held := s.Shares(inv); held > 0 {
				if _, m, err := l.Withdraw(s, inv, held/3+1, now); err == nil {
					s.Apply(m)
				}
			}
		case 3:
			if _, m, err := l.RecordTradeResult(s, manager, money.Money((i%7-3)*500_000), now); err == nil {
				s.Apply(m)
			}
		case 4:
			if _, m, err := l.CollectFees(s, manager, false, now); err == nil {
				s.Apply(m)
			}
		}

		if sumPositions(s) != s.Vault.TotalShares {
			t.Fatalf("step %d: positions %d != total shares %d", i, sumPositions(s), s.Vault.TotalShares)
		}
		if s.Vault.TotalValue < 0 || s.Vault.TotalShares < 0 {
			t.Fatalf("step %d: negative totals %+v", i, s.Vault)
		}
		if s.Vault.TotalShares == 0 && s.Vault.TotalValue != 0 {
			t.Fatalf("step %d: NAV without shares", i)
		}
	}
}

// --- Views ---

func TestPerformance(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	mustDeposit(t, l, s, "alice", tok(100), t0)

	// Daily samples as the NAV climbs one token a day.
	now := t0
	for day := 1; day <= 40; day++ {
		now = t0.Add(time.Duration(day) * 24 * time.Hour)
		_, m, err := l.RecordTradeResult(s, manager, tok(1), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.Apply(m)
		nps, err := s.NAVPerShare()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.History.Add(model.NavSample{At: now, NAVPerShare: nps})
	}

	p, err := s.Performance(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.NAVPerShare != 140_000_000 {
		t.Fatalf("expected NAV-per-share 1.40, got %s", p.NAVPerShare)
	}
	if p.AllTime != 4000 {
		t.Errorf("expected all-time +40%% (4000 bps), got %d", p.AllTime)
	}
	// Week base is day 33 (1.33): 7/1.33 = 5.26%.
	if p.Week != 526 {
		t.Errorf("expected week 526 bps, got %d", p.Week)
	}
	// Month base is day 10 (1.10): 30/1.10 = 27.27%.
	if p.Month != 2727 {
		t.Errorf("expected month 2727 bps, got %d", p.Month)
	}
	if p.Samples != 41 {
		t.Errorf("expected 41 samples, got %d", p.Samples)
	}
}

func TestPerformance_YoungVaultUsesOldestSample(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	mustDeposit(t, l, s, "alice", tok(100), t0)
	_, m, _ := l.RecordTradeResult(s, manager, -tok(10), t0.Add(time.Hour))
	s.Apply(m)

	p, err := s.Performance(t0.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Week != -1000 || p.Month != -1000 || p.AllTime != -1000 {
		t.Errorf("expected -10%% on every window, got %+v", p)
	}
}

func TestPerformance_EmptyVault(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	p, err := s.Performance(t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.AllTime != 0 || p.Month != 0 || p.Week != 0 || p.NAVPerShare != 0 {
		t.Errorf("expected zero performance, got %+v", p)
	}
}

func TestInvestorsView(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	mustDeposit(t, l, s, "bob", tok(100), t0)
	mustDeposit(t, l, s, "alice", tok(300), t0)

	got := s.Investors()
	if len(got) != 2 || got[0].Investor != "alice" || got[1].Investor != "bob" {
		t.Fatalf("unexpected investors: %+v", got)
	}
	if got[0].Value != tok(300) {
		t.Errorf("expected alice value 300, got %s", got[0].Value)
	}
	if info, err := s.Info(); err != nil || info.Investors != 2 || info.NAVPerShare != money.Unit {
		t.Errorf("unexpected info: %+v (%v)", info, err)
	}
}

// --- NAV-per-share range ---

// tinyVault holds a single share unit, so each token of NAV is 10^8 of
// NAV-per-share.
func tinyVault(t *testing.T, l *Ledger) *State {
	t.Helper()
	s := newVault(t, l)
	s.Vault.MinDeposit = 1
	mustDeposit(t, l, s, "alice", 1, t0)
	return s
}

func TestRecordTradeResult_RejectsUnrepresentableNAVPerShare(t *testing.T) {
	l := New(DefaultConfig())
	s := tinyVault(t, l)
	before := s.Vault

	_, _, err := l.RecordTradeResult(s, manager, tok(1000), t0)
	if !errors.Is(err, money.ErrOverflow) {
		t.Fatalf("expected money.ErrOverflow, got %v", err)
	}
	if s.Vault != before {
		t.Errorf("rejected trade result changed state")
	}

	// 500 tokens on one share unit is a NAV-per-share of 5*10^18, in range.
	_, m, err := l.RecordTradeResult(s, manager, tok(500), t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Apply(m)
	if _, _, err := l.CollectFees(s, manager, true, t0.Add(time.Hour)); err != nil {
		t.Errorf("fees must stay collectable: %v", err)
	}
}

func TestDeposit_RejectsUnrepresentableNAVPerShare(t *testing.T) {
	l := New(DefaultConfig())
	s := newVault(t, l)
	s.Vault.MinDeposit = 1
	// 1800 tokens on two share units: NAV-per-share 9*10^18. Depositing
	// 1700 tokens mints floor(1700*2/1800) = 1 unit and would leave
	// 3500 tokens on 3 units, beyond the Money range.
	s.Vault.TotalValue = tok(1800)
	s.Vault.TotalShares = 2
	s.Positions["seed"] = 2
	before := s.Vault

	_, _, err := l.Deposit(s, "bob", tok(1700), t0)
	if !errors.Is(err, money.ErrOverflow) {
		t.Errorf("expected money.ErrOverflow, got %v", err)
	}
	if s.Vault != before || s.Shares("bob") != 0 {
		t.Errorf("rejected deposit changed state")
	}
}

func TestViews_ReportUnrepresentableNAVPerShare(t *testing.T) {
	l := New(DefaultConfig())
	s := tinyVault(t, l)
	// A state restored from storage can still be out of range.
	s.Vault.TotalValue = tok(1000) + 1

	if _, err := s.NAVPerShare(); !errors.Is(err, money.ErrOverflow) {
		t.Errorf("NAVPerShare: expected money.ErrOverflow, got %v", err)
	}
	if _, err := s.Info(); !errors.Is(err, money.ErrOverflow) {
		t.Errorf("Info: expected money.ErrOverflow, got %v", err)
	}
	if _, err := s.Performance(t0); !errors.Is(err, money.ErrOverflow) {
		t.Errorf("Performance: expected money.ErrOverflow, got %v", err)
	}

	// Collecting the performance fee brings it back into range.
	res, m, err := l.CollectFees(s, manager, false, t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Apply(m)
	if res.PerformanceFee == 0 {
		t.Errorf("expected a performance fee")
	}
	if _, err := s.Info(); err != nil {
		t.Errorf("expected NAV-per-share back in range: %v", err)
	}
}
