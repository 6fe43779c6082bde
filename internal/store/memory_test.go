package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/money"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func seedVault(t *testing.T, s *MemoryStore, id uint64) model.Vault {
	t.Helper()
	v := model.Vault{ID: id, Manager: "m", Status: model.StatusActive, MinDeposit: 1, CreatedAt: t0}
	ev := model.Event{ID: "create", VaultID: id, Kind: model.EventCreated, Timestamp: t0}
	if err := s.CreateVault(context.Background(), &v, &ev); err != nil {
		t.Fatalf("create vault: %v", err)
	}
	return v
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	s := NewMemoryStore()
	v := seedVault(t, s, 1)
	err := s.CreateVault(context.Background(), &v, &model.Event{})
	if !errors.Is(err, ErrDuplicateVault) {
		t.Errorf("expected ErrDuplicateVault, got %v", err)
	}
}

func TestMemoryStore_CommitAndLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	v := seedVault(t, s, 1)
	seedVault(t, s, 2)

	v.TotalValue, v.TotalShares = money.Tokens(150), money.Tokens(150)
	err := s.Commit(ctx, &Commit{
		Vault: v,
		Positions: []model.InvestorPosition{
			{VaultID: 1, Investor: "bob", Shares: money.Tokens(50)},
			{VaultID: 1, Investor: "alice", Shares: money.Tokens(100)},
		},
		Sample: &model.NavSample{At: t0, NAVPerShare: money.Unit},
		Event:  model.Event{ID: "dep", VaultID: 1, Kind: model.EventDeposit},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	// bob exits.
	v.TotalValue, v.TotalShares = money.Tokens(100), money.Tokens(100)
	err = s.Commit(ctx, &Commit{
		Vault:     v,
		Positions: []model.InvestorPosition{{VaultID: 1, Investor: "bob"}},
		Event:     model.Event{ID: "wd", VaultID: 1, Kind: model.EventWithdraw},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.AppendSample(ctx, 1, model.NavSample{At: t0.Add(time.Hour), NAVPerShare: money.Unit}); err != nil {
		t.Fatalf("append sample: %v", err)
	}

	snaps, err := s.LoadVaults(ctx, 1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snaps) != 2 || snaps[0].Vault.ID != 1 || snaps[1].Vault.ID != 2 {
		t.Fatalf("expected vaults 1 and 2 in order, got %+v", snaps)
	}
	got := snaps[0]
	if got.Vault.TotalValue != money.Tokens(100) {
		t.Errorf("expected latest vault record, got %+v", got.Vault)
	}
	if len(got.Positions) != 1 || got.Positions[0].Investor != "alice" {
		t.Errorf("expected only alice, got %+v", got.Positions)
	}
	if len(got.Samples) != 1 || !got.Samples[0].At.Equal(t0.Add(time.Hour)) {
		t.Errorf("sample limit should keep the newest sample, got %+v", got.Samples)
	}
}

func TestMemoryStore_CommitUnknownVault(t *testing.T) {
	s := NewMemoryStore()
	err := s.Commit(context.Background(), &Commit{Vault: model.Vault{ID: 9}})
	if err == nil {
		t.Error("expected error for unknown vault")
	}
	if err := s.AppendSample(context.Background(), 9, model.NavSample{}); err == nil {
		t.Error("expected error for unknown vault")
	}
}

func TestMemoryStore_GetEvents(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	v := seedVault(t, s, 1)
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Commit(ctx, &Commit{Vault: v, Event: model.Event{ID: id, VaultID: 1}}); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	all, _ := s.GetEvents(ctx, 1, 0)
	if len(all) != 4 || all[0].ID != "create" {
		t.Errorf("expected 4 events starting with creation, got %+v", all)
	}
	last, _ := s.GetEvents(ctx, 1, 2)
	if len(last) != 2 || last[0].ID != "b" || last[1].ID != "c" {
		t.Errorf("expected [b c], got %+v", last)
	}
	none, _ := s.GetEvents(ctx, 42, 10)
	if len(none) != 0 {
		t.Errorf("expected no events, got %+v", none)
	}
}

func TestMemoryIdempotency(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryIdempotency()
	now := t0
	m.now = func() time.Time { return now }

	if _, ok, _ := m.Reserve(ctx, "k", time.Minute); !ok {
		t.Fatal("first reservation should succeed")
	}
	rec, ok, _ := m.Reserve(ctx, "k", time.Minute)
	if ok || !rec.Pending {
		t.Fatalf("duplicate while in flight should see a pending record, got %+v ok=%v", rec, ok)
	}

	_ = m.Complete(ctx, "k", Recorded{Status: 201, Body: []byte(`{"id":1}`)}, time.Minute)
	rec, ok, _ = m.Reserve(ctx, "k", time.Minute)
	if ok || rec.Pending || rec.Status != 201 || string(rec.Body) != `{"id":1}` {
		t.Fatalf("expected recorded response, got %+v ok=%v", rec, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := m.Reserve(ctx, "k", time.Minute); !ok {
		t.Error("expired key should be reservable again")
	}

	_ = m.Release(ctx, "k")
	if _, ok, _ := m.Reserve(ctx, "k", time.Minute); !ok {
		t.Error("released key should be reservable again")
	}
}
