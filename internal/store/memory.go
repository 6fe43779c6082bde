package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atmx/vault-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	vaults    map[uint64]model.Vault
	positions map[uint64]map[string]model.InvestorPosition
	samples   map[uint64][]model.NavSample
	events    map[uint64][]model.Event
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vaults:    make(map[uint64]model.Vault),
		positions: make(map[uint64]map[string]model.InvestorPosition),
		samples:   make(map[uint64][]model.NavSample),
		events:    make(map[uint64][]model.Event),
	}
}

func (s *MemoryStore) CreateVault(_ context.Context, v *model.Vault, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vaults[v.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateVault, v.ID)
	}
	s.vaults[v.ID] = *v
	s.positions[v.ID] = make(map[string]model.InvestorPosition)
	s.events[v.ID] = append(s.events[v.ID], *ev)
	return nil
}

func (s *MemoryStore) Commit(_ context.Context, c *Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.Vault.ID
	if _, ok := s.vaults[id]; !ok {
		return fmt.Errorf("vault %d not found", id)
	}
	s.vaults[id] = c.Vault
	for _, p := range c.Positions {
		if p.Shares == 0 {
			delete(s.positions[id], p.Investor)
			continue
		}
		s.positions[id][p.Investor] = p
	}
	if c.Sample != nil {
		s.samples[id] = append(s.samples[id], *c.Sample)
	}
	s.events[id] = append(s.events[id], c.Event)
	return nil
}

func (s *MemoryStore) AppendSample(_ context.Context, vaultID uint64, smp model.NavSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vaults[vaultID]; !ok {
		return fmt.Errorf("vault %d not found", vaultID)
	}
	s.samples[vaultID] = append(s.samples[vaultID], smp)
	return nil
}

func (s *MemoryStore) LoadVaults(_ context.Context, sampleLimit int) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Snapshot, 0, len(s.vaults))
	for id, v := range s.vaults {
		snap := Snapshot{Vault: v}
		for _, p := range s.positions[id] {
			snap.Positions = append(snap.Positions, p)
		}
		sort.Slice(snap.Positions, func(i, j int) bool {
			return snap.Positions[i].Investor < snap.Positions[j].Investor
		})
		snap.Samples = append(snap.Samples, tail(s.samples[id], sampleLimit)...)
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vault.ID < out[j].Vault.ID })
	return out, nil
}

func (s *MemoryStore) GetEvents(_ context.Context, vaultID uint64, limit int) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]model.Event(nil), tail(s.events[vaultID], limit)...), nil
}

// tail returns the last n elements of xs, or all of them when n <= 0.
func tail[T any](xs []T, n int) []T {
	if n <= 0 || n >= len(xs) {
		return xs
	}
	return xs[len(xs)-n:]
}
