// Package store defines the persistence interface for the vault engine.
// Implementations include PostgreSQL (source of truth) and in-memory (for
// testing). Idempotency keys for the HTTP layer live in Redis or memory.
package store

import (
	"context"
	"errors"

	"github.com/atmx/vault-engine/internal/model"
)

// ErrDuplicateVault is returned when a vault id is created twice.
var ErrDuplicateVault = errors.New("store: vault already exists")

// Commit is one ledger mutation written atomically: the new vault record,
// the changed positions (zero shares deletes the row), an optional NAV
// sample and the journal event.
type Commit struct {
	Vault     model.Vault
	Positions []model.InvestorPosition
	Sample    *model.NavSample
	Event     model.Event
}

// Snapshot is the persisted state of one vault used to rebuild memory on
// startup. Samples are ordered oldest first.
type Snapshot struct {
	Vault     model.Vault
	Positions []model.InvestorPosition
	Samples   []model.NavSample
}

// Store is the persistence interface. The registry writes through it before
// installing any change in memory.
type Store interface {
	// CreateVault persists a new vault together with its creation event.
	CreateVault(ctx context.Context, v *model.Vault, ev *model.Event) error

	// Commit atomically applies one mutation.
	Commit(ctx context.Context, c *Commit) error

	// AppendSample records a periodic NAV-per-share sample.
	AppendSample(ctx context.Context, vaultID uint64, s model.NavSample) error

	// LoadVaults returns every vault with its positions and at most
	// sampleLimit of its most recent samples.
	LoadVaults(ctx context.Context, sampleLimit int) ([]Snapshot, error)

	// GetEvents returns the most recent limit events of a vault in
	// chronological order. A non-positive limit returns all of them.
	GetEvents(ctx context.Context, vaultID uint64, limit int) ([]model.Event, error)
}
