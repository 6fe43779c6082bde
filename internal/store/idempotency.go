package store

import (
	"context"
	"sync"
	"time"
)

// Recorded is the stored outcome of a request made with an idempotency key.
// Pending is set while the first request is still in flight.
type Recorded struct {
	Status  int    `json:"status"`
	Body    []byte `json:"body"`
	Pending bool   `json:"pending"`
}

// Idempotency records responses for client-supplied idempotency keys.
type Idempotency interface {
	// Reserve claims key. When the key is already known the recorded
	// outcome is returned and ok is false.
	Reserve(ctx context.Context, key string, ttl time.Duration) (rec Recorded, ok bool, err error)

	// Complete stores the response for a reserved key.
	Complete(ctx context.Context, key string, rec Recorded, ttl time.Duration) error

	// Release forgets a reservation so the request can be retried.
	Release(ctx context.Context, key string) error
}

// MemoryIdempotency implements Idempotency in process memory.
type MemoryIdempotency struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	rec     Recorded
	expires time.Time
}

// NewMemoryIdempotency creates an empty in-memory key store.
func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryIdempotency) Reserve(_ context.Context, key string, ttl time.Duration) (Recorded, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expires) {
		return e.rec, false, nil
	}
	m.entries[key] = memoryEntry{rec: Recorded{Pending: true}, expires: now.Add(ttl)}
	return Recorded{}, true, nil
}

func (m *MemoryIdempotency) Complete(_ context.Context, key string, rec Recorded, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.Pending = false
	m.entries[key] = memoryEntry{rec: rec, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}
