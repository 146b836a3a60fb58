package jobsculpt

import (
	"context"
	"sync"
	"time"
)

// RevocationStore tracks tokens invalidated before their natural expiry.
// Entries only need to live until the token itself would have expired.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	// RevokeOnce revokes tokenID and reports whether this call did it.
	// Concurrent callers for the same id see true exactly once.
	RevokeOnce(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)
}

// MemoryRevocationStore is a process local RevocationStore. It is suitable
// for single instance deployments and tests only.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
	sweeps  int
}

var _ RevocationStore = (*MemoryRevocationStore)(nil)

// NewMemoryRevocationStore returns an empty store
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// WithClock overrides the store clock
func (m *MemoryRevocationStore) WithClock(now func() time.Time) *MemoryRevocationStore {
	if now != nil {
		m.now = now
	}
	return m
}

// Revoke adds tokenID to the denylist until expiresAt
func (m *MemoryRevocationStore) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrTokenMalformed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !expiresAt.After(now) {
		return nil
	}

	m.entries[tokenID] = expiresAt

	m.sweeps++
	if m.sweeps%64 == 0 {
		m.sweepLocked(now)
	}

	return nil
}

// RevokeOnce adds tokenID to the denylist unless a live entry exists
func (m *MemoryRevocationStore) RevokeOnce(_ context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, ErrTokenMalformed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.entries[tokenID]; ok && exp.After(now) {
		return false, nil
	}

	if expiresAt.After(now) {
		m.entries[tokenID] = expiresAt
	}
	return true, nil
}

// IsRevoked reports whether tokenID is on the denylist
func (m *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.entries[tokenID]
	if !ok {
		return false, nil
	}

	if !exp.After(m.now()) {
		delete(m.entries, tokenID)
		return false, nil
	}

	return true, nil
}

// Len returns the number of live entries
func (m *MemoryRevocationStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(m.now())
	return len(m.entries)
}

func (m *MemoryRevocationStore) sweepLocked(now time.Time) {
	for id, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, id)
		}
	}
}
