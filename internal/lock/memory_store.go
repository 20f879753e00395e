package lock

import (
	"context"
	"sync"
	"time"
)

type memoryKey struct {
	sessionID uint64
	seatID    uint64
}

type memoryEntry struct {
	ownerID   uint64
	expiresAt time.Time
}

// MemoryStore is an in-process Store used by unit tests and by
// single-node deployments without Redis. Expiry is lazy: entries are
// evaluated against the clock on access, so semantics match the Redis
// implementation without a background sweeper.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[memoryKey]memoryEntry
	// now is swappable so tests can advance time deterministically.
	now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: make(map[memoryKey]memoryEntry), now: time.Now}
}

// SetClock replaces the time source; test helper.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) liveEntry(k memoryKey) (memoryEntry, bool) {
	e, ok := s.locks[k]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.After(s.now()) {
		delete(s.locks, k)
		return memoryEntry{}, false
	}
	return e, true
}

// Acquire implements Store.
func (s *MemoryStore) Acquire(_ context.Context, sessionID, seatID, ownerID uint64, ttl time.Duration) (AcquireResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memoryKey{sessionID, seatID}
	if e, ok := s.liveEntry(k); ok && e.ownerID != ownerID {
		return AlreadyLocked, nil
	}
	s.locks[k] = memoryEntry{ownerID: ownerID, expiresAt: s.now().Add(ttl)}
	return Acquired, nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, sessionID, seatID, ownerID uint64) (ReleaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memoryKey{sessionID, seatID}
	e, ok := s.liveEntry(k)
	if !ok {
		return Released, nil
	}
	if e.ownerID != ownerID {
		return NotOwner, nil
	}
	delete(s.locks, k)
	return Released, nil
}

// Validate implements Store.
func (s *MemoryStore) Validate(_ context.Context, sessionID, seatID, ownerID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveEntry(memoryKey{sessionID, seatID})
	return ok && e.ownerID == ownerID, nil
}

// ListLocked implements Store.
func (s *MemoryStore) ListLocked(_ context.Context, sessionID uint64, seatIDs []uint64) (map[uint64]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	locked := make(map[uint64]bool, len(seatIDs))
	for _, sid := range seatIDs {
		if _, ok := s.liveEntry(memoryKey{sessionID, sid}); ok {
			locked[sid] = true
		}
	}
	return locked, nil
}
