// Package catalog holds read-through caches over slow-changing catalog
// records. The seat-type cache replaces what used to be a lazily
// initialized process-wide map: it is owned by one component, reloads
// on TTL expiry and can be invalidated explicitly by writers.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// SeatTypeLoader fetches all seat types from the backing store.
type SeatTypeLoader func(ctx context.Context) ([]model.SeatType, error)

// SeatTypeCache is a TTL-bound read-through cache of seat types keyed
// by id. Lookups within the TTL are served from memory; the first
// lookup after expiry reloads the full set. Writers that mutate seat
// types call Invalidate so the next read observes the change.
type SeatTypeCache struct {
	load SeatTypeLoader
	ttl  time.Duration

	mu       sync.RWMutex
	byID     map[uint64]model.SeatType
	loadedAt time.Time
	now      func() time.Time
}

// NewSeatTypeCache builds a cache; ttl <= 0 disables expiry (reload
// only via Invalidate).
func NewSeatTypeCache(load SeatTypeLoader, ttl time.Duration) *SeatTypeCache {
	return &SeatTypeCache{load: load, ttl: ttl, now: time.Now}
}

// SetClock replaces the time source; test helper.
func (c *SeatTypeCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the seat type for id, loading the set on first use or
// after expiry. A missing id after a fresh load yields ok=false.
func (c *SeatTypeCache) Get(ctx context.Context, id uint64) (model.SeatType, bool, error) {
	c.mu.RLock()
	if c.fresh() {
		st, ok := c.byID[id]
		c.mu.RUnlock()
		return st, ok, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.fresh() {
		types, err := c.load(ctx)
		if err != nil {
			return model.SeatType{}, false, err
		}
		byID := make(map[uint64]model.SeatType, len(types))
		for _, st := range types {
			byID[st.ID] = st
		}
		c.byID = byID
		c.loadedAt = c.now()
	}
	st, ok := c.byID[id]
	return st, ok, nil
}

// Invalidate drops the cached set so the next Get reloads.
func (c *SeatTypeCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = nil
	c.loadedAt = time.Time{}
}

// fresh is called with at least a read lock held.
func (c *SeatTypeCache) fresh() bool {
	if c.byID == nil {
		return false
	}
	if c.ttl <= 0 {
		return true
	}
	return c.now().Sub(c.loadedAt) < c.ttl
}
