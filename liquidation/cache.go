package liquidation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is the compact projection of an open contract the monitor needs to
// compute LTV: nothing else about the contract is loaded into the hot path.
type Entry struct {
	ContractID     uuid.UUID
	CollateralSats int64
	OutstandingUSD float64
	CreatedAt      time.Time
}

// Source loads the current set of open, checkable contracts. Implemented by
// the storage layer; the monitor never queries the database directly.
type Source interface {
	ListOpenContracts(ctx context.Context) ([]Entry, error)
}

// Cache is the arena-indexed in-memory projection of open contracts, so
// ticks never touch the database directly. Refresh swaps
// the whole arena atomically; every tick between refreshes reads the
// snapshot already held in memory.
type Cache struct {
	mu    sync.RWMutex
	arena []Entry
	index map[uuid.UUID]int
}

// NewCache returns an empty cache; call Refresh before the first Tick.
func NewCache() *Cache {
	return &Cache{index: make(map[uuid.UUID]int)}
}

// Refresh reloads the arena from source, replacing the previous snapshot.
func (c *Cache) Refresh(ctx context.Context, source Source) error {
	entries, err := source.ListOpenContracts(ctx)
	if err != nil {
		return err
	}
	index := make(map[uuid.UUID]int, len(entries))
	for i, e := range entries {
		index[e.ContractID] = i
	}
	c.mu.Lock()
	c.arena = entries
	c.index = index
	c.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current arena for the caller to iterate
// without holding the cache's lock during (possibly slow) per-contract work.
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.arena))
	copy(out, c.arena)
	return out
}

// Get looks up one entry by contract ID, used when a fresh collateral
// figure arrives between refreshes and the cached value should track it.
func (c *Cache) Get(contractID uuid.UUID) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.index[contractID]
	if !ok {
		return Entry{}, false
	}
	return c.arena[idx], true
}

// UpdateCollateral patches the cached collateral figure for a contract
// in place, so the watcher's reconciliation result is reflected before the
// next full Refresh.
func (c *Cache) UpdateCollateral(contractID uuid.UUID, sats int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.index[contractID]; ok {
		c.arena[idx].CollateralSats = sats
	}
}
