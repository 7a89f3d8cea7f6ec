// Package memory provides in-memory TTL caches for extraction results.
// Nothing is persisted; a restart starts cold.
package memory

import (
	"sync"
	"time"

	"github.com/custodia-labs/slate/internal/core/domain"
	"github.com/custodia-labs/slate/internal/core/ports/driven"
)

// ExtractionCache caches whole-document extraction results with a TTL.
type ExtractionCache struct {
	mu      sync.RWMutex
	entries map[string]extractionEntry
	ttl     time.Duration
	now     func() time.Time
}

type extractionEntry struct {
	result   *domain.ExtractionResult
	storedAt time.Time
}

// Compile-time check that ExtractionCache implements the port.
var _ driven.ExtractionCache = (*ExtractionCache)(nil)

// NewExtractionCache creates an empty cache with the given TTL.
// A ttl of 0 uses the default.
func NewExtractionCache(ttl time.Duration) *ExtractionCache {
	if ttl == 0 {
		ttl = driven.CacheTTL
	}
	return &ExtractionCache{
		entries: make(map[string]extractionEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached result for a document, or nil on a miss.
// A result that includes handwriting recognition satisfies a lookup that
// does not want it; a typed-text-only result never satisfies wantOCR.
func (c *ExtractionCache) Get(docID string, wantOCR bool) *domain.ExtractionResult {
	c.mu.RLock()
	entry, ok := c.entries[docID]
	now := c.now()
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	if now.Sub(entry.storedAt) > c.ttl {
		c.Invalidate(docID)
		return nil
	}
	if wantOCR && !entry.result.IncludesOCR() {
		return nil
	}
	return entry.result
}

// Put stores a result, replacing any existing entry.
func (c *ExtractionCache) Put(docID string, result *domain.ExtractionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[docID] = extractionEntry{result: result, storedAt: c.now()}
}

// Invalidate drops a document's entry.
func (c *ExtractionCache) Invalidate(docID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, docID)
}

// SetNow overrides the clock. Useful for testing TTL expiry.
func (c *ExtractionCache) SetNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
