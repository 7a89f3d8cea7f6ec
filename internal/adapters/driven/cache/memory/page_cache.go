package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/slate/internal/core/ports/driven"
)

// PageCache caches recognised text for single pages with a TTL per
// entry. Entries are keyed by document, page number and backend, so
// switching backends never serves another engine's text.
type PageCache struct {
	mu      sync.RWMutex
	entries map[string]pageEntry
	ttl     time.Duration
	now     func() time.Time
}

type pageEntry struct {
	text     string
	storedAt time.Time
}

// Compile-time check that PageCache implements the port.
var _ driven.PageCache = (*PageCache)(nil)

// NewPageCache creates an empty page cache with the given TTL.
// A ttl of 0 uses the default.
func NewPageCache(ttl time.Duration) *PageCache {
	if ttl == 0 {
		ttl = driven.CacheTTL
	}
	return &PageCache{
		entries: make(map[string]pageEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached page text and whether a live entry was present.
func (c *PageCache) Get(docID string, page int, backend string) (string, bool) {
	key := pageKey(docID, page, backend)

	c.mu.RLock()
	entry, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if now.Sub(entry.storedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", false
	}
	return entry.text, true
}

// Put stores a page's recognised text.
func (c *PageCache) Put(docID string, page int, backend string, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[pageKey(docID, page, backend)] = pageEntry{text: text, storedAt: c.now()}
}

// SetNow overrides the clock. Useful for testing TTL expiry.
func (c *PageCache) SetNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func pageKey(docID string, page int, backend string) string {
	return fmt.Sprintf("%s:%d:%s", docID, page, backend)
}
