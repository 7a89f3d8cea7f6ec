package services

import (
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/slate/internal/core/domain"
)

// Registry is the in-memory index of known documents, shared between
// the loader and the document service. Registration is idempotent by
// document ID; two distinct documents with the same display name get
// numeric suffixes so that every registered name resolves to exactly
// one document.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*registryEntry
	byName  map[string]*registryEntry
	ordered []string
}

type registryEntry struct {
	doc         domain.Document
	displayName string
	path        string
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*registryEntry),
		byName: make(map[string]*registryEntry),
	}
}

// Register adds a document under the given display path. Re-registering
// the same ID replaces the stored document and keeps its assigned name.
// Returns true when the ID was new.
func (r *Registry) Register(doc domain.Document, path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.byID[doc.ID]; ok {
		entry.doc = doc
		entry.path = path
		return false
	}

	name := doc.Name
	for n := 2; ; n++ {
		if _, taken := r.byName[strings.ToLower(name)]; !taken {
			break
		}
		name = fmt.Sprintf("%s (%d)", doc.Name, n)
	}

	entry := &registryEntry{doc: doc, displayName: name, path: path}
	r.byID[doc.ID] = entry
	r.byName[strings.ToLower(name)] = entry
	r.ordered = append(r.ordered, doc.ID)
	return true
}

// Count returns the number of registered documents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Names returns every assigned display name in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ordered))
	for _, id := range r.ordered {
		names = append(names, r.byID[id].displayName)
	}
	return names
}

// Lookup resolves a document by assigned name, original name or display
// path, all case-insensitive.
func (r *Registry) Lookup(name string) (*domain.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(strings.TrimSpace(name))
	if entry, ok := r.byName[key]; ok {
		doc := entry.doc
		return &doc, true
	}
	for _, id := range r.ordered {
		entry := r.byID[id]
		if strings.EqualFold(entry.doc.Name, name) || strings.EqualFold(entry.path, name) {
			doc := entry.doc
			return &doc, true
		}
	}
	return nil, false
}

// DisplayName returns the assigned name for a document ID.
func (r *Registry) DisplayName(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byID[id]
	if !ok {
		return "", false
	}
	return entry.displayName, true
}

// Suggestions returns registered names similar to the query, best first.
func (r *Registry) Suggestions(query string) []string {
	return domain.SuggestSimilar(query, r.Names())
}
