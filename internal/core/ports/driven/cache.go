package driven

import (
	"time"

	"github.com/custodia-labs/slate/internal/core/domain"
)

// ExtractionCache stores whole-document extraction results with a TTL.
// A cached result that includes handwriting recognition satisfies a
// lookup that does not want it; the reverse misses.
type ExtractionCache interface {
	// Get returns the cached result for a document, or nil on a miss.
	// wantOCR narrows the lookup per the inclusion rule above.
	Get(docID string, wantOCR bool) *domain.ExtractionResult

	// Put stores a result, replacing any existing entry.
	Put(docID string, result *domain.ExtractionResult)

	// Invalidate drops a document's entry.
	Invalidate(docID string)
}

// PageCache stores recognised text for single pages, keyed by document,
// page number, and the backend that produced it.
type PageCache interface {
	// Get returns the cached page text and whether it was present.
	Get(docID string, page int, backend string) (string, bool)

	// Put stores a page's recognised text.
	Put(docID string, page int, backend string, text string)
}

// CacheTTL is the default lifetime of cached extraction results.
const CacheTTL = 5 * time.Minute
