package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/slate/internal/core/domain"
)

// DocumentService is the unified read-only view of the tablet's documents.
type DocumentService interface {
	// List returns visible documents and folders, scoped to the
	// configured root folder. A limit of 0 means no limit.
	List(ctx context.Context, limit int) ([]DocumentSummary, error)

	// Find resolves a document by name or path. Misses return a
	// domain.NotFoundError carrying similar-name suggestions.
	Find(ctx context.Context, name string) (*domain.Document, error)

	// Read extracts a document's text and returns one page of it.
	Read(ctx context.Context, req ReadRequest) (*ReadResult, error)

	// ReadNotebookPage extracts a single notebook page by page number.
	// A filter that misses the requested page is searched across all
	// pages and the result reports which pages match.
	ReadNotebookPage(ctx context.Context, name string, page int, filter string, opts ReadOptions) (*ReadResult, error)

	// DownloadFile fetches a bundled file (".pdf", ".epub") of a
	// document. Only transports with raw fetch support this.
	DownloadFile(ctx context.Context, name, fileType string) ([]byte, error)
}

// ReadOptions controls text extraction.
type ReadOptions struct {
	// OCR requests handwriting recognition.
	OCR bool

	// Backend selects the recognition strategy: "auto", "google",
	// "tesseract", "sampling". Empty means auto.
	Backend string

	// AutoOCR retries with recognition when a document yields no typed
	// text on the first pass.
	AutoOCR bool
}

// ReadRequest asks for one page of a document's extracted text.
type ReadRequest struct {
	// Name is the document name or scope-relative path.
	Name string

	// Page is the 1-based page of the paginated text. 0 means page 1.
	Page int

	// PageSize overrides the character page size. 0 means the default.
	PageSize int

	// Filter keeps only lines around matches of this pattern.
	Filter string

	ReadOptions
}

// ReadResult is one page of extracted text plus pagination context.
type ReadResult struct {
	// Content is the page's text, possibly filter-excerpted.
	Content string

	// Page and TotalPages locate this slice in the full text.
	Page       int
	TotalPages int

	// TotalChars is the length of the full extracted text.
	TotalChars int

	// Matches counts filter hits across the whole text, 0 when no
	// filter was applied.
	Matches int

	// MatchPages lists the page numbers containing filter hits when a
	// notebook-page filter missed the requested page.
	MatchPages []int

	// OCRBackend names the recognition backend used, empty when none ran.
	OCRBackend string

	// ComputedAt is when the underlying extraction was produced; older
	// than the request time means it came from the cache.
	ComputedAt time.Time
}

// DocumentSummary is one listing row.
type DocumentSummary struct {
	ID           string
	Name         string
	Path         string
	Kind         domain.Kind
	Pinned       bool
	LastModified *time.Time
	SizeBytes    int64
}
