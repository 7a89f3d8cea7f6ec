package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/slate/internal/core/domain"
	"github.com/custodia-labs/slate/internal/core/ports/driven"
	"github.com/custodia-labs/slate/internal/core/ports/driving"
	"github.com/custodia-labs/slate/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService is the read-only view over the tablet's documents. It
// lists the tree through the active transport, scopes it to the
// configured root folder, resolves names through the shared registry
// and serves extracted text page by page.
type DocumentService struct {
	transport driven.Transport
	registry  *Registry
	extractor *Extractor
	root      domain.RootPath
	pageSize  int
}

// DocumentServiceOptions configures the document service.
type DocumentServiceOptions struct {
	// Root scopes all listings and lookups to a folder subtree.
	Root string

	// PageSize is the default character page size; 0 means
	// DefaultPageSize.
	PageSize int
}

// NewDocumentService constructs the document service.
func NewDocumentService(transport driven.Transport, registry *Registry, extractor *Extractor, opts DocumentServiceOptions) *DocumentService {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &DocumentService{
		transport: transport,
		registry:  registry,
		extractor: extractor,
		root:      domain.NormalizeRoot(opts.Root),
		pageSize:  pageSize,
	}
}

// List returns visible documents and folders, scoped to the configured
// root. A limit of 0 means no limit. Listed documents are registered so
// that later name lookups resolve without another tree walk.
func (s *DocumentService) List(ctx context.Context, limit int) ([]driving.DocumentSummary, error) {
	// Root scoping needs the full tree for path computation, so the
	// transport limit only applies when no root is set.
	fetchLimit := limit
	if !s.root.IsUnscoped() {
		fetchLimit = 0
	}

	docs, err := s.transport.ListTree(ctx, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("list tree: %w", err)
	}

	byID := domain.DocumentsByID(docs)
	summaries := make([]driving.DocumentSummary, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		if doc.IsArchived() {
			continue
		}

		path := domain.DocumentPath(doc, byID)
		if !s.root.IsUnscoped() {
			if !s.root.Contains(path) {
				continue
			}
			path = s.root.Apply(path)
		}

		s.registry.Register(*doc, path)
		name := doc.Name
		if assigned, ok := s.registry.DisplayName(doc.ID); ok {
			name = assigned
		}

		summaries = append(summaries, driving.DocumentSummary{
			ID:           doc.ID,
			Name:         name,
			Path:         path,
			Kind:         doc.Kind,
			Pinned:       doc.Pinned,
			LastModified: doc.LastModified,
			SizeBytes:    doc.SizeBytes,
		})
		if limit > 0 && len(summaries) >= limit {
			break
		}
	}
	return summaries, nil
}

// Find resolves a document by name or scope-relative path. Misses carry
// similar-name suggestions.
func (s *DocumentService) Find(ctx context.Context, name string) (*domain.Document, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty document name", domain.ErrInvalidInput)
	}

	if _, err := s.List(ctx, 0); err != nil {
		// A stale registry can still resolve the name while the
		// transport is down.
		if s.registry.Count() == 0 {
			return nil, err
		}
		logger.Warn("listing failed, resolving %q from registry: %v", name, err)
	}

	if doc, ok := s.registry.Lookup(name); ok {
		return doc, nil
	}
	return nil, &domain.NotFoundError{
		Name:        name,
		Suggestions: s.registry.Suggestions(name),
	}
}

// Read extracts a document's text and returns one page of it, filtered
// when a pattern is given.
func (s *DocumentService) Read(ctx context.Context, req driving.ReadRequest) (*driving.ReadResult, error) {
	doc, err := s.Find(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if doc.IsFolder() {
		return nil, fmt.Errorf("%w: %q is a folder", domain.ErrInvalidInput, req.Name)
	}

	result, err := s.extractor.Extract(ctx, doc, ExtractOptions{
		OCR:      req.OCR,
		Strategy: req.Backend,
		AutoOCR:  req.AutoOCR,
	})
	if err != nil {
		return nil, err
	}

	text := composeText(result)
	matches := 0
	if req.Filter != "" {
		filtered, n, err := Filter(text, req.Filter)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			if text == "" {
				return nil, fmt.Errorf("%q: %w", req.Name, domain.ErrNoContent)
			}
			return nil, fmt.Errorf("no match for %q in %q: %w", req.Filter, req.Name, domain.ErrNoMatch)
		}
		text = filtered
		matches = n
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	page, err := Paginate(text, req.Page, pageSize)
	if err != nil {
		return nil, err
	}

	return &driving.ReadResult{
		Content:    page.Content,
		Page:       page.Page,
		TotalPages: page.TotalPages,
		TotalChars: page.TotalChars,
		Matches:    matches,
		OCRBackend: result.OCRBackend,
		ComputedAt: result.ComputedAt,
	}, nil
}

// ReadNotebookPage returns one notebook page's recognised text by page
// number. A filter that misses the requested page is searched across
// all pages so the caller learns which pages do match.
func (s *DocumentService) ReadNotebookPage(ctx context.Context, name string, page int, filter string, opts driving.ReadOptions) (*driving.ReadResult, error) {
	doc, err := s.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	if doc.IsFolder() {
		return nil, fmt.Errorf("%w: %q is a folder", domain.ErrInvalidInput, name)
	}

	result, err := s.extractor.Extract(ctx, doc, ExtractOptions{
		OCR:      true,
		Strategy: opts.Backend,
	})
	if err != nil {
		return nil, err
	}

	pageTexts := result.HandwrittenText
	if len(pageTexts) < result.PageCount {
		// Pages the recogniser could not serve still count.
		padded := make([]string, result.PageCount)
		copy(padded, pageTexts)
		pageTexts = padded
	}
	slice, err := PaginatePages(pageTexts, page)
	if err != nil {
		return nil, err
	}

	read := &driving.ReadResult{
		Content:    slice.Content,
		Page:       slice.Page,
		TotalPages: slice.TotalPages,
		OCRBackend: result.OCRBackend,
		ComputedAt: result.ComputedAt,
	}

	if filter != "" {
		filtered, n, err := Filter(slice.Content, filter)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			read.Content = filtered
			read.Matches = n
		} else {
			// Point the caller at pages that do match.
			read.Content = ""
			for i, pageText := range result.HandwrittenText {
				if _, hits, err := Filter(pageText, filter); err == nil && hits > 0 {
					read.MatchPages = append(read.MatchPages, i+1)
				}
			}
			if len(read.MatchPages) == 0 {
				return nil, fmt.Errorf("no match for %q in %q: %w", filter, name, domain.ErrNoMatch)
			}
		}
	}

	read.TotalChars = len([]rune(read.Content))
	return read, nil
}

// DownloadFile fetches a bundled source file (".pdf", ".epub") of a
// document through a raw-fetch capable transport.
func (s *DocumentService) DownloadFile(ctx context.Context, name, fileType string) ([]byte, error) {
	if !s.transport.Capabilities().SupportsRawFetch {
		return nil, fmt.Errorf("%s transport: %w", s.transport.Type(), domain.ErrRawFetchUnsupported)
	}

	doc, err := s.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	if doc.IsFolder() {
		return nil, fmt.Errorf("%w: %q is a folder", domain.ErrInvalidInput, name)
	}

	data, err := s.transport.DownloadRaw(ctx, doc, fileType)
	if err != nil {
		return nil, fmt.Errorf("download %s of %q: %w", fileType, name, err)
	}
	return data, nil
}

// composeText builds the full readable text of an extraction: typed
// text first, then highlight and handwriting sections.
func composeText(result *domain.ExtractionResult) string {
	var parts []string
	if result.TypedText != "" {
		parts = append(parts, result.TypedText)
	}
	if len(result.Highlights) > 0 {
		parts = append(parts, "--- Highlights ---\n"+strings.Join(result.Highlights, "\n"))
	}
	if result.HasHandwriting() {
		var pages []string
		for _, page := range result.HandwrittenText {
			if page != "" {
				pages = append(pages, page)
			}
		}
		parts = append(parts, "--- Handwritten (OCR) ---\n"+strings.Join(pages, "\n\n"))
	}
	return strings.Join(parts, "\n\n")
}
