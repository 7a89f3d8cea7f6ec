package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/slate/internal/core/domain"
	"github.com/custodia-labs/slate/internal/core/ports/driven"
	"github.com/custodia-labs/slate/internal/logger"
)

// ExtractOptions controls a single extraction run.
type ExtractOptions struct {
	// OCR runs handwriting recognition over the document's pages.
	OCR bool

	// Strategy selects the recognition backend; empty means the
	// pipeline's default.
	Strategy string

	// AutoOCR retries with recognition when a notebook yields no typed
	// text. It never applies to PDF or EPUB documents.
	AutoOCR bool
}

// Extractor turns a downloaded document archive into text: typed text
// from page files, highlights from annotation files and, on request,
// handwriting recognised by the OCR pipeline. Results are cached per
// document.
type Extractor struct {
	transport  driven.Transport
	cache      driven.ExtractionCache
	decoder    driven.PageDecoder
	recogniser driven.HandwritingRecogniser
	now        func() time.Time
}

// NewExtractor constructs an extractor. The decoder and recogniser are
// optional; a nil decoder skips typed-text decoding and a nil
// recogniser makes OCR requests fail with ErrBackendUnavailable.
func NewExtractor(transport driven.Transport, cache driven.ExtractionCache, decoder driven.PageDecoder, recogniser driven.HandwritingRecogniser) *Extractor {
	return &Extractor{
		transport:  transport,
		cache:      cache,
		decoder:    decoder,
		recogniser: recogniser,
		now:        time.Now,
	}
}

// contentManifest is the subset of a document's .content file needed
// for extraction: the page order, the source file type and any typed
// text stored inline.
type contentManifest struct {
	FileType string   `json:"fileType"`
	Text     string   `json:"text"`
	Pages    []string `json:"pages"`
	CPages   struct {
		Pages []struct {
			ID string `json:"id"`
		} `json:"pages"`
	} `json:"cPages"`
}

// pageOrder returns the manifest's page IDs, newest schema first.
func (m *contentManifest) pageOrder() []string {
	if len(m.CPages.Pages) > 0 {
		ids := make([]string, 0, len(m.CPages.Pages))
		for _, p := range m.CPages.Pages {
			ids = append(ids, p.ID)
		}
		return ids
	}
	return m.Pages
}

// highlightFile is the shape of a highlight annotation file.
type highlightFile struct {
	Highlights []struct {
		Text string `json:"text"`
	} `json:"highlights"`
}

// Extract downloads and extracts one document, serving from the cache
// when a fresh result is available. A cached result that already
// includes OCR satisfies a request without it, never the reverse.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document, opts ExtractOptions) (*domain.ExtractionResult, error) {
	if e.cache != nil {
		if cached := e.cache.Get(doc.ID, opts.OCR); cached != nil && !e.wantsAutoRetry(cached, opts) {
			logger.Debug("extraction cache hit for %s", doc.ID)
			return cached, nil
		}
	}

	archive, err := e.transport.Download(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", doc.ID, err)
	}

	result, err := e.extract(ctx, doc.ID, archive, opts)
	if err != nil {
		return nil, err
	}

	// A notebook with no typed text is probably handwritten; retry with
	// recognition when the caller allowed it.
	if opts.AutoOCR && !opts.OCR && result.PageCount > 0 && result.TypedText == "" && autoOCREligible(archive) {
		logger.Debug("no typed text in %s, retrying with recognition", doc.ID)
		opts.OCR = true
		if retried, retryErr := e.extract(ctx, doc.ID, archive, opts); retryErr == nil {
			result = retried
		} else {
			logger.Warn("auto recognition of %s: %v", doc.ID, retryErr)
		}
	}

	result.ComputedAt = e.now()
	if e.cache != nil {
		e.cache.Put(doc.ID, result)
	}
	return result, nil
}

// wantsAutoRetry reports whether a cached result should be bypassed so
// the auto-recognition retry can run: the caller allowed it, the cached
// extraction produced no text and never ran recognition. The archive is
// re-downloaded so the PDF/EPUB exclusion still applies.
func (e *Extractor) wantsAutoRetry(cached *domain.ExtractionResult, opts ExtractOptions) bool {
	return opts.AutoOCR && !opts.OCR &&
		cached.TypedText == "" && cached.PageCount > 0 && !cached.IncludesOCR()
}

// Invalidate drops the cached extraction for a document.
func (e *Extractor) Invalidate(docID string) {
	if e.cache != nil {
		e.cache.Invalidate(docID)
	}
}

// extract pulls text out of an already downloaded archive.
func (e *Extractor) extract(ctx context.Context, docID string, archive *domain.Archive, opts ExtractOptions) (*domain.ExtractionResult, error) {
	manifest := e.readManifest(archive)

	pages := e.orderedPages(archive, manifest)
	result := &domain.ExtractionResult{
		PageCount: len(pages),
		PageIDs:   make([]string, 0, len(pages)),
	}
	for _, page := range pages {
		result.PageIDs = append(result.PageIDs, page.PageID)
	}

	var typed []string
	if e.decoder != nil {
		for _, page := range pages {
			text, err := e.decoder.TypedText(page.Data)
			if err != nil {
				logger.Warn("decode page %s of %s: %v", page.PageID, docID, err)
				continue
			}
			if text = strings.TrimSpace(text); text != "" {
				typed = append(typed, text)
			}
		}
	}
	for _, file := range archive.ByExtension(".txt") {
		if text := strings.TrimSpace(string(file.Data)); text != "" {
			typed = append(typed, text)
		}
	}
	for _, file := range archive.ByExtension(".md") {
		if text := strings.TrimSpace(string(file.Data)); text != "" {
			typed = append(typed, text)
		}
	}
	if manifest != nil && strings.TrimSpace(manifest.Text) != "" {
		typed = append(typed, strings.TrimSpace(manifest.Text))
	}
	result.TypedText = strings.Join(typed, "\n\n")

	result.Highlights = e.readHighlights(archive)

	if opts.OCR {
		if e.recogniser == nil {
			return nil, fmt.Errorf("recognition requested for %s: %w", docID, domain.ErrBackendUnavailable)
		}
		if len(pages) > 0 {
			texts, backend, err := e.recogniser.RecognisePages(ctx, docID, pages, opts.Strategy)
			if err != nil {
				return nil, fmt.Errorf("recognise %s: %w", docID, err)
			}
			// A nil result means every page failed; the extraction
			// then carries no recognition at all.
			if texts != nil {
				result.OCRBackend = backend
				result.HandwrittenText = make([]string, len(pages))
				for i, page := range texts {
					result.HandwrittenText[i] = page.Text
				}
			}
		} else {
			result.HandwrittenText = []string{}
		}
	}

	return result, nil
}

// readManifest parses the archive's .content file, if any.
func (e *Extractor) readManifest(archive *domain.Archive) *contentManifest {
	files := archive.ByExtension(".content")
	if len(files) == 0 {
		return nil
	}
	var manifest contentManifest
	if err := json.Unmarshal(files[0].Data, &manifest); err != nil {
		logger.Warn("parse %s: %v", files[0].Name, err)
		return nil
	}
	return &manifest
}

// orderedPages pairs the archive's page files with the manifest's page
// order. Pages missing from the manifest keep their archive order at
// the end.
func (e *Extractor) orderedPages(archive *domain.Archive, manifest *contentManifest) []driven.PageInput {
	byID := make(map[string][]byte)
	var archiveOrder []string
	for _, file := range archive.ByExtension(".rm") {
		id := domain.Stem(file.Name)
		if _, seen := byID[id]; !seen {
			archiveOrder = append(archiveOrder, id)
		}
		byID[id] = file.Data
	}

	var pages []driven.PageInput
	taken := make(map[string]bool)
	if manifest != nil {
		for _, id := range manifest.pageOrder() {
			data, ok := byID[id]
			if !ok {
				continue
			}
			pages = append(pages, driven.PageInput{PageID: id, Data: data})
			taken[id] = true
		}
	}
	for _, id := range archiveOrder {
		if !taken[id] {
			pages = append(pages, driven.PageInput{PageID: id, Data: byID[id]})
		}
	}
	return pages
}

// readHighlights collects highlight snippets from every annotation file
// in the archive. Files that are not highlight files are ignored.
func (e *Extractor) readHighlights(archive *domain.Archive) []string {
	var highlights []string
	for _, file := range archive.ByExtension(".json") {
		var parsed highlightFile
		if err := json.Unmarshal(file.Data, &parsed); err != nil {
			continue
		}
		for _, h := range parsed.Highlights {
			if text := strings.TrimSpace(h.Text); text != "" {
				highlights = append(highlights, text)
			}
		}
	}
	return highlights
}

// autoOCREligible reports whether a document may be auto-retried with
// recognition. PDF and EPUB sources are excluded: their emptiness means
// the source has no text layer, not that the pages are handwritten.
func autoOCREligible(archive *domain.Archive) bool {
	return len(archive.ByExtension(".pdf")) == 0 && len(archive.ByExtension(".epub")) == 0
}
