package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/slate/internal/core/domain"
	"github.com/custodia-labs/slate/internal/core/ports/driven"
)

// fakeTransport serves canned documents and archives.
type fakeTransport struct {
	docs     []domain.Document
	archives map[string]*domain.Archive
	raw      map[string][]byte

	rawFetch  bool
	listErr   error
	failFirst int

	listCalls int
	downloads int
}

func (t *fakeTransport) Type() string { return "fake" }

func (t *fakeTransport) Capabilities() driven.TransportCapabilities {
	return driven.TransportCapabilities{SupportsRawFetch: t.rawFetch}
}

func (t *fakeTransport) ListTree(_ context.Context, limit int) ([]domain.Document, error) {
	t.listCalls++
	if t.failFirst >= t.listCalls {
		return nil, errors.New("listing unavailable")
	}
	if t.listErr != nil {
		return nil, t.listErr
	}
	docs := t.docs
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	out := make([]domain.Document, len(docs))
	copy(out, docs)
	return out, nil
}

func (t *fakeTransport) Resolve(_ context.Context, id string) (*domain.Document, error) {
	for i := range t.docs {
		if t.docs[i].ID == id {
			doc := t.docs[i]
			return &doc, nil
		}
	}
	return nil, &domain.NotFoundError{Name: id}
}

func (t *fakeTransport) Download(_ context.Context, doc *domain.Document) (*domain.Archive, error) {
	t.downloads++
	archive, ok := t.archives[doc.ID]
	if !ok {
		return nil, fmt.Errorf("no archive for %s", doc.ID)
	}
	return archive, nil
}

func (t *fakeTransport) DownloadRaw(_ context.Context, doc *domain.Document, fileType string) ([]byte, error) {
	if !t.rawFetch {
		return nil, domain.ErrRawFetchUnsupported
	}
	data, ok := t.raw[doc.ID+fileType]
	if !ok {
		return nil, &domain.NotFoundError{Name: doc.ID + fileType}
	}
	return data, nil
}

func (t *fakeTransport) Check(context.Context) error { return nil }

// fakeDecoder maps page data to typed text.
type fakeDecoder struct {
	texts map[string]string
}

func (d *fakeDecoder) TypedText(data []byte) (string, error) {
	text, ok := d.texts[string(data)]
	if !ok {
		return "", errors.New("undecodable page")
	}
	return text, nil
}

// fakeRecogniser returns canned text per page ID and records calls.
type fakeRecogniser struct {
	texts      map[string]string
	backend    string
	err        error
	allFail    bool
	calls      int
	strategies []string
}

func (r *fakeRecogniser) RecognisePages(_ context.Context, _ string, pages []driven.PageInput, strategy string) ([]driven.PageText, string, error) {
	r.calls++
	r.strategies = append(r.strategies, strategy)
	if r.err != nil {
		return nil, "", r.err
	}
	if r.allFail {
		return nil, r.backend, nil
	}
	out := make([]driven.PageText, len(pages))
	for i, page := range pages {
		out[i] = driven.PageText{PageID: page.PageID, Text: r.texts[page.PageID]}
	}
	return out, r.backend, nil
}

// fakeExtractionCache records puts and serves one canned result.
type fakeExtractionCache struct {
	result *domain.ExtractionResult
	hasOCR bool
	puts   int
}

func (c *fakeExtractionCache) Get(_ string, wantOCR bool) *domain.ExtractionResult {
	if c.result == nil || (wantOCR && !c.hasOCR) {
		return nil
	}
	return c.result
}

func (c *fakeExtractionCache) Put(_ string, result *domain.ExtractionResult) {
	c.puts++
	c.result = result
	c.hasOCR = result.IncludesOCR()
}

func (c *fakeExtractionCache) Invalidate(string) { c.result = nil }

func notebookArchive(docID string) *domain.Archive {
	archive := &domain.Archive{DocumentID: docID}
	archive.Add(docID+".content", []byte(`{"fileType":"notebook","cPages":{"pages":[{"id":"page-b"},{"id":"page-a"}]}}`))
	archive.Add(docID+"/page-a.rm", []byte("ink-a"))
	archive.Add(docID+"/page-b.rm", []byte("ink-b"))
	return archive
}

func notebookDoc(id, name string) domain.Document {
	return domain.Document{ID: id, Name: name, Kind: domain.KindDocument}
}

// TestExtractor_Extract tests typed-text extraction with manifest page
// ordering.
func TestExtractor_Extract(t *testing.T) {
	doc := notebookDoc("doc-1", "Notes")
	transport := &fakeTransport{archives: map[string]*domain.Archive{"doc-1": notebookArchive("doc-1")}}
	decoder := &fakeDecoder{texts: map[string]string{"ink-a": "second page", "ink-b": "first page"}}

	extractor := NewExtractor(transport, nil, decoder, nil)
	result, err := extractor.Extract(context.Background(), &doc, ExtractOptions{})
	require.NoError(t, err)

	// The manifest puts page-b before page-a.
	assert.Equal(t, []string{"page-b", "page-a"}, result.PageIDs)
	assert.Equal(t, "first page\n\nsecond page", result.TypedText)
	assert.Equal(t, 2, result.PageCount)
	assert.False(t, result.IncludesOCR())
	assert.False(t, result.ComputedAt.IsZero())
}

// TestExtractor_Extract_OCR tests handwriting recognition in manifest
// page order.
func TestExtractor_Extract_OCR(t *testing.T) {
	doc := notebookDoc("doc-1", "Notes")
	transport := &fakeTransport{archives: map[string]*domain.Archive{"doc-1": notebookArchive("doc-1")}}
	recogniser := &fakeRecogniser{
		texts:   map[string]string{"page-a": "hello", "page-b": "world"},
		backend: "tesseract",
	}

	extractor := NewExtractor(transport, nil, nil, recogniser)
	result, err := extractor.Extract(context.Background(), &doc, ExtractOptions{OCR: true, Strategy: "tesseract"})
	require.NoError(t, err)

	assert.Equal(t, []string{"world", "hello"}, result.HandwrittenText)
	assert.Equal(t, "tesseract", result.OCRBackend)
	assert.True(t, result.IncludesOCR())
	assert.Equal(t, []string{"tesseract"}, recogniser.strategies)
}

// TestExtractor_Extract_CacheHit tests that a fresh cached result skips
// the download.
func TestExtractor_Extract_CacheHit(t *testing.T) {
	doc := notebookDoc("doc-1", "Notes")
	transport := &fakeTransport{archives: map[string]*domain.Archive{"doc-1": notebookArchive("doc-1")}}
	cache := &fakeExtractionCache{result: &domain.ExtractionResult{TypedText: "cached"}}

	extractor := NewExtractor(transport, cache, nil, nil)
	result, err := extractor.Extract(context.Background(), &doc, ExtractOptions{})
	require.NoError(t, err)

	assert.Equal(t, "cached", result.TypedText)
	assert.Zero(t, transport.downloads)
}

// TestExtractor_Extract_CacheMissOnOCR tests that a cached result
// without recognition does not satisfy a request with it.
func TestExtractor_Extract_CacheMissOnOCR(t *testing.T) {
	doc := notebookDoc("doc-1", "Notes")
	transport := &fakeTransport{archives: map[string]*domain.Archive{"doc-1": notebookArchive("doc-1")}}
	cache := &fakeExtractionCache{result: &domain.ExtractionResult{TypedText: "cached"}}
	recogniser := &fakeRecogniser{texts: map[string]string{"page-a": "ink"}, backend: "tesseract"}

	extractor := NewExtractor(transport, cache, nil, recogniser)
	result, err := extractor.Extract(context.Background(), &doc, ExtractOptions{OCR: true})
	require.NoError(t, err)

	assert.True(t, result.IncludesOCR())
	assert.Equal(t, 1, transport.downloads)
	assert.Equal(t, 1, cache.puts)
}

// TestExtractor_Extract_AutoOCR tests the retry with recognition when a
// notebook has no typed text.
func TestExtractor_Extract_AutoOCR(t *testing.T) {
	doc := notebookDoc("doc-1", "Notes")
	transport := &fakeTransport{archives: map[string]*domain.Archive{"doc-1": notebookArchive("doc-1")}}
	recogniser := &fakeRecogniser{texts: map[string]string{"page-a": "handwritten"}, backend: "tesseract"}

	extractor := NewExtractor(transport, nil, nil, recogniser)
	result, err := extractor.Extract(context.Background(), &doc, ExtractOptions{AutoOCR: true})
	require.NoError(t, err)

	assert.True(t, result.IncludesOCR())
	assert.Equal(t, 1, recogniser.calls)
	assert.Equal(t, 1, transport.downloads)
}

// TestExtractor_Extract_AllPagesFailed tests that recognition failing
// on every page leaves the result without handwriting.
func TestExtractor_Extract_AllPagesFailed(t *testing.T) {
	doc := notebookDoc("doc-1", "Notes")
	transport := &fakeTransport{archives: map[string]*domain.Archive{"doc-1": notebookArchive("doc-1")}}
	recogniser := &fakeRecogniser{backend: "tesseract", allFail: true}

	extractor := NewExtractor(transport, nil, nil, recogniser)
	result, err := extractor.Extract(context.Background(), &doc, ExtractOptions{OCR: true})
	require.NoError(t, err)

	assert.Nil(t, result.HandwrittenText)
	assert.False(t, result.IncludesOCR())
	assert.Empty(t, result.OCRBackend)
	assert.Equal(t, 1, recogniser.calls)
}

// TestExtractor_Extract_AutoOCRBypassesEmptyCacheHit tests that a
// cached empty extraction does not suppress the auto-recognition retry.
func TestExtractor_Extract_AutoOCRBypassesEmptyCacheHit(t *testing.T) {
	doc := notebookDoc("doc-1", "Notes")
	transport := &fakeTransport{archives: map[string]*domain.Archive{"doc-1": notebookArchive("doc-1")}}
	recogniser := &fakeRecogniser{texts: map[string]string{"page-a": "handwritten"}, backend: "tesseract"}
	cache := &fakeExtractionCache{result: &domain.ExtractionResult{PageCount: 2}}

	extractor := NewExtractor(transport, cache, nil, recogniser)

	// Without the retry option the empty cached result is served as is.
	result, err := extractor.Extract(context.Background(), &doc, ExtractOptions{})
	require.NoError(t, err)
	assert.False(t, result.IncludesOCR())
	assert.Zero(t, transport.downloads)

	// With it, the hit is bypassed and recognition runs.
	result, err = extractor.Extract(context.Background(), &doc, ExtractOptions{AutoOCR: true})
	require.NoError(t, err)
	assert.True(t, result.IncludesOCR())
	assert.Equal(t, 1, recogniser.calls)
	assert.Equal(t, 1, cache.puts)
}

// TestExtractor_Extract_AutoOCRSkipsPDF tests that a PDF with no text
// layer is not auto-retried with recognition.
func TestExtractor_Extract_AutoOCRSkipsPDF(t *testing.T) {
	doc := notebookDoc("doc-1", "Paper")
	archive := notebookArchive("doc-1")
	archive.Add("doc-1.pdf", []byte("%PDF-1.4"))
	transport := &fakeTransport{archives: map[string]*domain.Archive{"doc-1": archive}}
	recogniser := &fakeRecogniser{backend: "tesseract"}

	extractor := NewExtractor(transport, nil, nil, recogniser)
	result, err := extractor.Extract(context.Background(), &doc, ExtractOptions{AutoOCR: true})
	require.NoError(t, err)

	assert.False(t, result.IncludesOCR())
	assert.Zero(t, recogniser.calls)
}

// TestExtractor_Extract_Highlights tests highlight collection from
// annotation files.
func TestExtractor_Extract_Highlights(t *testing.T) {
	doc := notebookDoc("doc-1", "Book")
	archive := &domain.Archive{DocumentID: "doc-1"}
	archive.Add("doc-1.highlights/page-a.json", []byte(`{"highlights":[{"text":"a quote"},{"text":"another"}]}`))
	archive.Add("doc-1.metadata", []byte(`{"visibleName":"Book"}`))
	transport := &fakeTransport{archives: map[string]*domain.Archive{"doc-1": archive}}

	extractor := NewExtractor(transport, nil, nil, nil)
	result, err := extractor.Extract(context.Background(), &doc, ExtractOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a quote", "another"}, result.Highlights)
}

// TestExtractor_Extract_DecoderFailureSkipsPage tests that an
// undecodable page is skipped, not fatal.
func TestExtractor_Extract_DecoderFailureSkipsPage(t *testing.T) {
	doc := notebookDoc("doc-1", "Notes")
	transport := &fakeTransport{archives: map[string]*domain.Archive{"doc-1": notebookArchive("doc-1")}}
	decoder := &fakeDecoder{texts: map[string]string{"ink-b": "only page"}}

	extractor := NewExtractor(transport, nil, decoder, nil)
	result, err := extractor.Extract(context.Background(), &doc, ExtractOptions{})
	require.NoError(t, err)

	assert.Equal(t, "only page", result.TypedText)
	assert.Equal(t, 2, result.PageCount)
}

// TestExtractor_Extract_NoRecogniser tests that requesting recognition
// without a configured pipeline fails cleanly.
func TestExtractor_Extract_NoRecogniser(t *testing.T) {
	doc := notebookDoc("doc-1", "Notes")
	transport := &fakeTransport{archives: map[string]*domain.Archive{"doc-1": notebookArchive("doc-1")}}

	extractor := NewExtractor(transport, nil, nil, nil)
	_, err := extractor.Extract(context.Background(), &doc, ExtractOptions{OCR: true})
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

// TestExtractor_Extract_LeftoverPages tests that pages missing from the
// manifest keep their archive order at the end.
func TestExtractor_Extract_LeftoverPages(t *testing.T) {
	doc := notebookDoc("doc-1", "Notes")
	archive := notebookArchive("doc-1")
	archive.Add("doc-1/page-c.rm", []byte("ink-c"))
	transport := &fakeTransport{archives: map[string]*domain.Archive{"doc-1": archive}}

	extractor := NewExtractor(transport, nil, nil, nil)
	result, err := extractor.Extract(context.Background(), &doc, ExtractOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"page-b", "page-a", "page-c"}, result.PageIDs)
}
