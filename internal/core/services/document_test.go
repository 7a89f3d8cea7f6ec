package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/slate/internal/core/domain"
	"github.com/custodia-labs/slate/internal/core/ports/driving"
)

func testTree() []domain.Document {
	return []domain.Document{
		{ID: "folder-1", Name: "Work", Kind: domain.KindFolder},
		{ID: "doc-1", Name: "Meeting Notes", Kind: domain.KindDocument, ParentID: "folder-1"},
		{ID: "doc-2", Name: "Journal", Kind: domain.KindDocument},
		{ID: "doc-3", Name: "Old Draft", Kind: domain.KindDocument, ParentID: domain.TrashParent},
	}
}

func newTestService(transport *fakeTransport, recogniser *fakeRecogniser, opts DocumentServiceOptions) *DocumentService {
	registry := NewRegistry()
	decoder := &fakeDecoder{texts: map[string]string{"ink-a": "second page", "ink-b": "first page"}}
	extractor := NewExtractor(transport, nil, decoder, recogniser)
	return NewDocumentService(transport, registry, extractor, opts)
}

// TestDocumentService_List tests listing with archived documents
// filtered out.
func TestDocumentService_List(t *testing.T) {
	transport := &fakeTransport{docs: testTree()}
	svc := newTestService(transport, nil, DocumentServiceOptions{})

	summaries, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, "Work", summaries[0].Path)
	assert.Equal(t, domain.KindFolder, summaries[0].Kind)
	assert.Equal(t, "Work/Meeting Notes", summaries[1].Path)
	assert.Equal(t, "Journal", summaries[2].Path)
}

// TestDocumentService_List_RootScope tests that a configured root
// narrows the listing and strips the prefix from paths.
func TestDocumentService_List_RootScope(t *testing.T) {
	transport := &fakeTransport{docs: testTree()}
	svc := newTestService(transport, nil, DocumentServiceOptions{Root: "Work"})

	summaries, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "doc-1", summaries[0].ID)
	assert.Equal(t, "Meeting Notes", summaries[0].Path)
}

// TestDocumentService_List_Limit tests the listing limit.
func TestDocumentService_List_Limit(t *testing.T) {
	transport := &fakeTransport{docs: testTree()}
	svc := newTestService(transport, nil, DocumentServiceOptions{})

	summaries, err := svc.List(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}

// TestDocumentService_Find tests name resolution and the suggestions
// carried by a miss.
func TestDocumentService_Find(t *testing.T) {
	transport := &fakeTransport{docs: testTree()}
	svc := newTestService(transport, nil, DocumentServiceOptions{})

	doc, err := svc.Find(context.Background(), "journal")
	require.NoError(t, err)
	assert.Equal(t, "doc-2", doc.ID)

	byPath, err := svc.Find(context.Background(), "Work/Meeting Notes")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", byPath.ID)

	_, err = svc.Find(context.Background(), "meetng notes")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var notFound *domain.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Contains(t, notFound.Suggestions, "Meeting Notes")
}

// TestDocumentService_Find_TransportDownFallsBackToRegistry tests that
// a known name still resolves while the transport is unreachable.
func TestDocumentService_Find_TransportDownFallsBackToRegistry(t *testing.T) {
	transport := &fakeTransport{docs: testTree()}
	svc := newTestService(transport, nil, DocumentServiceOptions{})

	_, err := svc.List(context.Background(), 0)
	require.NoError(t, err)

	transport.listErr = errors.New("tablet unreachable")
	doc, err := svc.Find(context.Background(), "Journal")
	require.NoError(t, err)
	assert.Equal(t, "doc-2", doc.ID)
}

// TestDocumentService_Read tests extraction, pagination and the typed
// error for folders.
func TestDocumentService_Read(t *testing.T) {
	transport := &fakeTransport{
		docs:     testTree(),
		archives: map[string]*domain.Archive{"doc-2": notebookArchive("doc-2")},
	}
	svc := newTestService(transport, nil, DocumentServiceOptions{})

	result, err := svc.Read(context.Background(), driving.ReadRequest{Name: "Journal"})
	require.NoError(t, err)
	assert.Equal(t, "first page\n\nsecond page", result.Content)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 1, result.TotalPages)
	assert.Empty(t, result.OCRBackend)

	_, err = svc.Read(context.Background(), driving.ReadRequest{Name: "Work"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// TestDocumentService_Read_Paginated tests the page size override and
// the out-of-range error.
func TestDocumentService_Read_Paginated(t *testing.T) {
	transport := &fakeTransport{
		docs:     testTree(),
		archives: map[string]*domain.Archive{"doc-2": notebookArchive("doc-2")},
	}
	svc := newTestService(transport, nil, DocumentServiceOptions{})

	result, err := svc.Read(context.Background(), driving.ReadRequest{Name: "Journal", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalPages)
	assert.Equal(t, 2, result.Page)

	_, err = svc.Read(context.Background(), driving.ReadRequest{Name: "Journal", Page: 9, PageSize: 10})
	assert.ErrorIs(t, err, domain.ErrPageOutOfRange)
}

// TestDocumentService_Read_Filter tests pattern filtering and the
// no-match and no-content errors.
func TestDocumentService_Read_Filter(t *testing.T) {
	emptyArchive := &domain.Archive{DocumentID: "doc-1"}
	transport := &fakeTransport{
		docs: testTree(),
		archives: map[string]*domain.Archive{
			"doc-2": notebookArchive("doc-2"),
			"doc-1": emptyArchive,
		},
	}
	svc := newTestService(transport, nil, DocumentServiceOptions{})

	result, err := svc.Read(context.Background(), driving.ReadRequest{Name: "Journal", Filter: "second"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matches)
	assert.Contains(t, result.Content, "second page")

	_, err = svc.Read(context.Background(), driving.ReadRequest{Name: "Journal", Filter: "absent"})
	assert.ErrorIs(t, err, domain.ErrNoMatch)

	_, err = svc.Read(context.Background(), driving.ReadRequest{Name: "Meeting Notes", Filter: "anything"})
	assert.ErrorIs(t, err, domain.ErrNoContent)
}

// TestDocumentService_ReadNotebookPage tests per-page reads and the
// cross-page filter hint.
func TestDocumentService_ReadNotebookPage(t *testing.T) {
	transport := &fakeTransport{
		docs:     testTree(),
		archives: map[string]*domain.Archive{"doc-2": notebookArchive("doc-2")},
	}
	recogniser := &fakeRecogniser{
		texts:   map[string]string{"page-b": "groceries list", "page-a": "meeting agenda"},
		backend: "tesseract",
	}
	svc := newTestService(transport, recogniser, DocumentServiceOptions{})

	result, err := svc.ReadNotebookPage(context.Background(), "Journal", 1, "", driving.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "groceries list", result.Content)
	assert.Equal(t, 2, result.TotalPages)
	assert.Equal(t, "tesseract", result.OCRBackend)

	// The filter misses page 1 but hits page 2.
	hinted, err := svc.ReadNotebookPage(context.Background(), "Journal", 1, "agenda", driving.ReadOptions{})
	require.NoError(t, err)
	assert.Empty(t, hinted.Content)
	assert.Equal(t, []int{2}, hinted.MatchPages)

	_, err = svc.ReadNotebookPage(context.Background(), "Journal", 5, "", driving.ReadOptions{})
	require.Error(t, err)
	var rangeErr *domain.PageRangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, 2, rangeErr.TotalPages)

	_, err = svc.ReadNotebookPage(context.Background(), "Journal", 1, "nowhere", driving.ReadOptions{})
	assert.ErrorIs(t, err, domain.ErrNoMatch)
}

// TestDocumentService_DownloadFile tests raw fetch and the capability
// gate.
func TestDocumentService_DownloadFile(t *testing.T) {
	transport := &fakeTransport{
		docs:     testTree(),
		rawFetch: true,
		raw:      map[string][]byte{"doc-2.pdf": []byte("%PDF-1.4")},
	}
	svc := newTestService(transport, nil, DocumentServiceOptions{})

	data, err := svc.DownloadFile(context.Background(), "Journal", ".pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	transport.rawFetch = false
	_, err = svc.DownloadFile(context.Background(), "Journal", ".pdf")
	assert.ErrorIs(t, err, domain.ErrRawFetchUnsupported)
}
