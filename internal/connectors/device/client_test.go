package device

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/slate/internal/core/domain"
)

// fakeRunner maps commands to canned outputs.
type fakeRunner struct {
	outputs map[string]string
	ran     []string
}

func (f *fakeRunner) run(_ context.Context, command string, _ time.Duration) ([]byte, error) {
	f.ran = append(f.ran, command)
	out, ok := f.outputs[command]
	if !ok {
		return nil, fmt.Errorf("command failed: %s", command)
	}
	return []byte(out), nil
}

func (f *fakeRunner) close() error { return nil }

func newFakeClient(outputs map[string]string) (*Client, *fakeRunner) {
	r := &fakeRunner{outputs: outputs}
	return &Client{runner: r}, r
}

// TestClient_Check tests the echo probe
func TestClient_Check(t *testing.T) {
	c, _ := newFakeClient(map[string]string{"echo ok": "ok\n"})
	assert.NoError(t, c.Check(context.Background()))

	down, _ := newFakeClient(nil)
	err := down.Check(context.Background())
	assert.True(t, errors.Is(err, domain.ErrTransportUnavailable))
}

// TestClient_ListTree tests metadata listing and parsing
func TestClient_ListTree(t *testing.T) {
	base := XochitlPath
	c, _ := newFakeClient(map[string]string{
		"ls -1 " + base + "/*.metadata 2>/dev/null || true": base + "/doc1.metadata\n" + base + "/doc2.metadata\n" + base + "/bad.metadata\n",
		"cat '" + base + "/doc1.metadata'":                  `{"visibleName": "Notes", "type": "DocumentType", "parent": "", "pinned": true, "lastModified": "1700000000000"}`,
		"cat '" + base + "/doc2.metadata'":                  `{"visibleName": "Old", "deleted": true}`,
		"cat '" + base + "/bad.metadata'":                   "not json",
	})

	docs, err := c.ListTree(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "doc1", doc.ID)
	assert.Equal(t, "doc1", doc.ContentHash)
	assert.Equal(t, "Notes", doc.Name)
	assert.True(t, doc.Pinned)
	require.NotNil(t, doc.LastModified)
	assert.Equal(t, int64(1700000000000), doc.LastModified.UnixMilli())
	assert.Equal(t, int64(0), doc.SizeBytes)
}

// TestClient_ListTree_Empty tests an empty store
func TestClient_ListTree_Empty(t *testing.T) {
	c, _ := newFakeClient(map[string]string{
		"ls -1 " + XochitlPath + "/*.metadata 2>/dev/null || true": "\n",
	})

	docs, err := c.ListTree(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

// TestClient_ListTree_Limit tests early stop after the limit
func TestClient_ListTree_Limit(t *testing.T) {
	base := XochitlPath
	c, r := newFakeClient(map[string]string{
		"ls -1 " + base + "/*.metadata 2>/dev/null || true": base + "/a.metadata\n" + base + "/b.metadata\n",
		"cat '" + base + "/a.metadata'":                     `{"visibleName": "A"}`,
		"cat '" + base + "/b.metadata'":                     `{"visibleName": "B"}`,
	})

	docs, err := c.ListTree(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	// Only the listing and one cat ran.
	assert.Len(t, r.ran, 2)
}

// TestClient_Download tests archive bundling with relative entry names
func TestClient_Download(t *testing.T) {
	base := XochitlPath
	docDir := base + "/doc1"
	c, _ := newFakeClient(map[string]string{
		"find '" + docDir + "' -type f 2>/dev/null || true": docDir + "/page-1.rm\n" + docDir + "/page-2.rm\n",
		"test -f '" + docDir + ".content' && echo exists":   "exists\n",
		"cat '" + docDir + "/page-1.rm'":                    "strokes-1",
		"cat '" + docDir + ".content'":                      `{"pages": []}`,
		// page-2 read fails and is skipped
	})

	archive, err := c.Download(context.Background(), &domain.Document{ID: "doc1"})
	require.NoError(t, err)

	require.Len(t, archive.Files, 2)
	require.NotNil(t, archive.Find("page-1.rm"))
	assert.Equal(t, []byte("strokes-1"), archive.Find("page-1.rm").Data)
	require.NotNil(t, archive.Find("doc1.content"))
	assert.Nil(t, archive.Find("page-2.rm"))
}

// TestClient_DownloadRaw tests fetching the original PDF by extension
func TestClient_DownloadRaw(t *testing.T) {
	base := XochitlPath
	c, _ := newFakeClient(map[string]string{
		"cat '" + base + "/doc1.pdf'": "%PDF-1.4",
	})

	data, err := c.DownloadRaw(context.Background(), &domain.Document{ID: "doc1"}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)
	assert.True(t, c.Capabilities().SupportsRawFetch)
}

// TestClient_Resolve tests the not-found mapping
func TestClient_Resolve(t *testing.T) {
	base := XochitlPath
	c, _ := newFakeClient(map[string]string{
		"cat '" + base + "/doc1.metadata'": `{"visibleName": "Notes"}`,
	})

	doc, err := c.Resolve(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Equal(t, "Notes", doc.Name)

	_, err = c.Resolve(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// TestArchiveName tests entry naming for nested and sibling files
func TestArchiveName(t *testing.T) {
	docDir := XochitlPath + "/doc1"

	assert.Equal(t, "page-1.rm", archiveName(docDir+"/page-1.rm", docDir))
	assert.Equal(t, "thumb/0.png", archiveName(docDir+"/thumb/0.png", docDir))
	assert.Equal(t, "doc1.content", archiveName(XochitlPath+"/doc1.content", docDir))
}
