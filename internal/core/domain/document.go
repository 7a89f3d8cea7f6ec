package domain

import (
	"strings"
	"time"
)

// Kind distinguishes documents from folders in the device tree.
type Kind string

const (
	// KindDocument is a readable document (notebook, PDF, EPUB).
	KindDocument Kind = "DocumentType"

	// KindFolder is a collection containing other nodes.
	KindFolder Kind = "CollectionType"
)

// TrashParent is the parent ID the device assigns to archived documents.
const TrashParent = "trash"

// FileEntry describes one blob belonging to a document, as listed in the
// document's own index.
type FileEntry struct {
	// Hash is the content address of the blob.
	Hash string

	// Kind is the numeric entry kind from the index row.
	Kind string

	// ID is the file identifier, typically "{uuid}/{page}.rm" or
	// "{uuid}.metadata".
	ID string

	// SubfileCount is the number of nested entries (0 for leaf files).
	SubfileCount int

	// Size is the blob size in bytes.
	Size int64
}

// Document represents a document or folder in the tablet's tree.
// It is constructed fresh on every tree listing; only the loader registry
// holds Documents across calls.
type Document struct {
	// ID is the stable document identifier (a UUID on the device).
	ID string

	// ContentHash is the content address of the document's current blob set.
	// The shell transport has no content addressing and reuses ID here.
	ContentHash string

	// Name is the display name shown on the tablet.
	Name string

	// Kind is DocumentType or CollectionType.
	Kind Kind

	// ParentID is the containing folder's ID, or "" for the root.
	ParentID string

	// Deleted marks documents the device has soft-deleted.
	Deleted bool

	// Pinned marks favourited documents.
	Pinned bool

	// LastModified is the device modification time, nil when unknown.
	LastModified *time.Time

	// SizeBytes is the total blob size reported by the index.
	SizeBytes int64

	// FileEntries lists the document's blobs in index order.
	FileEntries []FileEntry
}

// IsFolder reports whether the node is a collection.
func (d *Document) IsFolder() bool {
	return d.Kind == KindFolder
}

// IsArchived reports whether the document sits in the device trash.
func (d *Document) IsArchived() bool {
	return d.ParentID == TrashParent
}

// ParseModified converts the device's millisecond-epoch timestamp string
// into a time. Returns nil for empty or malformed input, matching the
// tolerant handling of device metadata.
func ParseModified(ms string) *time.Time {
	if ms == "" {
		return nil
	}
	var n int64
	for _, c := range ms {
		if c < '0' || c > '9' {
			return nil
		}
		n = n*10 + int64(c-'0')
	}
	t := time.UnixMilli(n)
	return &t
}

// DocumentsByID builds a lookup map keyed by document ID.
func DocumentsByID(docs []Document) map[string]*Document {
	byID := make(map[string]*Document, len(docs))
	for i := range docs {
		byID[docs[i].ID] = &docs[i]
	}
	return byID
}

// DocumentPath returns the full path of a document by walking parent links
// through the byID lookup. Unresolvable parents terminate the walk.
func DocumentPath(doc *Document, byID map[string]*Document) string {
	parts := []string{doc.Name}
	parentID := doc.ParentID
	for parentID != "" {
		parent, ok := byID[parentID]
		if !ok {
			break
		}
		parts = append([]string{parent.Name}, parts...)
		parentID = parent.ParentID
	}
	return strings.Join(parts, "/")
}
