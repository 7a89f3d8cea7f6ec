package domain

import (
	"path"
	"sort"
	"strings"
)

// ArchiveFile is one file inside a downloaded document archive.
type ArchiveFile struct {
	// Name is the archive entry name. The cloud transport uses the blob's
	// file ID; the shell transport uses the remote-relative path.
	Name string

	// Data is the raw file content.
	Data []byte
}

// Archive is the in-memory bundle of every file belonging to a document.
// Both transports produce the same shape so extraction never needs to know
// which one was active.
type Archive struct {
	// DocumentID is the owning document's ID.
	DocumentID string

	// Files holds the archive entries in the order they were bundled.
	Files []ArchiveFile
}

// Add appends a file to the archive.
func (a *Archive) Add(name string, data []byte) {
	a.Files = append(a.Files, ArchiveFile{Name: name, Data: data})
}

// Find returns the first file with the given name, or nil.
func (a *Archive) Find(name string) *ArchiveFile {
	for i := range a.Files {
		if a.Files[i].Name == name {
			return &a.Files[i]
		}
	}
	return nil
}

// ByExtension returns every file whose name has the given extension
// (including the dot), sorted by name for a stable fallback order.
func (a *Archive) ByExtension(ext string) []ArchiveFile {
	var out []ArchiveFile
	for _, f := range a.Files {
		if strings.EqualFold(path.Ext(f.Name), ext) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stem returns an archive entry name without its directory or extension.
// Page files are named by their page UUID, so the stem is the page ID.
func Stem(name string) string {
	base := path.Base(name)
	return strings.TrimSuffix(base, path.Ext(base))
}
