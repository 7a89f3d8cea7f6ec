package cloud

import (
	"strconv"
	"strings"

	"github.com/custodia-labs/slate/internal/core/domain"
)

// parseIndex parses a content-addressed index blob. The first line is the
// schema version; each remaining row is hash:type:id:subfiles:size.
// Malformed rows are skipped rather than failing the whole index.
func parseIndex(content []byte) []domain.FileEntry {
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	var entries []domain.FileEntry

	for i, line := range lines {
		if i == 0 {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) < 5 {
			continue
		}
		subfiles, err := strconv.Atoi(parts[3])
		if err != nil {
			continue
		}
		size, err := strconv.ParseInt(parts[4], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, domain.FileEntry{
			Hash:         parts[0],
			Kind:         parts[1],
			ID:           parts[2],
			SubfileCount: subfiles,
			Size:         size,
		})
	}

	return entries
}
