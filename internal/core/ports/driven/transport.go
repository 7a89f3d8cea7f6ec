package driven

import (
	"context"

	"github.com/custodia-labs/slate/internal/core/domain"
)

// Transport fetches documents from a reMarkable tablet.
// Each transport type (cloud sync, SSH shell) implements this interface.
type Transport interface {
	// Type returns the transport type identifier.
	Type() string

	// Capabilities returns what this transport supports.
	Capabilities() TransportCapabilities

	// ListTree lists documents and folders reachable through this
	// transport. A limit of 0 means no limit; the limit applies after
	// archived documents are filtered out.
	ListTree(ctx context.Context, limit int) ([]domain.Document, error)

	// Resolve fetches a single document's record by ID.
	Resolve(ctx context.Context, id string) (*domain.Document, error)

	// Download bundles every file belonging to a document into an
	// in-memory archive. Individual file failures are skipped.
	Download(ctx context.Context, doc *domain.Document) (*domain.Archive, error)

	// DownloadRaw fetches a single file of the document by extension
	// (".pdf", ".epub"). Only available if SupportsRawFetch is true.
	DownloadRaw(ctx context.Context, doc *domain.Document, fileType string) ([]byte, error)

	// Check verifies the transport can reach the tablet or sync service.
	Check(ctx context.Context) error
}

// TransportCapabilities describes what a transport supports.
type TransportCapabilities struct {
	// SupportsRawFetch indicates single files can be fetched by type
	// without bundling the whole document.
	SupportsRawFetch bool

	// SupportsSize indicates listed documents carry real byte sizes.
	SupportsSize bool

	// RequiresAuth indicates the transport needs registered credentials.
	// False for the local shell transport.
	RequiresAuth bool
}
