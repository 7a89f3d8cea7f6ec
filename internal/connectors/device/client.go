package device

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/custodia-labs/slate/internal/core/domain"
	"github.com/custodia-labs/slate/internal/core/ports/driven"
	"github.com/custodia-labs/slate/internal/logger"
)

const (
	// DefaultHost is the tablet's USB link address.
	DefaultHost = "10.11.99.1"

	// DefaultUser is the tablet's shell user.
	DefaultUser = "root"

	// DefaultPort is the tablet's SSH port.
	DefaultPort = 22

	// XochitlPath is where the tablet stores documents.
	XochitlPath = "/home/root/.local/share/remarkable/xochitl"

	checkTimeout   = 5 * time.Second
	commandTimeout = 30 * time.Second
	fileTimeout    = 60 * time.Second
)

// Ensure Client implements the Transport port.
var _ driven.Transport = (*Client)(nil)

// Client reads the tablet's document store over a shell connection.
type Client struct {
	runner runner
}

// Options configures the shell transport.
type Options struct {
	// Host, User and Port locate the tablet. Zero values use the USB
	// link defaults.
	Host string
	User string
	Port int

	// Password is the shell password shown on the tablet. Leave empty
	// when key-based auth is configured.
	Password string

	// HostKeyCallback overrides host key verification. Nil trusts the
	// peer, which suits the point-to-point USB link.
	HostKeyCallback ssh.HostKeyCallback
}

// NewClient creates a shell transport client. The connection is dialed
// on first use.
func NewClient(opts Options) *Client {
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.User == "" {
		opts.User = DefaultUser
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	var auth []ssh.AuthMethod
	if opts.Password != "" {
		auth = append(auth, ssh.Password(opts.Password))
	}
	return &Client{runner: newSSHRunner(opts.Host, opts.User, opts.Port, auth, opts.HostKeyCallback)}
}

// Type returns the transport type identifier.
func (c *Client) Type() string { return "ssh" }

// Capabilities returns what the shell transport supports.
func (c *Client) Capabilities() driven.TransportCapabilities {
	return driven.TransportCapabilities{
		SupportsRawFetch: true,
		SupportsSize:     false,
		RequiresAuth:     false,
	}
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.runner.close()
}

// Check probes the connection with a cheap echo.
func (c *Client) Check(ctx context.Context) error {
	out, err := c.runner.run(ctx, "echo ok", checkTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)
	}
	if strings.TrimSpace(string(out)) != "ok" {
		return fmt.Errorf("%w: unexpected probe output", domain.ErrTransportUnavailable)
	}
	return nil
}

// ListTree lists documents by reading every .metadata file under the
// xochitl store. Unparseable files are skipped.
func (c *Client) ListTree(ctx context.Context, limit int) ([]domain.Document, error) {
	out, err := c.runner.run(ctx,
		fmt.Sprintf("ls -1 %s/*.metadata 2>/dev/null || true", XochitlPath), commandTimeout)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var documents []domain.Document
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		metaPath := strings.TrimSpace(line)
		if metaPath == "" {
			continue
		}
		if limit > 0 && len(documents) >= limit {
			break
		}

		id := domain.Stem(metaPath)
		doc, err := c.readDocument(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("skipping %s: %v", metaPath, err)
			continue
		}
		if doc.Deleted {
			continue
		}
		documents = append(documents, *doc)
	}

	return documents, nil
}

// Resolve fetches a single document's record by ID.
func (c *Client) Resolve(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := c.readDocument(ctx, id)
	if err != nil {
		return nil, &domain.NotFoundError{Name: id}
	}
	return doc, nil
}

// readDocument reads and parses one metadata file.
func (c *Client) readDocument(ctx context.Context, id string) (*domain.Document, error) {
	out, err := c.runner.run(ctx,
		fmt.Sprintf("cat '%s/%s.metadata'", XochitlPath, id), commandTimeout)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta struct {
		VisibleName  string `json:"visibleName"`
		Type         string `json:"type"`
		Parent       string `json:"parent"`
		Deleted      bool   `json:"deleted"`
		Pinned       bool   `json:"pinned"`
		LastModified string `json:"lastModified"`
	}
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	name := meta.VisibleName
	if name == "" {
		name = id
	}
	kind := domain.Kind(meta.Type)
	if kind == "" {
		kind = domain.KindDocument
	}

	// No content addressing on the device; the ID stands in for the hash
	// and sizes are unknown without walking every file.
	return &domain.Document{
		ID:           id,
		ContentHash:  id,
		Name:         name,
		Kind:         kind,
		ParentID:     meta.Parent,
		Deleted:      meta.Deleted,
		Pinned:       meta.Pinned,
		LastModified: domain.ParseModified(meta.LastModified),
	}, nil
}

// Download bundles a document's files into an in-memory archive.
// Entries under the page directory keep their directory-relative names;
// the sibling .content file is included when present. Per-file failures
// are skipped.
func (c *Client) Download(ctx context.Context, doc *domain.Document) (*domain.Archive, error) {
	docDir := XochitlPath + "/" + doc.ID

	out, err := c.runner.run(ctx,
		fmt.Sprintf("find '%s' -type f 2>/dev/null || true", docDir), commandTimeout)
	if err != nil {
		return nil, fmt.Errorf("list document files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if p := strings.TrimSpace(line); p != "" {
			paths = append(paths, p)
		}
	}

	contentPath := docDir + ".content"
	if _, err := c.runner.run(ctx,
		fmt.Sprintf("test -f '%s' && echo exists", contentPath), commandTimeout); err == nil {
		paths = append(paths, contentPath)
	}

	archive := &domain.Archive{DocumentID: doc.ID}
	for _, remote := range paths {
		data, err := c.runner.run(ctx, fmt.Sprintf("cat '%s'", remote), fileTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("skipping %s: %v", remote, err)
			continue
		}
		archive.Add(archiveName(remote, docDir), data)
	}
	return archive, nil
}

// archiveName maps a remote path to its archive entry name. Files inside
// the page directory keep their relative path; everything else uses the
// base name.
func archiveName(remote, docDir string) string {
	if strings.HasPrefix(remote, docDir+"/") {
		return strings.TrimPrefix(remote, docDir+"/")
	}
	return path.Base(remote)
}

// DownloadRaw fetches a single stored file by extension, e.g. the
// original PDF behind an annotated document.
func (c *Client) DownloadRaw(ctx context.Context, doc *domain.Document, fileType string) ([]byte, error) {
	if !strings.HasPrefix(fileType, ".") {
		fileType = "." + fileType
	}
	remote := fmt.Sprintf("%s/%s%s", XochitlPath, doc.ID, fileType)
	data, err := c.runner.run(ctx, fmt.Sprintf("cat '%s'", remote), fileTimeout)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", remote, err)
	}
	return data, nil
}
