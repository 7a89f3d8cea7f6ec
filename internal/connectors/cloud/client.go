package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/slate/internal/core/domain"
	"github.com/custodia-labs/slate/internal/core/ports/driven"
	"github.com/custodia-labs/slate/internal/logger"
)

const (
	// SyncHost serves the content-addressed document store.
	SyncHost = "https://internal.cloud.remarkable.com"

	rootPath  = "/sync/v4/root"
	filesPath = "/sync/v3/files"

	// RequestTimeout bounds each sync API request.
	RequestTimeout = 60 * time.Second

	// requestsPerSecond throttles blob fetches. Listing a tree issues a
	// few requests per document, so the burst absorbs small trees.
	requestsPerSecond = 10
	requestBurst      = 20
)

// Ensure Client implements the Transport port.
var _ driven.Transport = (*Client)(nil)

// Client talks to the reMarkable sync API. Authentication runs through a
// renewing token source: a 401 invalidates the user token and the request
// is retried once with a fresh one.
type Client struct {
	syncHost    string
	httpClient  *http.Client
	tokenSource *userTokenSource
	limiter     *rate.Limiter
}

// Options configures the cloud client.
type Options struct {
	// AuthHost and SyncHost override the production endpoints.
	// Used by tests; empty means production.
	AuthHost string
	SyncHost string

	// HTTPClient overrides the default client. Timeouts are still
	// applied per request.
	HTTPClient *http.Client

	// OnTokenRenew receives each fresh user token for persistence.
	OnTokenRenew func(userToken string)
}

// NewClient creates a sync API client from stored credentials.
func NewClient(creds domain.Credentials, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: RequestTimeout}
	}
	syncHost := opts.SyncHost
	if syncHost == "" {
		syncHost = SyncHost
	}
	return &Client{
		syncHost:    syncHost,
		httpClient:  httpClient,
		tokenSource: newUserTokenSource(opts.AuthHost, httpClient, creds, opts.OnTokenRenew),
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	}
}

// Type returns the transport type identifier.
func (c *Client) Type() string { return "cloud" }

// Capabilities returns what the cloud transport supports.
func (c *Client) Capabilities() driven.TransportCapabilities {
	return driven.TransportCapabilities{
		SupportsRawFetch: false,
		SupportsSize:     true,
		RequiresAuth:     true,
	}
}

// SetCredentials swaps in new credentials, e.g. after re-registration.
func (c *Client) SetCredentials(creds domain.Credentials) {
	c.tokenSource.SetDeviceToken(creds.DeviceToken)
}

// Check verifies the token by fetching the root pointer.
func (c *Client) Check(ctx context.Context) error {
	_, err := c.rootHash(ctx)
	return err
}

// ListTree fetches documents and folders from the cloud.
//
// Pipeline:
//  1. fetch the root pointer, then the root index
//  2. for each entry, fetch the document's own blob index
//  3. fetch the .metadata blob named by the document ID
//  4. drop deleted documents, stop early once limit is reached
//
// Per-document failures skip that document so one bad blob never hides
// the rest of the tree.
func (c *Client) ListTree(ctx context.Context, limit int) ([]domain.Document, error) {
	rootHash, err := c.rootHash(ctx)
	if err != nil {
		return nil, err
	}

	rootIndex, err := c.getFile(ctx, rootHash)
	if err != nil {
		return nil, fmt.Errorf("fetch root index: %w", err)
	}
	entries := parseIndex(rootIndex)
	logger.Debug("root index has %d entries", len(entries))

	var documents []domain.Document
	for _, entry := range entries {
		doc, err := c.fetchDocument(ctx, entry)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("skipping document %s: %v", entry.ID, err)
			continue
		}
		if doc.Deleted {
			continue
		}
		documents = append(documents, *doc)

		if limit > 0 && len(documents) >= limit {
			break
		}
	}

	return documents, nil
}

// Resolve fetches a single document's record by ID. The sync API has no
// per-document lookup, so this scans the root index for the entry.
func (c *Client) Resolve(ctx context.Context, id string) (*domain.Document, error) {
	rootHash, err := c.rootHash(ctx)
	if err != nil {
		return nil, err
	}
	rootIndex, err := c.getFile(ctx, rootHash)
	if err != nil {
		return nil, fmt.Errorf("fetch root index: %w", err)
	}
	for _, entry := range parseIndex(rootIndex) {
		if entry.ID != id {
			continue
		}
		doc, err := c.fetchDocument(ctx, entry)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
	return nil, &domain.NotFoundError{Name: id}
}

// Download bundles every blob of a document into an in-memory archive.
// Individual blob failures are skipped.
func (c *Client) Download(ctx context.Context, doc *domain.Document) (*domain.Archive, error) {
	blobIndex, err := c.getFile(ctx, doc.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("fetch blob index: %w", err)
	}

	archive := &domain.Archive{DocumentID: doc.ID}
	for _, entry := range parseIndex(blobIndex) {
		data, err := c.getFile(ctx, entry.Hash)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("skipping file %s: %v", entry.ID, err)
			continue
		}
		archive.Add(entry.ID, data)
	}
	return archive, nil
}

// DownloadRaw is not supported: the sync API stores bundles, not the
// original uploads.
func (c *Client) DownloadRaw(_ context.Context, _ *domain.Document, _ string) ([]byte, error) {
	return nil, domain.ErrRawFetchUnsupported
}

// fetchDocument resolves one root index entry into a Document.
func (c *Client) fetchDocument(ctx context.Context, entry domain.FileEntry) (*domain.Document, error) {
	blobIndex, err := c.getFile(ctx, entry.Hash)
	if err != nil {
		return nil, fmt.Errorf("fetch blob index: %w", err)
	}
	files := parseIndex(blobIndex)

	meta := metadataFile{}
	for _, f := range files {
		if !strings.HasSuffix(f.ID, ".metadata") {
			continue
		}
		content, err := c.getFile(ctx, f.Hash)
		if err != nil {
			return nil, fmt.Errorf("fetch metadata: %w", err)
		}
		if err := json.Unmarshal(content, &meta); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
		break
	}

	name := meta.VisibleName
	if name == "" {
		name = entry.ID
	}
	kind := domain.Kind(meta.Type)
	if kind == "" {
		kind = domain.KindDocument
	}

	return &domain.Document{
		ID:           entry.ID,
		ContentHash:  entry.Hash,
		Name:         name,
		Kind:         kind,
		ParentID:     meta.Parent,
		Deleted:      meta.Deleted,
		Pinned:       meta.Pinned,
		LastModified: domain.ParseModified(meta.LastModified),
		SizeBytes:    entry.Size,
		FileEntries:  files,
	}, nil
}

// metadataFile is the device's .metadata JSON.
type metadataFile struct {
	VisibleName  string `json:"visibleName"`
	Type         string `json:"type"`
	Parent       string `json:"parent"`
	Deleted      bool   `json:"deleted"`
	Pinned       bool   `json:"pinned"`
	LastModified string `json:"lastModified"`
}

// rootHash fetches the root pointer. An empty or non-JSON body means the
// service accepted the token but has no usable session.
func (c *Client) rootHash(ctx context.Context) (string, error) {
	body, err := c.get(ctx, c.syncHost+rootPath)
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", domain.ErrStaleSession
	}
	var root struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(body, &root); err != nil {
		return "", fmt.Errorf("parse root response: %w", domain.ErrStaleSession)
	}
	if root.Hash == "" {
		return "", domain.ErrStaleSession
	}
	return root.Hash, nil
}

// getFile downloads a blob by its content hash.
func (c *Client) getFile(ctx context.Context, hash string) ([]byte, error) {
	return c.get(ctx, c.syncHost+filesPath+"/"+hash)
}

// get performs an authenticated GET. On 401 the cached user token is
// invalidated and the request retried once; a second 401 is fatal.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	body, status, err := c.doOnce(ctx, url)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		logger.Debug("401 from %s, renewing user token", url)
		c.tokenSource.Invalidate()
		body, status, err = c.doOnce(ctx, url)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, fmt.Errorf("still unauthorized after renewal: %w", domain.ErrAuthExpired)
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("GET %s: HTTP %d", url, status)
	}
	return body, nil
}

// doOnce performs a single authenticated request.
func (c *Client) doOnce(ctx context.Context, url string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	token, err := c.tokenSource.Token()
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
