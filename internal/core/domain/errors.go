package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoContent indicates a document has no extractable text at all.
	ErrNoContent = errors.New("no content")

	// ErrNoMatch indicates a filter pattern matched nothing in a document
	// that does have content.
	ErrNoMatch = errors.New("no match")

	// ErrRenderFailed indicates a page could not be rendered to an image.
	ErrRenderFailed = errors.New("render failed")

	// ErrBackendUnavailable indicates no handwriting recognition backend
	// could be constructed for the requested strategy.
	ErrBackendUnavailable = errors.New("recognition backend unavailable")

	// Session Errors.

	// ErrStaleSession indicates the sync service accepted the token but
	// returned an unusable root. Re-registering the device clears it.
	ErrStaleSession = errors.New("stale session: root hash unavailable, re-register the device")

	// Authentication Errors.

	// ErrAuthRequired indicates no device credentials are configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthExpired indicates the authentication has expired and refresh failed.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrAuthInvalid indicates the authentication credentials are invalid.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrTokenRefreshFailed indicates token refresh operation failed.
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// Transport Errors.

	// ErrTransportUnavailable indicates no transport could reach the tablet.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrRawFetchUnsupported indicates the active transport cannot fetch a
	// single file by type.
	ErrRawFetchUnsupported = errors.New("raw file fetch not supported by this transport")
)

// NotFoundError wraps ErrNotFound with the looked-up name and any
// similarly named alternatives.
type NotFoundError struct {
	Name        string
	Suggestions []string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("document %q not found", e.Name)
	}
	return fmt.Sprintf("document %q not found, did you mean: %s", e.Name, strings.Join(e.Suggestions, ", "))
}

// Unwrap allows errors.Is(err, ErrNotFound).
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PageRangeError reports a requested page outside a document's valid range.
type PageRangeError struct {
	Page       int
	TotalPages int
}

// Error implements the error interface.
func (e *PageRangeError) Error() string {
	return fmt.Sprintf("page %d out of range, valid pages are 1-%d", e.Page, e.TotalPages)
}

// ErrPageOutOfRange is the sentinel matched by errors.Is for PageRangeError.
var ErrPageOutOfRange = errors.New("page out of range")

// Unwrap allows errors.Is(err, ErrPageOutOfRange).
func (e *PageRangeError) Unwrap() error { return ErrPageOutOfRange }
