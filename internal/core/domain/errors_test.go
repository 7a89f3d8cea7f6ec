package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNotFoundError_Error tests message rendering with and without suggestions
func TestNotFoundError_Error(t *testing.T) {
	bare := &NotFoundError{Name: "Meeting Notes"}
	assert.Equal(t, `document "Meeting Notes" not found`, bare.Error())

	suggested := &NotFoundError{Name: "Meting Notes", Suggestions: []string{"Meeting Notes", "Meetings"}}
	assert.Contains(t, suggested.Error(), "did you mean")
	assert.Contains(t, suggested.Error(), "Meeting Notes, Meetings")
}

// TestNotFoundError_Unwrap tests errors.Is matching against the sentinel
func TestNotFoundError_Unwrap(t *testing.T) {
	err := fmt.Errorf("resolve document: %w", &NotFoundError{Name: "x"})

	assert.True(t, errors.Is(err, ErrNotFound))

	var nfe *NotFoundError
	assert.True(t, errors.As(err, &nfe))
	assert.Equal(t, "x", nfe.Name)
}

// TestPageRangeError tests message and sentinel matching
func TestPageRangeError(t *testing.T) {
	err := &PageRangeError{Page: 9, TotalPages: 4}

	assert.Equal(t, "page 9 out of range, valid pages are 1-4", err.Error())
	assert.True(t, errors.Is(err, ErrPageOutOfRange))
}

// TestDomainErrors_Distinct tests that sentinels do not match each other
func TestDomainErrors_Distinct(t *testing.T) {
	assert.False(t, errors.Is(ErrNoMatch, ErrNoContent))
	assert.False(t, errors.Is(ErrStaleSession, ErrAuthExpired))
}
