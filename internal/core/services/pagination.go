package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/slate/internal/core/domain"
)

// DefaultPageSize is the number of characters returned per page when the
// caller does not ask for a specific size.
const DefaultPageSize = 8000

// filterContext is the number of characters shown on each side of a
// filter match.
const filterContext = 100

// excerptSeparator joins the excerpts of a filtered page.
const excerptSeparator = "\n\n---\n\n"

// PageSlice is one character-window page of a document's text.
type PageSlice struct {
	Content    string
	Page       int
	TotalPages int
	TotalChars int
}

// Paginate cuts text into fixed-size character windows and returns the
// requested one. Page numbers are 1-based. Empty text still has one
// page, so asking for page 1 of an empty document succeeds with empty
// content while any later page is out of range.
func Paginate(text string, page, pageSize int) (*PageSlice, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}

	runes := []rune(text)
	totalChars := len(runes)
	totalPages := (totalChars + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	start := (page - 1) * pageSize
	if page > 1 && start >= totalChars {
		return nil, &domain.PageRangeError{Page: page, TotalPages: totalPages}
	}

	end := start + pageSize
	if end > totalChars {
		end = totalChars
	}

	return &PageSlice{
		Content:    string(runes[start:end]),
		Page:       page,
		TotalPages: totalPages,
		TotalChars: totalChars,
	}, nil
}

// PaginatePages treats each entry of pageTexts as one page and returns
// the requested one. Page numbers are 1-based; an empty document still
// has one empty page.
func PaginatePages(pageTexts []string, page int) (*PageSlice, error) {
	if page <= 0 {
		page = 1
	}

	totalPages := len(pageTexts)
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		return nil, &domain.PageRangeError{Page: page, TotalPages: totalPages}
	}

	content := ""
	if page <= len(pageTexts) {
		content = pageTexts[page-1]
	}
	return &PageSlice{
		Content:    content,
		Page:       page,
		TotalPages: totalPages,
		TotalChars: len([]rune(content)),
	}, nil
}

// Filter reduces text to excerpts around each match of pattern. The
// pattern is compiled case-insensitive and multiline; each match keeps
// filterContext characters of surrounding text with ellipses where the
// excerpt is truncated. Returns the joined excerpts and the match
// count; no matches yields an empty string, not an error.
func Filter(text, pattern string) (string, int, error) {
	re, err := regexp.Compile("(?im)" + pattern)
	if err != nil {
		return "", 0, fmt.Errorf("%w: invalid filter pattern %q: %v", domain.ErrInvalidInput, pattern, err)
	}

	runes := []rune(text)
	var excerpts []string
	for _, loc := range re.FindAllStringIndex(text, -1) {
		start := len([]rune(text[:loc[0]]))
		end := len([]rune(text[:loc[1]]))

		from := start - filterContext
		if from < 0 {
			from = 0
		}
		to := end + filterContext
		if to > len(runes) {
			to = len(runes)
		}

		excerpt := string(runes[from:to])
		if from > 0 {
			excerpt = "..." + excerpt
		}
		if to < len(runes) {
			excerpt = excerpt + "..."
		}
		excerpts = append(excerpts, excerpt)
	}

	if len(excerpts) == 0 {
		return "", 0, nil
	}
	return strings.Join(excerpts, excerptSeparator), len(excerpts), nil
}
