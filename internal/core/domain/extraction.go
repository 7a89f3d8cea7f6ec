package domain

import "time"

// ExtractionResult is the unified text view of a single document.
// TypedText folds keyboard text, bundled .txt/.md files, and the content
// manifest's plain-text field. HandwrittenText is nil when recognition was
// not requested and non-nil (possibly holding empty pages) when it was.
type ExtractionResult struct {
	TypedText       string
	Highlights      []string
	HandwrittenText []string
	PageCount       int
	PageIDs         []string

	// OCRBackend names the backend that produced HandwrittenText,
	// empty when no recognition ran.
	OCRBackend string

	// ComputedAt records when this result was produced, so cached
	// results can report their age.
	ComputedAt time.Time
}

// HasHandwriting reports whether recognition ran and produced any text.
func (r *ExtractionResult) HasHandwriting() bool {
	for _, page := range r.HandwrittenText {
		if page != "" {
			return true
		}
	}
	return false
}

// IncludesOCR reports whether handwriting recognition ran at all.
// A result that includes OCR satisfies a request that does not want it;
// the reverse does not hold.
func (r *ExtractionResult) IncludesOCR() bool {
	return r.HandwrittenText != nil
}

// CombinedText joins typed text and recognised handwriting into one body
// for pagination and filtering.
func (r *ExtractionResult) CombinedText() string {
	out := r.TypedText
	for _, page := range r.HandwrittenText {
		if page == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += page
	}
	return out
}
