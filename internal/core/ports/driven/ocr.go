package driven

import (
	"context"
	"image"
)

// Recogniser converts a rendered page image to text.
// Implementations wrap a single engine (Tesseract, Google Vision).
type Recogniser interface {
	// Name returns the backend identifier ("tesseract", "google").
	Name() string

	// Recognise returns the text found in the image, trimmed.
	Recognise(ctx context.Context, img image.Image) (string, error)
}

// Sampler asks an attached model session to transcribe a page image.
// Only available while a client session with sampling support is active.
type Sampler interface {
	// Active reports whether a session is currently attached.
	Active() bool

	// Sample requests a transcription of the image from the session.
	Sample(ctx context.Context, img image.Image) (string, error)
}

// PageText is one recognised page, in manifest order.
type PageText struct {
	PageID string
	Text   string
}

// HandwritingRecogniser runs the full per-page recognition pipeline over
// a document's pages and reports which backend produced the text.
type HandwritingRecogniser interface {
	// RecognisePages recognises each page in order using the given
	// strategy (empty means the configured default). Pages that fail to
	// render or recognise yield empty text; the result is nil only when
	// every page failed.
	RecognisePages(ctx context.Context, docID string, pages []PageInput, strategy string) ([]PageText, string, error)
}

// PageInput is one page handed to the recognition pipeline.
type PageInput struct {
	PageID string
	Data   []byte
}
