package driven

import (
	"context"
	"image"
)

// PageDecoder turns a raw .rm page file into structured content.
type PageDecoder interface {
	// TypedText extracts keyboard-typed text from a page file.
	// Returns empty string when the page has no typed text.
	TypedText(data []byte) (string, error)
}

// PageRenderer rasterises a .rm page file for handwriting recognition.
type PageRenderer interface {
	// Render produces a raster image of the page strokes.
	Render(ctx context.Context, data []byte) (image.Image, error)
}
