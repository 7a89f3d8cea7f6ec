package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/custodia-labs/slate/internal/core/ports/driven"
)

// Ensure Tesseract implements the Recogniser port.
var _ driven.Recogniser = (*Tesseract)(nil)

// Tesseract recognises pages with a local tesseract install. Quality is
// basic for handwriting but it needs no credentials or network.
type Tesseract struct {
	clientFactory func() *gosseract.Client
}

// NewTesseract constructs the tesseract backend.
func NewTesseract() *Tesseract {
	return &Tesseract{clientFactory: gosseract.NewClient}
}

// Name returns the backend identifier.
func (t *Tesseract) Name() string { return "tesseract" }

// Recognise preprocesses the page and runs sparse-text OCR over it.
func (t *Tesseract) Recognise(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	prepared := prepareForRecognition(img)
	data, err := encodePNG(prepared)
	if err != nil {
		return "", err
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	// Handwritten notes are sparse; let tesseract hunt for text anywhere
	// on the page instead of assuming a uniform block.
	if err := c.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return "", fmt.Errorf("set page seg mode: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognise text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
