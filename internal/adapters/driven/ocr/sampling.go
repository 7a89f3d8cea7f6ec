package ocr

import (
	"context"
	"image"
	"strings"

	"github.com/custodia-labs/slate/internal/core/ports/driven"
)

// Ensure SamplingRecogniser implements the Recogniser port.
var _ driven.Recogniser = (*SamplingRecogniser)(nil)

// SamplingRecogniser transcribes pages through an attached client
// session. It is only usable while the session is active; the pipeline
// falls back to the automatic strategy otherwise.
type SamplingRecogniser struct {
	sampler driven.Sampler
}

// NewSamplingRecogniser wraps a session sampler as a recognition backend.
func NewSamplingRecogniser(sampler driven.Sampler) *SamplingRecogniser {
	return &SamplingRecogniser{sampler: sampler}
}

// Name returns the backend identifier.
func (s *SamplingRecogniser) Name() string { return "sampling" }

// Active reports whether a session is attached.
func (s *SamplingRecogniser) Active() bool {
	return s.sampler != nil && s.sampler.Active()
}

// Recognise asks the session to transcribe the page.
func (s *SamplingRecogniser) Recognise(ctx context.Context, img image.Image) (string, error) {
	text, err := s.sampler.Sample(ctx, flattenOnWhite(img))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
