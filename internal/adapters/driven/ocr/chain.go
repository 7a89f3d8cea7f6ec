package ocr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/slate/internal/core/domain"
	"github.com/custodia-labs/slate/internal/core/ports/driven"
	"github.com/custodia-labs/slate/internal/logger"
)

// Recognition strategies.
const (
	StrategyAuto      = "auto"
	StrategySampling  = "sampling"
	StrategyGoogle    = "google"
	StrategyTesseract = "tesseract"
)

// renderTimeout bounds rendering of one page. A page that cannot render
// in this window is skipped, not fatal.
const renderTimeout = 30 * time.Second

// Ensure Pipeline implements the HandwritingRecogniser port.
var _ driven.HandwritingRecogniser = (*Pipeline)(nil)

// Pipeline runs the per-page recognition pipeline: resolve a backend,
// then for each page render, recognise, trim and cache. The sampling
// strategy needs an active session and otherwise degrades to auto; a
// rejected Google key degrades to tesseract for the remaining pages.
type Pipeline struct {
	renderer  driven.PageRenderer
	pageCache driven.PageCache
	strategy  string

	sampling  *SamplingRecogniser
	google    driven.Recogniser
	tesseract driven.Recogniser
}

// PipelineOptions wires the available backends.
type PipelineOptions struct {
	// Strategy is the default strategy; empty means auto.
	Strategy string

	// Sampling is optional and only used while its session is active.
	Sampling *SamplingRecogniser

	// Google is optional; nil when no Vision credential is configured.
	Google driven.Recogniser

	// Tesseract is the fallback of last resort.
	Tesseract driven.Recogniser
}

// NewPipeline constructs the recognition pipeline.
func NewPipeline(renderer driven.PageRenderer, pageCache driven.PageCache, opts PipelineOptions) *Pipeline {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyAuto
	}
	return &Pipeline{
		renderer:  renderer,
		pageCache: pageCache,
		strategy:  strategy,
		sampling:  opts.Sampling,
		google:    opts.Google,
		tesseract: opts.Tesseract,
	}
}

// resolve picks the backend for a strategy.
func (p *Pipeline) resolve(strategy string) (driven.Recogniser, error) {
	if strategy == "" {
		strategy = p.strategy
	}
	switch strategy {
	case StrategySampling:
		if p.sampling != nil && p.sampling.Active() {
			return p.sampling, nil
		}
		// No session attached; fall through to auto selection.
		return p.resolve(StrategyAuto)
	case StrategyGoogle:
		if p.google != nil {
			return p.google, nil
		}
		return p.resolve(StrategyTesseract)
	case StrategyTesseract:
		if p.tesseract != nil {
			return p.tesseract, nil
		}
		return nil, domain.ErrBackendUnavailable
	case StrategyAuto:
		if p.google != nil {
			return p.google, nil
		}
		if p.tesseract != nil {
			return p.tesseract, nil
		}
		return nil, domain.ErrBackendUnavailable
	default:
		return nil, fmt.Errorf("unknown strategy %q: %w", strategy, domain.ErrBackendUnavailable)
	}
}

// RecognisePages recognises every page in order using the given
// strategy, or the pipeline's default when empty. Pages that fail to
// render or recognise yield empty text; the result is nil only when no
// page produced any.
func (p *Pipeline) RecognisePages(ctx context.Context, docID string, pages []driven.PageInput, strategy string) ([]driven.PageText, string, error) {
	backend, err := p.resolve(strategy)
	if err != nil {
		return nil, "", err
	}
	logger.Debug("recognising %d pages of %s with %s", len(pages), docID, backend.Name())

	results := make([]driven.PageText, len(pages))
	produced := false

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		results[i] = driven.PageText{PageID: page.PageID}
		pageNo := i + 1

		if p.pageCache != nil {
			if text, ok := p.pageCache.Get(docID, pageNo, backend.Name()); ok {
				results[i].Text = text
				if text != "" {
					produced = true
				}
				continue
			}
		}

		text, err := p.recognisePage(ctx, backend, page)
		if err != nil {
			if errors.Is(err, domain.ErrAuthInvalid) && backend != p.tesseract && p.tesseract != nil {
				// Credential rejected mid-run; finish with tesseract.
				logger.Warn("backend %s rejected credentials, switching to tesseract", backend.Name())
				backend = p.tesseract
				text, err = p.recognisePage(ctx, backend, page)
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil, "", ctx.Err()
				}
				logger.Warn("page %d of %s: %v", pageNo, docID, err)
				continue
			}
		}

		results[i].Text = text
		if text != "" {
			produced = true
		}
		if p.pageCache != nil {
			p.pageCache.Put(docID, pageNo, backend.Name(), text)
		}
	}

	if !produced {
		return nil, backend.Name(), nil
	}
	return results, backend.Name(), nil
}

// recognisePage renders one page and runs the backend over it.
func (p *Pipeline) recognisePage(ctx context.Context, backend driven.Recogniser, page driven.PageInput) (string, error) {
	renderCtx, cancel := context.WithTimeout(ctx, renderTimeout)
	img, err := p.renderer.Render(renderCtx, page.Data)
	cancel()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	return backend.Recognise(ctx, img)
}
