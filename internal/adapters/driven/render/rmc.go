// Package render converts .rm page files into images and typed text by
// driving the rmc converter, with inkscape rasterising the intermediate
// SVG. Both tools are external; a missing install surfaces as a render
// error and the affected page is skipped upstream.
package render

import (
	"context"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/slate/internal/core/ports/driven"
)

// Ensure RMC implements both page ports.
var (
	_ driven.PageRenderer = (*RMC)(nil)
	_ driven.PageDecoder  = (*RMC)(nil)
)

// RMC shells out to the rmc converter.
type RMC struct {
	rmcPath      string
	inkscapePath string
}

// NewRMC creates a converter using binaries found on PATH.
func NewRMC() *RMC {
	return &RMC{rmcPath: "rmc", inkscapePath: "inkscape"}
}

// Render rasterises a page: .rm to SVG with rmc, SVG to PNG with
// inkscape, decoded into an image.
func (r *RMC) Render(ctx context.Context, data []byte) (image.Image, error) {
	dir, err := os.MkdirTemp("", "slate-render-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	rmPath := filepath.Join(dir, "page.rm")
	svgPath := filepath.Join(dir, "page.svg")
	pngPath := filepath.Join(dir, "page.png")

	if err := os.WriteFile(rmPath, data, 0600); err != nil {
		return nil, fmt.Errorf("write page file: %w", err)
	}

	if err := runTool(ctx, r.rmcPath, "-t", "svg", "-o", svgPath, rmPath); err != nil {
		return nil, err
	}
	if err := runTool(ctx, r.inkscapePath, svgPath, "--export-filename", pngPath); err != nil {
		return nil, err
	}

	f, err := os.Open(pngPath)
	if err != nil {
		return nil, fmt.Errorf("open rendered page: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}
	return img, nil
}

// TypedText extracts keyboard-typed text from a page by converting it to
// markdown. Pages holding only strokes come out empty.
func (r *RMC) TypedText(data []byte) (string, error) {
	dir, err := os.MkdirTemp("", "slate-decode-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	rmPath := filepath.Join(dir, "page.rm")
	mdPath := filepath.Join(dir, "page.md")

	if err := os.WriteFile(rmPath, data, 0600); err != nil {
		return "", fmt.Errorf("write page file: %w", err)
	}

	if err := runTool(context.Background(), r.rmcPath, "-t", "markdown", "-o", mdPath, rmPath); err != nil {
		return "", err
	}

	text, err := os.ReadFile(mdPath)
	if err != nil {
		return "", fmt.Errorf("read converted text: %w", err)
	}
	return strings.TrimSpace(string(text)), nil
}

// runTool runs one external converter step.
func runTool(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
