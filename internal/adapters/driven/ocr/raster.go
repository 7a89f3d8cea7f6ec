// Package ocr provides handwriting recognition backends and the per-page
// pipeline that drives them. Rendered pages come out black-on-transparent,
// so every backend shares the same preprocessing: flatten onto white,
// upscale, grayscale, stretch contrast and sharpen.
package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// scaleFactor upscales pages before recognition. 1.5x improves accuracy
// on thin strokes; 2x is too slow for tesseract.
const scaleFactor = 1.5

// contrastCutoff is the percentile clipped from each end of the
// histogram when stretching contrast.
const contrastCutoff = 2

// prepareForRecognition flattens, upscales and binarises a rendered page.
func prepareForRecognition(img image.Image) *image.Gray {
	flat := flattenOnWhite(img)
	scaled := upscale(flat)
	gray := toGray(scaled)
	autocontrast(gray, contrastCutoff)
	return sharpen(gray)
}

// encodePNG serialises an image for engines that take raw bytes.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// flattenOnWhite composites the image onto a white background.
func flattenOnWhite(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)
	return flat
}

// upscale resizes by scaleFactor with a Catmull-Rom kernel.
func upscale(img image.Image) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0,
		int(float64(bounds.Dx())*scaleFactor),
		int(float64(bounds.Dy())*scaleFactor)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	return dst
}

// toGray converts to 8-bit grayscale.
func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// autocontrast stretches the histogram in place, clipping the given
// percentage of pixels at each end first.
func autocontrast(gray *image.Gray, cutoff int) {
	var hist [256]int
	for _, p := range gray.Pix {
		hist[p]++
	}
	total := len(gray.Pix)
	if total == 0 {
		return
	}
	clip := total * cutoff / 100

	lo, acc := 0, 0
	for ; lo < 255; lo++ {
		acc += hist[lo]
		if acc > clip {
			break
		}
	}
	hi, acc := 255, 0
	for ; hi > 0; hi-- {
		acc += hist[hi]
		if acc > clip {
			break
		}
	}
	if hi <= lo {
		return
	}

	scale := 255.0 / float64(hi-lo)
	for i, p := range gray.Pix {
		v := (float64(int(p)-lo)) * scale
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		gray.Pix[i] = uint8(v)
	}
}

// sharpen applies a mild 3x3 sharpening kernel.
func sharpen(gray *image.Gray) *image.Gray {
	bounds := gray.Bounds()
	out := image.NewGray(bounds)
	copy(out.Pix, gray.Pix)

	kernel := [3][3]int{{0, -1, 0}, {-1, 8, -1}, {0, -1, 0}}
	const kernelSum = 4

	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			sum := 0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sum += kernel[ky+1][kx+1] * int(gray.GrayAt(x+kx, y+ky).Y)
				}
			}
			v := sum / kernelSum
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			out.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return out
}
