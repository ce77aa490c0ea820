// Package sigimg normalises uploaded signature scans for storage and printing.
package sigimg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
)

const (
	MaxWidth  = 600
	MaxHeight = 300

	// MaxPixels bounds width*height of an accepted image; the decoder allocates
	// four bytes per pixel whatever the file size.
	MaxPixels = 25_000_000

	// pixels at least this light are treated as paper
	paperThreshold = 235
)

// Normalize decodes r (png, jpeg, gif, bmp or tiff), applies EXIF orientation, fits the image
// into MaxWidth x MaxHeight, turns the paper background transparent and re-encodes as PNG.
// Images larger than MaxPixels are rejected with ErrTooLarge before any pixel is decoded.
func Normalize(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrNotImage)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	fitted := imaging.Fit(img, MaxWidth, MaxHeight, imaging.Lanczos)
	out := clearBackground(fitted, paperThreshold)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// clearBackground makes every pixel whose gray level is at or above threshold fully
// transparent and keeps the ink untouched.
func clearBackground(img image.Image, threshold uint8) *image.NRGBA {
	src := imaging.Clone(img)
	b := src.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.NRGBAAt(x, y)
			gray := uint8((uint16(c.R) + uint16(c.G) + uint16(c.B)) / 3)
			if gray >= threshold || c.A == 0 {
				out.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 0})
				continue
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}
