// Package thumbnail turns original image bytes into resized derivatives.
// It is pure Go (no CGo) and has no knowledge of caching; callers feed it
// source bytes and get encoded output back.
package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// Result carries the encoded thumbnail and its final geometry.
type Result struct {
	Bytes       []byte
	ContentType string
	Width       int
	Height      int
}

// Transform decodes src, scales it to fit inside the maxWidth x maxHeight box
// while preserving the aspect ratio, and re-encodes it in the source format.
// The source is never upscaled: a box larger than the original returns the
// original resolution. quality applies to JPEG output only.
func Transform(src []byte, maxWidth, maxHeight, quality int) (*Result, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	if maxWidth <= 0 || maxHeight <= 0 {
		return nil, fmt.Errorf("invalid target box %dx%d", maxWidth, maxHeight)
	}

	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)

	resized := img
	if width != bounds.Dx() || height != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		resized = dst
	}

	var buf bytes.Buffer
	contentType, err := encode(&buf, resized, format, quality)
	if err != nil {
		return nil, err
	}

	return &Result{
		Bytes:       buf.Bytes(),
		ContentType: contentType,
		Width:       width,
		Height:      height,
	}, nil
}

// fitWithin shrinks (w, h) proportionally until it fits the box. Dimensions
// never grow and never drop below one pixel.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}

	newW, newH := maxW, h*maxW/w
	if newH > maxH {
		newH = maxH
		newW = w * maxH / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return newW, newH
}

func encode(buf *bytes.Buffer, img image.Image, format string, quality int) (string, error) {
	switch format {
	case "jpeg":
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", fmt.Errorf("encode JPEG: %w", err)
		}
		return "image/jpeg", nil
	case "png":
		if err := png.Encode(buf, img); err != nil {
			return "", fmt.Errorf("encode PNG: %w", err)
		}
		return "image/png", nil
	case "gif":
		if err := gif.Encode(buf, img, nil); err != nil {
			return "", fmt.Errorf("encode GIF: %w", err)
		}
		return "image/gif", nil
	default:
		return "", fmt.Errorf("unsupported image format: %s", format)
	}
}
