// Package imaging shrinks oversized uploads into JPEGs that fit under the
// upload ceiling before they are sent to the asset host.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"golang.org/x/image/draw"
)

const (
	MaxBytes     = 1 << 20 // 1 MiB
	MaxDimension = 1200
	Quality      = 80
	MaxPixels    = 50_000_000 // decode budget, checked against the header

	minQuality  = 40
	qualityStep = 10
)

var (
	ErrUnsupportedFormat = errors.New("imaging: unsupported image format")
	ErrDecodeFailed      = errors.New("imaging: decode failed")
)

var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/gif":  {},
}

// Image is a user-selected file: its bytes plus the metadata the browser
// reports for it.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
	ModTime  time.Time
}

// Size returns the byte length of the image data.
func (img Image) Size() int { return len(img.Data) }

// Supported reports whether mime is one of the accepted upload formats.
func Supported(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	_, ok := allowedTypes[mime]
	return ok
}

// Compressor re-encodes images as JPEG, scaled so the longer edge is at most
// MaxDimension and the encoded size at most MaxBytes.
type Compressor struct {
	MaxBytes     int
	MaxDimension int
	Quality      int
	MaxPixels    int
}

// New returns a Compressor with the default ceiling, dimension and quality.
func New() *Compressor {
	return &Compressor{
		MaxBytes:     MaxBytes,
		MaxDimension: MaxDimension,
		Quality:      Quality,
		MaxPixels:    MaxPixels,
	}
}

// Compress decodes img, downsizes it and re-encodes it as JPEG. The returned
// image keeps the original name and modification time. img.Data is never
// modified.
func (c *Compressor) Compress(ctx context.Context, img Image) (Image, error) {
	if !Supported(img.MIMEType) {
		return Image{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, img.MIMEType)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if limit := c.MaxPixels; limit > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(limit) {
		return Image{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecodeFailed, cfg.Width, cfg.Height, limit)
	}
	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	bounds := src.Bounds()
	w, h := ScaleDimensions(bounds.Dx(), bounds.Dy(), c.MaxDimension)
	quality := c.Quality

	for {
		if err := ctx.Err(); err != nil {
			return Image{}, err
		}
		data, err := encode(src, w, h, quality)
		if err != nil {
			return Image{}, err
		}
		if len(data) <= c.MaxBytes {
			return Image{
				Name:     img.Name,
				MIMEType: "image/jpeg",
				Data:     data,
				ModTime:  img.ModTime,
			}, nil
		}
		// Still too big: trade quality first, then pixels.
		if quality-qualityStep >= minQuality {
			quality -= qualityStep
			continue
		}
		if w == 1 && h == 1 {
			return Image{}, fmt.Errorf("imaging: cannot fit %dx%d image under %d bytes", bounds.Dx(), bounds.Dy(), c.MaxBytes)
		}
		longer := max(w, h) * 3 / 4
		w, h = ScaleDimensions(w, h, max(longer, 1))
	}
}

// ScaleDimensions fits w×h inside a maxDim square, preserving aspect ratio.
// Images already within bounds are returned unchanged.
func ScaleDimensions(w, h, maxDim int) (int, int) {
	switch {
	case w >= h && w > maxDim:
		h = roundDiv(h*maxDim, w)
		w = maxDim
	case h > w && h > maxDim:
		w = roundDiv(w*maxDim, h)
		h = maxDim
	}
	return max(w, 1), max(h, 1)
}

func roundDiv(a, b int) int {
	return (2*a + b) / (2 * b)
}

func encode(src image.Image, w, h, quality int) ([]byte, error) {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha channel; flatten onto white.
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
