package imaging

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"
)

// noisePNG builds a PNG of random pixels; noise defeats compression so even
// modest dimensions exceed the 1 MiB ceiling.
func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = byte(rng.Intn(256))
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 76, G: 112, B: 49, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestCompressOversizedImage(t *testing.T) {
	data := noisePNG(t, 1600, 1000)
	if len(data) <= MaxBytes {
		t.Fatalf("fixture should exceed ceiling, got %d bytes", len(data))
	}
	modTime := time.Date(2025, 4, 28, 10, 0, 0, 0, time.UTC)

	out, err := New().Compress(context.Background(), Image{
		Name:     "sawah.png",
		MIMEType: "image/png",
		Data:     data,
		ModTime:  modTime,
	})
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	if out.Size() > MaxBytes {
		t.Errorf("output size = %d, want <= %d", out.Size(), MaxBytes)
	}
	if out.MIMEType != "image/jpeg" {
		t.Errorf("MIMEType = %q, want image/jpeg", out.MIMEType)
	}
	if out.Name != "sawah.png" {
		t.Errorf("Name = %q, want original name", out.Name)
	}
	if !out.ModTime.Equal(modTime) {
		t.Errorf("ModTime = %v, want %v", out.ModTime, modTime)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("output is not a decodable JPEG: %v", err)
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		t.Errorf("dimensions = %dx%d, want longer edge <= %d", cfg.Width, cfg.Height, MaxDimension)
	}
	inRatio := 1600.0 / 1000.0
	outRatio := float64(cfg.Width) / float64(cfg.Height)
	if math.Abs(inRatio-outRatio) > 0.01 {
		t.Errorf("aspect ratio = %.4f, want %.4f", outRatio, inRatio)
	}
}

func TestCompressDoesNotMutateInput(t *testing.T) {
	data := noisePNG(t, 1400, 900)
	orig := append([]byte(nil), data...)

	if _, err := New().Compress(context.Background(), Image{MIMEType: "image/png", Data: data}); err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if !bytes.Equal(data, orig) {
		t.Error("input buffer was modified")
	}
}

func TestCompressNoUpscale(t *testing.T) {
	out, err := New().Compress(context.Background(), Image{MIMEType: "image/png", Data: solidPNG(t, 300, 200)})
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 300 || cfg.Height != 200 {
		t.Errorf("dimensions = %dx%d, want 300x200", cfg.Width, cfg.Height)
	}
}

func TestCompressGIF(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 64, 48), color.Palette{color.White, color.Black})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, pal, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	out, err := New().Compress(context.Background(), Image{MIMEType: "image/gif", Data: buf.Bytes()})
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(out.Data)); err != nil {
		t.Errorf("output is not JPEG: %v", err)
	}
}

func TestCompressUnsupportedFormat(t *testing.T) {
	_, err := New().Compress(context.Background(), Image{MIMEType: "image/webp", Data: []byte("RIFF")})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestCompressCorruptImage(t *testing.T) {
	_, err := New().Compress(context.Background(), Image{MIMEType: "image/png", Data: []byte("not really a png")})
	if !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("err = %v, want ErrDecodeFailed", err)
	}
}

// hugeHeaderPNG returns a valid 1x1 PNG whose IHDR claims w x h pixels.
func hugeHeaderPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := solidPNG(t, 1, 1)
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestCompressRejectsOversizedHeader(t *testing.T) {
	data := hugeHeaderPNG(t, 12000, 12000)
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		t.Fatalf("crafted header should parse: %v", err)
	}

	_, err := New().Compress(context.Background(), Image{MIMEType: "image/png", Data: data})
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("err = %v, want ErrDecodeFailed", err)
	}
	if !strings.Contains(err.Error(), "12000x12000") {
		t.Errorf("err = %v, want the declared size in the message", err)
	}
}

func TestCompressPixelBudgetDisabled(t *testing.T) {
	c := New()
	c.MaxPixels = 0
	out, err := c.Compress(context.Background(), Image{MIMEType: "image/png", Data: solidPNG(t, 10, 10)})
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if out.MIMEType != "image/jpeg" {
		t.Errorf("MIMEType = %q", out.MIMEType)
	}
}

func TestCompressCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Compress(ctx, Image{MIMEType: "image/png", Data: solidPNG(t, 10, 10)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCompressTightCeiling(t *testing.T) {
	c := New()
	c.MaxBytes = 20 << 10
	out, err := c.Compress(context.Background(), Image{MIMEType: "image/png", Data: noisePNG(t, 800, 600)})
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if out.Size() > c.MaxBytes {
		t.Errorf("output size = %d, want <= %d", out.Size(), c.MaxBytes)
	}
}

func TestScaleDimensions(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{4000, 3000, 1200, 1200, 900},
		{900, 2400, 1200, 450, 1200},
		{1200, 1200, 1200, 1200, 1200},
		{2000, 2000, 1200, 1200, 1200},
		{800, 600, 1200, 800, 600},
		{3000, 1, 1200, 1200, 1},
	}
	for _, tt := range tests {
		w, h := ScaleDimensions(tt.w, tt.h, tt.max)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("ScaleDimensions(%d, %d, %d) = %dx%d, want %dx%d", tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{"image/jpeg", true},
		{"image/jpg", true},
		{"IMAGE/PNG", true},
		{"image/gif", true},
		{"image/png; charset=binary", true},
		{"image/webp", false},
		{"application/pdf", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Supported(tt.mime); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}
