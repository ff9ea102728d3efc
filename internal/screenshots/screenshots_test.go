package screenshots

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	apperrors "github.com/retroplay/backend/internal/errors"
)

// makePNG renders a solid-color PNG of the given size.
func makePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 80, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestInspectReportsFormatAndDimensions(t *testing.T) {
	blob := makePNG(t, 320, 240)

	info, err := Inspect(blob)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.MIMEType != "image/png" {
		t.Errorf("Expected image/png, got %q", info.MIMEType)
	}
	if info.Width != 320 || info.Height != 240 {
		t.Errorf("Expected 320x240, got %dx%d", info.Width, info.Height)
	}
	if info.Size != len(blob) {
		t.Errorf("Expected size %d, got %d", len(blob), info.Size)
	}
}

func TestInspectRejectsGarbage(t *testing.T) {
	if _, err := Inspect(nil); !apperrors.Is(err, apperrors.ErrInvalid) {
		t.Errorf("Empty blob: expected INVALID_ARGUMENT, got %v", err)
	}
	if _, err := Inspect([]byte("not an image at all")); !apperrors.Is(err, apperrors.ErrInvalid) {
		t.Errorf("Garbage blob: expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestThumbnailFitsWithinBounds(t *testing.T) {
	blob := makePNG(t, 640, 480)

	thumb, err := Thumbnail(blob, DefaultThumbWidth, DefaultThumbHeight)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("Thumbnail is not valid PNG: %v", err)
	}
	if cfg.Width > DefaultThumbWidth || cfg.Height > DefaultThumbHeight {
		t.Errorf("Thumbnail %dx%d exceeds %dx%d", cfg.Width, cfg.Height, DefaultThumbWidth, DefaultThumbHeight)
	}
	// 4:3 source into 4:3 bounds keeps the full target size.
	if cfg.Width != DefaultThumbWidth || cfg.Height != DefaultThumbHeight {
		t.Errorf("Expected %dx%d thumbnail, got %dx%d", DefaultThumbWidth, DefaultThumbHeight, cfg.Width, cfg.Height)
	}
}

func TestThumbnailNeverUpscales(t *testing.T) {
	blob := makePNG(t, 64, 48)

	thumb, err := Thumbnail(blob, DefaultThumbWidth, DefaultThumbHeight)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("Thumbnail is not valid PNG: %v", err)
	}
	if cfg.Width != 64 || cfg.Height != 48 {
		t.Errorf("Small source should pass through at 64x48, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestThumbnailRejectsInvalidBounds(t *testing.T) {
	blob := makePNG(t, 10, 10)
	if _, err := Thumbnail(blob, 0, 100); !apperrors.Is(err, apperrors.ErrInvalid) {
		t.Errorf("Expected INVALID_ARGUMENT for zero width, got %v", err)
	}
}
