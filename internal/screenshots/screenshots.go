// Package screenshots inspects save-state screenshot blobs for the UI
// bridge. Blobs stay opaque to the store; sniffing and thumbnailing happen
// only here, on the way out, and nothing is ever written back.
package screenshots

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	apperrors "github.com/retroplay/backend/internal/errors"
)

// Default thumbnail bounds for the slot picker.
const (
	DefaultThumbWidth  = 200
	DefaultThumbHeight = 150
)

// Info describes a screenshot blob without decoding pixel data beyond the
// image header.
type Info struct {
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int    `json:"size"`
}

// Inspect sniffs the blob's content type and reads its dimensions.
func Inspect(blob []byte) (*Info, error) {
	if len(blob) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalid, "empty screenshot blob")
	}

	mtype := mimetype.Detect(blob)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(blob))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "unrecognized screenshot format", err)
	}

	return &Info{
		MIMEType: mtype.String(),
		Width:    cfg.Width,
		Height:   cfg.Height,
		Size:     len(blob),
	}, nil
}

// Thumbnail decodes the blob and returns a PNG thumbnail fitted inside
// width x height, preserving aspect ratio.
func Thumbnail(blob []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "invalid thumbnail bounds %dx%d", width, height)
	}
	if len(blob) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalid, "empty screenshot blob")
	}

	img, _, err := image.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "failed to decode screenshot", err)
	}

	thumb := imaging.Fit(img, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
