// Package imaging inspects and re-encodes scan images for display and reports.
// Stored scan bytes are never modified; every function returns new data.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

var ErrTooManyPixels = errors.New("image dimensions exceed limit")

// IsSupportedType reports whether the declared MIME type is accepted for scans.
func IsSupportedType(mime string) bool {
	return mime == MIMEJPEG || mime == MIMEPNG
}

// DetectType decodes just the header and returns the MIME type of the actual content.
func DetectType(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to read image header: %w", err)
	}
	switch format {
	case "jpeg":
		return MIMEJPEG, nil
	case "png":
		return MIMEPNG, nil
	default:
		return "", fmt.Errorf("unsupported image format: %s", format)
	}
}

// Dimensions returns the pixel size from the image header.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Verify decodes the whole image. The pixel count from the header is checked
// against maxPixels first so oversized images are never allocated; zero means
// no limit.
func Verify(data []byte, maxPixels int64) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to read image header: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); maxPixels > 0 && pixels > maxPixels {
		return fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}
	return nil
}
