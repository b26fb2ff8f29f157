package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	xdraw "golang.org/x/image/draw"
)

// Thumbnail scales the image to the given width, preserving the aspect ratio,
// and returns it as PNG. Images already narrower than width are only re-encoded.
func Thumbnail(imageData []byte, width int) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", width)
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		slog.Error("Thumbnail: failed to decode image", "error", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	originalWidth := bounds.Dx()
	originalHeight := bounds.Dy()
	if originalWidth == 0 || originalHeight == 0 {
		return nil, fmt.Errorf("image has no pixels")
	}

	targetWidth := width
	if originalWidth < targetWidth {
		targetWidth = originalWidth
	}
	targetHeight := max(1, int(float64(targetWidth)*float64(originalHeight)/float64(originalWidth)))

	slog.Debug("Thumbnail: scaling image",
		"original_width", originalWidth,
		"original_height", originalHeight,
		"target_width", targetWidth,
		"target_height", targetHeight)

	targetImg := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	xdraw.ApproxBiLinear.Scale(targetImg, targetImg.Bounds(), img, bounds, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, targetImg); err != nil {
		slog.Error("Thumbnail: failed to encode scaled image", "error", err)
		return nil, fmt.Errorf("failed to encode scaled PNG image: %w", err)
	}
	return buf.Bytes(), nil
}
