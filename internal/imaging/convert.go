package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"

	"golang.org/x/image/draw"
)

// ToPNG8 decodes any supported raster image and encodes it as a non-interlaced
// 8-bit RGBA PNG, flattened onto white. PDF writers accept this form of every PNG,
// including 16-bit and interlaced sources.
func ToPNG8(imageData []byte) ([]byte, error) {
	slog.Debug("ToPNG8: start", "input_size_bytes", len(imageData))

	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		slog.Error("ToPNG8: failed to decode image", "error", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		slog.Error("ToPNG8: failed to encode image to PNG", "error", err)
		return nil, fmt.Errorf("failed to encode image to PNG: %w", err)
	}
	slog.Debug("ToPNG8: conversion complete", "source_format", format, "output_size_bytes", buf.Len())
	return buf.Bytes(), nil
}
