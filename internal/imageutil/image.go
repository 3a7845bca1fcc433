// Package imageutil validates uploaded pictures and prepares them for the
// embedding server.
package imageutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

// ErrInvalidImage is returned for unsupported extensions and undecodable bytes.
var ErrInvalidImage = errors.New("invalid image")

// Extensions lists the supported picture extensions, lowercase and without dot.
var Extensions = []string{"png", "jpg", "jpeg", "gif"}

// IsPicture reports whether filename carries a supported picture extension.
// The check is case-insensitive and requires a non-empty extension.
func IsPicture(filename string) bool {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		return false
	}
	ext = strings.ToLower(ext)
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Format sniffs the image format from its header and returns the canonical
// file extension for it ("png", "jpg" or "gif").
func Format(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrInvalidImage)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	switch format {
	case "jpeg":
		return "jpg", nil
	case "png", "gif":
		return format, nil
	}
	return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidImage, format)
}

// Prepare returns image bytes suitable for the embedding server. Images whose
// longest side exceeds maxSize are decoded, downscaled keeping the aspect
// ratio and re-encoded as JPEG; everything else is returned untouched.
// A maxSize of zero disables resizing but the bytes are still validated.
func Prepare(data []byte, maxSize int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if maxSize <= 0 || (cfg.Width <= maxSize && cfg.Height <= maxSize) {
		return data, nil
	}
	return resize(data, maxSize)
}

// resize scales an image to fit within maxSize (width or height).
func resize(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}
