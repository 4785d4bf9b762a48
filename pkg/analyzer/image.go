package analyzer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ErrNotImage is returned by PrepareImage for non-image documents.
var ErrNotImage = errors.New("document is not an image")

// IsImageMIME reports whether mimeType names an image document.
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// PrepareImage decodes any supported image (HEIC included), shrinks it to fit
// within maxDim pixels on its longest side, and re-encodes it as PNG. PNG input
// that needs no resizing is returned untouched.
func PrepareImage(data []byte, mimeType string, maxDim int) ([]byte, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if !IsImageMIME(mimeType) {
		return nil, ErrNotImage
	}

	var (
		img image.Image
		err error
	)
	if isHEIC(data, mimeType) {
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode heic: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", mimeType, err)
		}
	}

	resized := false
	bounds := img.Bounds()
	if maxDim > 0 && (bounds.Dx() > maxDim || bounds.Dy() > maxDim) {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
		resized = true
	}
	if mimeType == "image/png" && !resized {
		return data, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC checks the declared type and the ISO-BMFF brand at offset 8.
func isHEIC(data []byte, mimeType string) bool {
	if mimeType == "image/heic" || mimeType == "image/heif" {
		return true
	}
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}
