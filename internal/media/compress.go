package media

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

func compressible(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/jpg":
		return true
	}
	return false
}

// Compress applies best-effort lossy reduction to image payloads: fit
// within maxDimension and re-encode as JPEG. Anything that fails, grows,
// or isn't an image falls back to the original bytes. The returned MIME
// type reflects the bytes actually returned.
func Compress(data []byte, mimeType string, maxDimension int) ([]byte, string) {
	if !compressible(mimeType) {
		return data, mimeType
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, mimeType
	}
	bounds := img.Bounds()
	resized := bounds.Dx() > maxDimension || bounds.Dy() > maxDimension
	if resized {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return data, mimeType
	}
	// Without a resize the re-encode only wins if it actually shrank.
	if !resized && buf.Len() >= len(data) {
		return data, mimeType
	}
	return buf.Bytes(), "image/jpeg"
}
