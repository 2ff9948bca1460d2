package media

import (
	"fmt"

	"github.com/yourorg/forum-chat/internal/apperr"
)

var allowedTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/gif":       true,
	"image/webp":      true,
	"video/mp4":       true,
	"application/pdf": true,
	"text/plain":      true,
}

// Validate rejects non-whitelisted MIME types and oversized files before
// any processing happens. The size ceiling is inclusive: a file exactly at
// the limit passes, one byte more does not.
func Validate(mimeType string, size, maxBytes int64) error {
	if size <= 0 {
		return fmt.Errorf("%w: empty file", apperr.ErrValidation)
	}
	if size > maxBytes {
		return fmt.Errorf("%w: %d bytes over %d limit", apperr.ErrFileTooLarge, size, maxBytes)
	}
	if !allowedTypes[mimeType] {
		return fmt.Errorf("%w: %s", apperr.ErrUnsupportedType, mimeType)
	}
	return nil
}
