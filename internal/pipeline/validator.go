package pipeline

import (
	"fmt"
	"image"
	"io"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Validator rejects unacceptable uploads before any processing happens.
// Validate only inspects the stream; the read position is restored before
// returning so the same reader can be decoded downstream.
type Validator struct {
	maxFileSize int64
	minWidth    int
	minHeight   int
	allowed     map[string]bool
}

func NewValidator(maxFileSize int64, minWidth, minHeight int, allowedFormats []string) *Validator {
	allowed := make(map[string]bool, len(allowedFormats))
	for _, f := range allowedFormats {
		allowed[f] = true
	}
	return &Validator{
		maxFileSize: maxFileSize,
		minWidth:    minWidth,
		minHeight:   minHeight,
		allowed:     allowed,
	}
}

// DefaultFormats is the allow-list used when no explicit one is configured.
// Format names follow the registered decoder names of the image package.
func DefaultFormats() []string {
	return []string{"jpeg", "png", "webp"}
}

// Validate checks size, format and dimensions in that order, short-circuiting
// on the first failure.
func (v *Validator) Validate(r io.ReadSeeker, size int64) error {
	if size > v.maxFileSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrTooLarge, size, v.maxFileSize)
	}

	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to record stream position: %w", err)
	}

	cfg, format, decodeErr := image.DecodeConfig(r)

	// Decoding for inspection must not consume the stream.
	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("failed to restore stream position: %w", err)
	}

	if decodeErr != nil || !v.allowed[format] {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if cfg.Width < v.minWidth || cfg.Height < v.minHeight {
		return fmt.Errorf("%w: %dx%d, min %dx%d", ErrTooSmall, cfg.Width, cfg.Height, v.minWidth, v.minHeight)
	}

	return nil
}
