package pipeline

import "errors"

var (
	ErrTooLarge          = errors.New("file too large")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooSmall          = errors.New("image dimensions too small")
	ErrDegenerateAspect  = errors.New("degenerate aspect ratio")
	ErrUnknownRendition  = errors.New("unknown rendition")
)
