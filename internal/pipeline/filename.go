package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FilenameGenerator derives a unique, filesystem-safe object name from an
// arbitrary user-supplied filename. The default suffix source yields 8 hex
// characters per name.
type FilenameGenerator struct {
	suffix func() string
}

func NewFilenameGenerator() *FilenameGenerator {
	return &FilenameGenerator{
		suffix: func() string { return uuid.NewString()[:8] },
	}
}

// NewFilenameGeneratorWithSuffix injects the uniqueness source, used by tests
// and deterministic replays.
func NewFilenameGeneratorWithSuffix(suffix func() string) *FilenameGenerator {
	return &FilenameGenerator{suffix: suffix}
}

// Deployment locale includes Turkish letters; map them to ASCII instead of
// dropping them.
var transliterations = map[rune]rune{
	'ş': 's', 'Ş': 'S',
	'ğ': 'g', 'Ğ': 'G',
	'ı': 'i', 'İ': 'I',
	'ü': 'u', 'Ü': 'U',
	'ö': 'o', 'Ö': 'O',
	'ç': 'c', 'Ç': 'C',
}

// Generate is total: any input, including one with no safe characters at all,
// produces a non-empty name free of path separators and whitespace.
func (g *FilenameGenerator) Generate(originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	cleaned := sanitize(name)
	if cleaned == "" {
		cleaned = "image"
	}

	return cleaned + "_" + g.suffix() + sanitizeExt(ext)
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if t, ok := transliterations[r]; ok {
			r = t
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '-', r == '.':
			b.WriteByte('_')
		}
	}
	return b.String()
}

func sanitizeExt(ext string) string {
	ext = strings.ToLower(ext)
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "." + b.String()
}
