package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"listing-images/internal/config"

	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"
)

// Builder applies the Fitter at every configured rendition size and encodes
// the results as JPEG. Renditions are independent: a failed size never aborts
// the rest of the batch.
type Builder struct {
	fitter            *Fitter
	renditions        []config.Rendition
	quality           int
	primary           string
	omitPrimarySuffix bool
	logger            *zlog.Zerolog
}

func NewBuilder(cfg *config.Config, logger *zlog.Zerolog) *Builder {
	return &Builder{
		fitter:            NewFitter(),
		renditions:        cfg.Pipeline.Renditions,
		quality:           cfg.Pipeline.JPEGQuality,
		primary:           cfg.Pipeline.PrimaryRendition,
		omitPrimarySuffix: cfg.Pipeline.OmitPrimarySuffix,
		logger:            logger,
	}
}

// Decode reads the source image with EXIF orientation applied, so every
// rendition works from the same display-oriented pixel buffer. Called once per
// upload, not once per rendition.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// BuildAll produces one encoded rendition per configured size. It returns the
// encoded bytes of the sizes that succeeded alongside per-size failures.
func (b *Builder) BuildAll(src image.Image) (map[string][]byte, map[string]error) {
	built := make(map[string][]byte, len(b.renditions))
	failed := make(map[string]error)

	for _, r := range b.renditions {
		data, err := b.build(src, r)
		if err != nil {
			b.logger.Error().Err(err).Str("rendition", r.Name).Msg("Failed to build rendition")
			failed[r.Name] = err
			continue
		}
		built[r.Name] = data
	}

	return built, failed
}

// Build produces a single named rendition, used by the rebuild worker.
func (b *Builder) Build(src image.Image, name string) ([]byte, error) {
	for _, r := range b.renditions {
		if r.Name == name {
			return b.build(src, r)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRendition, name)
}

func (b *Builder) build(src image.Image, r config.Rendition) ([]byte, error) {
	fitted, err := b.fitter.Fit(src, r.Width, r.Height)
	if err != nil {
		return nil, fmt.Errorf("failed to fit %q: %w", r.Name, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(b.quality)); err != nil {
		return nil, fmt.Errorf("failed to encode %q: %w", r.Name, err)
	}

	return buf.Bytes(), nil
}

// ObjectName maps a generated base name and rendition to its storage object
// name. The configured primary rendition may omit the suffix; that is a
// deployment choice, never inferred from the rendition table.
func (b *Builder) ObjectName(base, rendition string) string {
	if rendition == b.primary && b.omitPrimarySuffix {
		return base + ".jpg"
	}
	return base + "_" + rendition + ".jpg"
}

// Names lists the configured rendition names in table order.
func (b *Builder) Names() []string {
	names := make([]string, 0, len(b.renditions))
	for _, r := range b.renditions {
		names = append(names, r.Name)
	}
	return names
}

// Primary returns the rendition name designated as the main image.
func (b *Builder) Primary() string {
	return b.primary
}
