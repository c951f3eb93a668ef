package pipeline

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

var white = color.NRGBA{255, 255, 255, 255}
var black = color.NRGBA{0, 0, 0, 255}

func TestFitExactTargetDimensions(t *testing.T) {
	f := NewFitter()

	sources := []struct{ w, h int }{
		{4000, 2000}, {2000, 4000}, {1200, 900}, {320, 240},
		{333, 777}, {1, 1}, {5000, 3000},
	}

	for _, s := range sources {
		out, err := f.Fit(uniformImage(s.w, s.h, white), 1200, 900)
		require.NoError(t, err, "source %dx%d", s.w, s.h)
		assert.Equal(t, 1200, out.Bounds().Dx(), "source %dx%d", s.w, s.h)
		assert.Equal(t, 900, out.Bounds().Dy(), "source %dx%d", s.w, s.h)
	}
}

func TestFitMatchingRatioHasNoPadding(t *testing.T) {
	f := NewFitter()

	out, err := f.Fit(uniformImage(4000, 3000, white), 1200, 900)
	require.NoError(t, err)

	// 4000:3000 is already 4:3, so every corner belongs to the image.
	for _, p := range []image.Point{{0, 0}, {1199, 0}, {0, 899}, {1199, 899}} {
		assert.Equal(t, white, out.NRGBAAt(p.X, p.Y), "corner %v", p)
	}
}

func TestFitLetterboxesWideSource(t *testing.T) {
	f := NewFitter()

	// 4000x2000 into 1200x900: scaled to 1200x600, 150px black bars top and
	// bottom.
	out, err := f.Fit(uniformImage(4000, 2000, white), 1200, 900)
	require.NoError(t, err)

	assert.Equal(t, black, out.NRGBAAt(600, 0))
	assert.Equal(t, black, out.NRGBAAt(600, 148))
	assert.Equal(t, white, out.NRGBAAt(600, 152))
	assert.Equal(t, white, out.NRGBAAt(600, 450))
	assert.Equal(t, white, out.NRGBAAt(600, 747))
	assert.Equal(t, black, out.NRGBAAt(600, 751))
	assert.Equal(t, black, out.NRGBAAt(600, 899))
}

func TestFitPillarboxesTallSource(t *testing.T) {
	f := NewFitter()

	// 1000x2000 into 1200x900: scaled to 450x900, centered with 375px bars on
	// each side.
	out, err := f.Fit(uniformImage(1000, 2000, white), 1200, 900)
	require.NoError(t, err)

	assert.Equal(t, black, out.NRGBAAt(0, 450))
	assert.Equal(t, black, out.NRGBAAt(373, 450))
	assert.Equal(t, white, out.NRGBAAt(377, 450))
	assert.Equal(t, white, out.NRGBAAt(600, 450))
	assert.Equal(t, white, out.NRGBAAt(822, 450))
	assert.Equal(t, black, out.NRGBAAt(827, 450))
	assert.Equal(t, black, out.NRGBAAt(1199, 450))
}

func TestFitNormalizesPalettedSource(t *testing.T) {
	f := NewFitter()

	src := image.NewPaletted(image.Rect(0, 0, 800, 600), []color.Color{color.White})
	out, err := f.Fit(src, 1200, 900)
	require.NoError(t, err)
	assert.Equal(t, white, out.NRGBAAt(600, 450))
}

func TestFitDegenerateAspectRatio(t *testing.T) {
	f := NewFitter()

	_, err := f.Fit(uniformImage(10000, 1, white), 1200, 900)
	assert.ErrorIs(t, err, ErrDegenerateAspect)

	_, err = f.Fit(uniformImage(1, 10000, white), 1200, 900)
	assert.ErrorIs(t, err, ErrDegenerateAspect)
}
