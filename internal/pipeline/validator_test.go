package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestValidator(t *testing.T) {
	v := NewValidator(5<<20, 320, 240, DefaultFormats())

	t.Run("valid jpeg", func(t *testing.T) {
		data := encodeJPEG(t, 800, 600)
		err := v.Validate(bytes.NewReader(data), int64(len(data)))
		assert.NoError(t, err)
	})

	t.Run("valid png at exact minimum", func(t *testing.T) {
		data := encodePNG(t, 320, 240)
		err := v.Validate(bytes.NewReader(data), int64(len(data)))
		assert.NoError(t, err)
	})

	t.Run("too large checked before format", func(t *testing.T) {
		err := v.Validate(bytes.NewReader([]byte("not an image")), 6<<20)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("garbage bytes", func(t *testing.T) {
		data := []byte("definitely not an image")
		err := v.Validate(bytes.NewReader(data), int64(len(data)))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("gif is not on the allow-list", func(t *testing.T) {
		img := image.NewPaletted(image.Rect(0, 0, 400, 300), []color.Color{color.Black, color.White})
		var buf bytes.Buffer
		require.NoError(t, gif.Encode(&buf, img, nil))
		err := v.Validate(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("below minimum dimensions", func(t *testing.T) {
		data := encodePNG(t, 319, 240)
		err := v.Validate(bytes.NewReader(data), int64(len(data)))
		assert.ErrorIs(t, err, ErrTooSmall)
	})
}

func TestValidatorRestoresStreamPosition(t *testing.T) {
	v := NewValidator(5<<20, 320, 240, DefaultFormats())
	data := encodeJPEG(t, 800, 600)
	r := bytes.NewReader(data)

	require.NoError(t, v.Validate(r, int64(len(data))))

	// The full image must still be decodable from the same reader.
	img, _, err := image.Decode(r)
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

func TestValidatorIsIdempotent(t *testing.T) {
	v := NewValidator(5<<20, 320, 240, DefaultFormats())
	data := encodeJPEG(t, 800, 600)
	r := bytes.NewReader(data)

	require.NoError(t, v.Validate(r, int64(len(data))))
	require.NoError(t, v.Validate(r, int64(len(data))))
}
