package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Fitter resizes an arbitrary-dimension image onto a fixed-aspect-ratio canvas
// without cropping or distorting it. Shortfall on either axis is padded with
// the background color (letterbox/pillarbox).
type Fitter struct {
	background color.NRGBA
}

func NewFitter() *Fitter {
	return &Fitter{background: color.NRGBA{0, 0, 0, 255}}
}

// Fit returns a canvas of exactly targetWidth x targetHeight with the source
// scaled to the largest size that preserves its aspect ratio, pasted centered.
// Sources with an aspect ratio so extreme that a scaled side rounds to zero
// are rejected with ErrDegenerateAspect.
func (f *Fitter) Fit(img image.Image, targetWidth, targetHeight int) (*image.NRGBA, error) {
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", targetWidth, targetHeight)
	}

	bounds := img.Bounds()
	srcWidth, srcHeight := bounds.Dx(), bounds.Dy()
	if srcWidth <= 0 || srcHeight <= 0 {
		return nil, fmt.Errorf("%w: source is %dx%d", ErrDegenerateAspect, srcWidth, srcHeight)
	}

	srcRatio := float64(srcWidth) / float64(srcHeight)
	targetRatio := float64(targetWidth) / float64(targetHeight)

	var scaledWidth, scaledHeight int
	if srcRatio > targetRatio {
		scaledWidth = targetWidth
		scaledHeight = int(math.Round(float64(targetWidth) / srcRatio))
	} else {
		scaledHeight = targetHeight
		scaledWidth = int(math.Round(float64(targetHeight) * srcRatio))
	}

	if scaledWidth == 0 || scaledHeight == 0 {
		return nil, fmt.Errorf("%w: %dx%d scales to %dx%d at target %dx%d",
			ErrDegenerateAspect, srcWidth, srcHeight, scaledWidth, scaledHeight, targetWidth, targetHeight)
	}

	// Resize converts any color mode to NRGBA, so palette and alpha sources
	// end up in the same space as the canvas fill.
	scaled := imaging.Resize(img, scaledWidth, scaledHeight, imaging.Lanczos)

	canvas := imaging.New(targetWidth, targetHeight, f.background)
	offset := image.Pt((targetWidth-scaledWidth)/2, (targetHeight-scaledHeight)/2)
	return imaging.Paste(canvas, scaled, offset), nil
}
