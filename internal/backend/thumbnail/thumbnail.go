package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/jo-hoe/imagequiz/internal/backend/checks"
	"github.com/rs/zerolog/log"
)

const (
	DefaultWidth = 160
	MinWidth     = 16
	MaxWidth     = 1024
)

// Scale returns a PNG of the image scaled to width with the aspect ratio kept.
// The result always fits a MaxWidth x MaxWidth box, so tall images end up
// narrower than width. Images are never enlarged. SVG input is rasterized
// directly at the target size.
func Scale(imageData []byte, width int) ([]byte, error) {
	if width < MinWidth || width > MaxWidth {
		return nil, fmt.Errorf("width must be between %d and %d, got %d", MinWidth, MaxWidth, width)
	}

	originalWidth, originalHeight, format, err := checks.Dimensions(imageData)
	if err != nil {
		return nil, err
	}
	if originalWidth <= 0 || originalHeight <= 0 {
		return nil, fmt.Errorf("image has no area")
	}

	targetWidth, targetHeight := fitBox(originalWidth, originalHeight, width, MaxWidth)

	log.Debug().
		Str("format", format).
		Int("original_width", originalWidth).
		Int("original_height", originalHeight).
		Int("target_width", targetWidth).
		Int("target_height", targetHeight).
		Msg("scaling thumbnail")

	var scaled image.Image
	if format == checks.FormatSVG {
		scaled, err = checks.RasterizeSVG(imageData, targetWidth, targetHeight)
		if err != nil {
			return nil, err
		}
	} else {
		if int64(originalWidth)*int64(originalHeight) > checks.DefaultMaxPixels {
			return nil, fmt.Errorf("image is %dx%d, too large to scale", originalWidth, originalHeight)
		}
		src, _, err := image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s image: %w", format, err)
		}
		scaled = nearestNeighbor(src, targetWidth, targetHeight)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// fitBox scales width x height down to at most maxWidth wide and maxHeight
// tall, keeping the aspect ratio. Both sides stay at least one pixel.
func fitBox(width, height, maxWidth, maxHeight int) (int, int) {
	scale := min(1, float64(maxWidth)/float64(width), float64(maxHeight)/float64(height))
	targetWidth := max(1, min(maxWidth, int(math.Round(float64(width)*scale))))
	targetHeight := max(1, min(maxHeight, int(math.Round(float64(height)*scale))))
	return targetWidth, targetHeight
}

func nearestNeighbor(src image.Image, targetWidth, targetHeight int) *image.RGBA {
	bounds := src.Bounds()
	originalWidth, originalHeight := bounds.Dx(), bounds.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))

	parallelFor(targetHeight, func(y int) {
		srcY := min(bounds.Min.Y+y*originalHeight/targetHeight, bounds.Max.Y-1)
		for x := 0; x < targetWidth; x++ {
			srcX := min(bounds.Min.X+x*originalWidth/targetWidth, bounds.Max.X-1)
			dst.Set(x, y, src.At(srcX, srcY))
		}
	})
	return dst
}
