package checks

import (
	"bytes"
	"fmt"
	"image"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const SvgRenderCheckName = "SvgRenderCheck"

const defaultSvgRenderSize = 64

// SvgRenderCheck makes sure SVG uploads can be parsed and rasterized, so browsers
// are not handed documents the quiz cannot show. Raster images pass untouched.
type SvgRenderCheck struct {
	size int
}

func NewSvgRenderCheck(params map[string]any) (Check, error) {
	size := getIntParam(params, "size", defaultSvgRenderSize)
	if size <= 0 {
		return nil, fmt.Errorf("size must be positive, got %d", size)
	}
	return &SvgRenderCheck{size: size}, nil
}

func (c *SvgRenderCheck) Name() string {
	return SvgRenderCheckName
}

func (c *SvgRenderCheck) Check(imageData []byte) error {
	if !isSVGData(imageData) {
		return nil
	}
	return renderSVG(imageData, c.size, c.size)
}

func renderSVG(svgData []byte, width, height int) error {
	_, err := RasterizeSVG(svgData, width, height)
	return err
}

// RasterizeSVG parses the SVG strictly and draws it scaled to width x height.
func RasterizeSVG(svgData []byte, width, height int) (img *image.RGBA, err error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData), oksvg.StrictErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		return nil, fmt.Errorf("SVG has no usable view box")
	}

	// The rasterizer panics on some malformed paths.
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("failed to render SVG: %v", r)
		}
	}()

	icon.SetTarget(0, 0, float64(width), float64(height))
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, dst, dst.Bounds())
	dasher := rasterx.NewDasher(width, height, scanner)
	icon.Draw(dasher, 1.0)
	return dst, nil
}
