package checks

import "fmt"

const DimensionCheckName = "DimensionCheck"

// DefaultMaxPixels bounds the pixel area of uploads when no checks are configured.
const DefaultMaxPixels = 25_000_000

// DimensionCheck bounds image width, height and pixel area. Zero bounds are ignored.
type DimensionCheck struct {
	minWidth  int
	minHeight int
	maxWidth  int
	maxHeight int
	maxPixels int
}

func NewDimensionCheck(params map[string]any) (Check, error) {
	c := &DimensionCheck{
		minWidth:  getIntParam(params, "minWidth", 0),
		minHeight: getIntParam(params, "minHeight", 0),
		maxWidth:  getIntParam(params, "maxWidth", 0),
		maxHeight: getIntParam(params, "maxHeight", 0),
		maxPixels: getIntParam(params, "maxPixels", 0),
	}
	if c.minWidth < 0 || c.minHeight < 0 || c.maxWidth < 0 || c.maxHeight < 0 || c.maxPixels < 0 {
		return nil, fmt.Errorf("dimension bounds must not be negative")
	}
	if c.minWidth == 0 && c.minHeight == 0 && c.maxWidth == 0 && c.maxHeight == 0 && c.maxPixels == 0 {
		return nil, fmt.Errorf("at least one of minWidth, minHeight, maxWidth, maxHeight, maxPixels is required")
	}
	if c.maxWidth > 0 && c.minWidth > c.maxWidth {
		return nil, fmt.Errorf("minWidth %d exceeds maxWidth %d", c.minWidth, c.maxWidth)
	}
	if c.maxHeight > 0 && c.minHeight > c.maxHeight {
		return nil, fmt.Errorf("minHeight %d exceeds maxHeight %d", c.minHeight, c.maxHeight)
	}
	return c, nil
}

func (c *DimensionCheck) Name() string {
	return DimensionCheckName
}

func (c *DimensionCheck) Check(imageData []byte) error {
	width, height, _, err := Dimensions(imageData)
	if err != nil {
		return err
	}
	if width < c.minWidth || height < c.minHeight {
		return fmt.Errorf("image is %dx%d, minimum is %dx%d", width, height, c.minWidth, c.minHeight)
	}
	if (c.maxWidth > 0 && width > c.maxWidth) || (c.maxHeight > 0 && height > c.maxHeight) {
		return fmt.Errorf("image is %dx%d, maximum is %dx%d", width, height, c.maxWidth, c.maxHeight)
	}
	if c.maxPixels > 0 && int64(width)*int64(height) > int64(c.maxPixels) {
		return fmt.Errorf("image is %dx%d, pixel limit is %d", width, height, c.maxPixels)
	}
	return nil
}
