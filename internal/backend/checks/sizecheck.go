package checks

import "fmt"

const SizeCheckName = "SizeCheck"

// SizeCheck rejects empty uploads and uploads larger than maxBytes
type SizeCheck struct {
	maxBytes int
}

func NewSizeCheck(params map[string]any) (Check, error) {
	if err := validateRequiredParams(params, []string{"maxBytes"}); err != nil {
		return nil, err
	}
	maxBytes := getIntParam(params, "maxBytes", 0)
	if maxBytes <= 0 {
		return nil, fmt.Errorf("maxBytes must be positive, got %d", maxBytes)
	}
	return &SizeCheck{maxBytes: maxBytes}, nil
}

func (c *SizeCheck) Name() string {
	return SizeCheckName
}

func (c *SizeCheck) Check(imageData []byte) error {
	if len(imageData) == 0 {
		return fmt.Errorf("image is empty")
	}
	if len(imageData) > c.maxBytes {
		return fmt.Errorf("image is %d bytes, limit is %d", len(imageData), c.maxBytes)
	}
	return nil
}
