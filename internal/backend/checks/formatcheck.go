package checks

import (
	"fmt"
	"slices"
	"strings"
)

const FormatCheckName = "FormatCheck"

// FormatCheck only lets through the configured image formats. Without a "formats"
// parameter every supported format is allowed.
type FormatCheck struct {
	formats []string
}

func NewFormatCheck(params map[string]any) (Check, error) {
	formats := getStringListParam(params, "formats")
	if len(formats) == 0 {
		formats = SupportedFormats
	}
	for i, f := range formats {
		if f == "jpg" {
			formats[i] = "jpeg"
			f = "jpeg"
		}
		if !slices.Contains(SupportedFormats, f) {
			return nil, fmt.Errorf("unsupported format %q, supported are %s", f, strings.Join(SupportedFormats, ", "))
		}
	}
	return &FormatCheck{formats: formats}, nil
}

func (c *FormatCheck) Name() string {
	return FormatCheckName
}

func (c *FormatCheck) Check(imageData []byte) error {
	format, err := DetectFormat(imageData)
	if err != nil {
		return err
	}
	if !slices.Contains(c.formats, format) {
		return fmt.Errorf("format %s is not allowed", format)
	}
	return nil
}
