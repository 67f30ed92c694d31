package checks

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/srwiley/oksvg"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const FormatSVG = "svg"

// SupportedFormats lists every format DetectFormat can recognise.
var SupportedFormats = []string{"png", "jpeg", "gif", "webp", "bmp", "tiff", FormatSVG}

var ErrUnknownFormat = errors.New("unrecognised image format")

// isSVGData performs a lightweight detection of SVG content in the first kilobyte.
func isSVGData(data []byte) bool {
	header := data
	if len(header) > 1024 {
		header = header[:1024]
	}
	header = bytes.TrimSpace(header)
	return bytes.Contains(header, []byte("<svg")) ||
		bytes.Contains(header, []byte(`xmlns="http://www.w3.org/2000/svg"`)) ||
		bytes.Contains(header, []byte(`xmlns='http://www.w3.org/2000/svg'`))
}

// DetectFormat returns the format name of the image data, e.g. "png" or "svg".
func DetectFormat(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty data", ErrUnknownFormat)
	}
	if isSVGData(data) {
		return FormatSVG, nil
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	return format, nil
}

// Dimensions returns width, height and format of the image data. SVG sizes come
// from the view box.
func Dimensions(data []byte) (int, int, string, error) {
	format, err := DetectFormat(data)
	if err != nil {
		return 0, 0, "", err
	}

	if format == FormatSVG {
		icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
		if err != nil {
			return 0, 0, format, fmt.Errorf("failed to parse SVG: %w", err)
		}
		return int(math.Ceil(icon.ViewBox.W)), int(math.Ceil(icon.ViewBox.H)), format, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, format, fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// Extension returns the file extension used to store images of the given format.
func Extension(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "":
		return ".bin"
	default:
		return "." + format
	}
}
