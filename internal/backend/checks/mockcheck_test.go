package checks

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// mockCheck is a Check whose outcome is set by the test
type mockCheck struct {
	name  string
	err   error
	calls int
}

func (m *mockCheck) Name() string {
	return m.name
}

func (m *mockCheck) Check(imageData []byte) error {
	m.calls++
	return m.err
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode error: %v", err)
	}
	return buf.Bytes()
}

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 40 20" width="40" height="20">
	<rect x="0" y="0" width="40" height="20" fill="#ff0000"/>
</svg>`
