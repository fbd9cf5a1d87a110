package qrlogo

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/makiuchi-d/gozxing"
	gozxingqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logoBlue = color.RGBA{R: 20, G: 40, B: 200, A: 255}

// writeLogo writes a 40x40 PNG whose left half is opaque blue and whose
// right half is fully transparent.
func writeLogo(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, logoBlue)
		}
	}
	path := filepath.Join(t.TempDir(), "logo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func decode(t *testing.T, img image.Image) string {
	t.Helper()
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	require.NoError(t, err)
	result, err := gozxingqr.NewQRCodeReader().Decode(bmp, map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	})
	require.NoError(t, err)
	return result.GetText()
}

func TestComposeIsScannable(t *testing.T) {
	logo := writeLogo(t)
	url := "http://localhost:5000/participant/65f1c0ffee00000000abcd12"

	img, err := Compose(url, logo, DefaultOptions())
	require.NoError(t, err)

	b := img.Bounds()
	assert.Equal(t, b.Dx(), b.Dy(), "code must be square")
	assert.GreaterOrEqual(t, b.Dx(), 290)
	assert.Zero(t, b.Dx()%ModuleSize, "modules are rendered at a fixed pixel size")

	assert.Equal(t, url, decode(t, img))
}

func TestComposeShortURLUsesMinimumSize(t *testing.T) {
	img, err := Compose("x", writeLogo(t), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 290, img.Bounds().Dx())
}

func TestComposeLogoRegion(t *testing.T) {
	opts := DefaultOptions()
	img, err := Compose("http://localhost:5000/participant/abc", writeLogo(t), opts)
	require.NoError(t, err)

	x0 := (img.Bounds().Dx() - opts.LogoSize) / 2
	y0 := (img.Bounds().Dy() - opts.LogoSize) / 2

	// opaque half of the logo replaces the code
	assert.Equal(t, logoBlue, img.RGBAAt(x0+15, y0+opts.LogoSize/2))
	assert.Equal(t, logoBlue, img.RGBAAt(x0+30, y0+10))

	// transparent half leaves the code untouched
	for _, p := range []image.Point{{x0 + 110, y0 + 20}, {x0 + 120, y0 + 100}} {
		c := img.RGBAAt(p.X, p.Y)
		white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
		assert.True(t, c == Foreground || c == white, "unexpected color %v at %v", c, p)
	}

	// corners stay part of the finder pattern area of the code
	corner := img.RGBAAt(4*ModuleSize+1, 4*ModuleSize+1)
	assert.Equal(t, Foreground, corner)
}

func TestComposeMissingLogoFails(t *testing.T) {
	_, err := Compose("http://localhost:5000/participant/abc", filepath.Join(t.TempDir(), "nope.png"), DefaultOptions())
	assert.Error(t, err)
}

func TestComposeUnreadableLogoFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
	_, err := Compose("http://localhost:5000/participant/abc", path, DefaultOptions())
	assert.Error(t, err)
}

func TestGeneratorBase64PNG(t *testing.T) {
	gen := NewGenerator(writeLogo(t))
	url := "http://localhost:5000/participant/abc"

	encoded, err := gen.Base64PNG(url)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, url, decode(t, img))
}
