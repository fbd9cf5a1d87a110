// Package qrlogo renders QR codes with a logo stamped over the center.
package qrlogo

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	qrcode "github.com/skip2/go-qrcode"
	xdraw "golang.org/x/image/draw"
)

// ModuleSize is the edge length of one QR module in pixels.
const ModuleSize = 10

// Foreground is the module color used for every generated code.
var Foreground = color.RGBA{R: 213, G: 68, B: 39, A: 255}

// Options controls output geometry.
type Options struct {
	// QRSize is the minimum edge of the rendered code. Symbols that need
	// more room keep ModuleSize pixels per module and grow past it.
	QRSize int
	// LogoSize is the exact edge the logo is scaled to.
	LogoSize int
}

// DefaultOptions matches the printed badge layout: a version 1 symbol with
// its 4-module quiet border at 10px per module is 290px.
func DefaultOptions() Options {
	return Options{QRSize: 290, LogoSize: 130}
}

// Compose encodes targetURL with high error correction and pastes the logo
// at logoPath in the center, using the logo's alpha channel as the mask.
// A missing or unreadable logo is an error.
func Compose(targetURL, logoPath string, opts Options) (*image.RGBA, error) {
	if opts.LogoSize <= 0 {
		opts.LogoSize = DefaultOptions().LogoSize
	}

	code, err := qrcode.New(targetURL, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("qrlogo: encode %q: %w", targetURL, err)
	}
	code.ForegroundColor = Foreground
	code.BackgroundColor = color.White

	rendered := code.Image(-ModuleSize)
	if rendered.Bounds().Dx() < opts.QRSize {
		rendered = code.Image(opts.QRSize)
	}

	bounds := rendered.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), rendered, bounds.Min, draw.Src)

	logo, err := loadLogo(logoPath, opts.LogoSize)
	if err != nil {
		return nil, err
	}

	x := (canvas.Bounds().Dx() - opts.LogoSize) / 2
	y := (canvas.Bounds().Dy() - opts.LogoSize) / 2
	target := image.Rect(x, y, x+opts.LogoSize, y+opts.LogoSize)
	// Over on premultiplied RGBA blends by the logo's own alpha exactly once.
	draw.Draw(canvas, target, logo, image.Point{}, draw.Over)

	return canvas, nil
}

func loadLogo(path string, size int) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("qrlogo: open logo: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("qrlogo: decode logo %s: %w", path, err)
	}

	logo := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(logo, logo.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return logo, nil
}

// EncodePNG serializes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("qrlogo: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Generator binds a logo and options so callers only pass the URL.
type Generator struct {
	LogoPath string
	Options  Options
}

// NewGenerator uses DefaultOptions.
func NewGenerator(logoPath string) *Generator {
	return &Generator{LogoPath: logoPath, Options: DefaultOptions()}
}

// PNG renders targetURL into PNG bytes.
func (g *Generator) PNG(targetURL string) ([]byte, error) {
	img, err := Compose(targetURL, g.LogoPath, g.Options)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

// Base64PNG renders targetURL into base64 PNG text for inline <img> tags.
func (g *Generator) Base64PNG(targetURL string) (string, error) {
	b, err := g.PNG(targetURL)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
