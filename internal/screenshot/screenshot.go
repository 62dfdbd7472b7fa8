// Package screenshot writes captured frames to disk.
package screenshot

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/bmp"
)

// Format is an image file format.
type Format string

const (
	PNG Format = "png"
	BMP Format = "bmp"
)

// ParseFormat accepts "png" or "bmp", case-insensitively. Empty means PNG.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return PNG, nil
	case PNG, BMP:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported screenshot format %q", s)
	}
}

// Capture names and writes screenshots.
type Capture struct {
	dir    string
	prefix string
	format Format
	now    func() time.Time
}

// New creates a capture that writes <dir>/<prefix>_<timestamp>.<format>.
func New(dir, prefix string, format Format) *Capture {
	return &Capture{dir: dir, prefix: prefix, format: format, now: time.Now}
}

// Filename returns the name the next capture would use.
func (c *Capture) Filename() string {
	name := fmt.Sprintf("%s_%s.%s", c.prefix, c.now().Format("2006-01-02_15-04-05"), c.format)
	if c.dir != "" {
		name = filepath.Join(c.dir, name)
	}
	return name
}

// FromPixels builds an image from bottom-up RGBA rows, as returned by
// glReadPixels.
func FromPixels(pixels []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || len(pixels) != width*height*4 {
		return nil, fmt.Errorf("pixel data size mismatch: %dx%d needs %d bytes, got %d",
			width, height, width*height*4, len(pixels))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	row := width * 4
	for y := range height {
		src := (height - 1 - y) * row
		dst := y * img.Stride
		copy(img.Pix[dst:dst+row], pixels[src:src+row])
	}
	return img, nil
}

// Save writes bottom-up RGBA pixels and returns the file name.
func (c *Capture) Save(pixels []byte, width, height int) (string, error) {
	img, err := FromPixels(pixels, width, height)
	if err != nil {
		return "", err
	}

	if c.dir != "" {
		if err := os.MkdirAll(c.dir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	name := c.Filename()
	f, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	if err := Encode(f, img, c.format); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return name, nil
}

// Encode writes img in the given format.
func Encode(w io.Writer, img image.Image, format Format) error {
	var err error
	switch format {
	case BMP:
		err = bmp.Encode(w, img)
	case PNG, "":
		err = png.Encode(w, img)
	default:
		return fmt.Errorf("unsupported screenshot format %q", format)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", format, err)
	}
	return nil
}
