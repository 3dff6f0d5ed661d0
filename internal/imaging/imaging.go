// Package imaging validates uploaded profile pictures and renders the
// stored variants.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the webp decoder
)

const (
	MinDimension = 50
	MaxDimension = 4096
	MaxPrimary   = 1024
)

var (
	ErrTooLarge          = errors.New("file too large")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrCorrupt           = errors.New("image could not be decoded")
	ErrDimensions        = errors.New("image dimensions out of range")
)

var allowedFormats = map[string]bool{"jpeg": true, "png": true, "webp": true}

// Variant is one rendered size of a picture.
type Variant struct {
	Name string // "", "small", "medium" or "large"
	Size int    // square edge in pixels; 0 for the primary image
	Data []byte
}

// Thumbnails are square center crops.
var Thumbnails = []struct {
	Name string
	Size int
}{
	{"small", 150},
	{"medium", 300},
	{"large", 600},
}

// Validate checks size, format and dimensions without fully decoding.
func Validate(data []byte, maxBytes int64) error {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return ErrTooLarge
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return ErrUnsupportedFormat
		}
		return ErrCorrupt
	}
	if !allowedFormats[format] {
		return ErrUnsupportedFormat
	}
	if cfg.Width < MinDimension || cfg.Height < MinDimension ||
		cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return fmt.Errorf("%w: %dx%d", ErrDimensions, cfg.Width, cfg.Height)
	}
	return nil
}

// Process decodes data, corrects orientation, flattens transparency onto
// white and returns the primary JPEG followed by the thumbnails.
func Process(data []byte) ([]Variant, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrCorrupt
	}
	b := src.Bounds()
	flat := imaging.New(b.Dx(), b.Dy(), color.White)
	flat = imaging.Overlay(flat, src, image.Pt(0, 0), 1.0)

	primary := image.Image(flat)
	if b.Dx() > MaxPrimary || b.Dy() > MaxPrimary {
		primary = imaging.Fit(flat, MaxPrimary, MaxPrimary, imaging.Lanczos)
	}
	out := make([]Variant, 0, len(Thumbnails)+1)
	buf, err := encode(primary, 90)
	if err != nil {
		return nil, err
	}
	out = append(out, Variant{Data: buf})

	for _, th := range Thumbnails {
		img := imaging.Fill(flat, th.Size, th.Size, imaging.Center, imaging.Lanczos)
		buf, err := encode(img, 85)
		if err != nil {
			return nil, err
		}
		out = append(out, Variant{Name: th.Name, Size: th.Size, Data: buf})
	}
	return out, nil
}

func encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// VariantKey derives the storage key of a variant from the primary key:
// "profiles/1/profile_1_99.jpg" becomes "profiles/1/profile_1_99_small.jpg".
func VariantKey(primary, name string) string {
	if name == "" {
		return primary
	}
	ext := ".jpg"
	base := primary
	if len(base) > len(ext) && base[len(base)-len(ext):] == ext {
		base = base[:len(base)-len(ext)]
	}
	return base + "_" + name + ext
}

// AllKeys lists the primary key and every thumbnail key.
func AllKeys(primary string) []string {
	keys := []string{primary}
	for _, th := range Thumbnails {
		keys = append(keys, VariantKey(primary, th.Name))
	}
	return keys
}
