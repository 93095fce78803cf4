/*
Package raster implements the in-memory image the tiler works on.

A Raster is a tightly packed buffer of 8-bit samples in one of a small number
of pixel formats, matching what the camera produces. It implements
image.Image so it can be handed directly to the standard image encoders.
*/
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
)

// Format identifies the layout of a single pixel.
type Format int

// Supported pixel formats.
const (
	BGR Format = iota + 1
	RGB
	RGBA
	Gray
	RGBX
)

// Depth is the only supported number of bits per sample.
const Depth = 8

var formatNames = map[Format]string{
	BGR:  "BGR",
	RGB:  "RGB",
	RGBA: "RGBA",
	Gray: "GRAY",
	RGBX: "RGBX",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// BytesPerPixel returns the number of bytes used by one pixel, or zero for
// an unknown format.
func (f Format) BytesPerPixel() int {
	switch f {
	case BGR, RGB:
		return 3
	case RGBA, RGBX:
		return 4
	case Gray:
		return 1
	default:
		return 0
	}
}

// ParseFormat returns the Format with the given name, ignoring case.
func ParseFormat(s string) (Format, error) {
	for f, name := range formatNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("raster: unknown format %q", s)
}

// ErrEmptyCrop is returned when asked to crop an empty rectangle.
var ErrEmptyCrop = errors.New("raster: empty crop rectangle")

// Raster is an image with its top-left corner at (0, 0).
type Raster struct {
	Width  int
	Height int
	Format Format
	Depth  int
	Pix    []byte
}

// New returns a zeroed raster.
func New(width, height int, format Format) *Raster {
	return &Raster{
		Width:  width,
		Height: height,
		Format: format,
		Depth:  Depth,
		Pix:    make([]byte, width*height*format.BytesPerPixel()),
	}
}

// Stride returns the number of bytes in one row.
func (r *Raster) Stride() int {
	return r.Width * r.Format.BytesPerPixel()
}

// ColorModel implements image.Image. RGBA samples carry straight alpha.
func (r *Raster) ColorModel() color.Model {
	switch r.Format {
	case Gray:
		return color.GrayModel
	case RGBA:
		return color.NRGBAModel
	default:
		return color.RGBAModel
	}
}

// Bounds implements image.Image.
func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

// At implements image.Image.
func (r *Raster) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(r.Bounds())) {
		switch r.Format {
		case Gray:
			return color.Gray{}
		case RGBA:
			return color.NRGBA{}
		default:
			return color.RGBA{}
		}
	}

	i := y*r.Stride() + x*r.Format.BytesPerPixel()
	p := r.Pix[i : i+r.Format.BytesPerPixel()]

	switch r.Format {
	case BGR:
		return color.RGBA{p[2], p[1], p[0], 0xff}
	case RGB:
		return color.RGBA{p[0], p[1], p[2], 0xff}
	case RGBA:
		return color.NRGBA{p[0], p[1], p[2], p[3]}
	case RGBX:
		return color.RGBA{p[0], p[1], p[2], 0xff}
	default:
		return color.Gray{p[0]}
	}
}

// Crop returns a copy of the area of the raster covered by rect. The result
// is always rect.Dx() by rect.Dy() pixels; any part of rect that lies outside
// the raster, possibly all of it, is filled with zero bytes.
func (r *Raster) Crop(rect image.Rectangle) (*Raster, error) {
	if rect.Empty() {
		return nil, ErrEmptyCrop
	}

	dst := New(rect.Dx(), rect.Dy(), r.Format)
	dst.Depth = r.Depth

	src := rect.Intersect(r.Bounds())
	bpp := r.Format.BytesPerPixel()
	n := src.Dx() * bpp

	for y := src.Min.Y; y < src.Max.Y; y++ {
		si := y*r.Stride() + src.Min.X*bpp
		di := (y-rect.Min.Y)*dst.Stride() + (src.Min.X-rect.Min.X)*bpp
		copy(dst.Pix[di:di+n], r.Pix[si:si+n])
	}

	return dst, nil
}
