package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

var (
	errNotEnough = errors.New("raster: not enough image data")
	errTooMuch   = errors.New("raster: too much image data")
)

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// Decode reads exactly width*height pixels of the given format and depth
// from r. Both short and long input are rejected.
func Decode(r io.Reader, width, height int, format Format, depth int) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("raster: invalid dimensions %dx%d", width, height)
	}
	if format.BytesPerPixel() == 0 {
		return nil, fmt.Errorf("raster: unknown format %v", format)
	}
	if depth != Depth {
		return nil, fmt.Errorf("raster: unsupported depth %d", depth)
	}

	m := New(width, height, format)

	if err := readFull(r, m.Pix); err != nil {
		if err != io.ErrUnexpectedEOF {
			return nil, err
		}
		return nil, errNotEnough
	}

	var tmp [1]byte
	if n, err := r.Read(tmp[:]); n != 0 || (err != io.EOF && err != io.ErrUnexpectedEOF) {
		if err != nil {
			return nil, err
		}
		return nil, errTooMuch
	}

	return m, nil
}

// FromImage copies any image into an RGB raster with its top-left corner at
// (0, 0). Grayscale images are kept as Gray.
func FromImage(m image.Image) *Raster {
	if r, ok := m.(*Raster); ok {
		dup := *r
		dup.Pix = append([]byte(nil), r.Pix...)
		return &dup
	}

	b := m.Bounds()

	format := RGB
	if m.ColorModel() == color.GrayModel {
		format = Gray
	}

	dst := New(b.Dx(), b.Dy(), format)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if format == Gray {
				dst.Pix[i] = color.GrayModel.Convert(m.At(x, y)).(color.Gray).Y
				i++
				continue
			}
			c := color.RGBAModel.Convert(m.At(x, y)).(color.RGBA)
			dst.Pix[i+0] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			i += 3
		}
	}

	return dst
}
