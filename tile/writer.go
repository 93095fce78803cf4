package tile

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/ericpauley/go-quantize/quantize"
)

// Encoding is the compressed format of an encoded tile.
type Encoding int

// Supported encodings.
const (
	JPEG Encoding = iota + 1
	PNG
)

const maxColors = 256

var errTooManyColors = errors.New("tile: palette can hold at most 256 colors")

func (e Encoding) String() string {
	switch e {
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Ext returns the usual filename extension, including the leading dot.
func (e Encoding) Ext() string {
	switch e {
	case JPEG:
		return ".jpg"
	case PNG:
		return ".png"
	default:
		return ""
	}
}

// ParseEncoding returns the Encoding with the given name, ignoring case.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	default:
		return 0, fmt.Errorf("tile: unknown encoding %q", s)
	}
}

// Options controls how a tile is encoded.
type Options struct {
	Encoding Encoding
	// Quality is the JPEG quality, 1 to 100.
	Quality int
	// Colors, if non-zero, reduces a PNG tile to a palette of at most this
	// many colors.
	Colors int
}

// DefaultOptions matches what the controller has always been sent.
var DefaultOptions = Options{
	Encoding: JPEG,
	Quality:  jpeg.DefaultQuality,
}

func quantizeImage(m image.Image, colors int) *image.Paletted {
	b := m.Bounds()
	q := quantize.MedianCutQuantizer{}
	pm := image.NewPaletted(b, q.Quantize(make(color.Palette, 0, colors), m))
	draw.Draw(pm, b, m, b.Min, draw.Src)
	return pm
}

// Encode writes the Image m to w using the given options. A nil o uses
// DefaultOptions.
func Encode(w io.Writer, m image.Image, o *Options) error {
	if o == nil {
		o = &DefaultOptions
	}

	switch o.Encoding {
	case JPEG:
		return jpeg.Encode(w, m, &jpeg.Options{Quality: o.Quality})
	case PNG:
		if o.Colors > maxColors {
			return errTooManyColors
		}
		if o.Colors > 0 {
			m = quantizeImage(m, o.Colors)
		}
		e := png.Encoder{CompressionLevel: png.BestCompression}
		return e.Encode(w, m)
	default:
		return fmt.Errorf("tile: unknown encoding %v", o.Encoding)
	}
}
