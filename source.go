package iac

import (
	"bufio"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"

	"github.com/bodgit/iac/raster"
)

// Source produces the image to be delivered. A camera driver would
// implement this; RawFile and ImageFile read from disk.
type Source interface {
	Acquire(ctx context.Context) (*raster.Raster, error)
	String() string
}

// RawFile is a raw frame as dumped by the camera: Width * Height pixels of
// the given format with no header.
type RawFile struct {
	Path   string
	Width  int
	Height int
	Format raster.Format
	Depth  int
}

// Acquire implements Source.
func (f RawFile) Acquire(ctx context.Context) (*raster.Raster, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	m, err := raster.Decode(bufio.NewReader(file), f.Width, f.Height, f.Format, f.Depth)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return m, nil
}

func (f RawFile) String() string {
	return f.Path
}

// ImageFile is any image file with a registered decoder.
type ImageFile string

// Acquire implements Source.
func (f ImageFile) Acquire(ctx context.Context) (*raster.Raster, error) {
	file, err := os.Open(string(f))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	m, _, err := image.Decode(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", string(f), err)
	}
	return raster.FromImage(m), nil
}

func (f ImageFile) String() string {
	return string(f)
}
