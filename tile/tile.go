/*
Package tile splits an image into a square grid of tiles and encodes each
tile into the blob sent to the on-board controller.

Tiles are addressed on the wire by a single byte, col + row*divisions, so a
grid can hold at most 256 tiles. Every tile is ceil(width/divisions) by
ceil(height/divisions) pixels; tiles along the right and bottom edges may
extend past the source image, in which case the missing pixels are zero.
*/
package tile

import (
	"errors"
	"fmt"
	"image"

	"github.com/bodgit/iac/raster"
)

// MaxTiles is the number of distinct tile IDs.
const MaxTiles = 256

var (
	// ErrCropFailed is matched by any CropError.
	ErrCropFailed = errors.New("tile: crop failed")

	errDivisions = errors.New("tile: divisions out of range")
)

// CropError records which tile could not be cropped.
type CropError struct {
	Row, Col int
	Err      error
}

func (e *CropError) Error() string {
	return fmt.Sprintf("tile: crop of tile (%d, %d) failed: %v", e.Row, e.Col, e.Err)
}

func (e *CropError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCropFailed.
func (e *CropError) Is(target error) bool { return target == ErrCropFailed }

// Cropper is the source image. *raster.Raster implements it.
type Cropper interface {
	Bounds() image.Rectangle
	Crop(image.Rectangle) (*raster.Raster, error)
}

// Grid is a fully populated divisions by divisions set of tiles stored in
// row-major order.
type Grid struct {
	divisions int
	width     int
	height    int
	tiles     []*raster.Raster
}

// Divisions returns the number of rows, which is also the number of columns.
func (g *Grid) Divisions() int { return g.divisions }

// Len returns the number of tiles.
func (g *Grid) Len() int { return len(g.tiles) }

// TileSize returns the width and height shared by every tile.
func (g *Grid) TileSize() (int, int) { return g.width, g.height }

// At returns the tile at the given row and column. It panics if either is
// out of range.
func (g *Grid) At(row, col int) *raster.Raster {
	if row < 0 || row >= g.divisions || col < 0 || col >= g.divisions {
		panic(fmt.Sprintf("tile: (%d, %d) outside %d by %d grid", row, col, g.divisions, g.divisions))
	}
	return g.tiles[row*g.divisions+col]
}

// ID returns the wire address of the tile at the given row and column.
func (g *Grid) ID(row, col int) byte {
	return byte(col + row*g.divisions)
}

// Each calls fn for every tile in row-major order, stopping at the first
// error which is returned.
func (g *Grid) Each(fn func(row, col int, m *raster.Raster) error) error {
	for i, m := range g.tiles {
		if err := fn(i/g.divisions, i%g.divisions, m); err != nil {
			return err
		}
	}
	return nil
}

func divCeil(a, b int) int {
	return (a + b - 1) / b
}

// Tile splits src into a divisions by divisions grid. Either every tile is
// cropped successfully or a *CropError is returned and no grid is produced.
func Tile(src Cropper, divisions int) (*Grid, error) {
	if divisions < 1 || divisions*divisions > MaxTiles {
		return nil, errDivisions
	}

	b := src.Bounds()
	w, h := divCeil(b.Dx(), divisions), divCeil(b.Dy(), divisions)

	tiles := make([]*raster.Raster, 0, divisions*divisions)
	for row := 0; row < divisions; row++ {
		for col := 0; col < divisions; col++ {
			r := image.Rect(col*w, row*h, col*w+w, row*h+h).Add(b.Min)
			m, err := src.Crop(r)
			if err != nil {
				return nil, &CropError{Row: row, Col: col, Err: err}
			}
			tiles = append(tiles, m)
		}
	}

	return &Grid{
		divisions: divisions,
		width:     w,
		height:    h,
		tiles:     tiles,
	}, nil
}
