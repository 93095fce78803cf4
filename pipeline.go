package iac

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bodgit/iac/block"
	"github.com/bodgit/iac/raster"
	"github.com/bodgit/iac/tile"
	"github.com/sirupsen/logrus"
)

// fingerprint identifies an image by its dimensions, format and pixels.
func fingerprint(m *raster.Raster) string {
	h := sha1.New()
	_ = binary.Write(h, binary.BigEndian, []uint32{uint32(m.Width), uint32(m.Height), uint32(m.Format), uint32(m.Depth)})
	_, _ = h.Write(m.Pix)
	return fmt.Sprintf("%X", h.Sum(nil))
}

// sendTile encodes one tile and sends the metadata block followed by every
// data block.
func (c *Controller) sendTile(ctx context.Context, id byte, m *raster.Raster) (int, int, error) {
	b := new(bytes.Buffer)
	if err := tile.Encode(b, m, c.cfg.TileOptions()); err != nil {
		return 0, 0, fmt.Errorf("iac: encode tile %d: %w", id, err)
	}

	s, err := block.NewSegmenter(b.Bytes(), c.cfg.BlockSize)
	if err != nil {
		return 0, 0, fmt.Errorf("iac: tile %d: %w", id, err)
	}

	for {
		blk, ok := s.Next()
		if !ok {
			break
		}
		if err := c.driver.Send(ctx, id, blk.Index, blk.Payload, blk.PadTo); err != nil {
			return 0, 0, err
		}
	}

	return b.Len(), int(s.Count()), nil
}

func (c *Controller) deliver(ctx context.Context, g *tile.Grid, skip map[byte]bool, fn func(TileReport) error) error {
	return g.Each(func(row, col int, m *raster.Raster) error {
		id := g.ID(row, col)
		logger := c.logger.WithFields(logrus.Fields{
			"tile": id,
			"row":  row,
			"col":  col,
		})

		if skip[id] {
			logger.Info("Skipping tile delivered by previous run")
			return fn(TileReport{ID: id, Row: row, Col: col, Skipped: true})
		}

		before := c.driver.Stats()
		n, blocks, err := c.sendTile(ctx, id, m)
		if err != nil {
			return err
		}
		attempts := c.driver.Stats().Attempts - before.Attempts

		logger.WithFields(logrus.Fields{
			"bytes":    n,
			"blocks":   blocks,
			"attempts": attempts,
		}).Info("Delivered tile")

		return fn(TileReport{
			ID:       id,
			Row:      row,
			Col:      col,
			Bytes:    n,
			Blocks:   blocks,
			Attempts: attempts,
		})
	})
}

// Deliver sends every tile of g in row-major order. It stops at the first
// error, leaving the remaining tiles unsent; tiles already delivered stay
// delivered.
func (c *Controller) Deliver(ctx context.Context, g *tile.Grid) error {
	return c.deliver(ctx, g, nil, func(TileReport) error { return nil })
}

// Send acquires an image from src, tiles it and delivers every tile. If a
// journal is configured the run is recorded and, with resume set, tiles
// delivered by an unfinished previous run of the same image, with the same
// geometry and tile encoding, are skipped.
// A report is returned whenever delivery was attempted, even if it failed.
func (c *Controller) Send(ctx context.Context, src Source, resume bool) (*Report, error) {
	started := time.Now()

	m, err := src.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("iac: acquire: %w", err)
	}

	g, err := tile.Tile(m, c.cfg.Divisions)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Source:    src.String(),
		Image:     fingerprint(m),
		Width:     m.Width,
		Height:    m.Height,
		Divisions: c.cfg.Divisions,
		BlockSize: c.cfg.BlockSize,
		Started:   started,
	}

	var skip map[byte]bool
	if c.journal != nil {
		if resume {
			if skip, err = c.journal.Pending(r.Image, r.Divisions, r.BlockSize, c.cfg.tileEncoding()); err != nil {
				return nil, fmt.Errorf("iac: journal: %w", err)
			}
		}
		if r.RunID, err = c.journal.StartRun(r.Image, r.Source, r.Divisions, r.BlockSize, c.cfg.tileEncoding()); err != nil {
			return nil, fmt.Errorf("iac: journal: %w", err)
		}
	}

	logger := c.logger.WithFields(logrus.Fields{
		"source": r.Source,
		"run":    r.RunID,
	})
	logger.WithFields(logrus.Fields{
		"width":  m.Width,
		"height": m.Height,
		"tiles":  g.Len(),
		"skip":   len(skip),
	}).Info("Starting delivery")

	before := c.driver.Stats()
	err = c.deliver(ctx, g, skip, func(t TileReport) error {
		r.Tiles = append(r.Tiles, t)
		if c.journal != nil {
			if err := c.journal.TileDelivered(r.RunID, t.ID, t.Bytes, t.Blocks); err != nil {
				return fmt.Errorf("iac: journal: %w", err)
			}
		}
		return nil
	})
	after := c.driver.Stats()

	r.Frames = after.Frames - before.Frames
	r.Attempts = after.Attempts - before.Attempts
	r.Retries = after.Retries - before.Retries
	r.Elapsed = time.Since(started)
	if err != nil {
		r.Error = err.Error()
	}

	if c.journal != nil {
		if jerr := c.journal.FinishRun(r.RunID, err); jerr != nil && err == nil {
			err = fmt.Errorf("iac: journal: %w", jerr)
		}
	}

	if err != nil {
		logger.WithError(err).WithField("delivered", r.Delivered()).Error("Delivery failed")
		return r, err
	}

	logger.WithFields(logrus.Fields{
		"frames":  r.Frames,
		"retries": r.Retries,
		"elapsed": r.Elapsed,
	}).Info("Delivery complete")

	return r, nil
}

var imageExts = map[string]bool{
	".gif":  true,
	".jpeg": true,
	".jpg":  true,
	".png":  true,
}

func findImages(base string) ([]string, error) {
	var files []string
	err := filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Ignore any hidden files or directories
		if file != base && info.Name()[0] == '.' {
			if info.Mode().IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		if imageExts[strings.ToLower(filepath.Ext(file))] {
			files = append(files, file)
		}

		return nil
	})
	return files, err
}

// Scan delivers every image file found under dir, in lexical order, one
// after the other. It stops at the first failure; the reports of every
// attempted image are returned.
func (c *Controller) Scan(ctx context.Context, dir string, resume bool) ([]*Report, error) {
	files, err := findImages(dir)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"dir":    dir,
		"images": len(files),
	}).Info("Scanned directory")

	var reports []*Report
	for _, file := range files {
		r, err := c.Send(ctx, ImageFile(file), resume)
		if r != nil {
			reports = append(reports, r)
		}
		if err != nil {
			return reports, err
		}
	}

	return reports, nil
}

// WriteTiles encodes every tile of g into its own file in dir, named
// tile-ROW-COL with the extension of the encoding. The file names are
// returned in row-major order.
func WriteTiles(g *tile.Grid, dir string, o *tile.Options) ([]string, error) {
	if o == nil {
		o = &tile.DefaultOptions
	}

	var files []string
	err := g.Each(func(row, col int, m *raster.Raster) error {
		file := filepath.Join(dir, fmt.Sprintf("tile-%02d-%02d%s", row, col, o.Encoding.Ext()))

		f, err := os.Create(file)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := tile.Encode(f, m, o); err != nil {
			return err
		}

		files = append(files, file)

		return f.Close()
	})
	return files, err
}
