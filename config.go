package iac

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bodgit/iac/link"
	"github.com/bodgit/iac/raster"
	"github.com/bodgit/iac/tile"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a delivery run. It is copied into the
// Controller so later changes by the caller have no effect.
type Config struct {
	// Divisions is the number of rows and columns the image is split into.
	Divisions int
	// BlockSize is the largest payload carried by a single frame.
	BlockSize int
	// Ack is the byte the receiver returns once it accepts a frame.
	Ack byte
	// Delay is slept before every frame is sent, including retries.
	Delay time.Duration
	// MaxAttempts and Deadline bound the retries for one frame. Zero for
	// both retries forever.
	MaxAttempts int
	Deadline    time.Duration

	Encoding tile.Encoding
	Quality  int
	Colors   int

	// Format and Depth describe raw frames from the camera.
	Format raster.Format
	Depth  int
}

// DefaultConfig returns the configuration the on-board controller expects.
func DefaultConfig() Config {
	return Config{
		Divisions: 10,
		BlockSize: 2048,
		Ack:       link.DefaultConfig.Ack,
		Delay:     link.DefaultConfig.Delay,
		Encoding:  tile.DefaultOptions.Encoding,
		Quality:   tile.DefaultOptions.Quality,
		Format:    raster.BGR,
		Depth:     raster.Depth,
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.Divisions < 1 || c.Divisions*c.Divisions > tile.MaxTiles:
		return fmt.Errorf("iac: divisions must be between 1 and 16, not %d", c.Divisions)
	case c.BlockSize < 1:
		return fmt.Errorf("iac: invalid block size %d", c.BlockSize)
	case c.Delay < 0:
		return errors.New("iac: delay cannot be negative")
	case c.MaxAttempts < 0:
		return errors.New("iac: max attempts cannot be negative")
	case c.Deadline < 0:
		return errors.New("iac: deadline cannot be negative")
	case c.Deadline > 0 && c.Deadline <= c.Delay:
		return fmt.Errorf("iac: deadline %v leaves no time to send after the %v delay", c.Deadline, c.Delay)
	case c.Encoding.Ext() == "":
		return fmt.Errorf("iac: unknown encoding %v", c.Encoding)
	case c.Encoding == tile.JPEG && (c.Quality < 1 || c.Quality > 100):
		return fmt.Errorf("iac: jpeg quality must be between 1 and 100, not %d", c.Quality)
	case c.Colors < 0 || c.Colors > 256:
		return fmt.Errorf("iac: colors must be between 0 and 256, not %d", c.Colors)
	case c.Format.BytesPerPixel() == 0:
		return fmt.Errorf("iac: unknown pixel format %v", c.Format)
	case c.Depth != raster.Depth:
		return fmt.Errorf("iac: unsupported depth %d", c.Depth)
	}
	return nil
}

func (c Config) linkConfig() link.Config {
	return link.Config{
		Ack:   c.Ack,
		Delay: c.Delay,
		Policy: link.Policy{
			MaxAttempts: c.MaxAttempts,
			Deadline:    c.Deadline,
		},
	}
}

// TileOptions returns the options used to encode each tile.
func (c Config) TileOptions() *tile.Options {
	return &tile.Options{
		Encoding: c.Encoding,
		Quality:  c.Quality,
		Colors:   c.Colors,
	}
}

// tileEncoding describes the encoder settings that change the bytes of a
// tile, for example "jpeg/q75" or "png/c16".
func (c Config) tileEncoding() string {
	if c.Encoding == tile.JPEG {
		return fmt.Sprintf("%v/q%d", c.Encoding, c.Quality)
	}
	return fmt.Sprintf("%v/c%d", c.Encoding, c.Colors)
}

// Keys in a config file. Unset keys leave the default alone.
type fileConfig struct {
	Divisions   *int    `toml:"divisions" yaml:"divisions"`
	BlockSize   *int    `toml:"block_size" yaml:"block_size"`
	Ack         *int    `toml:"ack" yaml:"ack"`
	Delay       *string `toml:"delay" yaml:"delay"`
	MaxAttempts *int    `toml:"max_attempts" yaml:"max_attempts"`
	Deadline    *string `toml:"deadline" yaml:"deadline"`
	Encoding    *string `toml:"encoding" yaml:"encoding"`
	Quality     *int    `toml:"quality" yaml:"quality"`
	Colors      *int    `toml:"colors" yaml:"colors"`
	Format      *string `toml:"format" yaml:"format"`
	Depth       *int    `toml:"depth" yaml:"depth"`
}

func decodeTOML(b []byte, raw *fileConfig) error {
	meta, err := toml.Decode(string(b), raw)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys %s", strings.Join(keys, ", "))
	}
	return nil
}

func decodeYAML(b []byte, raw *fileConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(raw); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (raw fileConfig) apply(cfg *Config) error {
	if raw.Divisions != nil {
		cfg.Divisions = *raw.Divisions
	}
	if raw.BlockSize != nil {
		cfg.BlockSize = *raw.BlockSize
	}
	if raw.Ack != nil {
		if *raw.Ack < 0 || *raw.Ack > 0xff {
			return fmt.Errorf("ack 0x%x does not fit in a byte", *raw.Ack)
		}
		cfg.Ack = byte(*raw.Ack)
	}
	if raw.Delay != nil {
		d, err := time.ParseDuration(*raw.Delay)
		if err != nil {
			return fmt.Errorf("delay: %w", err)
		}
		cfg.Delay = d
	}
	if raw.MaxAttempts != nil {
		cfg.MaxAttempts = *raw.MaxAttempts
	}
	if raw.Deadline != nil {
		d, err := time.ParseDuration(*raw.Deadline)
		if err != nil {
			return fmt.Errorf("deadline: %w", err)
		}
		cfg.Deadline = d
	}
	if raw.Encoding != nil {
		e, err := tile.ParseEncoding(*raw.Encoding)
		if err != nil {
			return err
		}
		cfg.Encoding = e
	}
	if raw.Quality != nil {
		cfg.Quality = *raw.Quality
	}
	if raw.Colors != nil {
		cfg.Colors = *raw.Colors
	}
	if raw.Format != nil {
		f, err := raster.ParseFormat(*raw.Format)
		if err != nil {
			return err
		}
		cfg.Format = f
	}
	if raw.Depth != nil {
		cfg.Depth = *raw.Depth
	}
	return nil
}

// LoadConfig reads a TOML or YAML file, chosen by extension, on top of
// DefaultConfig. The result is validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	var raw fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = decodeTOML(b, &raw)
	case ".yaml", ".yml":
		err = decodeYAML(b, &raw)
	default:
		err = fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	if err := raw.apply(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	return cfg, nil
}
