package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/bodgit/iac"
	"github.com/bodgit/iac/link"
	"github.com/bodgit/iac/raster"
	"github.com/bodgit/iac/spi"
	"github.com/bodgit/iac/tile"
	"github.com/bodgit/iac/uart"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

type transport interface {
	link.Transport
	io.Closer
}

var protocolFlags = []cli.Flag{
	&cli.IntFlag{
		Name:  "divisions",
		Value: iac.DefaultConfig().Divisions,
		Usage: "split the image into `N` by N tiles",
	},
	&cli.IntFlag{
		Name:  "block-size",
		Value: iac.DefaultConfig().BlockSize,
		Usage: "payload `BYTES` per frame",
	},
	&cli.UintFlag{
		Name:  "ack",
		Value: uint(iac.DefaultConfig().Ack),
		Usage: "acknowledgment `BYTE`",
	},
	&cli.DurationFlag{
		Name:  "delay",
		Value: iac.DefaultConfig().Delay,
		Usage: "wait before every frame",
	},
	&cli.IntFlag{
		Name:  "max-attempts",
		Usage: "give up on a frame after `N` attempts (0 retries forever)",
	},
	&cli.DurationFlag{
		Name:  "deadline",
		Usage: "give up on a frame after this long (0 retries forever)",
	},
	&cli.StringFlag{
		Name:  "encoding",
		Value: iac.DefaultConfig().Encoding.String(),
		Usage: "tile encoding, jpeg or png",
	},
	&cli.IntFlag{
		Name:  "quality",
		Value: iac.DefaultConfig().Quality,
		Usage: "jpeg quality",
	},
	&cli.IntFlag{
		Name:  "colors",
		Usage: "reduce png tiles to `N` colors",
	},
}

var rawFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "raw",
		Usage: "FILE is a raw camera frame",
	},
	&cli.IntFlag{
		Name:  "width",
		Usage: "raw frame width",
	},
	&cli.IntFlag{
		Name:  "height",
		Usage: "raw frame height",
	},
	&cli.StringFlag{
		Name:  "format",
		Value: iac.DefaultConfig().Format.String(),
		Usage: "raw frame pixel format, BGR, RGB, RGBA, RGBX or GRAY",
	},
}

var transportFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "transport",
		Value: "spi",
		Usage: "link transport, spi or uart",
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"D"},
		EnvVars: []string{"IAC_DEVICE"},
		Value:   spi.DefaultDevice,
		Usage:   "device to use",
	},
	&cli.UintFlag{
		Name:  "speed",
		Value: uint(spi.DefaultConfig.MaxSpeedHz),
		Usage: "SPI clock in `HZ`",
	},
	&cli.IntFlag{
		Name:  "baud",
		Value: uart.DefaultConfig.BaudRate,
		Usage: "UART baud rate",
	},
	&cli.DurationFlag{
		Name:  "ack-timeout",
		Value: uart.DefaultConfig.ReadTimeout,
		Usage: "UART acknowledgment read timeout",
	},
}

var deliveryFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "resume",
		Usage: "skip tiles delivered by an unfinished run of the same image with the same settings",
	},
	&cli.PathFlag{
		Name:  "report",
		Usage: "write a JSON report to `FILE`",
	},
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var all []cli.Flag
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

func newLogger(c *cli.Context) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if c.Bool("verbose") || c.Bool("debug") {
		logger.SetOutput(os.Stderr)
	}
	if c.Bool("debug") {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// loadConfig reads the config file, if any, and applies any protocol flag
// given on the command line on top.
func loadConfig(c *cli.Context) (iac.Config, error) {
	cfg := iac.DefaultConfig()
	if path := c.Path("config"); path != "" {
		var err error
		if cfg, err = iac.LoadConfig(path); err != nil {
			return iac.Config{}, err
		}
	}

	if c.IsSet("divisions") {
		cfg.Divisions = c.Int("divisions")
	}
	if c.IsSet("block-size") {
		cfg.BlockSize = c.Int("block-size")
	}
	if c.IsSet("ack") {
		if c.Uint("ack") > 0xff {
			return iac.Config{}, fmt.Errorf("ack 0x%x does not fit in a byte", c.Uint("ack"))
		}
		cfg.Ack = byte(c.Uint("ack"))
	}
	if c.IsSet("delay") {
		cfg.Delay = c.Duration("delay")
	}
	if c.IsSet("max-attempts") {
		cfg.MaxAttempts = c.Int("max-attempts")
	}
	if c.IsSet("deadline") {
		cfg.Deadline = c.Duration("deadline")
	}
	if c.IsSet("encoding") {
		e, err := tile.ParseEncoding(c.String("encoding"))
		if err != nil {
			return iac.Config{}, err
		}
		cfg.Encoding = e
	}
	if c.IsSet("quality") {
		cfg.Quality = c.Int("quality")
	}
	if c.IsSet("colors") {
		cfg.Colors = c.Int("colors")
	}
	if c.IsSet("format") {
		f, err := raster.ParseFormat(c.String("format"))
		if err != nil {
			return iac.Config{}, err
		}
		cfg.Format = f
	}

	return cfg, cfg.Validate()
}

func openTransport(c *cli.Context) (transport, error) {
	switch c.String("transport") {
	case "spi":
		cfg := spi.DefaultConfig
		cfg.MaxSpeedHz = uint32(c.Uint("speed"))
		d, err := spi.Open(c.String("device"), cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "uart":
		p, err := uart.Open(c.String("device"), uart.Config{
			BaudRate:    c.Int("baud"),
			ReadTimeout: c.Duration("ack-timeout"),
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", c.String("transport"))
	}
}

func openJournal(c *cli.Context) (*iac.Journal, error) {
	if c.Bool("resume") && c.Path("journal") == "" {
		return nil, fmt.Errorf("--resume needs --journal")
	}
	if c.Path("journal") == "" {
		return nil, nil
	}
	return iac.OpenJournal(c.Path("journal"))
}

func source(c *cli.Context, cfg iac.Config) iac.Source {
	if c.Bool("raw") {
		return iac.RawFile{
			Path:   c.Args().First(),
			Width:  c.Int("width"),
			Height: c.Int("height"),
			Format: cfg.Format,
			Depth:  cfg.Depth,
		}
	}
	return iac.ImageFile(c.Args().First())
}

// withController sets up everything a delivery needs, runs fn and tears it
// all down again.
func withController(c *cli.Context, fn func(*iac.Controller) ([]*iac.Report, error)) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 1)
	}

	logger := newLogger(c)

	journal, err := openJournal(c)
	if err != nil {
		return cli.Exit(err, 1)
	}
	if journal != nil {
		defer journal.Close()
	}

	t, err := openTransport(c)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer t.Close()

	ctl, err := iac.New(cfg, t, journal, logger)
	if err != nil {
		return cli.Exit(err, 1)
	}

	reports, err := fn(ctl)
	if path := c.Path("report"); path != "" && len(reports) > 0 {
		if rerr := iac.WriteReports(path, reports...); rerr != nil && err == nil {
			err = rerr
		}
	}
	if err != nil {
		return cli.Exit(err, 1)
	}

	return nil
}

var globalFlags = []cli.Flag{
	&cli.PathFlag{
		Name:    "config",
		Aliases: []string{"c"},
		EnvVars: []string{"IAC_CONFIG"},
		Usage:   "read settings from a TOML or YAML `FILE`",
	},
	&cli.PathFlag{
		Name:    "journal",
		EnvVars: []string{"IAC_JOURNAL"},
		Usage:   "record deliveries in a database at `FILE`",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "increase verbosity",
	},
	&cli.BoolFlag{
		Name:  "debug",
		Usage: "log every frame attempt",
	},
}

func newApp() *cli.App {
	app := cli.NewApp()

	app.Name = "iac"
	app.Usage = "Image acquisition controller utility"
	app.Version = "0.1.0"

	app.Flags = globalFlags

	app.Commands = []*cli.Command{
		{
			Name:      "send",
			Usage:     "Tile an image and deliver it to the on-board computer",
			ArgsUsage: "FILE",
			Flags:     flags(protocolFlags, rawFlags, transportFlags, deliveryFlags),
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				return withController(c, func(ctl *iac.Controller) ([]*iac.Report, error) {
					r, err := ctl.Send(c.Context, source(c, ctl.Config()), c.Bool("resume"))
					if r == nil {
						return nil, err
					}
					return []*iac.Report{r}, err
				})
			},
		},
		{
			Name:      "scan",
			Usage:     "Deliver every image in a directory",
			ArgsUsage: "DIRECTORY",
			Flags:     flags(protocolFlags, transportFlags, deliveryFlags),
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				return withController(c, func(ctl *iac.Controller) ([]*iac.Report, error) {
					return ctl.Scan(c.Context, c.Args().First(), c.Bool("resume"))
				})
			},
		},
		{
			Name:      "tiles",
			Usage:     "Write the encoded tiles of an image to a directory",
			ArgsUsage: "FILE",
			Flags: flags(protocolFlags, rawFlags, []cli.Flag{
				&cli.PathFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Value:   ".",
					Usage:   "write tiles to `DIRECTORY`",
				},
			}),
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				cfg, err := loadConfig(c)
				if err != nil {
					return cli.Exit(err, 1)
				}

				m, err := source(c, cfg).Acquire(c.Context)
				if err != nil {
					return cli.Exit(err, 1)
				}

				g, err := tile.Tile(m, cfg.Divisions)
				if err != nil {
					return cli.Exit(err, 1)
				}

				if err := os.MkdirAll(c.Path("output"), 0o755); err != nil {
					return cli.Exit(err, 1)
				}

				files, err := iac.WriteTiles(g, c.Path("output"), cfg.TileOptions())
				if err != nil {
					return cli.Exit(err, 1)
				}

				logger := newLogger(c)
				for _, f := range files {
					logger.WithField("file", f).Info("Wrote tile")
				}

				return nil
			},
		},
		{
			Name:  "history",
			Usage: "List recorded deliveries",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "limit",
					Value: 20,
					Usage: "show at most `N` runs",
				},
			},
			Action: func(c *cli.Context) error {
				if c.Path("journal") == "" {
					return cli.Exit("history needs --journal", 1)
				}

				j, err := iac.OpenJournal(c.Path("journal"))
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer j.Close()

				runs, err := j.Runs(c.Int("limit"))
				if err != nil {
					return cli.Exit(err, 1)
				}

				w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "RUN\tSTARTED\tSOURCE\tTILES\tSTATUS")
				for _, r := range runs {
					status := "ok"
					switch {
					case r.Finished.IsZero():
						status = "unfinished"
					case r.Error != "":
						status = r.Error
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n", r.ID, r.Started.Format(time.RFC3339), r.Source, r.Tiles, r.Divisions*r.Divisions, status)
				}
				return w.Flush()
			},
		},
	}

	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
