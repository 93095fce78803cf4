/*
Package iac is a library for delivering images from the image acquisition
controller to the on-board computer.

An image is split into a grid of tiles, each tile is encoded and split into
blocks and every block is framed and sent over a half-duplex link, waiting
for the receiver to acknowledge each frame before moving on. Tiles are sent
in row-major order, one at a time.
*/
package iac

import (
	"github.com/bodgit/iac/link"
	"github.com/sirupsen/logrus"
)

// Controller owns the transport for the duration of one or more runs.
type Controller struct {
	cfg     Config
	driver  *link.Driver
	journal *Journal
	logger  *logrus.Logger
}

// New returns a Controller sending over t. The journal is optional.
func New(cfg Config, t link.Transport, journal *Journal, logger *logrus.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		cfg:     cfg,
		driver:  link.NewDriver(t, cfg.linkConfig(), logger),
		journal: journal,
		logger:  logger,
	}, nil
}

// Config returns the configuration in use.
func (c *Controller) Config() Config {
	return c.cfg
}

// Stats returns the link counters accumulated so far.
func (c *Controller) Stats() link.Stats {
	return c.driver.Stats()
}
