//go:build !linux

package spi

import "errors"

var errUnsupported = errors.New("spi: spidev is only available on Linux")

// Device is an open spidev node.
type Device struct{}

// Open always fails on this platform.
func Open(path string, cfg Config) (*Device, error) {
	return nil, errUnsupported
}

// Exchange always fails on this platform.
func (d *Device) Exchange(b []byte) ([]byte, error) {
	return nil, errUnsupported
}

// Close always fails on this platform.
func (d *Device) Close() error {
	return errClosed
}
