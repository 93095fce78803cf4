/*
Package spi implements a link transport over a Linux spidev character
device.

SPI is full duplex, so every byte written clocks a byte back in. The bytes
read while a frame is written are returned as the response; the receiver
places its acknowledgment in the first of them.
*/
package spi

import "errors"

// DefaultDevice is the spidev node the on-board controller is wired to.
const DefaultDevice = "/dev/spidev1.0"

// Config sets up the bus before any transfer.
type Config struct {
	Mode        uint8
	BitsPerWord uint8
	MaxSpeedHz  uint32
}

// DefaultConfig is SPI mode 0, 8 bits per word at 500 kHz.
var DefaultConfig = Config{
	Mode:        0,
	BitsPerWord: 8,
	MaxSpeedHz:  500000,
}

var errClosed = errors.New("spi: device closed")
