/*
Package uart implements a link transport over a serial port.

Unlike SPI nothing is clocked back while the frame is written, so after the
frame has been written a single acknowledgment byte is read with a timeout.
Timing out is not an error; it yields an empty response which the link
treats like any other negative acknowledgment.
*/
package uart

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Config sets up the serial port.
type Config struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// DefaultConfig is 115200 baud 8N1 with a two second acknowledgment
// timeout.
var DefaultConfig = Config{
	BaudRate:    115200,
	ReadTimeout: 2 * time.Second,
}

var errClosed = errors.New("uart: port closed")

type resetter interface {
	ResetInputBuffer() error
}

// Port is an open serial port.
type Port struct {
	rw io.ReadWriteCloser
}

// Open opens and configures the named serial port.
func Open(name string, cfg Config) (*Port, error) {
	p, err := serial.Open(name, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("uart: open %s: %w", name, err)
	}
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("uart: set read timeout: %w", err)
	}
	return New(p), nil
}

// New wraps an already open port. If rw has a ResetInputBuffer method it is
// called before every frame so stale bytes are not taken as an
// acknowledgment.
func New(rw io.ReadWriteCloser) *Port {
	return &Port{rw: rw}
}

// Exchange writes b and returns at most one byte read back.
func (p *Port) Exchange(b []byte) ([]byte, error) {
	if p.rw == nil {
		return nil, errClosed
	}

	if r, ok := p.rw.(resetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return nil, fmt.Errorf("uart: reset input: %w", err)
		}
	}

	if _, err := p.rw.Write(b); err != nil {
		return nil, fmt.Errorf("uart: write: %w", err)
	}

	var ack [1]byte
	n, err := p.rw.Read(ack[:])
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("uart: read: %w", err)
	}

	return ack[:n], nil
}

// Close closes the port.
func (p *Port) Close() error {
	if p.rw == nil {
		return errClosed
	}
	err := p.rw.Close()
	p.rw = nil
	return err
}
