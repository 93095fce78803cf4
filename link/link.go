/*
Package link delivers frames to the on-board controller over a half-duplex
transport, one frame at a time, retrying until each frame is acknowledged.

Every attempt waits a fixed delay, exchanges the frame and inspects the first
byte echoed back by the transport. Anything other than the acknowledgment
byte causes the same frame to be sent again; by default there is no limit on
the number of attempts. A transport error is never retried.
*/
package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Transport exchanges one frame with the receiver. The response is whatever
// the transport read back while the frame was being written; only its first
// byte is used. An error means the device itself failed.
type Transport interface {
	Exchange(frame []byte) ([]byte, error)
}

// TransportFunc adapts an ordinary function to a Transport.
type TransportFunc func([]byte) ([]byte, error)

// Exchange calls f(b).
func (f TransportFunc) Exchange(b []byte) ([]byte, error) {
	return f(b)
}

var (
	// ErrTransportFailure is matched by any TransportError.
	ErrTransportFailure = errors.New("link: transport failure")
	// ErrAttemptsExhausted is returned when Policy.MaxAttempts is reached.
	ErrAttemptsExhausted = errors.New("link: attempts exhausted")
	// ErrDeadlineExceeded is returned when Policy.Deadline has passed.
	ErrDeadlineExceeded = errors.New("link: deadline exceeded")
)

// TransportError records the block being sent when the transport failed.
type TransportError struct {
	Tile    byte
	Block   uint16
	Attempt int
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("link: transport failed sending tile %d block %d (attempt %d): %v", e.Tile, e.Block, e.Attempt, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransportFailure.
func (e *TransportError) Is(target error) bool { return target == ErrTransportFailure }

// Policy bounds the number of attempts made for a single frame. The zero
// value retries forever.
type Policy struct {
	// MaxAttempts is the number of exchanges allowed per frame, zero for no
	// limit.
	MaxAttempts int
	// Deadline is how long a single frame may take in total, zero for no
	// limit. No exchange is started once it has passed, so a frame overruns
	// it by at most one exchange.
	Deadline time.Duration
}

// Config holds the protocol constants.
type Config struct {
	// Ack is the response byte signalling the frame was accepted.
	Ack byte
	// Delay is slept before every attempt.
	Delay time.Duration
	Policy
}

// DefaultConfig matches the on-board controller.
var DefaultConfig = Config{
	Ack:   0x55,
	Delay: 500 * time.Millisecond,
}

// Stats counts driver activity since it was created.
type Stats struct {
	Frames   int
	Attempts int
	Retries  int
}

// Driver sends blocks reliably over a Transport. It is not safe for
// concurrent use; the transport must not be shared while a tile is being
// sent.
type Driver struct {
	t      Transport
	cfg    Config
	logger *logrus.Logger
	stats  Stats
}

// NewDriver returns a Driver using t.
func NewDriver(t Transport, cfg Config, logger *logrus.Logger) *Driver {
	return &Driver{
		t:      t,
		cfg:    cfg,
		logger: logger,
	}
}

// Stats returns the counters accumulated so far.
func (d *Driver) Stats() Stats {
	return d.stats
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
