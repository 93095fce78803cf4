package link

import (
	"context"
	"fmt"
	"time"

	"github.com/bodgit/iac/frame"
	"github.com/sirupsen/logrus"
)

// State is a step in sending one frame.
type State int

// Send moves Building -> Sending -> AwaitingAck, then back to Sending on a
// negative acknowledgment or on to Acked. HardFailed and Exhausted are the
// two failure states.
const (
	Building State = iota
	Sending
	AwaitingAck
	Acked
	HardFailed
	Exhausted
)

func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case Sending:
		return "sending"
	case AwaitingAck:
		return "awaiting-ack"
	case Acked:
		return "acked"
	case HardFailed:
		return "hard-failed"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Send frames the payload and exchanges it until the receiver acknowledges
// it. padTo is passed to frame.Build.
func (d *Driver) Send(ctx context.Context, tile byte, index uint16, payload []byte, padTo int) error {
	logger := d.logger.WithFields(logrus.Fields{
		"tile":  tile,
		"block": index,
	})

	var (
		b        []byte
		response []byte
		err      error
		attempt  int
		start    = time.Now()
		state    = Building
	)

	transition := func(next State) {
		logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"from":    state,
			"state":   next,
		}).Debug("Link state change")
		state = next
	}

	for {
		switch state {
		case Building:
			b = frame.Build(tile, index, payload, padTo)
			transition(Sending)
		case Sending:
			if d.cfg.MaxAttempts > 0 && attempt >= d.cfg.MaxAttempts {
				err = ErrAttemptsExhausted
				transition(Exhausted)
				continue
			}
			if d.cfg.Deadline > 0 && time.Since(start) >= d.cfg.Deadline {
				err = ErrDeadlineExceeded
				transition(Exhausted)
				continue
			}
			if err := sleep(ctx, d.cfg.Delay); err != nil {
				return fmt.Errorf("link: tile %d block %d: %w", tile, index, err)
			}
			if d.cfg.Deadline > 0 && time.Since(start) >= d.cfg.Deadline {
				err = ErrDeadlineExceeded
				transition(Exhausted)
				continue
			}
			attempt++
			d.stats.Attempts++
			if response, err = d.t.Exchange(b); err != nil {
				transition(HardFailed)
				continue
			}
			transition(AwaitingAck)
		case AwaitingAck:
			if len(response) > 0 && response[0] == d.cfg.Ack {
				transition(Acked)
				continue
			}
			d.stats.Retries++
			if len(response) > 0 {
				logger.WithField("attempt", attempt).Debugf("Negative acknowledgment 0x%02x", response[0])
			} else {
				logger.WithField("attempt", attempt).Debug("Empty acknowledgment")
			}
			transition(Sending)
		case Acked:
			d.stats.Frames++
			return nil
		case HardFailed:
			return &TransportError{
				Tile:    tile,
				Block:   index,
				Attempt: attempt,
				Err:     err,
			}
		case Exhausted:
			return fmt.Errorf("link: tile %d block %d: %w after %d attempts", tile, index, err, attempt)
		}
	}
}
