package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bodgit/iac/frame"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted replies with the given responses in turn, repeating the last one
// once the script runs out.
type scripted struct {
	responses [][]byte
	errs      []error
	frames    [][]byte
}

func (s *scripted) Exchange(b []byte) ([]byte, error) {
	i := len(s.frames)
	s.frames = append(s.frames, append([]byte(nil), b...))
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func testConfig() Config {
	cfg := DefaultConfig
	cfg.Delay = 0
	return cfg
}

func newDriver(t Transport, cfg Config) (*Driver, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewDriver(t, cfg, logger), hook
}

func TestSendRetriesUntilAck(t *testing.T) {
	tr := &scripted{responses: [][]byte{{0x00, 0x55}, {0xaa}, {0x55, 0x00}}}
	d, _ := newDriver(tr, testConfig())

	require.NoError(t, d.Send(context.Background(), 37, 1, []byte{1, 2, 3}, 8))

	require.Len(t, tr.frames, 3)
	want := frame.Build(37, 1, []byte{1, 2, 3}, 8)
	for _, f := range tr.frames {
		assert.Equal(t, want, f)
	}
	assert.Equal(t, Stats{Frames: 1, Attempts: 3, Retries: 2}, d.Stats())
}

func TestSendEmptyResponseIsRetried(t *testing.T) {
	tr := &scripted{responses: [][]byte{nil, {}, {0x55}}}
	d, _ := newDriver(tr, testConfig())

	require.NoError(t, d.Send(context.Background(), 0, 0, []byte{0, 0}, 0))
	assert.Len(t, tr.frames, 3)
}

func TestSendTransportFailure(t *testing.T) {
	boom := errors.New("ioctl failed")
	tr := &scripted{responses: [][]byte{{0x55}}, errs: []error{boom}}
	d, _ := newDriver(tr, testConfig())

	err := d.Send(context.Background(), 5, 2, []byte{9}, 4)
	require.Error(t, err)
	assert.Len(t, tr.frames, 1)

	assert.True(t, errors.Is(err, ErrTransportFailure))
	assert.True(t, errors.Is(err, boom))

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, byte(5), te.Tile)
	assert.Equal(t, uint16(2), te.Block)
	assert.Equal(t, 1, te.Attempt)
	assert.Equal(t, Stats{Attempts: 1}, d.Stats())
}

func TestSendTransportFailureAfterNak(t *testing.T) {
	boom := errors.New("device gone")
	tr := &scripted{responses: [][]byte{{0x00}}, errs: []error{nil, boom}}
	d, _ := newDriver(tr, testConfig())

	err := d.Send(context.Background(), 1, 1, nil, 0)
	assert.True(t, errors.Is(err, ErrTransportFailure))
	assert.Len(t, tr.frames, 2)
}

func TestSendMaxAttempts(t *testing.T) {
	tr := &scripted{responses: [][]byte{{0x00}}}
	cfg := testConfig()
	cfg.MaxAttempts = 4
	d, _ := newDriver(tr, cfg)

	err := d.Send(context.Background(), 1, 1, nil, 0)
	assert.True(t, errors.Is(err, ErrAttemptsExhausted))
	assert.False(t, errors.Is(err, ErrTransportFailure))
	assert.Len(t, tr.frames, 4)
}

func TestSendDeadline(t *testing.T) {
	tr := &scripted{responses: [][]byte{{0x00}}}
	cfg := testConfig()
	cfg.Delay = time.Millisecond
	cfg.Deadline = 20 * time.Millisecond
	d, _ := newDriver(tr, cfg)

	err := d.Send(context.Background(), 1, 1, nil, 0)
	assert.True(t, errors.Is(err, ErrDeadlineExceeded))
	assert.NotEmpty(t, tr.frames)
}

func TestSendDeadlineAfterDelay(t *testing.T) {
	cfg := testConfig()
	cfg.Delay = 30 * time.Millisecond
	cfg.Deadline = 45 * time.Millisecond

	var started []time.Duration
	start := time.Now()
	d, _ := newDriver(TransportFunc(func([]byte) ([]byte, error) {
		started = append(started, time.Since(start))
		return []byte{0x00}, nil
	}), cfg)

	err := d.Send(context.Background(), 1, 1, nil, 0)
	assert.True(t, errors.Is(err, ErrDeadlineExceeded))
	assert.LessOrEqual(t, len(started), 1)
	for _, s := range started {
		assert.Less(t, s, cfg.Deadline)
	}
}

func TestSendCustomAck(t *testing.T) {
	tr := &scripted{responses: [][]byte{{0x55}, {0x06}}}
	cfg := testConfig()
	cfg.Ack = 0x06
	d, _ := newDriver(tr, cfg)

	require.NoError(t, d.Send(context.Background(), 1, 1, nil, 0))
	assert.Len(t, tr.frames, 2)
}

func TestSendContextCancelled(t *testing.T) {
	tr := &scripted{responses: [][]byte{{0x00}}}
	cfg := testConfig()
	cfg.Delay = time.Hour
	d, _ := newDriver(tr, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Send(ctx, 1, 1, nil, 0)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, tr.frames)
}

func TestSendDelay(t *testing.T) {
	tr := &scripted{responses: [][]byte{{0x00}, {0x55}}}
	cfg := testConfig()
	cfg.Delay = 10 * time.Millisecond
	d, _ := newDriver(tr, cfg)

	start := time.Now()
	require.NoError(t, d.Send(context.Background(), 1, 1, nil, 0))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSendLogsStates(t *testing.T) {
	tr := &scripted{responses: [][]byte{{0x01}, {0x55}}}
	d, hook := newDriver(tr, testConfig())

	require.NoError(t, d.Send(context.Background(), 3, 4, nil, 0))

	var states []State
	for _, e := range hook.AllEntries() {
		if s, ok := e.Data["state"].(State); ok {
			states = append(states, s)
		}
	}
	assert.Equal(t, []State{Sending, AwaitingAck, Sending, AwaitingAck, Acked}, states)
	assert.Equal(t, byte(3), hook.LastEntry().Data["tile"])
}

func TestTransportFunc(t *testing.T) {
	var got []byte
	tr := TransportFunc(func(b []byte) ([]byte, error) {
		got = b
		return []byte{0x55}, nil
	})
	d, _ := newDriver(tr, testConfig())

	require.NoError(t, d.Send(context.Background(), 0, 0, []byte{0x00, 0x01}, 0))
	assert.Equal(t, frame.Metadata(0, 1), got)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting-ack", AwaitingAck.String())
	assert.Equal(t, "State(42)", State(42).String())
}
