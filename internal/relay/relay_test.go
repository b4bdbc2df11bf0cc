package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julienstroheker/sockwrench/internal/channel"
	"github.com/julienstroheker/sockwrench/internal/metrics"
)

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession(newMock(t, "input", nil), newMock(t, "output", nil), Options{})

	assert.Equal(t, DefaultPollTimeout, s.pollTimeout)
	assert.Len(t, s.inBuf, DefaultBufferSize)
	assert.Len(t, s.outBuf, DefaultBufferSize)
}

func TestSession_StepOrder(t *testing.T) {
	journal := &Journal{}
	input := newMockAcceptor(t, "input", journal)
	output := newMockAcceptor(t, "output", journal)
	require.NoError(t, input.Feed([]byte("to output")))
	require.NoError(t, output.Feed([]byte("to input")))

	s := NewSession(input, output, Options{PollTimeout: time.Second})
	require.NoError(t, s.Step())

	assert.Equal(t, []string{
		"input accept",
		"output accept",
		"input read",
		"output read",
		"output write",
		"input write",
	}, journal.Entries())
	assert.Equal(t, "to output", string(output.Written()))
	assert.Equal(t, "to input", string(input.Written()))

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Iterations)
	assert.Equal(t, uint64(0), stats.Timeouts)
	assert.Equal(t, uint64(len("to output")), stats.InputToOutput)
	assert.Equal(t, uint64(len("to input")), stats.OutputToInput)
}

func TestSession_OnlyReadyGroupIsRead(t *testing.T) {
	journal := &Journal{}
	input := newMock(t, "input", journal)
	output := newMock(t, "output", journal)
	require.NoError(t, input.Feed([]byte("one way")))

	s := NewSession(input, output, Options{PollTimeout: time.Second})
	require.NoError(t, s.Step())

	// Output had nothing to read, so nothing was written back to input.
	assert.Equal(t, []string{"input read", "output write"}, journal.Entries())
	assert.Empty(t, input.Written())
	assert.Equal(t, "one way", string(output.Written()))
}

func TestSession_ReadLargerThanBufferTakesSeveralSteps(t *testing.T) {
	input := newMock(t, "input", nil)
	output := newMock(t, "output", nil)
	payload := []byte("0123456789abcdef")
	require.NoError(t, input.Feed(payload))

	s := NewSession(input, output, Options{PollTimeout: time.Second, BufferSize: 4})
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Step())
	}

	assert.Equal(t, payload, output.Written())
	assert.Equal(t, uint64(len(payload)), s.Stats().InputToOutput)
}

func TestSession_TimeoutWithNothingReady(t *testing.T) {
	journal := &Journal{}
	input := newMock(t, "input", journal)
	output := newMock(t, "output", journal)
	m := metrics.New()

	s := NewSession(input, output, Options{PollTimeout: 50 * time.Millisecond, Metrics: m})

	start := time.Now()
	require.NoError(t, s.Step())
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)

	assert.Empty(t, journal.Entries())
	assert.Equal(t, uint64(1), s.Stats().Timeouts)
}

func TestSession_EmptyDescriptorSetStillWaits(t *testing.T) {
	input, err := channel.OpenString("tcpin:127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = input.Close() })
	output, err := channel.OpenString("tcpin:127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = output.Close() })

	s := NewSession(input, output, Options{PollTimeout: 50 * time.Millisecond})

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Step())
	}
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
	assert.Equal(t, uint64(3), s.Stats().Timeouts)
}

func TestSession_IdleIterationRateFollowsPollTimeout(t *testing.T) {
	input := newMock(t, "input", nil)
	output := newMock(t, "output", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stats, err := Run(ctx, input, output, Options{PollTimeout: 100 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// About ten waits fit in one second; allow scheduling slack.
	assert.GreaterOrEqual(t, stats.Iterations, uint64(8))
	assert.LessOrEqual(t, stats.Iterations, uint64(11))
	assert.Equal(t, stats.Iterations, stats.Timeouts)
}

func TestSession_ReadErrorIsFatal(t *testing.T) {
	input := newMock(t, "input", nil)
	output := newMock(t, "output", nil)
	failure := errors.New("boom")
	require.NoError(t, input.Feed([]byte("x")))
	input.FailReads(failure)

	err := NewSession(input, output, Options{PollTimeout: time.Second}).Step()
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.Contains(t, err.Error(), "read input")
}

func TestSession_WriteErrorIsFatal(t *testing.T) {
	input := newMock(t, "input", nil)
	output := newMock(t, "output", nil)
	failure := errors.New("boom")
	require.NoError(t, output.Feed([]byte("x")))
	input.FailWrites(failure)

	err := NewSession(input, output, Options{PollTimeout: time.Second}).Step()
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.Contains(t, err.Error(), "write input")
}

func TestSession_AcceptErrorIsFatal(t *testing.T) {
	input := newMock(t, "input", nil)
	output := newMockAcceptor(t, "output", nil)
	failure := errors.New("listener gone")
	output.FailAccepts(failure)

	err := NewSession(input, output, Options{PollTimeout: time.Second}).Step()
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.Contains(t, err.Error(), "accept output")
}

func TestSession_ClosedDescriptorIsFatal(t *testing.T) {
	input := newMock(t, "input", nil)
	output := newMock(t, "output", nil)
	s := NewSession(input, output, Options{PollTimeout: time.Second})

	// Poll reports POLLNVAL for the closed read end.
	require.NoError(t, input.reader.Close())

	err := s.Step()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll input")
}

func TestSession_EndOfStreamEndsRun(t *testing.T) {
	input := newMock(t, "input", nil)
	output := newMock(t, "output", nil)
	require.NoError(t, input.Feed([]byte("bye")))
	require.NoError(t, input.EndFeed())

	stats, err := Run(context.Background(), input, output, Options{PollTimeout: time.Second})
	assert.ErrorIs(t, err, channel.ErrEndOfStream)
	assert.Equal(t, "bye", string(output.Written()))
	assert.Equal(t, uint64(3), stats.InputToOutput)
}

func TestRun_CancelledContext(t *testing.T) {
	input := newMock(t, "input", nil)
	output := newMock(t, "output", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := Run(ctx, input, output, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), stats.Iterations)
}

func TestPollMillis(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Microsecond, 1},
		{time.Millisecond, 1},
		{1500 * time.Microsecond, 2},
		{500 * time.Millisecond, 500},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, pollMillis(tt.in))
		})
	}
}
