package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/julienstroheker/sockwrench/internal/logging"
	"github.com/julienstroheker/sockwrench/internal/metrics"
)

const (
	// DefaultPollTimeout bounds each readiness wait
	DefaultPollTimeout = 500 * time.Millisecond
	// DefaultBufferSize is the size of each direction's transfer buffer
	DefaultBufferSize = 2048
)

// Options configures a Session. Zero values select the defaults.
type Options struct {
	PollTimeout time.Duration
	BufferSize  int
	Logger      *logging.Logger
	Metrics     *metrics.Metrics
}

// Stats are the totals of a Session
type Stats struct {
	Iterations uint64
	// Timeouts counts waits that expired with nothing ready
	Timeouts      uint64
	InputToOutput uint64
	OutputToInput uint64
}

// Session pairs two endpoints with one transfer buffer per direction
type Session struct {
	input  Endpoint
	output Endpoint

	inBuf  []byte
	outBuf []byte

	pollTimeout time.Duration
	poller      poller
	stats       Stats

	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewSession creates a Session relaying between input and output
func NewSession(input, output Endpoint, opts Options) *Session {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	return &Session{
		input:       input,
		output:      output,
		inBuf:       make([]byte, opts.BufferSize),
		outBuf:      make([]byte, opts.BufferSize),
		pollTimeout: opts.PollTimeout,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
}

// Stats returns the totals so far
func (s *Session) Stats() Stats {
	return s.stats
}

// Run iterates until ctx is done or an iteration fails. It returns ctx.Err()
// on cancellation and the failing iteration's error otherwise.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("Relay started",
		logging.Stringer("input", s.input),
		logging.Stringer("output", s.output),
		logging.Duration("poll_timeout", s.pollTimeout),
		logging.Int("buffer_size", len(s.inBuf)))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(); err != nil {
			return err
		}
	}
}

// Step runs one iteration: accept, wait, read input then output, write the
// input bytes to output then the output bytes to input.
func (s *Session) Step() error {
	s.stats.Iterations++
	s.metrics.Iteration()

	if err := accept(s.input); err != nil {
		return fmt.Errorf("accept input: %w", err)
	}
	if err := accept(s.output); err != nil {
		return fmt.Errorf("accept output: %w", err)
	}

	split := s.poller.reset(s.input.Descriptors(), s.output.Descriptors())

	ready, err := s.poller.wait(s.pollTimeout)
	if err != nil {
		return err
	}
	if ready == 0 {
		s.stats.Timeouts++
		s.metrics.PollTimeout()
		return nil
	}

	inputReady, err := s.poller.ready(0, split)
	if err != nil {
		return fmt.Errorf("poll input: %w", err)
	}
	outputReady, err := s.poller.ready(split, s.poller.len())
	if err != nil {
		return fmt.Errorf("poll output: %w", err)
	}

	var fromInput, fromOutput int
	if inputReady {
		if fromInput, err = s.input.Read(s.inBuf); err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}
	if outputReady {
		if fromOutput, err = s.output.Read(s.outBuf); err != nil {
			return fmt.Errorf("read output: %w", err)
		}
	}

	if fromInput > 0 {
		n, err := s.output.Write(s.inBuf[:fromInput])
		if err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		s.transferred(metrics.DirectionInputToOutput, n)
		s.stats.InputToOutput += uint64(n)
	}
	if fromOutput > 0 {
		n, err := s.input.Write(s.outBuf[:fromOutput])
		if err != nil {
			return fmt.Errorf("write input: %w", err)
		}
		s.transferred(metrics.DirectionOutputToInput, n)
		s.stats.OutputToInput += uint64(n)
	}

	return nil
}

func (s *Session) transferred(direction string, n int) {
	s.metrics.AddBytes(direction, n)
	if s.logger.Enabled(logging.DebugLevel) {
		s.logger.Debug("Relayed bytes",
			logging.String("direction", direction),
			logging.Int("bytes", n))
	}
}

// accept takes at most one pending connection when e accepts connections
func accept(e Endpoint) error {
	acceptor, ok := e.(Acceptor)
	if !ok {
		return nil
	}
	_, err := acceptor.Accept()
	return err
}

// Run relays between input and output until ctx is done or an error occurs
// and returns the session totals either way.
func Run(ctx context.Context, input, output Endpoint, opts Options) (Stats, error) {
	session := NewSession(input, output, opts)
	err := session.Run(ctx)
	return session.Stats(), err
}
