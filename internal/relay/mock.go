package relay

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/julienstroheker/sockwrench/internal/channel"
)

// Journal records endpoint calls in the order they happen. Entries look like
// "input read" or "output write". A nil *Journal records nothing.
type Journal struct {
	entries []string
}

// Entries returns a copy of the recorded calls
func (j *Journal) Entries() []string {
	if j == nil {
		return nil
	}
	return append([]string(nil), j.entries...)
}

func (j *Journal) record(name, op string) {
	if j == nil {
		return
	}
	j.entries = append(j.entries, name+" "+op)
}

// MockEndpoint is an Endpoint backed by a pipe. Bytes passed to Feed become
// readable and make the endpoint's descriptor ready; bytes written by the
// relay are kept in memory. Not safe for concurrent use.
type MockEndpoint struct {
	name    string
	journal *Journal

	reader *os.File
	writer *os.File
	raw    syscall.RawConn
	fd     channel.Descriptor

	written  []byte
	readErr  error
	writeErr error
}

// NewMockEndpoint creates a pipe-backed endpoint. journal may be nil.
func NewMockEndpoint(name string, journal *Journal) (*MockEndpoint, error) {
	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	// SyscallConn keeps the pipe in the non-blocking mode os.Pipe gives it
	raw, err := reader.SyscallConn()
	if err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, err
	}

	var fd channel.Descriptor
	if err := raw.Control(func(f uintptr) { fd = channel.Descriptor(f) }); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, err
	}

	return &MockEndpoint{
		name:    name,
		journal: journal,
		reader:  reader,
		writer:  writer,
		raw:     raw,
		fd:      fd,
	}, nil
}

// Feed makes p available to the next Read
func (m *MockEndpoint) Feed(p []byte) error {
	_, err := m.writer.Write(p)
	return err
}

// EndFeed closes the feeding side; once drained, Read reports end of stream
func (m *MockEndpoint) EndFeed() error {
	return m.writer.Close()
}

// Written returns everything written to the endpoint so far
func (m *MockEndpoint) Written() []byte {
	return append([]byte(nil), m.written...)
}

// FailReads makes every following Read return err
func (m *MockEndpoint) FailReads(err error) {
	m.readErr = err
}

// FailWrites makes every following Write return err
func (m *MockEndpoint) FailWrites(err error) {
	m.writeErr = err
}

// Read returns fed bytes without blocking
func (m *MockEndpoint) Read(p []byte) (int, error) {
	m.journal.record(m.name, "read")
	if m.readErr != nil {
		return 0, m.readErr
	}

	var n int
	var opErr error
	err := m.raw.Read(func(fd uintptr) bool {
		n, opErr = unix.Read(int(fd), p)
		return true
	})
	if err != nil {
		return 0, err
	}
	switch {
	case errors.Is(opErr, unix.EAGAIN):
		return 0, nil
	case opErr != nil:
		return 0, opErr
	case n == 0 && len(p) > 0:
		return 0, fmt.Errorf("%s: %w", m.name, channel.ErrEndOfStream)
	}
	return n, nil
}

// Write records p
func (m *MockEndpoint) Write(p []byte) (int, error) {
	m.journal.record(m.name, "write")
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.written = append(m.written, p...)
	return len(p), nil
}

// Descriptors returns the read end of the pipe
func (m *MockEndpoint) Descriptors() []channel.Descriptor {
	return []channel.Descriptor{m.fd}
}

// Close closes both ends of the pipe
func (m *MockEndpoint) Close() error {
	err := m.reader.Close()
	if cerr := m.writer.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		err = multierr.Append(err, cerr)
	}
	return err
}

func (m *MockEndpoint) String() string {
	return "mock:" + m.name
}

// MockAcceptor is a MockEndpoint that also implements Acceptor
type MockAcceptor struct {
	*MockEndpoint

	accepts   int
	acceptErr error
}

// NewMockAcceptor creates a pipe-backed endpoint that counts Accept calls
func NewMockAcceptor(name string, journal *Journal) (*MockAcceptor, error) {
	endpoint, err := NewMockEndpoint(name, journal)
	if err != nil {
		return nil, err
	}
	return &MockAcceptor{MockEndpoint: endpoint}, nil
}

// Accept counts the call and never yields a peer
func (m *MockAcceptor) Accept() (*channel.Peer, error) {
	m.journal.record(m.name, "accept")
	m.accepts++
	return nil, m.acceptErr
}

// Accepts returns how many times Accept was called
func (m *MockAcceptor) Accepts() int {
	return m.accepts
}

// FailAccepts makes every following Accept return err
func (m *MockAcceptor) FailAccepts(err error) {
	m.acceptErr = err
}

var (
	_ Endpoint = (*MockEndpoint)(nil)
	_ Acceptor = (*MockAcceptor)(nil)
	_ io.Closer = (*MockEndpoint)(nil)
)
