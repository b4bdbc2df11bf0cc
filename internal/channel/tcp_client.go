package channel

import (
	"errors"
	"io"
	"net"

	"github.com/julienstroheker/sockwrench/internal/logging"
)

// TCPClient is an outbound TCP connection
type TCPClient struct {
	stream *tcpStream
	name   string
	logger *logging.Logger
}

func newTCPClient(conn *net.TCPConn, name string, logger *logging.Logger) (*TCPClient, error) {
	stream, err := newTCPStream(conn)
	if err != nil {
		_ = conn.Close()
		return nil, configError("connect", name, err)
	}

	return &TCPClient{
		stream: stream,
		name:   name,
		logger: logger.With(logging.String("channel", name)),
	}, nil
}

// Transport returns TransportTCPClient
func (c *TCPClient) Transport() Transport { return TransportTCPClient }

// Read reads whatever the connection has buffered without blocking.
// A peer that closed its side is reported as ErrEndOfStream.
func (c *TCPClient) Read(p []byte) (int, error) {
	n, err := c.stream.read(p)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, errWouldBlock):
		return 0, nil
	case errors.Is(err, io.EOF):
		return 0, ioError("read", c.name, ErrEndOfStream)
	default:
		return 0, ioError("read", c.name, err)
	}
}

// Write sends all of p
func (c *TCPClient) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := c.stream.write(p)
	if err != nil {
		return n, ioError("write", c.name, err)
	}
	return n, nil
}

// Descriptors returns the connection's descriptor
func (c *TCPClient) Descriptors() []Descriptor {
	return []Descriptor{c.stream.sock.fd}
}

// LocalAddr returns the local end of the connection
func (c *TCPClient) LocalAddr() net.Addr {
	return c.stream.conn.LocalAddr()
}

// Close closes the connection
func (c *TCPClient) Close() error {
	if err := c.stream.close(); err != nil {
		return ioError("close", c.name, err)
	}
	return nil
}

func (c *TCPClient) String() string { return c.name }

func (c *TCPClient) sealed() {}
