package channel

import (
	"errors"
	"net"

	"golang.org/x/sys/unix"

	"github.com/julienstroheker/sockwrench/internal/logging"
)

// UDP is a bound UDP socket. A connected socket ("udpout") exchanges
// datagrams with one fixed remote. An unconnected socket ("udpin") receives
// from anyone and sends to the source of the most recent datagram.
type UDP struct {
	conn       *net.UDPConn
	sock       rawSocket
	connected  bool
	lastSource *net.UDPAddr
	name       string
	logger     *logging.Logger
}

func newUDP(conn *net.UDPConn, connected bool, name string, logger *logging.Logger) (*UDP, error) {
	sock, err := newRawSocket(conn)
	if err != nil {
		_ = conn.Close()
		return nil, configError("bind", name, err)
	}

	return &UDP{
		conn:      conn,
		sock:      sock,
		connected: connected,
		name:      name,
		logger:    logger.With(logging.String("channel", name)),
	}, nil
}

// Transport returns TransportUDP
func (u *UDP) Transport() Transport { return TransportUDP }

// Read receives one datagram without blocking. A datagram larger than p is
// truncated to len(p). An ICMP port-unreachable left over from an earlier
// send is not an error: nothing is received.
func (u *UDP) Read(p []byte) (int, error) {
	n, from, err := u.sock.recvFrom(p)
	switch {
	case err == nil:
	case errors.Is(err, errWouldBlock):
		return 0, nil
	case errors.Is(err, unix.ECONNREFUSED):
		u.logger.Debug("Remote port unreachable", logging.Error(err))
		return 0, nil
	default:
		return 0, ioError("read", u.name, err)
	}

	if !u.connected {
		if source := udpAddrFromSockaddr(from); source != nil {
			if u.lastSource == nil || !u.lastSource.IP.Equal(source.IP) || u.lastSource.Port != source.Port {
				u.logger.Debug("Replying to new datagram source", logging.Stringer("source", source))
			}
			u.lastSource = source
		}
	}

	return n, nil
}

// Write sends p as one datagram. An unconnected socket that has not yet
// received anything has no destination; the datagram is discarded.
func (u *UDP) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var n int
	var err error
	switch {
	case u.connected:
		n, err = u.conn.Write(p)
	case u.lastSource == nil:
		u.logger.Debug("No datagram source yet, discarding bytes", logging.Int("bytes", len(p)))
		return len(p), nil
	default:
		n, err = u.conn.WriteToUDP(p, u.lastSource)
	}

	if errors.Is(err, unix.ECONNREFUSED) {
		u.logger.Debug("Remote port unreachable, datagram lost", logging.Int("bytes", len(p)))
		return len(p), nil
	}
	if err != nil {
		return n, ioError("write", u.name, err)
	}
	return n, nil
}

// Descriptors returns the socket's descriptor
func (u *UDP) Descriptors() []Descriptor {
	return []Descriptor{u.sock.fd}
}

// LocalAddr returns the bound address
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Close closes the socket
func (u *UDP) Close() error {
	if err := u.conn.Close(); err != nil {
		return ioError("close", u.name, err)
	}
	return nil
}

func (u *UDP) String() string { return u.name }

func (u *UDP) sealed() {}
