package channel

import (
	"errors"
	"io"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// errWouldBlock reports that a non-blocking operation had nothing to do.
// It never leaves this package: Read turns it into (0, nil).
var errWouldBlock = errors.New("operation would block")

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}

// rawSocket performs single system calls on a socket owned by the net
// package. The runtime poller keeps ownership of the descriptor; rawSocket
// only borrows it through syscall.RawConn and always returns from its
// callbacks immediately, so no call here ever parks the goroutine.
// Listeners only support Control, so accept goes through it.
type rawSocket struct {
	raw syscall.RawConn
	fd  Descriptor
}

func newRawSocket(conn syscall.Conn) (rawSocket, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return rawSocket{}, err
	}

	var fd Descriptor
	if err := raw.Control(func(s uintptr) {
		fd = Descriptor(s)
	}); err != nil {
		return rawSocket{}, err
	}

	return rawSocket{raw: raw, fd: fd}, nil
}

// read performs one read(2). An orderly shutdown by the remote side is
// reported as io.EOF.
func (s rawSocket) read(p []byte) (int, error) {
	var n int
	var opErr error
	if err := s.raw.Read(func(fd uintptr) bool {
		n, opErr = unix.Read(int(fd), p)
		return true
	}); err != nil {
		return 0, err
	}

	switch {
	case opErr != nil && isWouldBlock(opErr):
		return 0, errWouldBlock
	case opErr != nil:
		return 0, opErr
	case n == 0 && len(p) > 0:
		return 0, io.EOF
	}
	return n, nil
}

// recvFrom performs one recvfrom(2). A zero-length datagram is a valid
// result, not end of stream.
func (s rawSocket) recvFrom(p []byte) (int, unix.Sockaddr, error) {
	var n int
	var from unix.Sockaddr
	var opErr error
	if err := s.raw.Read(func(fd uintptr) bool {
		n, from, opErr = unix.Recvfrom(int(fd), p, 0)
		return true
	}); err != nil {
		return 0, nil, err
	}

	if opErr != nil {
		if isWouldBlock(opErr) {
			return 0, nil, errWouldBlock
		}
		return 0, nil, opErr
	}
	return n, from, nil
}

// accept performs one accept4(2) and returns a non-blocking, close-on-exec
// descriptor for the new connection. A connection that was reset before it
// could be accepted counts as nothing to accept.
func (s rawSocket) accept() (int, error) {
	nfd := -1
	var opErr error
	if err := s.raw.Control(func(fd uintptr) {
		nfd, _, opErr = unix.Accept4(int(fd), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	}); err != nil {
		return -1, err
	}

	if opErr != nil {
		if isWouldBlock(opErr) || errors.Is(opErr, unix.ECONNABORTED) {
			return -1, errWouldBlock
		}
		return -1, opErr
	}
	return nfd, nil
}

// send performs send(2) until p is written or the socket buffer is full, in
// which case it returns the bytes written so far and errWouldBlock.
// MSG_NOSIGNAL turns a write to a reset peer into EPIPE instead of SIGPIPE.
func (s rawSocket) send(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		var n int
		var opErr error
		if err := s.raw.Write(func(fd uintptr) bool {
			n, opErr = unix.SendmsgN(int(fd), p[written:], nil, nil, unix.MSG_NOSIGNAL)
			return true
		}); err != nil {
			return written, err
		}

		switch {
		case errors.Is(opErr, unix.EINTR):
			continue
		case opErr != nil && isWouldBlock(opErr):
			return written, errWouldBlock
		case opErr != nil:
			return written, opErr
		}
		written += n
	}
	return written, nil
}

func udpAddrFromSockaddr(sa unix.Sockaddr) *net.UDPAddr {
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, addr.Addr[:])
		return &net.UDPAddr{IP: ip, Port: addr.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, addr.Addr[:])
		return &net.UDPAddr{IP: ip, Port: addr.Port}
	default:
		return nil
	}
}
