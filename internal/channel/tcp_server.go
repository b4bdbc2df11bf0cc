package channel

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/julienstroheker/sockwrench/internal/logging"
)

// errPeerNotReading is the failure recorded for a peer whose send buffer is
// full during a broadcast.
var errPeerNotReading = errors.New("peer is not reading: send buffer full")

// PeerEventType says what happened to a TCPServer peer
type PeerEventType int

const (
	// PeerAccepted is reported after a peer is appended to the peer list
	PeerAccepted PeerEventType = iota + 1
	// PeerDropped is reported after a peer is closed and removed
	PeerDropped
)

// String returns the string representation of a PeerEventType
func (t PeerEventType) String() string {
	switch t {
	case PeerAccepted:
		return "accepted"
	case PeerDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// PeerEvent describes a change to a TCPServer's peer list
type PeerEvent struct {
	Type PeerEventType
	Peer *Peer

	// Err is the failure that caused a drop. It matches ErrEndOfStream when
	// the peer disconnected cleanly. Nil for PeerAccepted.
	Err error

	// Peers is the number of connected peers after the change
	Peers int
}

// PeerHook observes peer list changes. It runs on the relay goroutine and
// must not call back into the TCPServer.
type PeerHook func(PeerEvent)

// Peer is one accepted connection of a TCPServer
type Peer struct {
	ID          uuid.UUID
	RemoteAddr  net.Addr
	ConnectedAt time.Time

	stream  *tcpStream
	failure error
}

func (p *Peer) String() string {
	return fmt.Sprintf("%s@%s", p.ID, p.RemoteAddr)
}

// TCPServer is a TCP listener together with the peers it has accepted.
// Peers are kept in connection order. A peer whose read or write fails, or
// that disconnects, is closed and removed; the server itself keeps running.
type TCPServer struct {
	listener *net.TCPListener
	sock     rawSocket
	peers    []*Peer
	name     string
	logger   *logging.Logger
	hook     PeerHook
}

func newTCPServer(listener *net.TCPListener, name string, logger *logging.Logger, hook PeerHook) (*TCPServer, error) {
	sock, err := newRawSocket(listener)
	if err != nil {
		_ = listener.Close()
		return nil, configError("listen", name, err)
	}

	return &TCPServer{
		listener: listener,
		sock:     sock,
		name:     name,
		logger:   logger.With(logging.String("channel", name)),
		hook:     hook,
	}, nil
}

// Transport returns TransportTCPServer
func (s *TCPServer) Transport() Transport { return TransportTCPServer }

// Accept takes at most one pending connection off the listener without
// blocking. It returns (nil, nil) when no connection is pending. Any other
// failure means the listener is unusable.
func (s *TCPServer) Accept() (*Peer, error) {
	nfd, err := s.sock.accept()
	if errors.Is(err, errWouldBlock) {
		return nil, nil
	}
	if err != nil {
		return nil, ioError("accept", s.name, err)
	}

	// FileConn duplicates the descriptor and hands the copy to the runtime
	// poller, so the original is closed either way.
	file := os.NewFile(uintptr(nfd), "tcp-peer")
	conn, err := net.FileConn(file)
	_ = file.Close()
	if err != nil {
		return nil, ioError("accept", s.name, err)
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		_ = conn.Close()
		return nil, ioError("accept", s.name, fmt.Errorf("accepted %T, want *net.TCPConn", conn))
	}

	stream, err := newTCPStream(tcpConn)
	if err != nil {
		_ = tcpConn.Close()
		return nil, ioError("accept", s.name, err)
	}

	peer := &Peer{
		ID:          uuid.New(),
		RemoteAddr:  tcpConn.RemoteAddr(),
		ConnectedAt: time.Now(),
		stream:      stream,
	}
	s.peers = append(s.peers, peer)

	s.logger.Info("Peer connected",
		logging.String("peer_id", peer.ID.String()),
		logging.Stringer("remote_addr", peer.RemoteAddr),
		logging.Int("peers", len(s.peers)))
	s.notify(PeerEvent{Type: PeerAccepted, Peer: peer, Peers: len(s.peers)})

	return peer, nil
}

// Read reads from every peer in connection order into successive free space
// of p and returns the total. Bytes of different peers are concatenated
// without markers. Peers with nothing buffered contribute zero bytes; peers
// that fail or disconnect are dropped. Read itself never fails.
func (s *TCPServer) Read(p []byte) (int, error) {
	total := 0
	for _, peer := range s.peers {
		if total == len(p) {
			break
		}

		n, err := peer.stream.read(p[total:])
		switch {
		case err == nil:
			total += n
		case errors.Is(err, errWouldBlock):
		case errors.Is(err, io.EOF):
			peer.failure = ErrEndOfStream
		default:
			peer.failure = err
		}
	}

	s.prune()
	return total, nil
}

// Write broadcasts all of p to every peer in connection order. Peers that
// fail the write, or whose send buffer cannot take all of p, are dropped.
// Write never waits for a peer. With no peers the bytes are discarded.
func (s *TCPServer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if len(s.peers) == 0 {
		s.logger.Debug("No peers connected, discarding bytes", logging.Int("bytes", len(p)))
		return len(p), nil
	}

	for _, peer := range s.peers {
		_, err := peer.stream.trySend(p)
		switch {
		case err == nil:
		case errors.Is(err, errWouldBlock):
			peer.failure = errPeerNotReading
		default:
			peer.failure = err
		}
	}

	s.prune()
	return len(p), nil
}

// Descriptors returns one descriptor per connected peer. The listening
// socket is not included: Accept is polled separately.
func (s *TCPServer) Descriptors() []Descriptor {
	descriptors := make([]Descriptor, 0, len(s.peers))
	for _, peer := range s.peers {
		descriptors = append(descriptors, peer.stream.sock.fd)
	}
	return descriptors
}

// Peers returns the connected peers in connection order
func (s *TCPServer) Peers() []*Peer {
	return append([]*Peer(nil), s.peers...)
}

// PeerCount returns the number of connected peers
func (s *TCPServer) PeerCount() int {
	return len(s.peers)
}

// Addr returns the listening address
func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Close closes every peer and then the listener
func (s *TCPServer) Close() error {
	var err error
	for _, peer := range s.peers {
		err = multierr.Append(err, peer.stream.close())
	}
	s.peers = nil
	err = multierr.Append(err, s.listener.Close())

	if err != nil {
		return ioError("close", s.name, err)
	}
	return nil
}

func (s *TCPServer) String() string { return s.name }

func (s *TCPServer) sealed() {}

// prune removes failed peers once a pass over the list is complete, so the
// list is never modified while it is being iterated.
func (s *TCPServer) prune() {
	kept := s.peers[:0]
	var dropped []*Peer
	for _, peer := range s.peers {
		if peer.failure == nil {
			kept = append(kept, peer)
		} else {
			dropped = append(dropped, peer)
		}
	}
	if len(dropped) == 0 {
		return
	}

	clear(s.peers[len(kept):])
	s.peers = kept

	for _, peer := range dropped {
		s.drop(peer)
	}
}

func (s *TCPServer) drop(peer *Peer) {
	closeErr := peer.stream.close()

	fields := []logging.Field{
		logging.String("peer_id", peer.ID.String()),
		logging.Stringer("remote_addr", peer.RemoteAddr),
		logging.Duration("connected_for", time.Since(peer.ConnectedAt).Round(time.Millisecond)),
		logging.Int("peers", len(s.peers)),
	}
	if errors.Is(peer.failure, ErrEndOfStream) {
		s.logger.Info("Peer disconnected", fields...)
	} else {
		s.logger.Warn("Dropping failed peer", append(fields, logging.Error(peer.failure))...)
	}
	if closeErr != nil {
		s.logger.Debug("Closing dropped peer failed",
			logging.String("peer_id", peer.ID.String()),
			logging.Error(closeErr))
	}

	s.notify(PeerEvent{Type: PeerDropped, Peer: peer, Err: peer.failure, Peers: len(s.peers)})
}

func (s *TCPServer) notify(event PeerEvent) {
	if s.hook != nil {
		s.hook(event)
	}
}
