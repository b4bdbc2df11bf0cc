package channel

import "net"

// tcpStream is a connected TCP socket read with raw non-blocking calls.
// write goes through the net package, which completes partial writes and may
// wait for the remote side; trySend never waits.
type tcpStream struct {
	conn *net.TCPConn
	sock rawSocket
}

func newTCPStream(conn *net.TCPConn) (*tcpStream, error) {
	sock, err := newRawSocket(conn)
	if err != nil {
		return nil, err
	}
	return &tcpStream{conn: conn, sock: sock}, nil
}

func (s *tcpStream) read(p []byte) (int, error) {
	return s.sock.read(p)
}

func (s *tcpStream) write(p []byte) (int, error) {
	return s.conn.Write(p)
}

func (s *tcpStream) trySend(p []byte) (int, error) {
	return s.sock.send(p)
}

func (s *tcpStream) close() error {
	return s.conn.Close()
}
