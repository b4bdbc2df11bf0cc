package channel

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openServer(t *testing.T, opts ...Option) *TCPServer {
	t.Helper()
	return mustOpen(t, "tcpin:127.0.0.1:0", opts...).(*TCPServer)
}

// connectPeers dials n clients one after another and accepts each before
// dialing the next, so connection order is deterministic.
func connectPeers(t *testing.T, server *TCPServer, n int) []net.Conn {
	t.Helper()

	clients := make([]net.Conn, 0, n)
	for i := 0; i < n; i++ {
		conn, err := net.Dial("tcp", server.Addr().String())
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		clients = append(clients, conn)

		want := i + 1
		require.Eventually(t, func() bool {
			_, err := server.Accept()
			require.NoError(t, err)
			return server.PeerCount() == want
		}, 5*time.Second, 10*time.Millisecond)
	}
	return clients
}

func TestTCPServer_AcceptWithNothingPending(t *testing.T) {
	server := openServer(t)

	peer, err := server.Accept()
	require.NoError(t, err)
	assert.Nil(t, peer)
	assert.Equal(t, 0, server.PeerCount())
	assert.Empty(t, server.Descriptors())
}

func TestTCPServer_PeersInConnectionOrder(t *testing.T) {
	server := openServer(t)
	clients := connectPeers(t, server, 3)

	peers := server.Peers()
	require.Len(t, peers, 3)
	assert.Len(t, server.Descriptors(), 3)

	for i, peer := range peers {
		assert.Equal(t, clients[i].LocalAddr().String(), peer.RemoteAddr.String())
		assert.NotEqual(t, [16]byte{}, [16]byte(peer.ID))
	}
}

func TestTCPServer_BroadcastToEveryPeer(t *testing.T) {
	server := openServer(t)
	clients := connectPeers(t, server, 3)

	payload := []byte("fan-out payload")
	n, err := server.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	for i, client := range clients {
		require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
		got := make([]byte, len(payload))
		_, err := io.ReadFull(client, got)
		require.NoError(t, err, "peer %d", i)
		assert.Equal(t, payload, got, "peer %d", i)
	}
}

func TestTCPServer_WriteWithoutPeersIsDiscarded(t *testing.T) {
	server := openServer(t)

	n, err := server.Write([]byte("nobody listening"))
	require.NoError(t, err)
	assert.Equal(t, len("nobody listening"), n)
}

func TestTCPServer_ReadWouldBlockKeepsPeers(t *testing.T) {
	server := openServer(t)
	connectPeers(t, server, 2)

	n, err := server.Read(make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2, server.PeerCount())
}

func TestTCPServer_ReadMergesPeers(t *testing.T) {
	server := openServer(t)
	clients := connectPeers(t, server, 2)

	_, err := clients[0].Write([]byte("aaaa"))
	require.NoError(t, err)
	_, err = clients[1].Write([]byte("bb"))
	require.NoError(t, err)

	var received []byte
	buf := make([]byte, 64)
	require.Eventually(t, func() bool {
		n, err := server.Read(buf)
		require.NoError(t, err)
		received = append(received, buf[:n]...)
		return len(received) == 6
	}, 5*time.Second, 10*time.Millisecond)

	// Connection order decides the merge order when both are already queued.
	assert.ElementsMatch(t, []byte("aaaabb"), received)
}

func TestTCPServer_ReadStopsWhenBufferFull(t *testing.T) {
	server := openServer(t)
	clients := connectPeers(t, server, 2)

	_, err := clients[0].Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = clients[1].Write([]byte("abc"))
	require.NoError(t, err)

	var received []byte
	buf := make([]byte, 4)
	require.Eventually(t, func() bool {
		n, err := server.Read(buf)
		require.NoError(t, err)
		require.LessOrEqual(t, n, len(buf))
		received = append(received, buf[:n]...)
		return len(received) == 13
	}, 5*time.Second, 10*time.Millisecond)

	assert.ElementsMatch(t, []byte("0123456789abc"), received)
	assert.Equal(t, 2, server.PeerCount())
}

func TestTCPServer_DisconnectedPeerIsDropped(t *testing.T) {
	var events []PeerEvent
	server := openServer(t, WithPeerHook(func(event PeerEvent) {
		events = append(events, event)
	}))
	clients := connectPeers(t, server, 2)
	first := server.Peers()[0]

	require.NoError(t, clients[0].Close())

	require.Eventually(t, func() bool {
		_, err := server.Read(make([]byte, 64))
		require.NoError(t, err)
		return server.PeerCount() == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Len(t, events, 3)
	assert.Equal(t, PeerAccepted, events[0].Type)
	assert.Equal(t, PeerAccepted, events[1].Type)
	assert.Equal(t, PeerDropped, events[2].Type)
	assert.Equal(t, first.ID, events[2].Peer.ID)
	assert.ErrorIs(t, events[2].Err, ErrEndOfStream)
	assert.Equal(t, 1, events[2].Peers)

	// The surviving peer still receives broadcasts.
	_, err := server.Write([]byte("still here"))
	require.NoError(t, err)
	require.NoError(t, clients[1].SetReadDeadline(time.Now().Add(5*time.Second)))
	got := make([]byte, len("still here"))
	_, err = io.ReadFull(clients[1], got)
	require.NoError(t, err)
	assert.Equal(t, "still here", string(got))
}

func TestTCPServer_ResetPeerIsDroppedOnWrite(t *testing.T) {
	var events []PeerEvent
	server := openServer(t, WithPeerHook(func(event PeerEvent) {
		events = append(events, event)
	}))
	clients := connectPeers(t, server, 1)

	require.NoError(t, clients[0].(*net.TCPConn).SetLinger(0))
	require.NoError(t, clients[0].Close())

	// The first write after the reset can still be accepted by the kernel.
	payload := []byte("after reset")
	require.Eventually(t, func() bool {
		n, err := server.Write(payload)
		require.NoError(t, err)
		require.Equal(t, len(payload), n)
		return server.PeerCount() == 0
	}, 5*time.Second, 10*time.Millisecond)

	require.Len(t, events, 2)
	assert.Equal(t, PeerDropped, events[1].Type)
	assert.Error(t, events[1].Err)
	assert.NotErrorIs(t, events[1].Err, ErrEndOfStream)
	assert.Equal(t, 0, events[1].Peers)
}

func TestTCPServer_PeerThatStopsReadingIsDropped(t *testing.T) {
	var events []PeerEvent
	server := openServer(t, WithPeerHook(func(event PeerEvent) {
		events = append(events, event)
	}))
	clients := connectPeers(t, server, 2)
	stalled := server.Peers()[0]

	// The second peer keeps reading, the first never does.
	go func() { _, _ = io.Copy(io.Discard, clients[1]) }()

	payload := make([]byte, 2048)
	require.Eventually(t, func() bool {
		for i := 0; i < 64; i++ {
			start := time.Now()
			n, err := server.Write(payload)
			require.NoError(t, err)
			require.Equal(t, len(payload), n)
			require.Less(t, time.Since(start), time.Second, "write waited for a peer")
		}
		return server.PeerCount() == 1
	}, 10*time.Second, 10*time.Millisecond)

	require.Len(t, events, 3)
	assert.Equal(t, PeerDropped, events[2].Type)
	assert.Equal(t, stalled.ID, events[2].Peer.ID)
	assert.ErrorIs(t, events[2].Err, errPeerNotReading)
	assert.NotEqual(t, stalled.ID, server.Peers()[0].ID)
}

func TestTCPServer_CloseClosesPeers(t *testing.T) {
	server, err := OpenString("tcpin:127.0.0.1:0")
	require.NoError(t, err)
	tcpServer := server.(*TCPServer)
	clients := connectPeers(t, tcpServer, 1)

	require.NoError(t, server.Close())
	assert.Equal(t, 0, tcpServer.PeerCount())

	require.NoError(t, clients[0].SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = clients[0].Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestPeerEventType_String(t *testing.T) {
	assert.Equal(t, "accepted", PeerAccepted.String())
	assert.Equal(t, "dropped", PeerDropped.String())
	assert.Equal(t, "unknown", PeerEventType(0).String())
}
