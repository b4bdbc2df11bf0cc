package relay

import (
	"github.com/julienstroheker/sockwrench/internal/channel"
)

// Endpoint is one side of the relay. Every channel.Channel is an Endpoint.
type Endpoint interface {
	// Read returns (0, nil) when nothing is available
	Read(p []byte) (int, error)

	// Write accepts all of p or fails
	Write(p []byte) (int, error)

	// Descriptors lists the descriptors to watch for read readiness
	Descriptors() []channel.Descriptor

	String() string
}

// Acceptor is an Endpoint that takes new connections. Accept must not block
// and returns (nil, nil) when nothing is pending.
type Acceptor interface {
	Accept() (*channel.Peer, error)
}

var (
	_ Endpoint = channel.Channel(nil)
	_ Acceptor = (*channel.TCPServer)(nil)
)
