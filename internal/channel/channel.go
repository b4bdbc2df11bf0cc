package channel

import "fmt"

// Descriptor is an OS file descriptor that can be polled for readiness
type Descriptor int

// Transport identifies which variant a Channel is
type Transport int

const (
	// TransportUDP is a UDP socket
	TransportUDP Transport = iota + 1
	// TransportTCPServer is a TCP listener with its accepted peers
	TransportTCPServer
	// TransportTCPClient is an outbound TCP connection
	TransportTCPClient
	// TransportConsole is the stdin/stdout pair
	TransportConsole
)

// String returns the channel string prefix of the transport
func (t Transport) String() string {
	switch t {
	case TransportUDP:
		return "udp"
	case TransportTCPServer:
		return "tcpin"
	case TransportTCPClient:
		return "tcpout"
	case TransportConsole:
		return "stdio"
	default:
		return fmt.Sprintf("transport(%d)", int(t))
	}
}

// Channel is a relay endpoint. See the package documentation for the
// contract shared by all transports.
type Channel interface {
	// Transport reports the variant; it never changes after construction
	Transport() Transport

	// Read fills p with available bytes. Would-block yields (0, nil).
	Read(p []byte) (int, error)

	// Write hands all of p to the transport and returns len(p) on success
	Write(p []byte) (int, error)

	// Descriptors lists the descriptors to poll for read readiness.
	// The result may change between calls (a TCPServer gains and loses peers).
	Descriptors() []Descriptor

	// Close releases every OS resource owned by the channel
	Close() error

	// String names the channel for logs and errors
	String() string

	sealed()
}

var (
	_ Channel = (*UDP)(nil)
	_ Channel = (*TCPServer)(nil)
	_ Channel = (*TCPClient)(nil)
	_ Channel = (*Console)(nil)
)
