package channel

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienstroheker/sockwrench/internal/logging"
)

// Channel string schemes
const (
	SchemeStdio  = "stdio"
	SchemeUDPIn  = "udpin"
	SchemeUDPOut = "udpout"
	SchemeTCPIn  = "tcpin"
	SchemeTCPOut = "tcpout"
)

// DefaultDialTimeout bounds the TCP connect of a tcpout channel
const DefaultDialTimeout = 10 * time.Second

// Spec is a parsed channel string
type Spec struct {
	// Scheme is one of the Scheme constants
	Scheme string

	// Address is the host:port to bind or connect; empty for stdio
	Address string
}

// Transport returns the transport Open creates for s
func (s Spec) Transport() Transport {
	switch s.Scheme {
	case SchemeUDPIn, SchemeUDPOut:
		return TransportUDP
	case SchemeTCPIn:
		return TransportTCPServer
	case SchemeTCPOut:
		return TransportTCPClient
	case SchemeStdio:
		return TransportConsole
	default:
		return 0
	}
}

func (s Spec) String() string {
	if s.Address == "" {
		return s.Scheme
	}
	return s.Scheme + ":" + s.Address
}

// Parse validates a channel string and normalizes its address
func Parse(s string) (Spec, error) {
	if s == SchemeStdio {
		return Spec{Scheme: SchemeStdio}, nil
	}

	scheme, params, ok := strings.Cut(s, ":")
	if !ok {
		return Spec{}, configError("parse", s, errors.New("missing ':' between channel type and parameters"))
	}

	switch scheme {
	case SchemeUDPIn:
		port, err := parsePort(params, true)
		if err != nil {
			return Spec{}, configError("parse", s, err)
		}
		return Spec{Scheme: scheme, Address: net.JoinHostPort("0.0.0.0", port)}, nil

	case SchemeTCPIn:
		if !strings.Contains(params, ":") {
			port, err := parsePort(params, true)
			if err != nil {
				return Spec{}, configError("parse", s, err)
			}
			return Spec{Scheme: scheme, Address: net.JoinHostPort("0.0.0.0", port)}, nil
		}
		address, err := parseHostPort(params, true)
		if err != nil {
			return Spec{}, configError("parse", s, err)
		}
		return Spec{Scheme: scheme, Address: address}, nil

	case SchemeUDPOut, SchemeTCPOut:
		address, err := parseHostPort(params, false)
		if err != nil {
			return Spec{}, configError("parse", s, err)
		}
		return Spec{Scheme: scheme, Address: address}, nil

	default:
		return Spec{}, configError("parse", s, fmt.Errorf("unknown channel type %q", scheme))
	}
}

func parsePort(s string, allowZero bool) (string, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return "", fmt.Errorf("invalid port %q", s)
	}
	if port == 0 && !allowZero {
		return "", errors.New("port 0 is not a valid destination")
	}
	return strconv.FormatUint(port, 10), nil
}

func parseHostPort(s string, allowZero bool) (string, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return "", fmt.Errorf("want <ip>:<port>: %w", err)
	}
	if host == "" {
		return "", fmt.Errorf("missing host in %q", s)
	}
	port, err = parsePort(port, allowZero)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, port), nil
}

type options struct {
	logger      *logging.Logger
	dialTimeout time.Duration
	peerHook    PeerHook
	stdin       *os.File
	stdout      *os.File
}

// Option configures Open
type Option func(*options)

// WithLogger sets the logger channels report to
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDialTimeout bounds the connect of tcpout channels
func WithDialTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = timeout
	}
}

// WithPeerHook observes peers joining and leaving tcpin channels
func WithPeerHook(hook PeerHook) Option {
	return func(o *options) {
		o.peerHook = hook
	}
}

// WithConsole replaces stdin and stdout for stdio channels
func WithConsole(in, out *os.File) Option {
	return func(o *options) {
		o.stdin = in
		o.stdout = out
	}
}

// Open binds or connects the channel described by spec. Sockets are ready
// for non-blocking use when Open returns.
func Open(spec Spec, opts ...Option) (Channel, error) {
	o := &options{
		dialTimeout: DefaultDialTimeout,
		stdin:       os.Stdin,
		stdout:      os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}

	switch spec.Scheme {
	case SchemeStdio:
		return NewConsole(o.stdin, o.stdout), nil

	case SchemeUDPIn:
		addr, err := net.ResolveUDPAddr("udp", spec.Address)
		if err != nil {
			return nil, configError("bind", spec.String(), err)
		}
		conn, err := net.ListenUDP("udp", addr)
		if err != nil {
			return nil, configError("bind", spec.String(), err)
		}
		return asChannel(newUDP(conn, false, SchemeUDPIn+":"+conn.LocalAddr().String(), o.logger))

	case SchemeUDPOut:
		raddr, err := net.ResolveUDPAddr("udp", spec.Address)
		if err != nil {
			return nil, configError("connect", spec.String(), err)
		}
		conn, err := net.DialUDP("udp", nil, raddr)
		if err != nil {
			return nil, configError("connect", spec.String(), err)
		}
		return asChannel(newUDP(conn, true, spec.String(), o.logger))

	case SchemeTCPIn:
		listener, err := net.Listen("tcp", spec.Address)
		if err != nil {
			return nil, configError("listen", spec.String(), err)
		}
		tcpListener, ok := listener.(*net.TCPListener)
		if !ok {
			_ = listener.Close()
			return nil, configError("listen", spec.String(), fmt.Errorf("listener is %T", listener))
		}
		return asChannel(newTCPServer(tcpListener, SchemeTCPIn+":"+tcpListener.Addr().String(), o.logger, o.peerHook))

	case SchemeTCPOut:
		dialer := net.Dialer{Timeout: o.dialTimeout}
		conn, err := dialer.Dial("tcp", spec.Address)
		if err != nil {
			return nil, configError("connect", spec.String(), err)
		}
		tcpConn, ok := conn.(*net.TCPConn)
		if !ok {
			_ = conn.Close()
			return nil, configError("connect", spec.String(), fmt.Errorf("connection is %T", conn))
		}
		return asChannel(newTCPClient(tcpConn, spec.String(), o.logger))

	default:
		return nil, configError("open", spec.String(), fmt.Errorf("unknown channel type %q", spec.Scheme))
	}
}

// asChannel keeps a typed nil from a failed constructor out of the interface
func asChannel[T Channel](ch T, err error) (Channel, error) {
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// OpenString parses s and opens the channel it describes
func OpenString(s string, opts ...Option) (Channel, error) {
	spec, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return Open(spec, opts...)
}
