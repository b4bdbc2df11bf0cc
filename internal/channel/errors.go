package channel

import (
	"errors"
	"fmt"
)

// ErrorKind classifies channel failures
type ErrorKind int

const (
	// ConfigurationError is a malformed channel string or a bind/connect
	// failure while opening a channel
	ConfigurationError ErrorKind = iota + 1

	// IOFailure is any read, write, accept or close failure other than
	// would-block
	IOFailure
)

// String returns the string representation of an ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case ConfigurationError:
		return "configuration error"
	case IOFailure:
		return "i/o failure"
	default:
		return "unknown error"
	}
}

// ErrEndOfStream is matched by errors reporting that the remote side of a
// stream channel closed it, or that console input reached end of file
var ErrEndOfStream = errors.New("end of stream")

// Error is returned by every fallible channel operation
type Error struct {
	Kind    ErrorKind
	Op      string
	Channel string
	Err     error
}

func (e *Error) Error() string {
	if e.Channel == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Channel, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is, or wraps, an *Error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var channelErr *Error
	return errors.As(err, &channelErr) && channelErr.Kind == kind
}

func configError(op, channel string, err error) error {
	return &Error{Kind: ConfigurationError, Op: op, Channel: channel, Err: err}
}

func ioError(op, channel string, err error) error {
	return &Error{Kind: IOFailure, Op: op, Channel: channel, Err: err}
}
