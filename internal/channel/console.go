package channel

import (
	"os"
	"syscall"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// Console pairs an input file and an output file behind one channel.
//
// Console input is whatever the process inherited and is normally a
// blocking descriptor; there is no way to make a terminal non-blocking
// without affecting other processes sharing it. Callers poll Descriptors
// before Read, after which the read returns promptly. Input that is already
// non-blocking, such as an os.Pipe, stays that way.
type Console struct {
	in   *os.File
	out  *os.File
	raw  syscall.RawConn
	fd   Descriptor
	name string
}

// Stdio returns a Console on the process's stdin and stdout
func Stdio() *Console {
	return NewConsole(os.Stdin, os.Stdout)
}

// NewConsole returns a Console reading in and writing out. The Console
// takes ownership of both files.
func NewConsole(in, out *os.File) *Console {
	c := &Console{
		in:   in,
		out:  out,
		fd:   -1,
		name: SchemeStdio,
	}
	// Fd would switch the file to blocking mode.
	if raw, err := in.SyscallConn(); err == nil {
		c.raw = raw
		_ = raw.Control(func(fd uintptr) {
			c.fd = Descriptor(fd)
		})
	}
	return c
}

// Transport returns TransportConsole
func (c *Console) Transport() Transport { return TransportConsole }

// Read performs one read(2) on the input file. End of file is reported as
// ErrEndOfStream.
func (c *Console) Read(p []byte) (int, error) {
	if c.raw == nil {
		return 0, ioError("read", c.name, os.ErrClosed)
	}

	var n int
	var opErr error
	if err := c.raw.Read(func(fd uintptr) bool {
		n, opErr = unix.Read(int(fd), p)
		return true
	}); err != nil {
		return 0, ioError("read", c.name, err)
	}

	switch {
	case opErr != nil && isWouldBlock(opErr):
		return 0, nil
	case opErr != nil:
		return 0, ioError("read", c.name, opErr)
	case n == 0 && len(p) > 0:
		return 0, ioError("read", c.name, ErrEndOfStream)
	}
	return n, nil
}

// Write writes all of p to the output file. *os.File is unbuffered, so
// there is nothing to flush afterwards.
func (c *Console) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := c.out.Write(p)
	if err != nil {
		return n, ioError("write", c.name, err)
	}
	return n, nil
}

// Descriptors returns the input descriptor
func (c *Console) Descriptors() []Descriptor {
	return []Descriptor{c.fd}
}

// Close closes the input and output files
func (c *Console) Close() error {
	err := multierr.Append(c.in.Close(), c.out.Close())
	if err != nil {
		return ioError("close", c.name, err)
	}
	return nil
}

func (c *Console) String() string { return c.name }

func (c *Console) sealed() {}
