package relay

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/julienstroheker/sockwrench/internal/channel"
)

// readyEvents are the revents that make a read worth attempting. Hang-up and
// error conditions count: the read reports them.
const readyEvents = unix.POLLIN | unix.POLLHUP | unix.POLLERR

// poller waits on the descriptors of both endpoints. The slice is reused
// across iterations.
type poller struct {
	fds []unix.PollFd
}

// reset replaces the watched set with input followed by output and returns
// the index where the output group starts.
func (p *poller) reset(input, output []channel.Descriptor) int {
	p.fds = p.fds[:0]
	for _, fd := range input {
		p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}
	split := len(p.fds)
	for _, fd := range output {
		p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}
	return split
}

// wait blocks until a descriptor is ready or timeout elapses and returns the
// number of ready descriptors. An empty set sleeps for the timeout. A wait
// interrupted by a signal resumes with the time left.
func (p *poller) wait(timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	remaining := timeout

	for {
		n, err := unix.Poll(p.fds, pollMillis(remaining))
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, unix.EINTR) {
			return 0, os.NewSyscallError("poll", err)
		}

		remaining = time.Until(deadline)
		if remaining <= 0 {
			return 0, nil
		}
	}
}

// ready reports whether any descriptor in fds[from:to] has data, a hang-up or
// an error pending. A descriptor that is not open is an error.
func (p *poller) ready(from, to int) (bool, error) {
	ready := false
	for _, fd := range p.fds[from:to] {
		if fd.Revents&unix.POLLNVAL != 0 {
			return false, fmt.Errorf("descriptor %d is not open", fd.Fd)
		}
		if fd.Revents&readyEvents != 0 {
			ready = true
		}
	}
	return ready, nil
}

func (p *poller) len() int {
	return len(p.fds)
}

// pollMillis rounds up so a sub-millisecond remainder still waits
func pollMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}
