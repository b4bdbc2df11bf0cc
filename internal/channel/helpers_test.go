package channel

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// waitReadable blocks until one of the channel's descriptors is readable
func waitReadable(t *testing.T, ch Channel) {
	t.Helper()

	descriptors := ch.Descriptors()
	require.NotEmpty(t, descriptors, "channel %s has nothing to poll", ch)

	fds := make([]unix.PollFd, len(descriptors))
	for i, d := range descriptors {
		fds[i] = unix.PollFd{Fd: int32(d), Events: unix.POLLIN}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := unix.Poll(fds, 100)
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		if n > 0 {
			return
		}
	}
	t.Fatalf("channel %s never became readable", ch)
}

func mustOpen(t *testing.T, s string, opts ...Option) Channel {
	t.Helper()

	ch, err := OpenString(s, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
