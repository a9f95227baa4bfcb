//go:build linux || darwin || freebsd || netbsd || openbsd

package transport

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

const (
	pollReadable = unix.POLLIN | unix.POLLHUP
	pollFailed   = unix.POLLERR | unix.POLLNVAL
)

// FDPoller waits on socket descriptors with poll(2).
type FDPoller struct{}

func newFDPoller() Poller { return FDPoller{} }

// Poll blocks for at most timeout. Connections whose descriptor cannot be
// obtained are reported as failed.
func (FDPoller) Poll(conns []*Connection, timeout time.Duration) (readable, failed []*Connection, err error) {
	fds := make([]unix.PollFd, 0, len(conns))
	polled := make([]*Connection, 0, len(conns))
	for _, c := range conns {
		fd, ok := socketFD(c)
		if !ok {
			failed = append(failed, c)
			continue
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		polled = append(polled, c)
	}
	if len(failed) > 0 {
		return nil, failed, nil
	}
	if len(fds) == 0 {
		time.Sleep(timeout)
		return nil, nil, nil
	}

	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if n == 0 {
		return nil, nil, nil
	}

	for i, pfd := range fds {
		switch {
		case pfd.Revents&pollFailed != 0:
			failed = append(failed, polled[i])
		case pfd.Revents&pollReadable != 0:
			readable = append(readable, polled[i])
		}
	}
	return readable, failed, nil
}
