package transport

import (
	"syscall"
	"time"
)

// Poller reports which connections are ready.
//
// readable holds sockets with data or a pending hangup. failed holds sockets
// in an error state; they should be dropped without reading. A connection
// never appears in both sets.
type Poller interface {
	Poll(conns []*Connection, timeout time.Duration) (readable, failed []*Connection, err error)
}

// NewPoller returns the platform poller.
func NewPoller() Poller {
	return newFDPoller()
}

// socketFD extracts the descriptor of a socket backed by the OS.
func socketFD(c *Connection) (int, bool) {
	sc, ok := c.Conn.(syscall.Conn)
	if !ok {
		return -1, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, false
	}
	fd := -1
	if err := raw.Control(func(s uintptr) { fd = int(s) }); err != nil {
		return -1, false
	}
	return fd, fd >= 0
}
