//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package transport

import (
	"net"
	"strconv"
)

// Listen opens a TCP listener on address:port. The backlog is left to the
// platform default.
func Listen(address string, port, _ int) (net.Listener, error) {
	return net.Listen("tcp4", net.JoinHostPort(address, strconv.Itoa(port)))
}
