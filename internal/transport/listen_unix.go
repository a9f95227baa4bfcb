//go:build linux || darwin || freebsd || netbsd || openbsd

package transport

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Listen opens a TCP listener on address:port with an explicit accept backlog
// and SO_REUSEADDR set. An empty address binds all IPv4 interfaces.
func Listen(address string, port, backlog int) (net.Listener, error) {
	sa, err := sockaddr(address, port)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	unix.CloseOnExec(fd)

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s:%d: %w", address, port, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}

	f := os.NewFile(uintptr(fd), fmt.Sprintf("tcp:%s:%d", address, port))
	defer f.Close()

	// FileListener dups the descriptor.
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("file listener: %w", err)
	}
	return ln, nil
}

func sockaddr(address string, port int) (*unix.SockaddrInet4, error) {
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	sa := &unix.SockaddrInet4{Port: port}
	if address == "" {
		return sa, nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		addrs, err := net.LookupIP(address)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", address, err)
		}
		for _, a := range addrs {
			if a.To4() != nil {
				ip = a
				break
			}
		}
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("no IPv4 address for %q", address)
	}
	copy(sa.Addr[:], ip4)
	return sa, nil
}
