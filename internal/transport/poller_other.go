//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package transport

import "time"

type unsupportedPoller struct{}

func newFDPoller() Poller { return unsupportedPoller{} }

func (unsupportedPoller) Poll([]*Connection, time.Duration) ([]*Connection, []*Connection, error) {
	return nil, nil, ErrPollUnsupported
}
