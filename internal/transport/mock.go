package transport

import (
	"sync"
	"time"
)

// MockPoller is a Poller for tests. Readable and failed connections are
// reported once, on the next Poll that includes them.
type MockPoller struct {
	mu       sync.Mutex
	readable map[*Connection]bool
	failed   map[*Connection]bool
	err      error
	polls    int
}

// NewMockPoller creates a new mock poller.
func NewMockPoller() *MockPoller {
	return &MockPoller{
		readable: make(map[*Connection]bool),
		failed:   make(map[*Connection]bool),
	}
}

// Poll reports the connections marked since the last call. With nothing to
// report it sleeps for timeout, like a real poll.
func (p *MockPoller) Poll(conns []*Connection, timeout time.Duration) (readable, failed []*Connection, err error) {
	p.mu.Lock()
	p.polls++
	if p.err != nil {
		err, p.err = p.err, nil
		p.mu.Unlock()
		return nil, nil, err
	}
	for _, c := range conns {
		switch {
		case p.failed[c]:
			failed = append(failed, c)
			delete(p.failed, c)
			delete(p.readable, c)
		case p.readable[c]:
			readable = append(readable, c)
			delete(p.readable, c)
		}
	}
	p.mu.Unlock()

	if len(readable) == 0 && len(failed) == 0 {
		time.Sleep(timeout)
	}
	return readable, failed, nil
}

// --- Test helpers ---

// SetReadable marks c readable for the next poll.
func (p *MockPoller) SetReadable(c *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readable[c] = true
}

// SetFailed marks c as errored for the next poll.
func (p *MockPoller) SetFailed(c *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[c] = true
}

// FailNext makes the next Poll return err.
func (p *MockPoller) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Polls returns how many times Poll was called.
func (p *MockPoller) Polls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}
