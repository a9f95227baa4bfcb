package transport

import (
	"net"
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
)

// Registry owns the set of live connections.
//
// Client ids are assigned monotonically and never reused for the lifetime of
// the registry. A socket moves from registered to removed exactly once.
type Registry struct {
	conns  *xsync.MapOf[int, *Connection]
	nextID *atomic.Int64
	max    int

	// addMu serializes the capacity and duplicate-socket checks with the insert.
	addMu sync.Mutex
}

// NewRegistry creates an empty registry. max <= 0 means unbounded.
func NewRegistry(max int) *Registry {
	return &Registry{
		conns:  xsync.NewMapOf[int, *Connection](),
		nextID: atomic.NewInt64(0),
		max:    max,
	}
}

// NewClientID returns the next client id. Ids start at 1.
func (r *Registry) NewClientID() int {
	return int(r.nextID.Inc())
}

// Add registers c.
func (r *Registry) Add(c *Connection) error {
	r.addMu.Lock()
	defer r.addMu.Unlock()

	if r.max > 0 && r.conns.Size() >= r.max {
		return ErrRegistryFull
	}
	if _, found := r.Find(c.Conn); found {
		return ErrAlreadyRegistered
	}
	if _, loaded := r.conns.LoadOrStore(c.ID, c); loaded {
		return ErrAlreadyRegistered
	}
	return nil
}

// Remove unregisters and closes c. It returns true only for the call that
// actually removed it, so callers can announce a disconnect exactly once.
func (r *Registry) Remove(c *Connection) bool {
	if c == nil {
		return false
	}
	removed := false
	r.conns.Compute(c.ID, func(old *Connection, loaded bool) (*Connection, bool) {
		if !loaded || old != c {
			return old, !loaded
		}
		removed = true
		return nil, true
	})
	if removed {
		_ = c.Close()
	}
	return removed
}

// Get returns the connection with the given client id.
func (r *Registry) Get(id int) (*Connection, bool) {
	return r.conns.Load(id)
}

// Find returns the connection that owns sock.
func (r *Registry) Find(sock net.Conn) (*Connection, bool) {
	var found *Connection
	r.conns.Range(func(_ int, c *Connection) bool {
		if c.Conn == sock {
			found = c
			return false
		}
		return true
	})
	return found, found != nil
}

// Snapshot returns the registered connections ordered by client id.
func (r *Registry) Snapshot() []*Connection {
	conns := make([]*Connection, 0, r.conns.Size())
	r.conns.Range(func(_ int, c *Connection) bool {
		conns = append(conns, c)
		return true
	})
	slices.SortFunc(conns, func(a, b *Connection) int { return a.ID - b.ID })
	return conns
}

// Sockets returns the sockets to poll for readiness.
func (r *Registry) Sockets() []net.Conn {
	conns := r.Snapshot()
	socks := make([]net.Conn, len(conns))
	for i, c := range conns {
		socks[i] = c.Conn
	}
	return socks
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return r.conns.Size()
}

// CloseAll removes and closes every connection, returning how many it removed.
func (r *Registry) CloseAll() int {
	n := 0
	for _, c := range r.Snapshot() {
		if r.Remove(c) {
			n++
		}
	}
	return n
}
