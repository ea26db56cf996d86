// Package registry keeps the live set of admitted chat connections. Every
// membership change and every snapshot goes through a single RWMutex; the
// outbound path of each connection is a buffered channel drained by that
// connection's own writer, so delivery never waits on a slow client.
package registry

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/anzalkabeer/codechicks/internal/auth"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var ErrCapacity = errors.New("connection registry is at capacity")

const defaultSendBuffer = 256

// Connection is a registry handle for one admitted client.
type Connection struct {
	id         string
	identity   auth.Identity
	admittedAt time.Time
	send       chan []byte
	closed     bool // guarded by Registry.mu
}

func (c *Connection) ID() string { return c.id }
func (c *Connection) Identity() auth.Identity { return c.identity }
func (c *Connection) AdmittedAt() time.Time { return c.admittedAt }
func (c *Connection) Outbound() <-chan []byte { return c.send }

// Registry is safe for concurrent use.
type Registry struct {
	mu             sync.RWMutex
	conns          map[*Connection]struct{}
	log            *slog.Logger
	maxConnections int
	sendBuffer     int
	now            func() time.Time
}

// New creates an empty registry. maxConnections <= 0 means unbounded;
// sendBuffer is the number of frames queued per connection before deliveries
// to it start failing.
func New(log *slog.Logger, maxConnections, sendBuffer int) *Registry {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Registry{
		conns:          make(map[*Connection]struct{}),
		log:            log,
		maxConnections: maxConnections,
		sendBuffer:     sendBuffer,
		now:            time.Now,
	}
}

// Admit registers a verified identity as a live connection. The connection is
// either fully registered or not at all.
func (r *Registry) Admit(identity auth.Identity) (*Connection, error) {
	conn := &Connection{
		id:       uuid.NewString(),
		identity: identity,
		send:     make(chan []byte, r.sendBuffer),
	}

	r.mu.Lock()
	if r.maxConnections > 0 && len(r.conns) >= r.maxConnections {
		r.mu.Unlock()
		return nil, ErrCapacity
	}
	conn.admittedAt = r.now()
	r.conns[conn] = struct{}{}
	total := len(r.conns)
	r.mu.Unlock()

	r.log.Info("Connection admitted",
		"conn_id", conn.id, "user_id", identity.UserID, "total", total)
	return conn, nil
}

// Remove unregisters the connection and closes its outbound channel. It
// reports whether this call removed it; removing a connection twice, or one
// that was never admitted, is a no-op that returns false.
func (r *Registry) Remove(conn *Connection) bool {
	if conn == nil {
		return false
	}

	r.mu.Lock()
	if _, ok := r.conns[conn]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, conn)
	conn.closed = true
	total := len(r.conns)
	close(conn.send)
	r.mu.Unlock()

	r.log.Info("Connection removed",
		"conn_id", conn.id, "user_id", conn.identity.UserID, "total", total)
	return true
}

// Snapshot returns a copy of the current membership. Later admissions and
// removals do not affect the returned slice.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.conns)
}

// Deliver queues payload on the connection's outbound channel without
// blocking. It reports false when the connection is gone or its queue is full;
// the caller is expected to Remove it.
func (r *Registry) Deliver(conn *Connection, payload []byte) bool {
	if conn == nil {
		return false
	}

	// The read lock keeps Remove from closing the channel mid-send.
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.conns[conn]; !ok || conn.closed {
		return false
	}
	select {
	case conn.send <- payload:
		return true
	default:
		return false
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Contains reports whether conn is currently admitted.
func (r *Registry) Contains(conn *Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[conn]
	return ok
}
