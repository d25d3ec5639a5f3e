package relay

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
)

// Status is the health of one relay endpoint as last observed by the
// Monitor.
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the status for JSON status surfaces.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Item identifies one relay endpoint in a user's relay list. LocalID is
// stable for the lifetime of the list entry and keys the status map, so the
// same URL can appear twice without the entries shadowing each other.
type Item struct {
	URL     string `json:"url" yaml:"url"`
	LocalID string `json:"localId" yaml:"localId"`
}

// NewItem creates a relay item with a fresh local id.
func NewItem(url string) Item {
	return Item{URL: url, LocalID: uuid.NewString()}
}

// DefaultProbeTimeout bounds a probe when the caller passes none.
const DefaultProbeTimeout = 3 * time.Second

// Monitor tracks relay reachability. Statuses are mutated only by probes;
// the presentation layer shares the map read-only through Statuses. The
// zero-value Monitor is not usable; use NewMonitor.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	gens     map[string]*atomic.Uint64
}

// NewMonitor creates an empty health monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
		gens:     make(map[string]*atomic.Uint64),
	}
}

// Probe checks whether the relay accepts a websocket handshake within the
// timeout and records the result. The probe opens a short-lived connection
// and always closes it; its only purpose is reachability.
//
// Probes for different items are independent. Reissuing a probe for the same
// item supersedes any in-flight one: the stale probe's result is discarded
// when it eventually lands.
func (m *Monitor) Probe(ctx context.Context, item Item, timeout time.Duration) Status {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	m.mu.Lock()
	gen, ok := m.gens[item.LocalID]
	if !ok {
		gen = atomic.NewUint64(0)
		m.gens[item.LocalID] = gen
	}
	token := gen.Inc()
	m.statuses[item.LocalID] = StatusPending
	m.mu.Unlock()

	status := probeOnce(ctx, item.URL, timeout)

	m.mu.Lock()
	if gen.Load() == token {
		m.statuses[item.LocalID] = status
	}
	m.mu.Unlock()
	return status
}

// probeOnce dials the endpoint and reports connected or error. The socket is
// closed on every path.
func probeOnce(ctx context.Context, url string, timeout time.Duration) Status {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, resp, err := dialer.DialContext(dialCtx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return StatusError
	}
	_ = ws.Close()
	return StatusConnected
}

// Status returns the last recorded status for a relay item, StatusUnknown if
// it was never probed.
func (m *Monitor) Status(localID string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statuses[localID]
}

// Statuses returns a snapshot of all recorded statuses keyed by local id.
func (m *Monitor) Statuses() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Status, len(m.statuses))
	for id, s := range m.statuses {
		out[id] = s
	}
	return out
}

// Forget drops state for a relay item removed from the user's list.
func (m *Monitor) Forget(localID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, localID)
	delete(m.gens, localID)
}
