// Package udpsession implements virtual sessions over a connectionless UDP
// socket: each remote (addr, port) is tracked as a session with an id,
// activity timestamp, and idle expiry, the way a TCP accept loop tracks
// connections.
package udpsession

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ReceiveFunc is invoked for every datagram, after the sender's session id
// has been resolved or created.
type ReceiveFunc func(sessionID uint64, data []byte, from *net.UDPAddr)

// TimeoutFunc is invoked exactly once when a session expires from inactivity.
type TimeoutFunc func(sessionID uint64)

var nextSessionID atomic.Uint64

type endpointState struct {
	addr         *net.UDPAddr
	sessionID    uint64
	auditID      string
	lastActivity time.Time
}

// Manager tracks virtual UDP sessions on top of a single *net.UDPConn. All
// session-table mutations go through one mutex: invariant #9's cleanup sweep
// and invariant #8's identity lookups on the receive path always observe a
// consistent table, at the cost of serializing them across every worker
// goroutine sharing the socket.
type Manager struct {
	conn *net.UDPConn
	log  *slog.Logger

	sessionTimeout  time.Duration
	cleanupInterval time.Duration

	mu             sync.Mutex
	endpointToID   map[string]uint64
	sessionsByID   map[uint64]*endpointState

	onReceive ReceiveFunc
	onTimeout TimeoutFunc
}

// NewManager creates a Manager bound to the given UDP port. host may be
// empty to bind all interfaces.
func NewManager(host string, port uint16, sessionTimeout, cleanupInterval time.Duration, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	addr := &net.UDPAddr{IP: net.ParseIP(host), Port: int(port)}
	if host == "" {
		addr.IP = net.IPv4zero
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udpsession: listen %s:%d: %w", host, port, err)
	}
	return &Manager{
		conn:            conn,
		log:             log,
		sessionTimeout:  sessionTimeout,
		cleanupInterval: cleanupInterval,
		endpointToID:    make(map[string]uint64),
		sessionsByID:    make(map[uint64]*endpointState),
	}, nil
}

// OnReceive sets the callback invoked for each datagram.
func (m *Manager) OnReceive(f ReceiveFunc) { m.onReceive = f }

// OnTimeout sets the callback invoked when a session expires.
func (m *Manager) OnTimeout(f TimeoutFunc) { m.onTimeout = f }

// LocalAddr returns the bound socket's local address.
func (m *Manager) LocalAddr() net.Addr { return m.conn.LocalAddr() }

// ActiveSessions returns the current number of tracked sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessionsByID)
}

// GetOrCreateSessionID resolves addr's session id, creating one and
// refreshing its activity timestamp either way.
func (m *Manager) GetOrCreateSessionID(addr *net.UDPAddr) uint64 {
	key := addr.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.endpointToID[key]; ok {
		if st, ok := m.sessionsByID[id]; ok {
			st.lastActivity = time.Now()
			return id
		}
	}

	id := nextSessionID.Add(1)
	auditID := uuid.NewString()
	m.endpointToID[key] = id
	m.sessionsByID[id] = &endpointState{addr: addr, sessionID: id, auditID: auditID, lastActivity: time.Now()}
	m.log.Debug("udp session created", "session_id", id, "remote_addr", key, "audit_id", auditID)
	return id
}

// AuditID returns the stable external identifier minted for a session when
// it was first created, independent of the internal uint64 counter. Useful
// for correlating UDP sessions across log aggregation and restarts, where
// the uint64 counter resets. Returns "" for an unknown or expired id.
func (m *Manager) AuditID(id uint64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.sessionsByID[id]; ok {
		return st.auditID
	}
	return ""
}

// RemoveSession drops a session's tracking state.
func (m *Manager) RemoveSession(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
}

func (m *Manager) removeLocked(id uint64) {
	st, ok := m.sessionsByID[id]
	if !ok {
		return
	}
	delete(m.endpointToID, st.addr.String())
	delete(m.sessionsByID, id)
}

// SendTo addresses data to a tracked session by id. Sending to an unknown or
// expired id is a no-op with a logged warning, per UDP's lossy-by-contract
// failure policy.
func (m *Manager) SendTo(id uint64, data []byte) {
	m.mu.Lock()
	st, ok := m.sessionsByID[id]
	if ok {
		st.lastActivity = time.Now()
	}
	m.mu.Unlock()

	if !ok {
		m.log.Warn("send to unknown udp session", "session_id", id)
		return
	}
	m.sendToAddr(st.addr, data)
}

func (m *Manager) sendToAddr(addr *net.UDPAddr, data []byte) {
	if _, err := m.conn.WriteToUDP(data, addr); err != nil {
		m.log.Error("udp send failed", "remote_addr", addr.String(), "error", err)
	}
}

// CleanupExpired removes every session inactive for longer than the
// configured session timeout, firing the timeout callback for each before
// removal. It returns the removed session ids.
func (m *Manager) CleanupExpired() []uint64 {
	now := time.Now()

	m.mu.Lock()
	var expired []uint64
	for id, st := range m.sessionsByID {
		if now.Sub(st.lastActivity) > m.sessionTimeout {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		m.removeLocked(id)
	}
	m.mu.Unlock()

	for _, id := range expired {
		if m.onTimeout != nil {
			m.onTimeout(id)
		}
	}
	if len(expired) > 0 {
		m.log.Debug("cleaned up expired udp sessions", "count", len(expired))
	}
	return expired
}

// Close closes the underlying socket.
func (m *Manager) Close() error {
	return m.conn.Close()
}
