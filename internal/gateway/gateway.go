// Package gateway wires the binary, HTTP, and WebSocket master reactors,
// the Beast HTTP server, and the UDP session reactor to a single
// application handler. It owns the session tables and the per-request
// timeout applied to each handler call: a reply that arrives after the
// timeout is dropped and logged. No error reply is sent in its place, and
// nothing is sent at the deadline while the handler is still running.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/shieldgw/shield/internal/app"
	"github.com/shieldgw/shield/internal/beastserver"
	"github.com/shieldgw/shield/internal/binaryproto"
	"github.com/shieldgw/shield/internal/config"
	"github.com/shieldgw/shield/internal/httpproto"
	"github.com/shieldgw/shield/internal/metrics"
	"github.com/shieldgw/shield/internal/netio"
	"github.com/shieldgw/shield/internal/udpsession"
	"github.com/shieldgw/shield/internal/wsproto"
)

// sessionKind tags which protocol owns a session id, so the session table
// can be inspected generically (e.g. by a future admin endpoint) without
// each protocol keeping its own parallel map.
type sessionKind int

const (
	kindBinary sessionKind = iota
	kindHTTP
	kindWS
)

// Gateway is the orchestrator described as the gateway component: it owns
// every listener and dispatches decoded messages to app.Handler.
type Gateway struct {
	cfg     config.Config
	handler app.Handler
	log     *slog.Logger
	metrics metrics.Sink

	httpRouter *httpproto.Router

	binaryReactor *netio.MasterReactor
	httpReactor   *netio.MasterReactor
	wsReactor     *netio.MasterReactor
	beast         *beastserver.Server
	udpManager    *udpsession.Manager
	udpReactor    *udpsession.Reactor

	mu       sync.RWMutex
	sessions map[uint64]*netio.Session
	kinds    map[uint64]sessionKind
	wsConns  map[uint64]*wsproto.Conn
}

// New builds a Gateway from cfg. Nothing is bound until Start is called.
func New(cfg config.Config, handler app.Handler, log *slog.Logger, sink metrics.Sink) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	return &Gateway{
		cfg:        cfg,
		handler:    handler,
		log:        log,
		metrics:    sink,
		httpRouter: httpproto.NewRouter(),
		sessions:   make(map[uint64]*netio.Session),
		kinds:      make(map[uint64]sessionKind),
		wsConns:    make(map[uint64]*wsproto.Conn),
	}
}

// Router exposes the minimal HTTP handler's router so callers can register
// additional routes before Start.
func (g *Gateway) Router() *httpproto.Router { return g.httpRouter }

// Start binds every configured listener. On any failure, listeners already
// started are left running; call Stop to tear them down.
func (g *Gateway) Start() error {
	g.binaryReactor = netio.NewMasterReactor(g.cfg.Binary.Host, g.cfg.Binary.Port, g.cfg.NumSlaves, g.newBinarySession, g.log)
	if err := g.binaryReactor.Start(); err != nil {
		return fmt.Errorf("gateway: binary listener: %w", err)
	}

	g.httpReactor = netio.NewMasterReactor(g.cfg.HTTP.Host, g.cfg.HTTP.Port, g.cfg.NumSlaves, g.newHTTPSession, g.log)
	if err := g.httpReactor.Start(); err != nil {
		return fmt.Errorf("gateway: http listener: %w", err)
	}

	g.wsReactor = netio.NewMasterReactor(g.cfg.WebSocket.Host, g.cfg.WebSocket.Port, g.cfg.NumSlaves, g.newWSSession, g.log)
	if err := g.wsReactor.Start(); err != nil {
		return fmt.Errorf("gateway: websocket listener: %w", err)
	}

	g.beast = beastserver.New(beastserver.Config{
		Host:           g.cfg.Beast.Host,
		Port:           g.cfg.Beast.Port,
		RootPath:       g.cfg.Beast.RootPath,
		MaxRequestSize: g.cfg.Beast.MaxRequestSize,
	}, g.handler, g.log)
	if err := g.beast.Start(); err != nil {
		return fmt.Errorf("gateway: beast server: %w", err)
	}

	udpManager, err := udpsession.NewManager(g.cfg.UDP.Host, g.cfg.UDP.Port, g.cfg.UDP.SessionTimeout, g.cfg.UDP.CleanupInterval, g.log)
	if err != nil {
		return fmt.Errorf("gateway: udp listener: %w", err)
	}
	g.udpManager = udpManager
	g.udpManager.OnReceive(g.dispatchUDP)
	g.udpReactor = udpsession.NewReactor(g.udpManager, g.cfg.UDP.Workers, g.log)
	g.udpReactor.Start()

	g.log.Info("gateway started",
		"binary_addr", g.binaryReactor.Addr(),
		"http_addr", g.httpReactor.Addr(),
		"ws_addr", g.wsReactor.Addr(),
		"beast_addr", g.beast.Addr(),
		"udp_addr", g.udpManager.LocalAddr(),
	)
	return nil
}

// Stop tears down every listener that Start brought up.
func (g *Gateway) Stop() {
	if g.binaryReactor != nil {
		g.binaryReactor.Stop()
	}
	if g.httpReactor != nil {
		g.httpReactor.Stop()
	}
	if g.wsReactor != nil {
		g.wsReactor.Stop()
	}
	if g.beast != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = g.beast.Stop(ctx)
	}
	if g.udpReactor != nil {
		g.udpReactor.Stop()
	}
	g.log.Info("gateway stopped")
}

func (g *Gateway) trackSession(s *netio.Session, kind sessionKind) {
	g.mu.Lock()
	g.sessions[s.ID()] = s
	g.kinds[s.ID()] = kind
	count := len(g.sessions)
	g.mu.Unlock()
	g.metrics.SetGauge("gateway_active_sessions", int64(count), nil)
}

func (g *Gateway) untrackSession(id uint64) {
	g.mu.Lock()
	delete(g.sessions, id)
	delete(g.kinds, id)
	delete(g.wsConns, id)
	count := len(g.sessions)
	g.mu.Unlock()
	g.metrics.SetGauge("gateway_active_sessions", int64(count), nil)
}

// ActiveSessions returns the number of tracked TCP sessions across all
// three protocols.
func (g *Gateway) ActiveSessions() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}

// BinaryAddr returns the bound binary listener's address. Valid only after Start.
func (g *Gateway) BinaryAddr() net.Addr { return g.binaryReactor.Addr() }

// HTTPAddr returns the bound minimal-HTTP listener's address. Valid only after Start.
func (g *Gateway) HTTPAddr() net.Addr { return g.httpReactor.Addr() }

// WSAddr returns the bound WebSocket listener's address. Valid only after Start.
func (g *Gateway) WSAddr() net.Addr { return g.wsReactor.Addr() }

// BeastAddr returns the bound Beast HTTP server's address. Valid only after Start.
func (g *Gateway) BeastAddr() net.Addr { return g.beast.Addr() }

// UDPAddr returns the bound UDP socket's local address. Valid only after Start.
func (g *Gateway) UDPAddr() net.Addr { return g.udpManager.LocalAddr() }

// requestTimeout returns the configured per-call timeout, defaulting to 5s.
func (g *Gateway) requestTimeout() time.Duration {
	if g.cfg.RequestTimeout > 0 {
		return g.cfg.RequestTimeout
	}
	return 5 * time.Second
}

// Kind is the result of protocol sniffing on a freshly accepted connection.
type Kind int

const (
	KindUnknown Kind = iota
	KindHTTP
	KindBinary
)

// Sniff inspects the first bytes read from a freshly accepted connection
// and reports which protocol they most likely carry. HTTP (and therefore
// WebSocket, whose handshake is an HTTP request) is recognized by an ASCII
// method line; anything else of at least 4 bytes is assumed to be the
// length-prefixed binary protocol, whose first 4 bytes are a frame length
// rather than readable text, and a shorter non-HTTP prefix is KindUnknown.
// Not used by the three dedicated listeners above — each already
// knows its own protocol — but available for a future multiplexed entry
// point that accepts all three protocols on one port.
func Sniff(b []byte) Kind {
	methods := []string{"GET ", "POST ", "PUT ", "DELETE ", "HEAD ", "OPTIONS ", "PATCH "}
	for _, m := range methods {
		if len(b) >= len(m) && string(b[:len(m)]) == m {
			return KindHTTP
		}
	}
	if len(b) >= binaryproto.HeaderSize {
		return KindBinary
	}
	return KindUnknown
}
