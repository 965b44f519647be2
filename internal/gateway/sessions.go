package gateway

import (
	"context"
	"net"

	"github.com/shieldgw/shield/internal/binaryproto"
	"github.com/shieldgw/shield/internal/httpproto"
	"github.com/shieldgw/shield/internal/netio"
	"github.com/shieldgw/shield/internal/wsproto"
)

// maxFrameSize returns the configured binary frame ceiling, defaulting to
// binaryproto.MaxFrameSize.
func (g *Gateway) maxFrameSize() int {
	if g.cfg.MaxFrameSize > 0 {
		return g.cfg.MaxFrameSize
	}
	return binaryproto.MaxFrameSize
}

// newBinarySession wires a Session to accumulate length-prefixed frames and
// dispatch each complete one to the application handler.
func (g *Gateway) newBinarySession(conn net.Conn) *netio.Session {
	s := netio.NewSession(conn, g.log)
	var buf []byte

	s.SetReadCallback(func(data []byte) {
		buf = append(buf, data...)
		for {
			payload, consumed, err := binaryproto.DecodeLimit(buf, g.maxFrameSize())
			if err != nil {
				g.log.Warn("closing binary session on frame error", "session_id", s.ID(), "error", err)
				s.Close()
				return
			}
			if consumed == 0 {
				break
			}
			frame := make([]byte, len(payload))
			copy(frame, payload)
			buf = buf[consumed:]
			g.dispatchBinary(s, frame)
		}
	})
	s.SetCloseCallback(func() { g.untrackSession(s.ID()) })
	g.trackSession(s, kindBinary)
	return s
}

func (g *Gateway) dispatchBinary(s *netio.Session, payload []byte) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.requestTimeout())
		defer cancel()

		reply, err := g.handler.HandleBinary(ctx, s.ID(), payload)
		if ctx.Err() != nil {
			g.metrics.IncCounter("gateway_request_timeouts_total", 1, map[string]string{"protocol": "binary"})
			g.log.Warn("dropping late binary reply", "session_id", s.ID())
			return
		}
		if err != nil {
			g.metrics.IncCounter("gateway_handler_errors_total", 1, map[string]string{"protocol": "binary"})
			g.log.Error("binary handler error", "session_id", s.ID(), "error", err)
			return
		}
		g.metrics.IncCounter("gateway_requests_total", 1, map[string]string{"protocol": "binary"})
		s.Send(binaryproto.Encode(reply))
	}()
}

// newHTTPSession wires a Session to the minimal hand-rolled HTTP handler:
// accumulate until a complete request is buffered, parse, route, respond,
// and close (this entry point always answers Connection: close; Beast is
// the keep-alive-capable alternative).
func (g *Gateway) newHTTPSession(conn net.Conn) *netio.Session {
	s := netio.NewSession(conn, g.log)
	var buf []byte

	s.SetReadCallback(func(data []byte) {
		buf = append(buf, data...)
		if !httpproto.IsCompleteRequest(buf) {
			return
		}

		req, err := httpproto.ParseRequest(buf)
		if err != nil {
			g.log.Error("http parse error", "session_id", s.ID(), "error", err)
			s.SendAndClose(httpproto.FormatResponse(httpproto.BadRequest()))
			return
		}

		resp := g.httpRouter.Route(req)
		s.SendAndClose(httpproto.FormatResponse(resp))
	})
	s.SetCloseCallback(func() { g.untrackSession(s.ID()) })
	g.trackSession(s, kindHTTP)
	return s
}

// newWSSession wires a Session through the HTTP upgrade handshake and then
// into WebSocket frame mode.
func (g *Gateway) newWSSession(conn net.Conn) *netio.Session {
	s := netio.NewSession(conn, g.log)
	var buf []byte
	var wsConn *wsproto.Conn

	s.SetReadCallback(func(data []byte) {
		buf = append(buf, data...)

		if wsConn == nil {
			if !httpproto.IsCompleteRequest(buf) {
				return
			}
			req, err := httpproto.ParseRequest(buf)
			buf = nil
			if err != nil {
				s.SendAndClose(httpproto.FormatResponse(httpproto.BadRequest()))
				return
			}

			key, err := wsproto.ValidateHandshake(wsproto.HandshakeRequestFromHTTP(req))
			if err != nil {
				g.log.Debug("websocket handshake rejected", "session_id", s.ID(), "error", err)
				s.SendAndClose(httpproto.FormatResponse(httpproto.BadRequest()))
				return
			}

			wsConn = wsproto.NewConn(s.ID(), s.Send)
			wsConn.OnMessage(func(payload []byte, binary bool) {
				g.dispatchWS(s, wsConn, string(payload))
			})
			wsConn.OnClose(func(code uint16, reason string) { s.Close() })
			g.mu.Lock()
			g.wsConns[s.ID()] = wsConn
			g.mu.Unlock()

			wsConn.CompleteHandshake(key)
			return
		}

		consumed, err := wsproto.DecodeFrames(buf, wsConn.HandleFrame)
		buf = buf[consumed:]
		if err != nil {
			g.log.Debug("closing websocket session on protocol error", "session_id", s.ID(), "error", err)
			s.Close()
			return
		}
	})
	s.SetCloseCallback(func() { g.untrackSession(s.ID()) })
	g.trackSession(s, kindWS)
	return s
}

func (g *Gateway) dispatchWS(s *netio.Session, conn *wsproto.Conn, text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.requestTimeout())
		defer cancel()

		reply, err := g.handler.HandleWS(ctx, s.ID(), text)
		if ctx.Err() != nil {
			g.log.Warn("dropping late websocket reply", "session_id", s.ID())
			return
		}
		if err != nil {
			g.log.Error("websocket handler error", "session_id", s.ID(), "error", err)
			return
		}
		conn.SendText(reply)
	}()
}

func (g *Gateway) dispatchUDP(sessionID uint64, data []byte, from *net.UDPAddr) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.requestTimeout())
		defer cancel()

		payload, consumed := binaryproto.Decode(data)
		if consumed == 0 {
			payload = data
		}

		reply, err := g.handler.HandleBinary(ctx, sessionID, payload)
		if ctx.Err() != nil {
			g.log.Warn("dropping late udp reply", "session_id", sessionID)
			return
		}
		if err != nil {
			g.log.Error("udp handler error", "session_id", sessionID, "error", err)
			return
		}
		g.udpManager.SendTo(sessionID, binaryproto.Encode(reply))
	}()
}
