// Package netio implements the gateway's TCP connection machinery: Session,
// SlaveReactor, and MasterReactor form the master/slave reactor pattern
// described for the binary, minimal-HTTP, and WebSocket listeners. Go's
// goroutine-per-connection model replaces the cooperative single-threaded
// event loop of the design this is grounded on; SlaveReactor exists to keep
// the round-robin distribution and per-reactor accounting the design
// requires, not to multiplex I/O itself.
package netio

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// readBufferSize is the fixed size of a Session's read buffer.
const readBufferSize = 8192

// ReadFunc is invoked with each chunk read from the socket.
type ReadFunc func(data []byte)

// CloseFunc is invoked exactly once when the session closes.
type CloseFunc func()

var nextSessionID atomic.Uint64

// Session owns one accepted TCP connection: a fixed-size read loop, a
// serialized write queue, and a close sequence that runs exactly once.
type Session struct {
	id   uint64
	conn net.Conn
	log  *slog.Logger

	onRead  ReadFunc
	onClose CloseFunc

	writeCh   chan writeRequest
	closeOnce sync.Once
	closed    chan struct{}
}

type writeRequest struct {
	data       []byte
	closeAfter bool
}

// NewSession wraps conn in a Session with the next monotonically increasing
// id. Call SetReadCallback/SetCloseCallback before Start.
func NewSession(conn net.Conn, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		id:      nextSessionID.Add(1),
		conn:    conn,
		log:     log,
		writeCh: make(chan writeRequest, 64),
		closed:  make(chan struct{}),
	}
}

// ID returns the session's identity, stable for its lifetime.
func (s *Session) ID() uint64 { return s.id }

// RemoteAddr returns the underlying connection's remote address.
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// SetReadCallback sets the function invoked for every chunk read from the
// socket. Must be called before Start.
func (s *Session) SetReadCallback(f ReadFunc) { s.onRead = f }

// SetCloseCallback sets the function invoked exactly once when the session
// closes. Must be called before Start.
func (s *Session) SetCloseCallback(f CloseFunc) { s.onClose = f }

// Start arms the read loop and the write-queue drain loop. Both run in their
// own goroutines and return when the session closes.
func (s *Session) Start() {
	s.log.Debug("session started", "session_id", s.id, "remote_addr", s.conn.RemoteAddr())
	go s.writeLoop()
	go s.readLoop()
}

func (s *Session) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 && s.onRead != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.onRead(chunk)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("session read error", "session_id", s.id, "error", err)
			}
			s.Close()
			return
		}
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case req, ok := <-s.writeCh:
			if !ok {
				return
			}
			if _, err := writeAll(s.conn, req.data); err != nil {
				s.log.Debug("session write error", "session_id", s.id, "error", err)
				s.Close()
				return
			}
			if req.closeAfter {
				s.Close()
				return
			}
		case <-s.closed:
			return
		}
	}
}

// Send enqueues data for writing. Writes are serialized in call order; a
// send after Close is silently dropped.
func (s *Session) Send(data []byte) {
	s.enqueue(writeRequest{data: data})
}

// SendAndClose enqueues data for writing and closes the session once it has
// been fully flushed, for protocols that answer one request and hang up
// (e.g. the minimal HTTP handler's Connection: close policy).
func (s *Session) SendAndClose(data []byte) {
	s.enqueue(writeRequest{data: data, closeAfter: true})
}

func (s *Session) enqueue(req writeRequest) {
	select {
	case <-s.closed:
		return
	default:
	}
	select {
	case s.writeCh <- req:
	case <-s.closed:
	}
}

// Close shuts down the connection and invokes the close callback exactly
// once. Safe to call concurrently and more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
		if s.onClose != nil {
			s.onClose()
		}
		s.log.Debug("session closed", "session_id", s.id)
	})
}

func writeAll(conn net.Conn, data []byte) (int, error) {
	total := 0
	for total < len(data) {
		n, err := conn.Write(data[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
