// Package beastserver implements the gateway's alternative HTTP front end:
// a net/http + chi server standing in for a proven HTTP library's accept
// loop and request/response adaptation, the way the design this is grounded
// on layers a mature HTTP library (Boost.Beast) alongside the hand-rolled
// minimal handler in internal/httpproto.
package beastserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/shieldgw/shield/internal/app"
)

// Config configures the Beast-style front end.
type Config struct {
	Host           string
	Port           uint16
	Threads        int // 0 means GOMAXPROCS; logged as a hint only, net/http schedules its own goroutines
	RootPath       string
	MaxRequestSize int64
}

// Server wraps a chi-routed *http.Server that adapts every request into an
// app.Handler.HandleHTTP call. Unlike internal/httpproto's minimal handler,
// it honors HTTP/1.1 keep-alive via net/http's own connection handling.
type Server struct {
	cfg      Config
	handler  app.Handler
	log      *slog.Logger
	srv      *http.Server
	listener net.Listener
}

// New builds a Server. It does not bind a socket until Start is called.
func New(cfg Config, handler app.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RootPath == "" {
		cfg.RootPath = "/"
	}
	if cfg.MaxRequestSize == 0 {
		cfg.MaxRequestSize = 1024 * 1024
	}

	threads := cfg.Threads
	if threads == 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	log.Info("beast server configured", "threads_hint", threads, "root_path", cfg.RootPath)

	s := &Server{cfg: cfg, handler: handler, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.stripRootPath)
	r.Use(s.serverHeader)
	r.HandleFunc("/*", s.handleRequest)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: r,
	}
	return s
}

func (s *Server) serverHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "shield")
		next.ServeHTTP(w, r)
	})
}

// stripRootPath removes the configured root path prefix from the request
// target before routing, matching the minimal handler's built-in routes
// being anchored at "/".
func (s *Server) stripRootPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RootPath != "/" && strings.HasPrefix(r.URL.Path, s.cfg.RootPath) {
			trimmed := strings.TrimPrefix(r.URL.Path, s.cfg.RootPath)
			if trimmed == "" {
				trimmed = "/"
			}
			if !strings.HasPrefix(trimmed, "/") {
				trimmed = "/" + trimmed
			}
			r.URL.Path = trimmed
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestSize)

	body, err := readAll(r)
	if err != nil {
		http.Error(w, `{"error":"request too large"}`, http.StatusRequestEntityTooLarge)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp, err := s.handler.HandleHTTP(ctx, app.Request{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		requestID := uuid.NewString()
		s.log.Error("beast handler error", "path", r.URL.Path, "error", err, "request_id", requestID)
		http.Error(w, fmt.Sprintf(`{"error":"internal server error","request_id":%q}`, requestID), http.StatusInternalServerError)
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	if resp.Headers["Content-Type"] == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

func readAll(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := r.Body.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf, nil
			}
			return buf, err
		}
	}
}

// Start binds the listener and serves in the background, returning once the
// socket is bound. Serve errors after Start are logged, not returned.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("beastserver: listen %s: %w", s.srv.Addr, err)
	}
	s.listener = ln
	s.log.Info("beast server starting", "addr", ln.Addr())
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("beast server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listener's address. Valid only after Start.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Stop gracefully shuts the server down within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
