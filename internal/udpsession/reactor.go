package udpsession

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

const maxDatagramSize = 65536

// Reactor drives a Manager's socket with a configurable number of worker
// goroutines and a periodic cleanup sweep. net.UDPConn's Read/Write methods
// are safe for concurrent use, so the worker goroutines replace the source's
// pool of threads sharing one io_context directly: no dispatch layer is
// needed between them.
type Reactor struct {
	manager *Manager
	log     *slog.Logger
	workers int

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewReactor creates a Reactor over manager with the given number of worker
// goroutines (at least 1) and cleanup sweep interval taken from the
// manager's configuration.
func NewReactor(manager *Manager, workers int, log *slog.Logger) *Reactor {
	if log == nil {
		log = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Reactor{
		manager: manager,
		log:     log,
		workers: workers,
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutines and the cleanup sweep goroutine.
func (r *Reactor) Start() {
	r.log.Info("udp reactor starting", "local_addr", r.manager.LocalAddr(), "workers", r.workers)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.cleanupLoop()
}

func (r *Reactor) worker(id int) {
	defer r.wg.Done()
	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := r.manager.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.log.Error("udp receive error", "worker", id, "error", err)
			continue
		}
		if n == 0 {
			continue
		}

		sessionID := r.manager.GetOrCreateSessionID(from)
		if r.manager.onReceive != nil {
			data := make([]byte, n)
			copy(data, buf[:n])
			r.manager.onReceive(sessionID, data, from)
		}
	}
}

func (r *Reactor) cleanupLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.manager.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.manager.CleanupExpired()
		case <-r.done:
			return
		}
	}
}

// Stop closes the underlying socket and waits for every worker and the
// cleanup sweep to exit.
func (r *Reactor) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		_ = r.manager.Close()
	})
	r.wg.Wait()
	r.log.Info("udp reactor stopped")
}
