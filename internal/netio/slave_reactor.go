package netio

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// SlaveReactor owns a subset of sessions assigned to it by a MasterReactor.
// PostSession starts the session and counts it against this reactor, giving
// the round-robin distribution invariant something to measure.
type SlaveReactor struct {
	id       int
	log      *slog.Logger
	sessions chan *Session
	assigned atomic.Uint64

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewSlaveReactor creates a SlaveReactor identified by id (for logging).
func NewSlaveReactor(id int, log *slog.Logger) *SlaveReactor {
	if log == nil {
		log = slog.Default()
	}
	r := &SlaveReactor{
		id:       id,
		log:      log,
		sessions: make(chan *Session, 256),
		done:     make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *SlaveReactor) run() {
	defer r.wg.Done()
	r.log.Debug("slave reactor running", "reactor_id", r.id)
	for {
		select {
		case s := <-r.sessions:
			s.Start()
		case <-r.done:
			return
		}
	}
}

// PostSession schedules s to start on this reactor and increments its
// assigned-session count.
func (r *SlaveReactor) PostSession(s *Session) {
	r.assigned.Add(1)
	select {
	case r.sessions <- s:
	case <-r.done:
	}
}

// Assigned returns the number of sessions posted to this reactor over its
// lifetime.
func (r *SlaveReactor) Assigned() uint64 { return r.assigned.Load() }

// Stop signals the reactor's loop to exit and waits for it to do so.
// Sessions already started continue running independently; Stop does not
// close them.
func (r *SlaveReactor) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}
