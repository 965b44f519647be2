// Package metrics declares the gateway's metrics collaborator. Wiring a real
// metrics backend (Prometheus, statsd, or otherwise) is outside this
// module's scope; Sink exists so the gateway has somewhere to report counts
// without depending on any particular backend.
package metrics

// Sink receives counters and timings from the gateway's components. All
// methods must be safe for concurrent use; the gateway calls them from every
// reactor goroutine.
type Sink interface {
	// IncCounter increments a named counter by delta, tagged with labels.
	IncCounter(name string, delta int64, labels map[string]string)

	// ObserveDuration records a duration (nanoseconds) for a named
	// histogram/timer, tagged with labels.
	ObserveDuration(name string, nanos int64, labels map[string]string)

	// SetGauge sets a named gauge to value, tagged with labels.
	SetGauge(name string, value int64, labels map[string]string)
}

// Noop is a Sink that discards everything. It is the gateway's default when
// no Sink is supplied, so call sites never need a nil check.
type Noop struct{}

func (Noop) IncCounter(string, int64, map[string]string)      {}
func (Noop) ObserveDuration(string, int64, map[string]string) {}
func (Noop) SetGauge(string, int64, map[string]string)        {}
