package telemetry

import (
	"slices"
	"sync"
	"time"

	"github.com/jonwraymond/depguard/service"
)

// Kind classifies a telemetry event.
type Kind int

const (
	KindError Kind = iota
	KindWarning
	KindInfo
)

func (k Kind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindWarning:
		return "warning"
	case KindInfo:
		return "info"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is an immutable record of something that happened to a service.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Kind      Kind           `json:"kind"`
	Service   service.ID     `json:"service"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ring is a fixed-capacity event buffer that drops the oldest event on
// overflow.
type ring struct {
	mu    sync.Mutex
	buf   []Event
	start int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Event, capacity)}
}

func (r *ring) push(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = e
		r.size++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

// all returns the buffered events, oldest first.
func (r *ring) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, r.size)
	for i := range r.size {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// recent returns up to n of the newest events for id, oldest first.
func (r *ring) recent(id service.ID, n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, 0, n)
	for i := r.size - 1; i >= 0 && len(out) < n; i-- {
		e := r.buf[(r.start+i)%len(r.buf)]
		if e.Service == id {
			out = append(out, e)
		}
	}
	slices.Reverse(out)
	return out
}

func (r *ring) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buf)
	r.start = 0
	r.size = 0
}
