package trace

import (
	"io"
	"sync"
)

// RingTracer keeps the last events in memory for dumps after a failure.
type RingTracer struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
	head     int
	full     bool
	level    Level
}

// NewRingTracer returns a ring of the given capacity (4096 if <= 0).
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{
		events:   make([]Event, capacity),
		capacity: capacity,
		level:    level,
	}
}

// Emit stores ev. At error level every scope is kept, since the ring only
// matters once something went wrong.
func (t *RingTracer) Emit(ev *Event) {
	if t.level != LevelError && !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	stored := *ev
	stored.Seq = NextSeq()
	t.events[t.head] = stored
	t.head = (t.head + 1) % t.capacity
	if t.head == 0 {
		t.full = true
	}
}

// Snapshot returns the stored events oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.full {
		out := make([]Event, t.head)
		copy(out, t.events[:t.head])
		return out
	}
	out := make([]Event, t.capacity)
	n := copy(out, t.events[t.head:])
	copy(out[n:], t.events[:t.head])
	return out
}

// Dump writes the snapshot to w.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	if format == FormatAuto || format == FormatChrome {
		format = FormatText
	}
	for _, ev := range t.Snapshot() {
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
