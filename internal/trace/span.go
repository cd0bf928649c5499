package trace

import (
	"bytes"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

var (
	globalSeq   atomic.Uint64
	globalSpans atomic.Uint64
)

// NextSeq returns a monotonically increasing sequence number.
func NextSeq() uint64 { return globalSeq.Add(1) }

// NextSpanID returns a process-unique span ID.
func NextSpanID() uint64 { return globalSpans.Add(1) }

// goroutineID parses "goroutine N [" from the current stack header.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}
	gid, err := strconv.ParseUint(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return gid
}

// emits reports whether t records events of scope. Error level records
// everything into its ring.
func emits(t Tracer, scope Scope) bool {
	if t == nil || !t.Enabled() {
		return false
	}
	l := t.Level()
	return l == LevelError || l.ShouldEmit(scope)
}

// Span tracks one begin/end pair.
type Span struct {
	tracer   Tracer
	id       uint64
	parentID uint64
	gid      uint64
	scope    Scope
	name     string
	started  time.Time
	extra    map[string]string
}

// Begin emits a begin event and returns the open span. parent is the
// enclosing span ID, 0 for roots.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if !emits(t, scope) {
		return &Span{tracer: Nop, parentID: parent, started: time.Now()}
	}
	s := &Span{
		tracer:   t,
		id:       NextSpanID(),
		parentID: parent,
		gid:      goroutineID(),
		scope:    scope,
		name:     name,
		started:  time.Now(),
	}
	t.Emit(&Event{
		Time:     s.started,
		Kind:     KindSpanBegin,
		Scope:    scope,
		SpanID:   s.id,
		ParentID: parent,
		GID:      s.gid,
		Name:     name,
	})
	return s
}

// End emits the end event and returns the span's duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil {
		return 0
	}
	dur := time.Since(s.started)
	if !s.tracer.Enabled() {
		return dur
	}
	s.tracer.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindSpanEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parentID,
		GID:      s.gid,
		Name:     s.name,
		Detail:   detail,
		Extra:    s.extra,
	})
	return dur
}

// WithExtra attaches key=value to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || !s.tracer.Enabled() {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string)
	}
	s.extra[key] = value
	return s
}

// ID returns the span ID, or the parent's for a disabled span so that
// children still nest under the nearest recorded span.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	if s.id == 0 {
		return s.parentID
	}
	return s.id
}

// Point emits an instant event.
func Point(t Tracer, scope Scope, name, detail string, parent uint64) {
	if !emits(t, scope) {
		return
	}
	t.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: parent,
		GID:      goroutineID(),
		Name:     name,
		Detail:   detail,
	})
}
