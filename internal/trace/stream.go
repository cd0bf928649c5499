package trace

import (
	"errors"
	"io"
	"os"
	"sync"
)

// StreamTracer writes events to w as they arrive.
type StreamTracer struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
	wrote  bool
	closed bool
}

// NewStreamTracer returns a tracer writing to w.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	if format == FormatAuto {
		format = FormatText
	}
	st := &StreamTracer{w: w, level: level, format: format}
	if format == FormatChrome {
		_, _ = io.WriteString(w, "{\"traceEvents\":[\n")
	}
	return st
}

// Emit writes ev. Write errors are dropped; tracing never fails a session.
func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	ev.Seq = NextSeq()
	data := FormatEvent(ev, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.format == FormatChrome && t.wrote {
		_, _ = io.WriteString(t.w, ",\n")
	}
	t.wrote = true
	_, _ = t.w.Write(data)
}

func (t *StreamTracer) Flush() error {
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	if f, ok := t.w.(*os.File); ok && f != os.Stderr && f != os.Stdout {
		return f.Sync()
	}
	return nil
}

// Close terminates a Chrome document and closes files the tracer owns.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.format == FormatChrome {
		_, _ = io.WriteString(t.w, "\n]}\n")
	}
	t.mu.Unlock()

	err := t.Flush()
	if c, ok := t.w.(io.Closer); ok && t.w != io.Writer(os.Stderr) && t.w != io.Writer(os.Stdout) {
		err = errors.Join(err, c.Close())
	}
	return err
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
