package trace

import "errors"

// MultiTracer fans events out to several tracers.
type MultiTracer struct {
	tracers []Tracer
	level   Level
}

// NewMultiTracer returns a tracer emitting to every tracer in tracers.
func NewMultiTracer(level Level, tracers ...Tracer) *MultiTracer {
	return &MultiTracer{tracers: tracers, level: level}
}

// Emit hands each tracer its own copy so sequence numbers stay private.
func (t *MultiTracer) Emit(ev *Event) {
	for _, tr := range t.tracers {
		cp := *ev
		tr.Emit(&cp)
	}
}

func (t *MultiTracer) Flush() error {
	var errs []error
	for _, tr := range t.tracers {
		errs = append(errs, tr.Flush())
	}
	return errors.Join(errs...)
}

func (t *MultiTracer) Close() error {
	var errs []error
	for _, tr := range t.tracers {
		errs = append(errs, tr.Close())
	}
	return errors.Join(errs...)
}

func (t *MultiTracer) Level() Level  { return t.level }
func (t *MultiTracer) Enabled() bool { return t.level > LevelOff }

// Ring returns the first ring tracer behind t, if any.
func (t *MultiTracer) Ring() *RingTracer {
	for _, tr := range t.tracers {
		if r, ok := tr.(*RingTracer); ok {
			return r
		}
	}
	return nil
}
