package pipeline

import (
	"sync"
	"time"
)

// Stage describes a high-level pipeline phase of one session.
type Stage string

const (
	// StageLoad decodes the IR document.
	StageLoad Stage = "load"
	// StageMatch synthesizes, compiles and matches the unit.
	StageMatch Stage = "match"
	// StageWrite serializes the decorated IR.
	StageWrite Stage = "write"
)

// Stages lists the stages in execution order.
var Stages = []Stage{StageLoad, StageMatch, StageWrite}

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the session is waiting for a worker.
	StatusQueued Status = "queued"
	// StatusWorking indicates the session is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the stage is done.
	StatusDone Status = "done"
	// StatusFailed indicates the session finished with unmatched declarations.
	StatusFailed Status = "failed"
	// StatusError indicates the session was aborted.
	StatusError Status = "error"
)

// Event reports progress for one input (or for the whole batch when File is empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Sessions run in parallel, so
// OnEvent may be called concurrently.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds stage durations.
type Timings struct {
	mu     sync.Mutex
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Add accumulates a duration for the given stage.
func (t *Timings) Add(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensure()
	t.stages[stage] += dur
}

// Has reports whether a duration for stage is recorded.
func (t *Timings) Has(stage Stage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t *Timings) Duration(stage Stage) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t *Timings) Sum(stages ...Stage) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
