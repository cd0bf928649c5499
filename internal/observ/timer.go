package observ

import (
	"fmt"
	"sync"
	"time"
)

// Phase records the duration and metadata of one session phase.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer tracks the execution time of multiple phases. Safe for concurrent use.
type Timer struct {
	mu     sync.Mutex
	phases []Phase
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 8)} }

// Begin starts a new phase and returns its index.
func (t *Timer) Begin(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End finishes a phase by its index.
func (t *Timer) End(idx int, note string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
}

// Phases returns a copy of the recorded phases.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Phase(nil), t.phases...)
}

// Merge folds the phases of other into t, summing durations of phases
// with the same name. New names keep their order of first appearance.
func (t *Timer) Merge(other *Timer) {
	if other == nil || other == t {
		return
	}
	src := other.Phases()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range src {
		merged := false
		for i := range t.phases {
			if t.phases[i].Name == p.Name {
				t.phases[i].Dur += p.Dur
				merged = true
				break
			}
		}
		if !merged {
			p.Note = ""
			t.phases = append(t.phases, p)
		}
	}
}

// Summary returns a human-readable string summarizing all tracked phases.
func (t *Timer) Summary() string {
	report := t.Report()
	out := "timings:\n"
	for _, p := range report.Phases {
		out += fmt.Sprintf("  %-20s %7.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			out += "  // " + p.Note
		}
		out += "\n"
	}
	out += fmt.Sprintf("  %-20s %7.2f ms\n", "total", report.TotalMS)
	return out
}

// PhaseReport is the serializable summary of one phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report aggregates the timer for serialization.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Report returns every phase and the total duration in milliseconds.
func (t *Timer) Report() Report {
	phases := t.Phases()
	if len(phases) == 0 {
		return Report{}
	}
	report := Report{
		Phases: make([]PhaseReport, len(phases)),
	}
	var total time.Duration
	for i, phase := range phases {
		total += phase.Dur
		report.Phases[i] = PhaseReport{
			Name:       phase.Name,
			DurationMS: durationToMillis(phase.Dur),
			Note:       phase.Note,
		}
	}
	report.TotalMS = durationToMillis(total)
	return report
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
