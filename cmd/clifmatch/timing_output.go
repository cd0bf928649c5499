package main

import (
	"fmt"
	"io"
	"time"

	"clifmatch/internal/observ"
	"clifmatch/internal/pipeline"
)

// printStageTimings prints wall time summed per stage over all sessions,
// followed by the merged phase breakdown.
func printStageTimings(out io.Writer, timings *pipeline.Timings, timer *observ.Timer) {
	if out == nil {
		return
	}
	for _, stage := range pipeline.Stages {
		if !timings.Has(stage) {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s %.1f ms\n", stageVerb(stage), toMillis(timings.Duration(stage))); err != nil {
			panic(err)
		}
	}
	if timer != nil && len(timer.Phases()) > 0 {
		if _, err := fmt.Fprint(out, timer.Summary()); err != nil {
			panic(err)
		}
	}
}

func stageVerb(stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageLoad:
		return "loaded"
	case pipeline.StageMatch:
		return "matched"
	case pipeline.StageWrite:
		return "wrote"
	default:
		return string(stage)
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
