package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clifmatch/internal/trace"
)

// setupTracing initializes the tracer from flags, falling back to the
// [trace] table of the manifest. It returns a cleanup function.
func (a *app) setupTracing(cmd *cobra.Command) (func(), error) {
	traceOutput, err := stringSetting(cmd, "trace", a.cfg.Trace.Output)
	if err != nil {
		return nil, err
	}
	levelStr, err := stringSetting(cmd, "trace-level", a.cfg.Trace.Level)
	if err != nil {
		return nil, err
	}
	modeStr, err := stringSetting(cmd, "trace-mode", a.cfg.Trace.Mode)
	if err != nil {
		return nil, err
	}
	ringSize, err := cmd.Flags().GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	heartbeatInterval, err := cmd.Flags().GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}
	// an output without a level means the user wants phases
	if level == trace.LevelOff && traceOutput != "" {
		level = trace.LevelPhase
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}

	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: traceOutput,
		RingSize:   ringSize,
		Heartbeat:  heartbeatInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	heartbeat := trace.StartHeartbeat(tracer, heartbeatInterval)

	cleanup := func() {
		heartbeat.Stop()
		if ring := ringOf(tracer); ring != nil && traceOutput == "" {
			if err := ring.Dump(cmd.ErrOrStderr(), trace.FormatText); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return cleanup, nil
}

// ringOf returns the in-memory ring of a ring-only tracer.
func ringOf(t trace.Tracer) *trace.RingTracer {
	if r, ok := t.(*trace.RingTracer); ok {
		return r
	}
	return nil
}
