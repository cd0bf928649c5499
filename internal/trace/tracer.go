package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Tracer receives trace events. Implementations are goroutine-safe.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
	Enabled() bool
}

// StorageMode selects where events go.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1
	ModeRing
	ModeBoth
)

func (m StorageMode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeRing:
		return "ring"
	case ModeBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseMode converts a flag or config value to a StorageMode.
func ParseMode(s string) (StorageMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stream", "":
		return ModeStream, nil
	case "ring":
		return ModeRing, nil
	case "both":
		return ModeBoth, nil
	default:
		return ModeStream, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
	}
}

// Config describes a tracer.
type Config struct {
	Level      Level
	Mode       StorageMode
	Format     Format
	Output     io.Writer
	OutputPath string // "-" or "" is stderr
	RingSize   int
	Heartbeat  time.Duration
}

// New builds the tracer cfg describes. LevelOff yields Nop.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	format := cfg.Format
	if format == FormatAuto {
		format = FormatText
		if cfg.OutputPath != "" && cfg.OutputPath != "-" {
			format = FormatForPath(cfg.OutputPath)
		}
	}
	switch cfg.Mode {
	case ModeStream, 0:
		w, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		return NewStreamTracer(w, cfg.Level, format), nil
	case ModeRing:
		return NewRingTracer(cfg.RingSize, cfg.Level), nil
	case ModeBoth:
		w, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		return NewMultiTracer(cfg.Level,
			NewStreamTracer(w, cfg.Level, format),
			NewRingTracer(cfg.RingSize, cfg.Level),
		), nil
	}
	return nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return os.Stderr, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("open trace output: %w", err)
	}
	return f, nil
}
