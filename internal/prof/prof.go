// Package prof wraps runtime profilers for long matching batches.
package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	rtrace "runtime/trace"
	"sync"
)

// Options names the output files; empty paths disable a profiler.
type Options struct {
	CPU   string
	Mem   string
	Trace string
}

// Enabled reports whether any profiler is requested.
func (o Options) Enabled() bool { return o.CPU != "" || o.Mem != "" || o.Trace != "" }

// Profile is a running set of profilers. Stop may be called more than once.
type Profile struct {
	opts      Options
	cpuFile   *os.File
	traceFile *os.File
	once      sync.Once
	err       error
}

// Start enables the profilers opts asks for. On failure nothing is left
// running.
func Start(opts Options) (*Profile, error) {
	p := &Profile{opts: opts}
	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		p.cpuFile = f
	}
	if opts.Trace != "" {
		f, err := os.Create(opts.Trace)
		if err != nil {
			p.stopCPU()
			return nil, fmt.Errorf("runtime trace: %w", err)
		}
		if err := rtrace.Start(f); err != nil {
			_ = f.Close()
			p.stopCPU()
			return nil, fmt.Errorf("runtime trace: %w", err)
		}
		p.traceFile = f
	}
	return p, nil
}

// Stop ends the CPU profile and runtime trace, then writes the heap
// profile. It returns the first error met.
func (p *Profile) Stop() error {
	if p == nil {
		return nil
	}
	p.once.Do(func() {
		var errs []error
		if p.traceFile != nil {
			rtrace.Stop()
			errs = append(errs, p.traceFile.Close())
			p.traceFile = nil
		}
		errs = append(errs, p.stopCPU())
		if p.opts.Mem != "" {
			errs = append(errs, writeHeap(p.opts.Mem))
		}
		p.err = errors.Join(errs...)
	})
	return p.err
}

func (p *Profile) stopCPU() error {
	if p.cpuFile == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := p.cpuFile.Close()
	p.cpuFile = nil
	return err
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("heap profile: %w", err)
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("heap profile: %w", err)
	}
	return f.Close()
}
