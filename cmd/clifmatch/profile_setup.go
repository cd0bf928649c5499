package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clifmatch/internal/prof"
)

// setupProfiling starts the profilers the persistent flags ask for and
// returns a cleanup that is safe to call more than once.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	var opts prof.Options
	var err error
	if opts.CPU, err = cmd.Flags().GetString("cpu-profile"); err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if opts.Mem, err = cmd.Flags().GetString("mem-profile"); err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if opts.Trace, err = cmd.Flags().GetString("runtime-trace"); err != nil {
		return nil, fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !opts.Enabled() {
		return func() {}, nil
	}
	p, err := prof.Start(opts)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := p.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", err)
		}
	}, nil
}
