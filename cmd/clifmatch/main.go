package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"clifmatch/internal/config"
	"clifmatch/internal/version"
)

// exitError carries a process exit code for a failure already reported
// to the user.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// app holds state shared by subcommands once the root pre-run has loaded
// the manifest.
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Default()}
	rootCmd := &cobra.Command{
		Use:   "clifmatch",
		Short: "Match CLIF declarations against C++ headers",
		Long: `clifmatch resolves every declaration of a CLIF IR document against the
C++ headers it wraps and writes the document back with C++ names, types
and capability flags filled in`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}

	rootCmd.AddCommand(newMatchCmd(a))
	rootCmd.AddCommand(newSynthCmd(a))
	rootCmd.AddCommand(newLookupCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	// global flags; empty values fall back to clifmatch.toml
	rootCmd.PersistentFlags().String("config", "", "path to clifmatch.toml (default: nearest one above the working directory)")
	rootCmd.PersistentFlags().String("color", "", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("ui", "", "progress UI for batches (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 0, "maximum number of diagnostics kept per document (0=unlimited)")
	rootCmd.PersistentFlags().String("trace", "", "trace output file (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "", "trace storage (stream|ring|both)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "events kept by the ring tracer")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "emit trace heartbeats at this interval (0=off)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to file")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to file")
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI and maps its outcome to an exit code: 1 when a
// declaration failed to match, 2 when a session or the command itself
// could not complete.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var ce *config.Error
	if errors.As(err, &ce) {
		fmt.Fprintf(stderr, "error %s: %v\n", ce.Code.ID(), ce)
		return 2
	}
	fmt.Fprintf(stderr, "clifmatch: %v\n", err)
	return 2
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
