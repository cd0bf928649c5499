package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"clifmatch/internal/diag"
	"clifmatch/internal/ir"
	"clifmatch/internal/match"
	"clifmatch/internal/pipeline"
	"clifmatch/internal/trace"
)

func newMatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match [flags] <doc.yaml|doc.msgpack|directory>...",
		Short: "Resolve IR declarations against C++ headers",
		Long: `Resolve every declaration of one or more IR documents against the headers
they name. Directories are expanded to the IR documents they contain.
Decorated documents are written to --out, back in place with --in-place, or
to standard output with --print.`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runMatch,
	}
	addOracleFlags(cmd)
	cmd.Flags().StringSlice("aux", nil, "extra header accepted as a declaring file (repeatable)")
	cmd.Flags().Int("max-candidates", 0, "cap on spelling combinations tried per function (0=unlimited)")
	cmd.Flags().StringP("out", "o", "", "directory receiving decorated documents")
	cmd.Flags().Bool("in-place", false, "overwrite each input with its decorated document")
	cmd.Flags().Bool("print", false, "write decorated documents to standard output as YAML")
	cmd.Flags().String("format", "", "output IR format (yaml|msgpack; default: same as input)")
	cmd.Flags().Int("jobs", 0, "max parallel sessions (0=auto)")
	cmd.Flags().String("diag-format", "pretty", "diagnostic format (pretty|json|short)")
	cmd.Flags().Bool("with-notes", true, "include diagnostic notes")
	cmd.Flags().Bool("fullpath", false, "emit absolute file paths in diagnostics")
	cmd.Flags().String("emit-tu", "", "directory receiving each synthesized translation unit")
	return cmd
}

func (a *app) runMatch(cmd *cobra.Command, args []string) error {
	useColor, err := a.useColor(cmd)
	if err != nil {
		return err
	}
	cleanup, err := a.setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()
	ctx := cmd.Context()
	tracer := trace.FromContext(ctx)

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := cmd.Flags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	outDir, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	inPlace, err := cmd.Flags().GetBool("in-place")
	if err != nil {
		return fmt.Errorf("failed to get in-place flag: %w", err)
	}
	printDocs, err := cmd.Flags().GetBool("print")
	if err != nil {
		return fmt.Errorf("failed to get print flag: %w", err)
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	emitTU, err := cmd.Flags().GetString("emit-tu")
	if err != nil {
		return fmt.Errorf("failed to get emit-tu flag: %w", err)
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	diagFormat, err := cmd.Flags().GetString("diag-format")
	if err != nil {
		return fmt.Errorf("failed to get diag-format flag: %w", err)
	}
	diagFormat = strings.ToLower(diagFormat)
	if err := checkDiagFormat(diagFormat); err != nil {
		return err
	}
	if inPlace && outDir != "" {
		return fmt.Errorf("--in-place and --out are mutually exclusive")
	}
	if printDocs && (inPlace || outDir != "") {
		return fmt.Errorf("--print cannot be combined with --in-place or --out")
	}

	session := a.cfg.Session
	includes, err := stringsSetting(cmd, "include", session.IncludePaths)
	if err != nil {
		return err
	}
	aux, err := stringsSetting(cmd, "aux", session.AuxFiles)
	if err != nil {
		return err
	}
	maxCandidates, err := intSetting(cmd, "max-candidates", session.MaxCandidates)
	if err != nil {
		return err
	}
	jobs, err := intSetting(cmd, "jobs", session.Jobs)
	if err != nil {
		return err
	}
	maxDiags, err := intSetting(cmd, "max-diagnostics", session.MaxDiags)
	if err != nil {
		return err
	}
	uiValue, err := stringSetting(cmd, "ui", a.cfg.UI.Mode)
	if err != nil {
		return err
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	inputs, err := expandInputs(args)
	if err != nil {
		return err
	}

	setup := diag.NewBag(0)
	oc, err := a.oracleSettings(cmd)
	if err != nil {
		return err
	}
	o, err := buildOracle(oc, tracer, diag.BagReporter{Bag: setup})
	if err != nil {
		return err
	}

	req := &pipeline.Request{
		Inputs:    inputs,
		OutputDir: outDir,
		InPlace:   inPlace,
		Format:    format,
		Oracle:    o,
		Options: match.Options{
			IncludePaths:  includes,
			AuxFiles:      aux,
			MaxCandidates: maxCandidates,
			Tracer:        tracer,
		},
		Jobs:     jobs,
		MaxDiags: maxDiags,
	}

	var sum *pipeline.Summary
	if !quiet && !printDocs && shouldUseTUI(mode, cmd.OutOrStdout()) {
		sum, err = runBatchWithUI(ctx, cmd.OutOrStdout(), "clifmatch", req)
	} else {
		sum, err = pipeline.Run(ctx, req)
	}
	if sum == nil {
		return err
	}
	if err != nil && !errors.Is(err, ctx.Err()) {
		return err
	}

	if printDocs {
		if err := printDocuments(cmd, sum); err != nil {
			return err
		}
	}
	if emitTU != "" {
		if err := writeUnits(emitTU, sum); err != nil {
			return err
		}
	}

	bag := diag.NewBag(0)
	bag.Merge(setup)
	bag.Merge(sum.Diagnostics())
	diagOut := cmd.ErrOrStderr()
	if diagFormat == "json" {
		diagOut = cmd.OutOrStdout()
	}
	if err := renderDiagnostics(diagOut, bag, diagOptions{
		format:    diagFormat,
		color:     useColor,
		fullPath:  fullPath,
		withNotes: withNotes,
		summary:   !quiet,
		max:       maxDiags,
	}); err != nil {
		return err
	}

	if !quiet && diagFormat != "json" {
		fmt.Fprintln(cmd.ErrOrStderr(), batchLine(sum))
	}
	if showTimings {
		printStageTimings(cmd.ErrOrStderr(), &sum.Timings, sum.Timer)
	}
	if err != nil {
		return err
	}
	if code := sum.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// batchLine summarizes a batch in one line.
func batchLine(sum *pipeline.Summary) string {
	var ok, failed, aborted int
	for _, r := range sum.Results {
		switch {
		case r.Err != nil || r.Fatal != nil:
			aborted++
		case r.Failed > 0:
			failed++
		default:
			ok++
		}
	}
	line := fmt.Sprintf("%d of %d documents matched", ok, len(sum.Results))
	if failed > 0 {
		line += fmt.Sprintf(", %d with unmatched declarations (%d total)", failed, sum.Failed())
	}
	if aborted > 0 {
		line += fmt.Sprintf(", %d aborted", aborted)
	}
	return line
}

// expandInputs replaces directories by the IR documents directly inside
// them, sorted by name.
func expandInputs(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %q: %w", arg, err)
		}
		if !st.IsDir() {
			out = append(out, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", arg, err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() || !isIRDocument(e.Name()) {
				continue
			}
			found = append(found, filepath.Join(arg, e.Name()))
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no IR documents in %s", arg)
		}
		slices.Sort(found)
		out = append(out, found...)
	}
	return out, nil
}

func isIRDocument(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".msgpack", ".mpk", ".ir":
		return true
	}
	return false
}

func printDocuments(cmd *cobra.Command, sum *pipeline.Summary) error {
	out := cmd.OutOrStdout()
	multi := len(sum.Results) > 1
	first := true
	for _, r := range sum.Results {
		if r.AST == nil || r.Fatal != nil {
			continue
		}
		if multi {
			if !first {
				fmt.Fprintln(out, "---")
			}
			fmt.Fprintf(out, "# %s\n", r.Input)
		}
		first = false
		if err := ir.Encode(out, r.AST, ir.FormatYAML); err != nil {
			return fmt.Errorf("encode %s: %w", r.Input, err)
		}
	}
	return nil
}

// writeUnits stores each synthesized unit as <dir>/<input base>.cc.
func writeUnits(dir string, sum *pipeline.Summary) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for _, r := range sum.Results {
		if r.Unit == nil {
			continue
		}
		base := filepath.Base(r.Input)
		name := strings.TrimSuffix(base, filepath.Ext(base)) + ".cc"
		if err := os.WriteFile(filepath.Join(dir, name), []byte(r.Unit.Source), 0o644); err != nil {
			return fmt.Errorf("write unit: %w", err)
		}
	}
	return nil
}
