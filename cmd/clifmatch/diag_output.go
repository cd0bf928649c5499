package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"clifmatch/internal/diag"
	"clifmatch/internal/diagfmt"
)

type diagOptions struct {
	format    string
	color     bool
	fullPath  bool
	withNotes bool
	summary   bool
	max       int
}

func checkDiagFormat(format string) error {
	switch format {
	case "pretty", "json", "short":
		return nil
	}
	return fmt.Errorf("unsupported diagnostic format %q (must be pretty, json or short)", format)
}

// renderDiagnostics writes bag in the requested format. Pretty output is
// wrapped to the terminal width when out is a terminal.
func renderDiagnostics(out io.Writer, bag *diag.Bag, opts diagOptions) error {
	bag.Sort()
	pathMode := diagfmt.PathModeAuto
	if opts.fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}
	base, err := os.Getwd()
	if err != nil {
		base = ""
	}
	switch opts.format {
	case "json":
		return diagfmt.JSON(out, bag, diagfmt.JSONOpts{
			PathMode:     pathMode,
			BaseDir:      base,
			Max:          opts.max,
			IncludeNotes: opts.withNotes,
		})
	case "short":
		text := diag.FormatShortDiagnostics(bag.Items(), opts.withNotes)
		if text == "" {
			return nil
		}
		_, err := fmt.Fprintln(out, text)
		return err
	default:
		if bag.Len() == 0 {
			return nil
		}
		diagfmt.Pretty(out, bag, diagfmt.PrettyOpts{
			Color:     opts.color,
			PathMode:  pathMode,
			BaseDir:   base,
			Width:     terminalWidth(out),
			ShowNotes: opts.withNotes,
			Summary:   opts.summary,
		})
		return nil
	}
}

func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !isTerminal(out) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 0
	}
	return w
}

// padRight pads s to width display columns.
func padRight(s string, width int) string {
	if n := runewidth.StringWidth(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
