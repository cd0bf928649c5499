package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"clifmatch/internal/diag"
)

// Pretty writes diagnostics in human-readable form, one block per item:
//
//	<path>:<line>: <SEV> <CODE>: <message>
//	    in <decl label>
//	  note: <path>:<line>: <message>
//
// Items are printed in bag order; call bag.Sort() first for stable output.
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) {
	if bag == nil {
		return
	}
	p := newPalette(opts.Color)
	for _, d := range bag.Items() {
		prettyOne(w, d, opts, p)
	}
	if opts.Summary {
		fmt.Fprintln(w, Summary(bag))
	}
}

// Summary counts diagnostics by severity, e.g. "2 errors, 1 warning".
func Summary(bag *diag.Bag) string {
	var errs, warns int
	for _, d := range bag.Items() {
		switch {
		case d.Severity >= diag.SevError:
			errs++
		case d.Severity == diag.SevWarning:
			warns++
		}
	}
	return fmt.Sprintf("%s, %s", plural(errs, "error"), plural(warns, "warning"))
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

type palette struct {
	path, code, note, decl *color.Color
	sev                    map[diag.Severity]*color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		path: mk(color.Bold),
		code: mk(color.Faint),
		note: mk(color.FgBlue, color.Bold),
		decl: mk(color.FgCyan),
		sev: map[diag.Severity]*color.Color{
			diag.SevInfo:    mk(color.FgCyan, color.Bold),
			diag.SevWarning: mk(color.FgYellow, color.Bold),
			diag.SevError:   mk(color.FgRed, color.Bold),
			diag.SevFatal:   mk(color.FgRed, color.Bold, color.Underline),
		},
	}
}

func prettyOne(w io.Writer, d diag.Diagnostic, opts PrettyOpts, p palette) {
	loc := location(d.Primary, opts.PathMode, opts.BaseDir)
	sev, ok := p.sev[d.Severity]
	if !ok {
		sev = p.sev[diag.SevError]
	}
	head := sev.Sprint(d.Severity.String()) + " " + p.code.Sprint(d.Code.ID())
	if loc != "" {
		head = p.path.Sprint(loc) + ": " + head
	}

	lines := strings.Split(strings.TrimRight(d.Message, "\n"), "\n")
	first := wrap(lines[0], opts.Width)
	fmt.Fprintf(w, "%s: %s\n", head, first[0])
	for _, l := range first[1:] {
		fmt.Fprintf(w, "    %s\n", l)
	}
	for _, line := range lines[1:] {
		for _, l := range wrap(strings.TrimSpace(line), opts.Width-4) {
			fmt.Fprintf(w, "    %s\n", l)
		}
	}
	if d.Primary.Decl != "" && d.Primary.Line > 0 {
		fmt.Fprintf(w, "    in %s\n", p.decl.Sprint(d.Primary.Decl))
	}
	if !opts.ShowNotes {
		return
	}
	for _, n := range d.Notes {
		nloc := location(n.Span, opts.PathMode, opts.BaseDir)
		if nloc != "" {
			nloc += ": "
		}
		fmt.Fprintf(w, "  %s %s%s\n", p.note.Sprint("note:"), nloc, n.Msg)
	}
}

// location renders a span as path:line, falling back to the decl label
// for spans without a file.
func location(sp diag.Span, mode PathMode, base string) string {
	path := formatPath(sp.File, mode, base)
	switch {
	case path == "" && sp.Line == 0:
		return sp.Decl
	case path == "":
		return fmt.Sprintf("line %d", sp.Line)
	case sp.Line == 0:
		return path
	}
	return fmt.Sprintf("%s:%d", path, sp.Line)
}

// wrap breaks text on spaces so that no line is wider than width
// columns. Words longer than width stay whole.
func wrap(text string, width int) []string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return []string{text}
	}
	var out []string
	var cur strings.Builder
	curWidth := 0
	for _, word := range strings.Fields(text) {
		ww := runewidth.StringWidth(word)
		if curWidth > 0 && curWidth+1+ww > width {
			out = append(out, cur.String())
			cur.Reset()
			curWidth = 0
		}
		if curWidth > 0 {
			cur.WriteByte(' ')
			curWidth++
		}
		cur.WriteString(word)
		curWidth += ww
	}
	if cur.Len() > 0 || len(out) == 0 {
		out = append(out, cur.String())
	}
	return out
}
