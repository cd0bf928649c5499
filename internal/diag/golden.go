package diag

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

type goldenDiagnostic struct {
	Severity string
	Code     string
	Path     string
	Line     int
	Decl     string
	Message  string
}

// FormatGoldenDiagnostics renders diagnostics one per line for golden
// files: paths are reduced to their base name, multi-line messages are
// folded, entries are sorted.
func FormatGoldenDiagnostics(diags []Diagnostic, includeNotes bool) string {
	return formatDiagnostics(diags, includeNotes, true)
}

// FormatShortDiagnostics renders the same single-line form with full paths
// for CLI short output.
func FormatShortDiagnostics(diags []Diagnostic, includeNotes bool) string {
	return formatDiagnostics(diags, includeNotes, false)
}

func formatDiagnostics(diags []Diagnostic, includeNotes, basePaths bool) string {
	if len(diags) == 0 {
		return ""
	}
	rendered := make([]goldenDiagnostic, 0, len(diags))
	for i := range diags {
		d := &diags[i]
		rendered = append(rendered, goldenEntry(strings.ToLower(d.Severity.String()), d.Code, d.Primary, d.Message, basePaths))
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			rendered = append(rendered, goldenEntry("note", d.Code, n.Span, n.Msg, basePaths))
		}
	}
	sort.SliceStable(rendered, func(i, j int) bool {
		di, dj := rendered[i], rendered[j]
		if di.Path != dj.Path {
			return di.Path < dj.Path
		}
		if di.Line != dj.Line {
			return di.Line < dj.Line
		}
		return di.Decl < dj.Decl
	})
	lines := make([]string, 0, len(rendered))
	for _, r := range rendered {
		loc := fmt.Sprintf("%s:%d", r.Path, r.Line)
		if r.Decl != "" {
			loc += " " + r.Decl
		}
		lines = append(lines, fmt.Sprintf("%s %s %s %s", r.Severity, r.Code, loc, r.Message))
	}
	return strings.Join(lines, "\n")
}

func goldenEntry(sev string, code Code, sp Span, msg string, basePaths bool) goldenDiagnostic {
	path := sp.File
	if basePaths && path != "" {
		path = filepath.Base(path)
	}
	return goldenDiagnostic{
		Severity: sev,
		Code:     code.ID(),
		Path:     path,
		Line:     sp.Line,
		Decl:     sp.Decl,
		Message:  strings.Join(strings.Fields(msg), " "),
	}
}
