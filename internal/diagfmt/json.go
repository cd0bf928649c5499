package diagfmt

import (
	"encoding/json"
	"io"

	"clifmatch/internal/diag"
)

// LocationJSON locates a diagnostic in an IR document.
type LocationJSON struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
	Decl string `json:"decl,omitempty"`
}

// NoteJSON is an extra note attached to a diagnostic.
type NoteJSON struct {
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
}

// DiagnosticJSON is one diagnostic in JSON form.
type DiagnosticJSON struct {
	Severity string       `json:"severity"`
	Code     string       `json:"code"`
	Title    string       `json:"title"`
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
	Notes    []NoteJSON   `json:"notes,omitempty"`
}

// DiagnosticsOutput is the root of the JSON output.
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
}

func makeLocation(sp diag.Span, opts JSONOpts) LocationJSON {
	return LocationJSON{
		File: formatPath(sp.File, opts.PathMode, opts.BaseDir),
		Line: sp.Line,
		Decl: sp.Decl,
	}
}

// BuildDiagnosticsOutput builds the JSON structure without serializing it.
func BuildDiagnosticsOutput(bag *diag.Bag, opts JSONOpts) DiagnosticsOutput {
	var items []diag.Diagnostic
	if bag != nil {
		items = bag.Items()
	}
	if opts.Max > 0 && opts.Max < len(items) {
		items = items[:opts.Max]
	}
	diagnostics := make([]DiagnosticJSON, 0, len(items))
	for _, d := range items {
		dj := DiagnosticJSON{
			Severity: d.Severity.String(),
			Code:     d.Code.ID(),
			Title:    d.Code.Title(),
			Message:  d.Message,
			Location: makeLocation(d.Primary, opts),
		}
		if opts.IncludeNotes && len(d.Notes) > 0 {
			dj.Notes = make([]NoteJSON, len(d.Notes))
			for j, note := range d.Notes {
				dj.Notes[j] = NoteJSON{Message: note.Msg, Location: makeLocation(note.Span, opts)}
			}
		}
		diagnostics = append(diagnostics, dj)
	}
	return DiagnosticsOutput{Diagnostics: diagnostics, Count: len(diagnostics)}
}

// JSON writes diagnostics as one indented JSON document.
func JSON(w io.Writer, bag *diag.Bag, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildDiagnosticsOutput(bag, opts))
}
