package diag

import "fmt"

// Span locates a finding in an IR document. Line is the IR source line of
// the declaration; Decl is its label ("FUNC ns::F") when known.
type Span struct {
	File string
	Line int
	Decl string
}

func (s Span) String() string {
	switch {
	case s.File == "" && s.Line == 0:
		return s.Decl
	case s.Line == 0:
		return s.File
	}
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}

type Note struct {
	Span Span
	Msg  string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Span
	Notes    []Note
}
