package match

import (
	"clifmatch/internal/diag"
	"clifmatch/internal/ir"
	"clifmatch/internal/oracle"
)

type warning struct {
	id  ir.DeclID
	msg string
}

func (s *Session) warn(id ir.DeclID, msg string) {
	s.warnings = append(s.warnings, warning{id: id, msg: msg})
}

func (s *Session) span(id ir.DeclID) diag.Span {
	return diag.Span{File: s.opts.Source, Line: s.ast.Decl(id).Line, Decl: s.orig[id].label}
}

// report hands every unmatched declaration and every warning of the last
// run to the reporter, in declaration order.
func (s *Session) report() {
	r := s.opts.Reporter
	if r == nil {
		return
	}
	s.ast.Walk(func(id ir.DeclID, d *ir.Decl) bool {
		if d.NotFound == "" || s.unreached(d) {
			return true
		}
		b := diag.ReportError(r, s.codes[id], s.span(id), d.NotFound)
		if d.Parent.IsValid() {
			b.WithNote(s.span(d.Parent), "member of "+s.orig[d.Parent].label)
		}
		b.Emit()
		return true
	})
	for _, w := range s.warnings {
		diag.ReportWarning(r, diag.MatchDeprecatedTaken, s.span(w.id), w.msg).Emit()
	}
}

// unreached reports whether d belongs to a class that failed before its
// members were matched. The class's own error covers it.
func (s *Session) unreached(d *ir.Decl) bool {
	if !d.Parent.IsValid() {
		return false
	}
	p := s.ast.Decl(d.Parent)
	return p.NotFound != "" && s.codes[d.Parent] != diag.MatchMemberSummary
}

// reportFatal reports the diagnostics that aborted the session.
func (s *Session) reportFatal() {
	r := s.opts.Reporter
	if r == nil || s.fatal == nil {
		return
	}
	if s.fatal.Err != nil {
		diag.NewReportBuilder(r, diag.SevFatal, diag.OracleUnavailable, diag.Span{File: s.opts.Source}, s.fatal.Err.Error()).Emit()
	}
	for _, d := range s.fatal.Diagnostics {
		code := diag.OracleUnattributed
		if d.Severity == oracle.SevFatal {
			code = diag.OracleFatal
		}
		diag.NewReportBuilder(r, diag.SevFatal, code, diag.Span{File: d.File, Line: d.Line}, d.Message).Emit()
	}
}
