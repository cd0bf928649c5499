// Package diag defines the diagnostic model shared by every matcher phase.
//
// Diagnostic is the central record: a Severity, a numeric Code with a
// stable ID (IR1xxx for documents, TU2xxx for the synthesized unit, MAT3xxx
// for matching, ORA4xxx for the front end, CFG5xxx for configuration), a
// Message, and a primary Span naming the IR file, line and declaration.
// Notes add secondary locations, such as the class a failed member belongs
// to.
//
// Phases emit through a Reporter, usually via ReportBuilder:
//
//	diag.ReportError(r, diag.MatchNotFound, span, msg).WithNote(cls, "member of").Emit()
//
// BagReporter collects into a Bag, which sorts and deduplicates for stable
// output. Rendering lives in internal/diagfmt.
package diag
