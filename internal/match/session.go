// Package match resolves every IR declaration against the C++ entities a
// compiled translation unit exposes and decorates the IR in place.
package match

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"clifmatch/internal/cxx"
	"clifmatch/internal/diag"
	"clifmatch/internal/ir"
	"clifmatch/internal/observ"
	"clifmatch/internal/oracle"
	"clifmatch/internal/synth"
	"clifmatch/internal/trace"
	"clifmatch/internal/typetable"
)

// State is the resolution state of one declaration.
type State uint8

const (
	Unresolved State = iota
	Resolving
	Matched
	NotFound
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Matched:
		return "matched"
	case NotFound:
		return "not found"
	default:
		return "unresolved"
	}
}

// Options configures a session.
type Options struct {
	IncludePaths []string
	// AuxFiles are accepted as declaring files besides a declaration's
	// cpp_file. The first one that matches wins.
	AuxFiles      []string
	MaxCandidates int
	// Source names the IR document in reported spans.
	Source   string
	Tracer   trace.Tracer
	Reporter diag.Reporter
	Timer    *observ.Timer
}

// FatalError aborts a session: the oracle failed or produced diagnostics
// that cannot be pinned on a synthetic declaration.
type FatalError struct {
	Diagnostics []oracle.Diagnostic
	Err         error
}

func (e *FatalError) Error() string {
	switch {
	case e.Err != nil:
		return "match: " + e.Err.Error()
	case len(e.Diagnostics) == 1:
		return "match: " + e.Diagnostics[0].String()
	case len(e.Diagnostics) > 1:
		return fmt.Sprintf("match: %s (and %d more)", e.Diagnostics[0], len(e.Diagnostics)-1)
	}
	return "match: fatal error"
}

func (e *FatalError) Unwrap() error { return e.Err }

// original is what matching rewrites, kept so that a rerun starts from
// the input declaration.
type original struct {
	name    ir.Name
	label   string
	members []ir.Name
	opfunc  bool
}

// Session matches one IR document against one compiled unit.
type Session struct {
	ID uuid.UUID

	ast   *ir.AST
	opts  Options
	once  *oracle.Once
	table *typetable.Table
	unit  *synth.Unit
	cu    oracle.Unit
	fatal *FatalError

	symDiags map[string][]oracle.Diagnostic
	states   map[ir.DeclID]State
	codes    map[ir.DeclID]diag.Code
	orig     map[ir.DeclID]*original
	raw      map[*ir.Type]bool

	warnings []warning

	pyObjAs    []*cxx.Entity
	pyObjAsSet bool
}

// NewSession prepares a session over ast. Nothing is compiled until Run.
func NewSession(ast *ir.AST, o oracle.Oracle, opts Options) *Session {
	if opts.Tracer == nil {
		opts.Tracer = trace.Nop
	}
	s := &Session{
		ID:       uuid.Must(uuid.NewV7()),
		ast:      ast,
		opts:     opts,
		once:     oracle.NewOnce(o),
		symDiags: make(map[string][]oracle.Diagnostic),
		states:   make(map[ir.DeclID]State),
		codes:    make(map[ir.DeclID]diag.Code),
		orig:     make(map[ir.DeclID]*original),
		raw:      make(map[*ir.Type]bool),
	}
	ast.Walk(func(id ir.DeclID, d *ir.Decl) bool {
		s.remember(id, d)
		return true
	})
	return s
}

func (s *Session) remember(id ir.DeclID, d *ir.Decl) {
	o := &original{label: d.Label()}
	if n := d.Name(); n != nil {
		o.name = *n
	}
	switch d.Kind {
	case ir.DeclEnum:
		o.members = append([]ir.Name(nil), d.Enum.Members...)
	case ir.DeclFunc:
		o.opfunc = d.Func.CppOpfunction
		for _, p := range d.Func.Params {
			s.rememberType(p.Type)
		}
		for _, r := range d.Func.Returns {
			s.rememberType(r.Type)
		}
	case ir.DeclVar:
		s.rememberType(d.Var.Type)
	case ir.DeclConst:
		s.rememberType(d.Const.Type)
	}
	s.orig[id] = o
}

func (s *Session) rememberType(t *ir.Type) {
	if t != nil {
		s.raw[t] = t.CppRawPointer
	}
}

// State returns the resolution state of a declaration.
func (s *Session) State(id ir.DeclID) State { return s.states[id] }

// Unit returns the synthesized unit, or nil before the first Run.
func (s *Session) Unit() *synth.Unit { return s.unit }

// Run matches every declaration. Unmatched declarations are not errors:
// they carry NotFound and go to the reporter. A *FatalError is returned
// when the unit could not be compiled into something queryable. Running a
// session again yields the same decorations.
func (s *Session) Run(ctx context.Context) error {
	tr := s.opts.Tracer
	root := trace.Begin(tr, trace.ScopeDriver, "session", trace.ParentID(ctx)).
		WithExtra("session", s.ID.String())
	if err := s.prepare(ctx, root.ID()); err != nil {
		root.End("fatal")
		return err
	}

	phase := s.begin("match")
	sp := trace.Begin(tr, trace.ScopePass, "match", root.ID())
	s.ast.Walk(func(id ir.DeclID, d *ir.Decl) bool {
		s.states[id] = Unresolved
		d.NotFound = ""
		delete(s.codes, id)
		return true
	})
	s.warnings = s.warnings[:0]
	for _, id := range s.ast.Decls {
		if err := ctx.Err(); err != nil {
			sp.End("canceled")
			root.End("canceled")
			return err
		}
		s.matchDecl(id, nil, sp.ID())
	}
	failed := len(s.ast.Failed())
	sp.End(fmt.Sprintf("%d failed", failed))
	s.end(phase, fmt.Sprintf("%d failed", failed))

	s.report()
	root.End(fmt.Sprintf("%d decls, %d failed", s.ast.Len(), failed))
	return nil
}

func (s *Session) begin(name string) int {
	if s.opts.Timer == nil {
		return -1
	}
	return s.opts.Timer.Begin(name)
}

func (s *Session) end(idx int, note string) {
	if s.opts.Timer != nil {
		s.opts.Timer.End(idx, note)
	}
}

// prepare synthesizes and compiles the unit once per session.
func (s *Session) prepare(ctx context.Context, parent uint64) error {
	if s.fatal != nil {
		return s.fatal
	}
	if s.cu != nil {
		return nil
	}
	tr := s.opts.Tracer

	phase := s.begin("synthesize")
	sp := trace.Begin(tr, trace.ScopePass, "synthesize", parent)
	s.table = typetable.New(s.ast.Typemaps)
	if s.opts.MaxCandidates > 0 {
		s.table.MaxCandidates = s.opts.MaxCandidates
	}
	s.unit = synth.Build(s.ast, s.table)
	sp.End(fmt.Sprintf("%d symbols", len(s.unit.Index.Symbols())))
	s.end(phase, "")

	phase = s.begin("compile")
	sp = trace.Begin(tr, trace.ScopePass, "compile", parent)
	cu, diags, err := s.once.Compile(ctx, s.unit.Source, s.opts.IncludePaths)
	if err != nil {
		sp.End("failed")
		s.end(phase, "failed")
		s.fatal = &FatalError{Err: fmt.Errorf("compile unit: %w", err)}
		s.reportFatal()
		return s.fatal
	}
	var fatal []oracle.Diagnostic
	for _, d := range diags {
		if d.Severity < oracle.SevError {
			continue
		}
		sym := s.attribute(cu, d)
		if d.Severity == oracle.SevFatal || sym == "" {
			fatal = append(fatal, d)
			continue
		}
		s.symDiags[sym] = append(s.symDiags[sym], d)
	}
	sp.End(fmt.Sprintf("%d diagnostics", len(diags)))
	s.end(phase, fmt.Sprintf("%d diagnostics", len(diags)))
	if len(fatal) > 0 {
		s.fatal = &FatalError{Diagnostics: fatal}
		s.reportFatal()
		return s.fatal
	}
	s.cu = cu
	return nil
}

// attribute names the synthetic symbol a diagnostic is about, or "".
func (s *Session) attribute(cu oracle.Unit, d oracle.Diagnostic) string {
	sym := d.Symbol
	if sym == "" && d.Line > 0 && (cu == nil || d.File == "" || d.File == cu.SourceFile()) {
		sym, _ = s.unit.Index.SymbolAt(d.Line)
	}
	if sym == "" || len(s.unit.Index.Decls(sym)) == 0 {
		return ""
	}
	return sym
}

func (s *Session) setState(id ir.DeclID, st State) { s.states[id] = st }

// fail records why a declaration did not match.
func (s *Session) fail(id ir.DeclID, code diag.Code, msg string) {
	s.ast.Decl(id).NotFound = msg
	s.codes[id] = code
	s.states[id] = NotFound
}
