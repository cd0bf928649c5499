package match

import (
	"fmt"
	"strings"

	"clifmatch/internal/cxx"
	"clifmatch/internal/diag"
	"clifmatch/internal/ir"
	"clifmatch/internal/synth"
	"clifmatch/internal/trace"
)

const msgDiamond = "Non-virtual diamond inheritance."

func (s *Session) matchDecl(id ir.DeclID, cls *classCtx, parent uint64) {
	d := s.ast.Decl(id)
	if d == nil {
		return
	}
	sp := trace.Begin(s.opts.Tracer, trace.ScopeDecl, s.orig[id].label, parent)
	s.setState(id, Resolving)
	switch d.Kind {
	case ir.DeclClass:
		s.matchClass(id, cls, sp.ID())
	case ir.DeclEnum:
		s.matchEnum(id, cls)
	case ir.DeclVar:
		s.matchVar(id, cls)
	case ir.DeclConst:
		s.matchConst(id, cls)
	case ir.DeclFunc:
		s.matchFunc(id, cls)
	case ir.DeclType:
		s.matchFdecl(id, cls)
	default:
		s.fail(id, diag.MatchNotFound, fmt.Sprintf("Unknown declaration kind %s.", d.Kind))
	}
	if s.states[id] == Resolving {
		s.setState(id, Matched)
	}
	sp.End(s.states[id].String())
}

func cppName(n ir.Name) string {
	if n.CppName != "" {
		return n.CppName
	}
	return n.Native
}

// nsScope returns the namespace a top-level declaration's hint names,
// or nil for the global namespace.
func (s *Session) nsScope(d *ir.Decl) *cxx.Entity {
	hint := strings.Trim(strings.TrimSpace(d.Namespace), ":")
	if hint == "" {
		return nil
	}
	for _, e := range s.cu.Lookup(nil, "::"+hint) {
		if e.Kind == cxx.EntityNamespace {
			return e
		}
	}
	return nil
}

// scopeOf is where the name of a declaration is looked up.
func (s *Session) scopeOf(d *ir.Decl, cls *classCtx) *cxx.Entity {
	if cls != nil {
		return cls.ent
	}
	return s.nsScope(d)
}

func (s *Session) scopeLabel(q *funcQuery) string {
	if q.cls != nil {
		return strings.TrimPrefix(q.cls.ent.QualifiedName(), "::")
	}
	if ns := s.nsScope(q.d); ns != nil {
		return strings.TrimPrefix(ns.QualifiedName(), "::")
	}
	return "the global namespace"
}

func kindMismatch(want, name string, got *cxx.Entity) string {
	return fmt.Sprintf("Clif expects %s %s, but name matched \"%s\" which is a C++ %s.", article(want), want, name, got.Kind)
}

func article(word string) string {
	if word != "" && strings.ContainsRune("aeiou", rune(word[0])) {
		return "an"
	}
	return "a"
}

// selfType resolves the C++ type a class, enum or forward declaration
// names. When the typedef was rejected the name is looked up directly to
// explain why.
func (s *Session) selfType(id ir.DeclID, cls *classCtx, want string) (*cxx.Type, string) {
	cands, why := s.resolve(id, synth.Slot{Kind: synth.SlotSelf})
	if why == "" {
		return cands[0].typ, ""
	}
	d := s.ast.Decl(id)
	name := cppName(s.orig[id].name)
	found := s.cu.Lookup(s.scopeOf(d, cls), name)
	if len(found) == 0 {
		return nil, fmt.Sprintf("C++ symbol \"%s\" not found.", name)
	}
	switch found[0].Kind {
	case cxx.EntityRecord, cxx.EntityEnum, cxx.EntityTypedef:
		return nil, why
	}
	return nil, kindMismatch(want, name, found[0])
}

func typeKind(t *cxx.Type) string {
	switch {
	case t.Kind == cxx.KindRecord:
		return "class"
	case t.Kind == cxx.KindEnum:
		return "enum"
	case t.Kind == cxx.KindBuiltin:
		return "builtin type"
	case t.IsPointer():
		return "pointer type"
	}
	return "type"
}

func (s *Session) matchClass(id ir.DeclID, outer *classCtx, span uint64) {
	d := s.ast.Decl(id)
	c := d.Class
	name := cppName(s.orig[id].name)
	t, why := s.selfType(id, outer, "class")
	if why != "" {
		s.failClass(id, diag.MatchNotFound, why)
		return
	}
	if !t.IsRecord() || t.Decl == nil {
		s.failClass(id, diag.MatchNotFound, fmt.Sprintf("Clif expects a class, but name matched \"%s\" which is a C++ %s.", name, typeKind(t)))
		return
	}
	rec := t.Decl
	if !rec.Record.Complete {
		s.failClass(id, diag.MatchNotFound, fmt.Sprintf("C++ class %s is declared but not defined.", rec.QualifiedName()))
		return
	}
	if why := s.checkFile(d, rec); why != "" {
		s.failClass(id, diag.MatchWrongFile, why)
		return
	}
	bases, why := s.bases(rec)
	if why != "" {
		s.failClass(id, diag.MatchNotFound, why)
		return
	}

	c.Name.CppName = rec.QualifiedName()
	natives := make([]ir.Name, len(c.Bases))
	copy(natives, c.Bases)
	c.Bases = c.Bases[:0]
	for _, b := range bases {
		q := b.QualifiedName()
		c.Bases = append(c.Bases, ir.Name{Native: baseNative(natives, q), CppName: q})
	}
	props := s.cu.Properties(t)
	c.Final = rec.Record.Final
	c.CppHasDefCtor = props.HasDefaultCtor
	c.CppHasTrivialDefctor = props.HasDefaultCtor && props.TrivialCtor
	c.CppHasTrivialDtor = props.TrivialDtor
	c.CppHasPublicDtor = props.HasPublicDtor
	c.CppCopyable = props.Copyable
	c.CppMovable = props.Movable
	c.CppAbstract = props.Abstract
	c.IsCppPolymorphic = props.Polymorphic

	cls := &classCtx{id: id, ent: rec, typ: t}
	var failed []string
	for _, m := range s.ast.Members(id) {
		s.matchDecl(m, cls, span)
		if md := s.ast.Decl(m); md.NotFound != "" {
			failed = append(failed, fmt.Sprintf("%s: %s", s.orig[m].label, strings.ReplaceAll(md.NotFound, "\n", "\n    ")))
		}
	}
	if len(failed) > 0 {
		s.fail(id, diag.MatchMemberSummary, fmt.Sprintf("%d member(s) of %s not matched:\n  %s", len(failed), name, strings.Join(failed, "\n  ")))
	}
}

// failClass fails a class whose members were never tried. Every member,
// nested ones included, notes that its enclosing class did not match.
func (s *Session) failClass(id ir.DeclID, code diag.Code, why string) {
	s.fail(id, code, why)
	var mark func(ir.DeclID)
	mark = func(parent ir.DeclID) {
		msg := fmt.Sprintf("Enclosing class %s was not matched.", cppName(s.orig[parent].name))
		for _, m := range s.ast.Members(parent) {
			s.fail(m, diag.MatchNotFound, msg)
			mark(m)
		}
	}
	mark(id)
}

// baseNative finds the host name the IR gave a base, matching the
// qualified C++ name or a suffix of it.
func baseNative(natives []ir.Name, qualified string) string {
	q := strings.TrimPrefix(qualified, "::")
	for _, n := range natives {
		k := strings.TrimPrefix(cppName(n), "::")
		if k == q || strings.HasSuffix(q, "::"+k) {
			return n.Native
		}
	}
	return ""
}

// bases lists every base of rec breadth first, each once. A base reached
// twice through a non-virtual edge is a diamond the host cannot model.
func (s *Session) bases(rec *cxx.Entity) ([]*cxx.Entity, string) {
	var (
		order   []*cxx.Entity
		queue   = []*cxx.Entity{rec}
		seen    = make(map[string]bool)
		virtual = make(map[string][]bool)
	)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, b := range s.cu.Bases(cur) {
			key := b.Entity.QualifiedName()
			virtual[key] = append(virtual[key], b.Virtual)
			if seen[key] {
				continue
			}
			seen[key] = true
			order = append(order, b.Entity)
			queue = append(queue, b.Entity)
		}
	}
	for _, b := range order {
		edges := virtual[b.QualifiedName()]
		if len(edges) < 2 {
			continue
		}
		for _, v := range edges {
			if !v {
				return nil, msgDiamond
			}
		}
	}
	return order, ""
}

func (s *Session) matchEnum(id ir.DeclID, cls *classCtx) {
	d := s.ast.Decl(id)
	e := d.Enum
	name := cppName(s.orig[id].name)
	t, why := s.selfType(id, cls, "enum")
	if why != "" {
		s.fail(id, diag.MatchNotFound, why)
		return
	}
	if t.Kind != cxx.KindEnum || t.Decl == nil {
		s.fail(id, diag.MatchNotFound, fmt.Sprintf("Clif expects an enum, but name matched \"%s\" which is a C++ %s.", name, typeKind(t)))
		return
	}
	ent := t.Decl
	if why := s.checkFile(d, ent); why != "" {
		s.fail(id, diag.MatchWrongFile, why)
		return
	}
	byName := make(map[string]*cxx.Entity)
	var order []*cxx.Entity
	for _, c := range ent.Children {
		if c.Kind == cxx.EntityEnumerator {
			byName[c.Name] = c
			order = append(order, c)
		}
	}
	var (
		members []ir.Name
		extra   []string
		used    = make(map[string]bool)
	)
	for _, m := range s.orig[id].members {
		key := cxx.UnqualifiedName(cppName(m))
		en, ok := byName[key]
		if !ok {
			extra = append(extra, key)
			continue
		}
		used[key] = true
		native := m.Native
		if native == "" {
			native = en.Name
		}
		members = append(members, ir.Name{Native: native, CppName: en.QualifiedName()})
	}
	if len(extra) > 0 {
		s.fail(id, diag.MatchNotFound, fmt.Sprintf("Extra enumerators in Clif enum declaration %s.  C++ enum %s does not contain enumerator(s): %s",
			name, strings.TrimPrefix(ent.QualifiedName(), "::"), strings.Join(extra, ", ")))
		return
	}
	for _, en := range order {
		if !used[en.Name] {
			members = append(members, ir.Name{Native: en.Name, CppName: en.QualifiedName()})
		}
	}
	e.Name.CppName = ent.QualifiedName()
	e.Members = members
	e.EnumClass = ent.Enum.Scoped
}

// lookupValue finds the variable, field or enumerator a VAR or CONST
// names.
func (s *Session) lookupValue(id ir.DeclID, cls *classCtx, want string, accept func(*cxx.Entity) bool) (*cxx.Entity, string) {
	d := s.ast.Decl(id)
	name := cppName(s.orig[id].name)
	var found []*cxx.Entity
	if cls != nil && !strings.Contains(name, "::") {
		found = s.cu.Lookup(nil, cls.ent.QualifiedName()+"::"+name)
	} else {
		found = s.cu.Lookup(s.scopeOf(d, cls), name)
	}
	if len(found) == 0 {
		return nil, fmt.Sprintf("C++ symbol \"%s\" not found.", name)
	}
	for _, e := range found {
		if accept(e) {
			if e.Access != cxx.AccessPublic {
				return nil, fmt.Sprintf("C++ %s %s is not public.", e.Kind, e.QualifiedName())
			}
			if why := s.checkFile(d, e); why != "" {
				return nil, why
			}
			return e, ""
		}
	}
	return nil, kindMismatch(want, name, found[0])
}

func (s *Session) matchVar(id ir.DeclID, cls *classCtx) {
	d := s.ast.Decl(id)
	v := d.Var
	ent, why := s.lookupValue(id, cls, "variable", func(e *cxx.Entity) bool {
		return e.Kind == cxx.EntityVariable || e.Kind == cxx.EntityField
	})
	if why != "" {
		s.fail(id, codeFor(why), why)
		return
	}
	cands, why := s.resolve(id, synth.Slot{Kind: synth.SlotType})
	if why != "" {
		s.fail(id, diag.MatchTypeRejected, why)
		return
	}
	vt := ent.Var.Type
	settable := !vt.Const && !ent.Var.Constexpr
	fit, why := pick(cands, func(c resolved) (typeFit, string) {
		return s.checkValue(c, vt, settable)
	})
	if why != "" {
		s.fail(id, diag.MatchTypeRejected, why)
		return
	}
	v.Name.CppName = ent.QualifiedName()
	applyType(v.Type, fit)
}

func (s *Session) matchConst(id ir.DeclID, cls *classCtx) {
	d := s.ast.Decl(id)
	c := d.Const
	ent, why := s.lookupValue(id, cls, "constant", func(e *cxx.Entity) bool {
		return e.Kind == cxx.EntityVariable || e.Kind == cxx.EntityField || e.Kind == cxx.EntityEnumerator
	})
	if why != "" {
		s.fail(id, codeFor(why), why)
		return
	}
	var vt *cxx.Type
	if ent.Kind == cxx.EntityEnumerator {
		vt = ent.Parent.Type()
	} else {
		if !ent.Var.Constexpr && !ent.Var.Type.Const {
			s.fail(id, diag.MatchNotFound, fmt.Sprintf("Clif expects a constant, but C++ %s %s is not const.", ent.Kind, ent.QualifiedName()))
			return
		}
		vt = ent.Var.Type
	}
	cands, why := s.resolve(id, synth.Slot{Kind: synth.SlotType})
	if why != "" {
		s.fail(id, diag.MatchTypeRejected, why)
		return
	}
	fit, why := pick(cands, func(r resolved) (typeFit, string) {
		f, why := s.checkValue(r, vt, false)
		if why == "" {
			s.written(&f, r.typ)
		}
		return f, why
	})
	if why != "" {
		s.fail(id, diag.MatchTypeRejected, why)
		return
	}
	c.Name.CppName = ent.QualifiedName()
	applyType(c.Type, fit)
}

func (s *Session) matchFdecl(id ir.DeclID, cls *classCtx) {
	d := s.ast.Decl(id)
	t, why := s.selfType(id, cls, "type")
	if why != "" {
		s.fail(id, diag.MatchNotFound, why)
		return
	}
	if t.Decl != nil {
		if why := s.checkFile(d, t.Decl); why != "" {
			s.fail(id, diag.MatchWrongFile, why)
			return
		}
	}
	d.Fdecl.Name.CppName = t.String()
}

// codeFor classifies a lookup failure.
func codeFor(why string) diag.Code {
	if strings.HasPrefix(why, "Clif expects it in") {
		return diag.MatchWrongFile
	}
	return diag.MatchNotFound
}
