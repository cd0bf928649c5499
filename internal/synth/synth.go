// Package synth writes the single translation unit a session hands to the
// oracle: one include per header, one typedef per candidate spelling, a
// class block per wrapped class and call-shape stubs per function.
package synth

import (
	"fmt"
	"strings"

	"clifmatch/internal/ir"
	"clifmatch/internal/typetable"
)

// Unit is the synthesized translation unit and its symbol index.
type Unit struct {
	Source string
	Index  *Index
}

// Build synthesizes the unit for ast. Output is a pure function of the
// AST and the table.
func Build(ast *ir.AST, table *typetable.Table) *Unit {
	w := &writer{ast: ast, table: table, idx: newIndex()}
	w.includes()
	for _, id := range ast.Decls {
		w.topLevel(id)
	}
	return &Unit{Source: w.sb.String(), Index: w.idx}
}

type scope struct {
	bySpelling map[string]string
}

func newScope() *scope { return &scope{bySpelling: make(map[string]string)} }

type writer struct {
	ast   *ir.AST
	table *typetable.Table
	idx   *Index
	sb    strings.Builder
	line  int
	next  int
}

// emit writes one line and returns its number.
func (w *writer) emit(format string, args ...any) int {
	fmt.Fprintf(&w.sb, format, args...)
	w.sb.WriteByte('\n')
	w.line++
	return w.line
}

func (w *writer) symbol(prefix string) (string, int) {
	n := w.next
	w.next++
	return fmt.Sprintf("%s_%d", prefix, n), n
}

func (w *writer) includes() {
	seen := make(map[string]bool)
	add := func(h string) {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			return
		}
		seen[h] = true
		w.emit("#include %q", h)
	}
	for _, h := range w.ast.Headers {
		add(h)
	}
	w.ast.Walk(func(_ ir.DeclID, d *ir.Decl) bool {
		add(d.CppFile)
		return true
	})
}

func (w *writer) topLevel(id ir.DeclID) {
	d := w.ast.Decl(id)
	if d == nil {
		return
	}
	ns := strings.Trim(strings.TrimSpace(d.Namespace), ":")
	if ns != "" {
		w.emit("namespace %s {", ns)
	}
	w.emit("namespace clif {")
	w.decl(id, newScope())
	w.emit("} // namespace clif")
	if ns != "" {
		w.emit("} // namespace %s", ns)
	}
}

func (w *writer) decl(id ir.DeclID, sc *scope) {
	d := w.ast.Decl(id)
	switch d.Kind {
	case ir.DeclClass:
		w.class(id, d, sc)
	case ir.DeclEnum:
		w.self(id, d, sc)
	case ir.DeclType:
		w.self(id, d, sc)
	case ir.DeclVar:
		w.slot(id, Slot{Kind: SlotType}, d.Var.Type, sc)
	case ir.DeclConst:
		w.slot(id, Slot{Kind: SlotType}, d.Const.Type, sc)
	case ir.DeclFunc:
		w.function(id, d.Func, sc)
	}
}

func (w *writer) self(id ir.DeclID, d *ir.Decl, sc *scope) string {
	name := d.Name()
	if name == nil {
		return ""
	}
	spelling := name.CppName
	if spelling == "" {
		spelling = name.Native
	}
	refs := w.typedefs(id, Slot{Kind: SlotSelf}, []typetable.Candidate{{Spelling: spelling}}, sc)
	if len(refs) == 0 {
		return ""
	}
	return refs[0].Symbol
}

func (w *writer) class(id ir.DeclID, d *ir.Decl, sc *scope) {
	base := w.self(id, d, sc)
	if base == "" {
		return
	}
	sym, n := w.symbol("clif_class")
	line := w.emit("template<class clif_unused_template_arg_%d> class %s: public %s { public:", n, sym, base)
	w.idx.classes[id] = sym
	w.idx.owners[sym] = id
	w.idx.lines[line] = sym
	inner := newScope()
	for _, m := range w.ast.Members(id) {
		w.decl(m, inner)
	}
	w.emit(" };")
}

func (w *writer) function(id ir.DeclID, fn *ir.Func, sc *scope) {
	params := make([][]Ref, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = w.slot(id, Slot{Kind: SlotParam, Index: i}, p.Type, sc)
	}
	for i, r := range fn.Returns {
		w.slot(id, Slot{Kind: SlotReturn, Index: i}, r.Type, sc)
	}
	slots := make([][]typetable.Candidate, len(params))
	for i, refs := range params {
		if len(refs) == 0 {
			return
		}
		slots[i] = make([]typetable.Candidate, len(refs))
		for j, r := range refs {
			// carry the symbol in the spelling field to reuse Product
			slots[i][j] = typetable.Candidate{Spelling: r.Symbol}
		}
	}
	w.table.Product(slots, func(tuple []typetable.Candidate) bool {
		sym, _ := w.symbol("clif_stub")
		names := make([]string, len(tuple))
		for i, c := range tuple {
			names[i] = c.Spelling
		}
		line := w.emit("void %s(%s);", sym, strings.Join(names, ", "))
		w.idx.stubs[id] = append(w.idx.stubs[id], Stub{Symbol: sym, Line: line, Params: names})
		w.idx.owners[sym] = id
		w.idx.lines[line] = sym
		return true
	})
}

func (w *writer) slot(id ir.DeclID, slot Slot, t *ir.Type, sc *scope) []Ref {
	if t == nil {
		return nil
	}
	var cands []typetable.Candidate
	for _, c := range w.table.Spellings(t) {
		if strings.TrimSpace(c.Spelling) != "" {
			cands = append(cands, c)
		}
	}
	return w.typedefs(id, slot, cands, sc)
}

// typedefs emits one typedef per spelling new to sc and records every
// candidate of the slot in the index.
func (w *writer) typedefs(id ir.DeclID, slot Slot, cands []typetable.Candidate, sc *scope) []Ref {
	refs := make([]Ref, 0, len(cands))
	for i, c := range cands {
		sym, ok := sc.bySpelling[c.Spelling]
		if !ok {
			sym, _ = w.symbol("clif_type")
			line := w.emit("typedef")
			w.idx.lines[w.emit("%s", c.Spelling)] = sym
			w.idx.lines[w.emit("%s;", sym)] = sym
			sc.bySpelling[c.Spelling] = sym
			w.idx.entries[sym] = &Entry{Symbol: sym, Spelling: c.Spelling, Line: line}
			w.idx.order = append(w.idx.order, sym)
			w.idx.lines[line] = sym
		}
		e := w.idx.entries[sym]
		e.Uses = append(e.Uses, Use{Decl: id, Slot: slot, Candidate: i})
		refs = append(refs, Ref{Symbol: sym, Spelling: c.Spelling, Postconversion: c.Postconversion})
	}
	key := slotKey{id, slot}
	w.idx.slots[key] = refs
	return refs
}
