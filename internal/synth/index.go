package synth

import (
	"fmt"
	"slices"

	"clifmatch/internal/ir"
)

// SlotKind says which part of a declaration a synthetic typedef spells.
type SlotKind uint8

const (
	// SlotSelf is the declaration's own C++ name: classes, enums and
	// forward-declared types.
	SlotSelf SlotKind = iota
	SlotParam
	SlotReturn
	// SlotType is the type of a variable or constant.
	SlotType
)

// Slot addresses one type position of a declaration.
type Slot struct {
	Kind  SlotKind
	Index int
}

func (s Slot) String() string {
	switch s.Kind {
	case SlotSelf:
		return "self"
	case SlotParam:
		return fmt.Sprintf("param %d", s.Index)
	case SlotReturn:
		return fmt.Sprintf("return %d", s.Index)
	case SlotType:
		return "type"
	}
	return "?"
}

// Ref is one candidate of a slot together with the typedef spelling it.
type Ref struct {
	Symbol         string
	Spelling       string
	Postconversion string
}

// Use records that a typedef stands for candidate Candidate of a slot.
type Use struct {
	Decl      ir.DeclID
	Slot      Slot
	Candidate int
}

// Entry is one synthetic declaration of the unit.
type Entry struct {
	Symbol   string
	Spelling string
	Line     int
	Uses     []Use
}

// Stub is one synthetic call-shape declaration of a function.
type Stub struct {
	Symbol string
	Line   int
	Params []string
}

type slotKey struct {
	decl ir.DeclID
	slot Slot
}

// Index maps synthetic symbols back to the declarations they serve.
type Index struct {
	entries map[string]*Entry
	order   []string
	slots   map[slotKey][]Ref
	classes map[ir.DeclID]string
	stubs   map[ir.DeclID][]Stub
	owners  map[string]ir.DeclID
	lines   map[int]string
}

func newIndex() *Index {
	return &Index{
		entries: make(map[string]*Entry),
		slots:   make(map[slotKey][]Ref),
		classes: make(map[ir.DeclID]string),
		stubs:   make(map[ir.DeclID][]Stub),
		owners:  make(map[string]ir.DeclID),
		lines:   make(map[int]string),
	}
}

// Entry returns the typedef entry for symbol.
func (x *Index) Entry(symbol string) (*Entry, bool) {
	e, ok := x.entries[symbol]
	return e, ok
}

// Symbols lists typedef symbols in emission order.
func (x *Index) Symbols() []string { return slices.Clone(x.order) }

// Candidates returns the ordered candidates of a slot.
func (x *Index) Candidates(decl ir.DeclID, slot Slot) []Ref {
	return x.slots[slotKey{decl, slot}]
}

// ClassSymbol returns the class block symbol of a class declaration.
func (x *Index) ClassSymbol(decl ir.DeclID) (string, bool) {
	s, ok := x.classes[decl]
	return s, ok
}

// Stubs returns the call-shape stubs of a function declaration.
func (x *Index) Stubs(decl ir.DeclID) []Stub { return x.stubs[decl] }

// SymbolAt returns the synthetic symbol declared on line.
func (x *Index) SymbolAt(line int) (string, bool) {
	s, ok := x.lines[line]
	return s, ok
}

// Decls returns the declarations a symbol serves: every use of a typedef,
// or the owner of a class block or stub.
func (x *Index) Decls(symbol string) []ir.DeclID {
	if e, ok := x.entries[symbol]; ok {
		var out []ir.DeclID
		for _, u := range e.Uses {
			if !slices.Contains(out, u.Decl) {
				out = append(out, u.Decl)
			}
		}
		return out
	}
	if id, ok := x.owners[symbol]; ok {
		return []ir.DeclID{id}
	}
	return nil
}
