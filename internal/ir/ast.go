package ir

// Typemap lists the ordered C++ spellings a host type may stand for.
type Typemap struct {
	LangType       string   `yaml:"lang_type" msgpack:"lang_type"`
	CppType        []string `yaml:"cpp_type,flow" msgpack:"cpp_type"`
	Postconversion string   `yaml:"postconversion,omitempty" msgpack:"postconversion,omitempty"`
}

// AST is one decoded IR document: headers, typemaps and the declaration tree.
type AST struct {
	Source   string
	Headers  []string
	Typemaps []Typemap
	Decls    []DeclID

	arena *Arena
}

// NewAST returns an empty AST with its own arena.
func NewAST() *AST {
	return &AST{arena: NewArena(0)}
}

// Decl returns the declaration for id or nil.
func (a *AST) Decl(id DeclID) *Decl { return a.arena.Get(id) }

// Len reports the number of declarations in the arena, members included.
func (a *AST) Len() int { return a.arena.Len() }

// Add appends a top-level declaration.
func (a *AST) Add(d *Decl) DeclID {
	id := a.arena.New(d)
	a.Decls = append(a.Decls, id)
	return id
}

// AddMember allocates d as a member of the class declaration parent.
func (a *AST) AddMember(parent DeclID, d *Decl) DeclID {
	p := a.arena.Get(parent)
	if p == nil || p.Class == nil {
		panic("ir.AST.AddMember: parent is not a class")
	}
	d.Parent = parent
	id := a.arena.New(d)
	p = a.arena.Get(parent)
	p.Class.Members = append(p.Class.Members, id)
	return id
}

// Members returns the member IDs of a class declaration.
func (a *AST) Members(id DeclID) []DeclID {
	d := a.arena.Get(id)
	if d == nil || d.Class == nil {
		return nil
	}
	return d.Class.Members
}

// Walk visits declarations depth first in document order.
// Returning false from fn skips the children of that declaration.
func (a *AST) Walk(fn func(id DeclID, d *Decl) bool) {
	var visit func(ids []DeclID)
	visit = func(ids []DeclID) {
		for _, id := range ids {
			d := a.arena.Get(id)
			if d == nil {
				continue
			}
			if fn(id, d) {
				visit(a.Members(id))
			}
		}
	}
	visit(a.Decls)
}

// Failed returns the IDs of every declaration carrying a diagnostic.
func (a *AST) Failed() []DeclID {
	var out []DeclID
	a.Walk(func(id DeclID, d *Decl) bool {
		if d.NotFound != "" {
			out = append(out, id)
		}
		return true
	})
	return out
}
