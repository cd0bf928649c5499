package headerdb

import (
	"clifmatch/internal/cxx"
	"clifmatch/internal/oracle"
)

// Unit is a compiled synthesized translation unit. Queries see only the
// headers the unit includes, directly or transitively.
type Unit struct {
	db       *DB
	roots    []string
	closure  map[string]bool
	typedefs map[string]*cxx.Type
}

var _ oracle.Unit = (*Unit)(nil)

func (u *Unit) SourceFile() string { return SourceName }

// Includes lists the resolved headers the unit includes directly.
func (u *Unit) Includes() []string { return append([]string(nil), u.roots...) }

func (u *Unit) Typedef(symbol string) (*cxx.Type, bool) {
	t, ok := u.typedefs[symbol]
	return t, ok
}

func (u *Unit) Global() *cxx.Entity { return u.db.global }

func (u *Unit) Lookup(scope *cxx.Entity, name string) []*cxx.Entity {
	u.db.query.Lock()
	defer u.db.query.Unlock()
	return u.db.lookup(scope, name, u.visible)
}

func (u *Unit) Convert(from, to *cxx.Type) oracle.Conversion {
	u.db.query.Lock()
	defer u.db.query.Unlock()
	return u.db.convert(from, to)
}

func (u *Unit) Deduce(fn *cxx.Entity, args []*cxx.Type) (*cxx.Entity, error) {
	u.db.query.Lock()
	defer u.db.query.Unlock()
	return u.db.deduce(fn, args)
}

func (u *Unit) Properties(t *cxx.Type) oracle.Properties {
	u.db.query.Lock()
	defer u.db.query.Unlock()
	return u.db.properties(t)
}

func (u *Unit) Bases(record *cxx.Entity) []oracle.BaseRef {
	u.db.query.Lock()
	defer u.db.query.Unlock()
	return u.db.bases(record)
}

func (u *Unit) Constructors(record *cxx.Entity) []*cxx.Entity {
	u.db.query.Lock()
	defer u.db.query.Unlock()
	return u.db.constructors(record)
}

// visible reports whether e is declared in an included header. Builtin
// prelude declarations have no file and are always visible.
func (u *Unit) visible(e *cxx.Entity) bool {
	for e.Kind == cxx.EntityRecord && e.Record.Template != nil {
		e = e.Record.Template
	}
	if e.Loc.File == "" {
		return true
	}
	return u.closure[e.Loc.File]
}

// hidden returns the first declaration t names that the unit cannot see.
func (u *Unit) hidden(t *cxx.Type) *cxx.Entity {
	if t == nil {
		return nil
	}
	if t.Decl != nil && !u.visible(t.Decl) {
		return t.Decl
	}
	for _, a := range t.Args {
		if e := u.hidden(a.Type); e != nil {
			return e
		}
	}
	if e := u.hidden(t.Elem); e != nil {
		return e
	}
	if e := u.hidden(t.Result); e != nil {
		return e
	}
	for _, p := range t.Params {
		if e := u.hidden(p); e != nil {
			return e
		}
	}
	return nil
}
