package headerdb

import (
	"strings"

	"clifmatch/internal/cxx"
)

// visibleFunc filters lookup results; nil accepts everything.
type visibleFunc func(*cxx.Entity) bool

// lookup resolves a possibly qualified name from scope outward. A nil
// scope is the global namespace. Components may carry explicit template
// arguments, which instantiate class templates and specialize function
// templates.
func (db *DB) lookup(scope *cxx.Entity, name string, visible visibleFunc) []*cxx.Entity {
	if scope == nil {
		scope = db.global
	}
	parts := cxx.SplitQualified(name)
	if len(parts) == 0 || name == "" {
		return nil
	}
	var cur []*cxx.Entity
	if parts[0] == "" {
		// leading "::"
		parts = parts[1:]
		if len(parts) == 0 {
			return nil
		}
		cur = db.component(db.global, scope, parts[0], true, visible)
	} else {
		for s := scope; s != nil; s = s.Parent {
			if cur = db.component(s, scope, parts[0], false, visible); len(cur) > 0 {
				break
			}
		}
	}
	for _, part := range parts[1:] {
		next := db.scopeOf(cur)
		if next == nil {
			return nil
		}
		cur = db.component(next, scope, part, true, visible)
	}
	return cur
}

// scopeOf returns the entity a qualifier component denotes as a scope.
func (db *DB) scopeOf(found []*cxx.Entity) *cxx.Entity {
	for _, e := range found {
		switch e.Kind {
		case cxx.EntityNamespace, cxx.EntityRecord, cxx.EntityEnum:
			return e
		case cxx.EntityTypedef:
			if t := db.typedefTarget(e); t != nil && t.Decl != nil {
				return t.Decl
			}
		}
	}
	return nil
}

// component looks up one name component in s. from is the scope the whole
// lookup started in and resolves template arguments.
func (db *DB) component(s, from *cxx.Entity, part string, qualified bool, visible visibleFunc) []*cxx.Entity {
	stem, argText := splitTemplateArgs(part)
	found := db.member(s, stem, visible, make(map[*cxx.Entity]bool))
	if argText == "" || len(found) == 0 {
		return found
	}
	t, err := cxx.ParseType("clif_args" + argText)
	if err != nil {
		return nil
	}
	args, err := db.resolveArgs(from, t.Args, templateScope(from))
	if err != nil {
		return nil
	}
	var out []*cxx.Entity
	for _, e := range found {
		switch {
		case e.Kind == cxx.EntityRecord && e.Record.IsTemplate():
			if spec, err := db.instantiate(e, args); err == nil {
				out = append(out, spec)
			}
		case e.Kind == cxx.EntityFunction && e.Func.IsTemplate():
			if spec, err := db.specializeExplicit(e, args); err == nil {
				out = append(out, spec)
			}
		}
	}
	return out
}

// splitTemplateArgs splits "F<int>" into "F" and "<int>". Operator names
// such as "operator<" are left intact.
func splitTemplateArgs(part string) (string, string) {
	if strings.HasPrefix(part, "operator") {
		rest := part[len("operator"):]
		if i := strings.IndexByte(rest, '<'); i >= 0 && strings.HasSuffix(rest, ">") && i > 0 && isIdentByte(rest[i-1]) {
			return part[:len("operator")+i], rest[i:]
		}
		return part, ""
	}
	i := strings.IndexByte(part, '<')
	if i <= 0 || !strings.HasSuffix(part, ">") {
		return part, ""
	}
	return strings.TrimSpace(part[:i]), part[i:]
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// member finds name declared in s, then in the bases of a record.
func (db *DB) member(s *cxx.Entity, name string, visible visibleFunc, seen map[*cxx.Entity]bool) []*cxx.Entity {
	if s == nil || seen[s] {
		return nil
	}
	seen[s] = true
	var out []*cxx.Entity
	for _, c := range s.Children {
		if c.Name == name && lookupable(c) && isVisible(c, visible) {
			out = append(out, c)
		}
		if c.Kind == cxx.EntityEnum && !c.Enum.Scoped {
			for _, en := range c.Children {
				if en.Name == name && isVisible(c, visible) {
					out = append(out, en)
				}
			}
		}
	}
	if len(out) > 0 || s.Kind != cxx.EntityRecord {
		return out
	}
	r := s.Record
	for _, bt := range r.UsingMembers[name] {
		if bt.Decl != nil {
			out = append(out, db.member(bt.Decl, name, visible, seen)...)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, b := range db.bases(s) {
		out = append(out, db.member(b.Entity, name, visible, seen)...)
	}
	return out
}

// lookupable excludes what C++ never finds by name lookup: constructors,
// destructors and members the compiler declared implicitly.
func lookupable(e *cxx.Entity) bool {
	if e.Kind != cxx.EntityFunction {
		return true
	}
	return e.Func.Ctor == cxx.CtorNone && !e.Func.Dtor && !e.Implicit
}

func isVisible(e *cxx.Entity, visible visibleFunc) bool {
	if visible == nil || e.Kind == cxx.EntityNamespace {
		return true
	}
	return visible(e)
}
