package headerdb

import (
	"strings"

	"clifmatch/internal/cxx"
	"clifmatch/internal/oracle"
)

// properties answers capability questions about t. References and
// top-level qualifiers are looked through.
func (db *DB) properties(t *cxx.Type) oracle.Properties {
	if t == nil {
		return oracle.Properties{}
	}
	t = t.NonRef().Unqualified()
	switch t.Kind {
	case cxx.KindRecord:
		if t.Decl == nil {
			return oracle.Properties{}
		}
		return db.recordProps(t.Decl)
	case cxx.KindBuiltin:
		if t.IsVoid() {
			return oracle.Properties{}
		}
		return scalarProps
	case cxx.KindEnum, cxx.KindPointer:
		return scalarProps
	}
	return oracle.Properties{}
}

var scalarProps = oracle.Properties{
	HasDefaultCtor: true,
	TrivialCtor:    true,
	Copyable:       true,
	Movable:        true,
	HasPublicDtor:  true,
	TrivialDtor:    true,
}

func (db *DB) recordProps(rec *cxx.Entity) oracle.Properties {
	db.mu.Lock()
	p, ok := db.props[rec]
	if ok {
		db.mu.Unlock()
		return p
	}
	if db.resolving[rec] {
		// a record cannot contain itself; answer conservatively
		db.mu.Unlock()
		return oracle.Properties{}
	}
	db.resolving[rec] = true
	db.mu.Unlock()

	p = db.computeProps(rec)

	db.mu.Lock()
	delete(db.resolving, rec)
	db.props[rec] = p
	db.mu.Unlock()
	return p
}

func (db *DB) computeProps(rec *cxx.Entity) oracle.Properties {
	r := rec.Record
	if !r.Complete {
		return oracle.Properties{}
	}
	var p oracle.Properties
	for _, c := range db.constructors(rec) {
		fn := c.Func
		if fn.Deleted || c.Access != cxx.AccessPublic {
			continue
		}
		if fn.RequiredParams() == 0 {
			p.HasDefaultCtor = true
			p.TrivialCtor = c.Implicit && db.subobjects(rec, func(sp oracle.Properties) bool { return sp.TrivialCtor })
		}
		switch fn.Ctor {
		case cxx.CtorCopy:
			p.Copyable = true
		case cxx.CtorMove:
			p.Movable = true
		}
	}
	// a copy constructor also binds rvalues
	p.Movable = p.Movable || p.Copyable && !db.hasDeletedMove(rec)

	dtor := findDtor(rec)
	switch {
	case dtor != nil:
		p.HasPublicDtor = !dtor.Func.Deleted && dtor.Access == cxx.AccessPublic
		p.TrivialDtor = p.HasPublicDtor && dtor.Func.Defaulted && !dtor.Func.Virtual &&
			db.subobjects(rec, func(sp oracle.Properties) bool { return sp.TrivialDtor })
	default:
		p.HasPublicDtor = db.subobjects(rec, func(sp oracle.Properties) bool { return sp.HasPublicDtor })
		p.TrivialDtor = p.HasPublicDtor && db.subobjects(rec, func(sp oracle.Properties) bool { return sp.TrivialDtor })
	}
	p.Abstract = len(db.pureVirtuals(rec)) > 0
	p.Polymorphic = db.polymorphic(rec, make(map[*cxx.Entity]bool))
	if p.Polymorphic {
		p.TrivialCtor = false
		p.TrivialDtor = false
	}
	applyOverride(&p, r.Override)
	return p
}

func applyOverride(p *oracle.Properties, o *cxx.PropertyOverride) {
	if o == nil {
		return
	}
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.HasDefaultCtor, o.HasDefaultCtor)
	set(&p.TrivialCtor, o.TrivialCtor)
	set(&p.Copyable, o.Copyable)
	set(&p.Movable, o.Movable)
	set(&p.HasPublicDtor, o.HasPublicDtor)
	set(&p.TrivialDtor, o.TrivialDtor)
	set(&p.Abstract, o.Abstract)
	set(&p.Polymorphic, o.Polymorphic)
}

// subobjects reports whether pred holds for every base and non-static
// data member of rec.
func (db *DB) subobjects(rec *cxx.Entity, pred func(oracle.Properties) bool) bool {
	for _, b := range db.bases(rec) {
		if !pred(db.recordProps(b.Entity)) {
			return false
		}
	}
	for _, c := range rec.Children {
		if c.Kind != cxx.EntityField || c.Var.Static {
			continue
		}
		t := c.Var.Type
		if t.IsRef() {
			continue
		}
		if !pred(db.properties(t)) {
			return false
		}
	}
	return true
}

func findDtor(rec *cxx.Entity) *cxx.Entity {
	for _, c := range rec.Children {
		if c.Kind == cxx.EntityFunction && c.Func.Dtor {
			return c
		}
	}
	return nil
}

func (db *DB) hasDeletedMove(rec *cxx.Entity) bool {
	for _, c := range rec.Children {
		if c.Kind == cxx.EntityFunction && c.Func.Ctor == cxx.CtorMove && c.Func.Deleted {
			return true
		}
	}
	return false
}

func (db *DB) polymorphic(rec *cxx.Entity, seen map[*cxx.Entity]bool) bool {
	if seen[rec] {
		return false
	}
	seen[rec] = true
	for _, c := range rec.Children {
		if c.Kind == cxx.EntityFunction && c.Func.Virtual {
			return true
		}
	}
	for _, b := range db.bases(rec) {
		if b.Virtual || db.polymorphic(b.Entity, seen) {
			return true
		}
	}
	return false
}

func overrideKey(fn *cxx.Entity) string {
	params := make([]string, len(fn.Func.Params))
	for i, p := range fn.Func.Params {
		if p.Type != nil {
			params[i] = p.Type.Unqualified().String()
		}
	}
	key := fn.Name + "(" + strings.Join(params, ", ") + ")"
	if fn.Func.Const {
		key += " const"
	}
	return key
}

// pureVirtuals returns the pure virtual functions rec leaves without a
// final overrider.
func (db *DB) pureVirtuals(rec *cxx.Entity) map[string]*cxx.Entity {
	out := make(map[string]*cxx.Entity)
	for _, b := range db.bases(rec) {
		for k, v := range db.pureVirtuals(b.Entity) {
			out[k] = v
		}
	}
	for _, c := range rec.Children {
		if c.Kind != cxx.EntityFunction || c.Func.Ctor != cxx.CtorNone || c.Func.Dtor {
			continue
		}
		key := overrideKey(c)
		if c.Func.Pure {
			out[key] = c
		} else {
			delete(out, key)
		}
	}
	return out
}

// constructors returns declared constructors, implicitly declared ones and
// constructors inherited through using-declarations.
func (db *DB) constructors(rec *cxx.Entity) []*cxx.Entity {
	if rec == nil || rec.Record == nil {
		return nil
	}
	db.mu.Lock()
	cached, ok := db.ctors[rec]
	db.mu.Unlock()
	if ok {
		return cached
	}

	var out []*cxx.Entity
	var anyCtor, hasCopy, hasMove bool
	var userCopyAssign, userMoveAssign, userDtor bool
	for _, c := range rec.Children {
		if c.Kind != cxx.EntityFunction {
			continue
		}
		fn := c.Func
		switch {
		case fn.Ctor != cxx.CtorNone:
			out = append(out, c)
			anyCtor = true
			hasCopy = hasCopy || fn.Ctor == cxx.CtorCopy
			hasMove = hasMove || fn.Ctor == cxx.CtorMove
		case fn.Dtor:
			userDtor = userDtor || !c.Implicit
		case c.Name == "operator=" && len(fn.Params) == 1 && !c.Implicit:
			pt := fn.Params[0].Type
			if sameRecord(pt.NonRef(), rec) {
				if pt.Kind == cxx.KindRValueRef {
					userMoveAssign = true
				} else {
					userCopyAssign = true
				}
			}
		}
	}
	self := rec.Type()
	implicit := func(kind cxx.CtorKind, params []cxx.Param, deleted bool) *cxx.Entity {
		return &cxx.Entity{
			Kind:     cxx.EntityFunction,
			Name:     rec.Name,
			Parent:   rec,
			Loc:      rec.Loc,
			Access:   cxx.AccessPublic,
			Implicit: true,
			Func:     &cxx.Function{Method: true, Ctor: kind, Deleted: deleted, Params: params},
		}
	}
	// implicit special members are only consulted when the front end did
	// not state the capability
	if !anyCtor {
		out = append(out, implicit(cxx.CtorDefault, nil, !db.subobjects(rec, func(p oracle.Properties) bool { return p.HasDefaultCtor })))
	}
	if !hasCopy {
		deleted := hasMove || userMoveAssign || !db.subobjects(rec, func(p oracle.Properties) bool { return p.Copyable })
		out = append(out, implicit(cxx.CtorCopy, []cxx.Param{{Type: cxx.LRefTo(self.WithConst(true))}}, deleted))
	}
	if !hasMove && !hasCopy && !userCopyAssign && !userMoveAssign && !userDtor &&
		db.subobjects(rec, func(p oracle.Properties) bool { return p.Movable }) {
		out = append(out, implicit(cxx.CtorMove, []cxx.Param{{Type: cxx.RRefTo(self)}}, false))
	}
	for _, bt := range rec.Record.InheritedCtors {
		if bt == nil || bt.Decl == nil {
			continue
		}
		for _, bc := range db.constructors(bt.Decl) {
			switch bc.Func.Ctor {
			case cxx.CtorDefault, cxx.CtorCopy, cxx.CtorMove:
				continue
			}
			if bc.Access == cxx.AccessPrivate {
				continue
			}
			fn := *bc.Func
			out = append(out, &cxx.Entity{
				Kind:     cxx.EntityFunction,
				Name:     rec.Name,
				Parent:   rec,
				Loc:      bc.Loc,
				Access:   bc.Access,
				Implicit: true,
				Func:     &fn,
			})
		}
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if prev, ok := db.ctors[rec]; ok {
		return prev
	}
	db.ctors[rec] = out
	return out
}
