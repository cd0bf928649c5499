package headerdb

import (
	"fmt"
	"strings"

	"clifmatch/internal/cxx"
)

// finish resolves every type written in the freshly built declarations.
func (db *DB) finish(entities []*cxx.Entity) {
	for _, e := range entities {
		db.resolveEntity(e)
	}
}

// templateScope lists template parameter names visible inside e.
func templateScope(e *cxx.Entity) []string {
	var names []string
	for cur := e; cur != nil; cur = cur.Parent {
		switch {
		case cur.Func != nil:
			for _, p := range cur.Func.TemplateParams {
				names = append(names, p.Name)
			}
		case cur.Record != nil:
			for _, p := range cur.Record.TemplateParams {
				names = append(names, p.Name)
			}
		}
	}
	return names
}

// resolveTree resolves e and everything declared inside it.
func (db *DB) resolveTree(e *cxx.Entity) {
	db.resolveEntity(e)
	for _, c := range e.Children {
		db.resolveTree(c)
	}
}

func (db *DB) resolveEntity(e *cxx.Entity) {
	if db.resolved[e] {
		return
	}
	db.resolved[e] = true
	scope := e.Parent
	tparams := templateScope(e)
	fix := func(what string, t *cxx.Type) *cxx.Type {
		if t == nil {
			return nil
		}
		rt, err := db.resolveType(scope, t, tparams)
		if err != nil {
			db.problemf("%s:%d: %s %s: %v", e.Loc.File, e.Loc.Line, what, e.Name, err)
			return t
		}
		return rt
	}
	switch e.Kind {
	case cxx.EntityRecord:
		r := e.Record
		for i := range r.Bases {
			r.Bases[i].Type = fix("base of", r.Bases[i].Type)
		}
		for i, t := range r.InheritedCtors {
			r.InheritedCtors[i] = fix("inherited constructors of", t)
		}
		for name, bases := range r.UsingMembers {
			for i, t := range bases {
				bases[i] = fix("using "+name+" in", t)
			}
		}
		for i, p := range r.TemplateParams {
			if p.Default != nil && p.Default.Type != nil {
				r.TemplateParams[i].Default = &cxx.Arg{Type: fix("template default of", p.Default.Type)}
			}
		}
	case cxx.EntityFunction:
		fn := e.Func
		fn.Result = fix("result of", fn.Result)
		for i := range fn.Params {
			fn.Params[i].Type = fix("parameter of", fn.Params[i].Type)
		}
		classifyCtor(e)
	case cxx.EntityField, cxx.EntityVariable:
		e.Var.Type = fix("type of", e.Var.Type)
	case cxx.EntityTypedef:
		db.typedefTarget(e)
	case cxx.EntityEnum:
		e.Enum.Underlying = fix("underlying type of", e.Enum.Underlying)
	}
}

// classifyCtor sets the constructor kind from the parameter list.
func classifyCtor(e *cxx.Entity) {
	fn := e.Func
	if fn.Ctor == cxx.CtorNone {
		return
	}
	rec := e.Parent
	var required []cxx.Param
	for _, p := range fn.Params {
		if !p.HasDefault {
			required = append(required, p)
		}
	}
	switch {
	case len(fn.Params) == 0 || len(required) == 0 && len(fn.Params) > 0 && !sameRecord(fn.Params[0].Type.NonRef(), rec):
		fn.Ctor = cxx.CtorDefault
	case len(required) == 1 || (len(required) == 0 && len(fn.Params) > 0):
		p := fn.Params[0].Type
		switch {
		case p.Kind == cxx.KindLValueRef && sameRecord(p.Elem, rec):
			fn.Ctor = cxx.CtorCopy
		case p.Kind == cxx.KindRValueRef && sameRecord(p.Elem, rec):
			fn.Ctor = cxx.CtorMove
		default:
			fn.Ctor = cxx.CtorConverting
		}
	default:
		fn.Ctor = cxx.CtorOther
	}
}

// sameRecord reports whether t names the record entity rec, including the
// injected name of a template inside its own body.
func sameRecord(t *cxx.Type, rec *cxx.Entity) bool {
	if t == nil || rec == nil || t.Kind != cxx.KindRecord {
		return false
	}
	if t.Decl == rec {
		return true
	}
	return cxx.Identical(t.Unqualified(), rec.Type())
}

// typedefTarget returns the resolved aliased type of a typedef entity.
func (db *DB) typedefTarget(e *cxx.Entity) *cxx.Type {
	if e.Alias == nil || e.Alias.Kind != cxx.KindNamed && !e.Alias.Dependent() && !hasNamed(e.Alias) {
		return e.Alias
	}
	db.mu.Lock()
	if db.resolving[e] {
		db.mu.Unlock()
		return e.Alias
	}
	db.resolving[e] = true
	db.mu.Unlock()

	rt, err := db.resolveType(e.Parent, e.Alias, templateScope(e))
	db.mu.Lock()
	delete(db.resolving, e)
	if err == nil {
		e.Alias = rt
	}
	db.mu.Unlock()
	if err != nil {
		db.problemf("%s:%d: typedef %s: %v", e.Loc.File, e.Loc.Line, e.Name, err)
	}
	return e.Alias
}

func hasNamed(t *cxx.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind == cxx.KindNamed {
		return true
	}
	for _, a := range t.Args {
		if hasNamed(a.Type) {
			return true
		}
	}
	if hasNamed(t.Elem) || hasNamed(t.Result) {
		return true
	}
	for _, p := range t.Params {
		if hasNamed(p) {
			return true
		}
	}
	return false
}

// resolveType binds every name in t, looking names up from scope outward.
// tparams are template parameter names in scope.
func (db *DB) resolveType(scope *cxx.Entity, t *cxx.Type, tparams []string) (*cxx.Type, error) {
	if t == nil {
		return nil, nil
	}
	switch t.Kind {
	case cxx.KindBuiltin, cxx.KindTemplateParam:
		return t, nil
	case cxx.KindRecord, cxx.KindEnum:
		return t, nil
	case cxx.KindPointer, cxx.KindLValueRef, cxx.KindRValueRef:
		elem, err := db.resolveType(scope, t.Elem, tparams)
		if err != nil {
			return nil, err
		}
		out := *t
		out.Elem = elem
		return &out, nil
	case cxx.KindFunction:
		out := *t
		res, err := db.resolveType(scope, t.Result, tparams)
		if err != nil {
			return nil, err
		}
		out.Result = res
		out.Params = make([]*cxx.Type, len(t.Params))
		for i, p := range t.Params {
			rp, err := db.resolveType(scope, p, tparams)
			if err != nil {
				return nil, err
			}
			out.Params[i] = rp
		}
		return &out, nil
	case cxx.KindNamed:
		return db.resolveNamed(scope, t, tparams)
	}
	return nil, fmt.Errorf("cannot resolve %s type", t.Kind)
}

func (db *DB) resolveArgs(scope *cxx.Entity, args []cxx.Arg, tparams []string) ([]cxx.Arg, error) {
	out := make([]cxx.Arg, len(args))
	for i, a := range args {
		if a.Type == nil {
			out[i] = a
			continue
		}
		// a bare identifier may name a constant rather than a type
		if a.Type.Kind == cxx.KindNamed && len(a.Type.Args) == 0 && !containsString(tparams, a.Type.Name) {
			if v := db.constantValue(scope, a.Type.Name); v != "" {
				out[i] = cxx.Arg{Value: v}
				continue
			}
		}
		rt, err := db.resolveType(scope, a.Type, tparams)
		if err != nil {
			return nil, err
		}
		out[i] = cxx.Arg{Type: rt}
	}
	return out, nil
}

func (db *DB) constantValue(scope *cxx.Entity, name string) string {
	for _, e := range db.lookup(scope, name, nil) {
		switch e.Kind {
		case cxx.EntityEnumerator:
			if e.Enumerator.Value != "" {
				return e.Enumerator.Value
			}
			return e.QualifiedName()
		case cxx.EntityVariable:
			return e.QualifiedName()
		}
	}
	return ""
}

func (db *DB) resolveNamed(scope *cxx.Entity, t *cxx.Type, tparams []string) (*cxx.Type, error) {
	if !strings.Contains(t.Name, "::") && containsString(tparams, t.Name) && len(t.Args) == 0 {
		return &cxx.Type{Kind: cxx.KindTemplateParam, Name: t.Name, Const: t.Const, Volatile: t.Volatile}, nil
	}
	var target *cxx.Entity
	for _, e := range db.lookup(scope, t.Name, nil) {
		if e.Kind == cxx.EntityRecord || e.Kind == cxx.EntityEnum || e.Kind == cxx.EntityTypedef {
			target = e
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("unknown type name '%s'", t.Name)
	}
	var out *cxx.Type
	switch target.Kind {
	case cxx.EntityRecord:
		r := target.Record
		switch {
		case len(t.Args) > 0:
			if !r.IsTemplate() {
				return nil, fmt.Errorf("'%s' is not a class template", t.Name)
			}
			args, err := db.resolveArgs(scope, t.Args, tparams)
			if err != nil {
				return nil, err
			}
			if dependentArgs(args) {
				out = &cxx.Type{Kind: cxx.KindRecord, Name: qualifiedStemOf(target), Args: args, Decl: target}
			} else {
				spec, err := db.instantiate(target, args)
				if err != nil {
					return nil, err
				}
				out = spec.Type()
			}
		case r.IsTemplate() && within(scope, target):
			// injected class name of the enclosing template
			out = &cxx.Type{Kind: cxx.KindRecord, Name: qualifiedStemOf(target), Decl: target}
			for _, p := range r.TemplateParams {
				out.Args = append(out.Args, cxx.Arg{Type: &cxx.Type{Kind: cxx.KindTemplateParam, Name: p.Name}})
			}
		case r.IsTemplate():
			spec, err := db.instantiate(target, nil)
			if err != nil {
				return nil, fmt.Errorf("use of class template '%s' requires template arguments", t.Name)
			}
			out = spec.Type()
		default:
			out = target.Type()
		}
	case cxx.EntityEnum:
		out = target.Type()
	case cxx.EntityTypedef:
		alias := db.typedefTarget(target)
		if alias == nil || hasNamed(alias) {
			return nil, fmt.Errorf("typedef '%s' has an unresolved target", t.Name)
		}
		out = alias.Clone()
		out.Alias = target.QualifiedName()
	}
	if t.Const {
		out.Const = true
	}
	if t.Volatile {
		out.Volatile = true
	}
	return out, nil
}

func dependentArgs(args []cxx.Arg) bool {
	for _, a := range args {
		if a.Type.Dependent() {
			return true
		}
	}
	return false
}

func qualifiedStemOf(e *cxx.Entity) string {
	return e.Parent.QualifiedName() + "::" + e.Name
}

// within reports whether scope is e or nested inside it.
func within(scope, e *cxx.Entity) bool {
	for cur := scope; cur != nil; cur = cur.Parent {
		if cur == e {
			return true
		}
	}
	return false
}
