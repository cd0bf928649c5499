package headerdb

import (
	"fmt"
	"strings"

	"clifmatch/internal/cxx"
)

type bindings map[string]cxx.Arg

// bind pairs template parameters with arguments, filling defaults.
func (db *DB) bind(name string, params []cxx.TemplateParam, args []cxx.Arg) (bindings, []cxx.Arg, error) {
	b := make(bindings, len(params))
	full := make([]cxx.Arg, 0, len(params))
	for i, p := range params {
		switch {
		case p.Pack:
			// a trailing pack keeps only its first argument
			if i < len(args) {
				b[p.Name] = args[i]
				full = append(full, args[i:]...)
			}
			return b, full, nil
		case i < len(args):
			if p.NonType != (args[i].Type == nil) {
				return nil, nil, fmt.Errorf("template argument %d of %s has the wrong kind", i+1, name)
			}
			b[p.Name] = args[i]
		case p.Default != nil:
			b[p.Name] = db.substArg(*p.Default, b)
		default:
			return nil, nil, fmt.Errorf("too few template arguments for %s", name)
		}
		full = append(full, b[p.Name])
	}
	if len(args) > len(params) {
		return nil, nil, fmt.Errorf("too many template arguments for %s", name)
	}
	return b, full, nil
}

func specKey(e *cxx.Entity, args []cxx.Arg) string {
	var sb strings.Builder
	sb.WriteString(e.QualifiedName())
	sb.WriteByte('<')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte('>')
	if e.Kind == cxx.EntityFunction {
		fmt.Fprintf(&sb, "@%s:%d", e.Loc.File, e.Loc.Line)
	}
	return sb.String()
}

// instantiate returns the specialization of a class template.
func (db *DB) instantiate(tmpl *cxx.Entity, args []cxx.Arg) (*cxx.Entity, error) {
	r := tmpl.Record
	if !r.IsTemplate() {
		return nil, fmt.Errorf("%s is not a class template", tmpl.QualifiedName())
	}
	b, full, err := db.bind(tmpl.QualifiedName(), r.TemplateParams, args)
	if err != nil {
		return nil, err
	}
	key := specKey(tmpl, full)
	db.mu.Lock()
	if spec, ok := db.specs[key]; ok {
		db.mu.Unlock()
		return spec, nil
	}
	spec := &cxx.Entity{
		Kind:   cxx.EntityRecord,
		Name:   tmpl.Name,
		Parent: tmpl.Parent,
		Loc:    tmpl.Loc,
		Access: tmpl.Access,
		Record: &cxx.Record{
			Tag:            r.Tag,
			Complete:       r.Complete,
			Final:          r.Final,
			TemplateParams: r.TemplateParams,
			TemplateArgs:   full,
			Template:       tmpl,
			Override:       r.Override,
		},
	}
	// registered before members are substituted so self references
	// resolve to the same entity
	db.specs[key] = spec
	db.mu.Unlock()

	// the pattern may be declared after its first use
	db.resolveTree(tmpl)

	sr := spec.Record
	for _, base := range r.Bases {
		sr.Bases = append(sr.Bases, cxx.Base{Type: db.subst(base.Type, b), Virtual: base.Virtual, Access: base.Access})
	}
	for _, t := range r.InheritedCtors {
		sr.InheritedCtors = append(sr.InheritedCtors, db.subst(t, b))
	}
	if len(r.UsingMembers) > 0 {
		sr.UsingMembers = make(map[string][]*cxx.Type, len(r.UsingMembers))
		for name, ts := range r.UsingMembers {
			for _, t := range ts {
				sr.UsingMembers[name] = append(sr.UsingMembers[name], db.subst(t, b))
			}
		}
	}
	for _, c := range tmpl.Children {
		if sc := db.substEntity(c, b); sc != nil {
			spec.AddChild(sc)
		}
	}
	return spec, nil
}

// substEntity copies a member of a class template with its types
// substituted. It returns nil for members that are not copied.
func (db *DB) substEntity(e *cxx.Entity, b bindings) *cxx.Entity {
	out := *e
	out.Parent = nil
	out.Children = nil
	switch e.Kind {
	case cxx.EntityFunction:
		fn := *e.Func
		fn.Result = db.subst(e.Func.Result, shadow(b, fn.TemplateParams))
		fn.Params = make([]cxx.Param, len(e.Func.Params))
		for i, p := range e.Func.Params {
			p.Type = db.subst(p.Type, shadow(b, fn.TemplateParams))
			fn.Params[i] = p
		}
		// mangled names of the pattern do not apply
		fn.Mangled = ""
		out.Func = &fn
	case cxx.EntityField, cxx.EntityVariable:
		v := *e.Var
		v.Type = db.subst(e.Var.Type, b)
		out.Var = &v
	case cxx.EntityTypedef:
		out.Alias = db.subst(db.typedefTarget(e), b)
	case cxx.EntityRecord:
		if e.Record.IsTemplate() {
			// member templates are not carried into specializations
			return nil
		}
		rec := *e.Record
		rec.Bases = nil
		for _, base := range e.Record.Bases {
			rec.Bases = append(rec.Bases, cxx.Base{Type: db.subst(base.Type, b), Virtual: base.Virtual, Access: base.Access})
		}
		out.Record = &rec
	}
	for _, c := range e.Children {
		if sc := db.substEntity(c, b); sc != nil {
			out.AddChild(sc)
		}
	}
	return &out
}

// shadow hides bindings that a member template redeclares.
func shadow(b bindings, params []cxx.TemplateParam) bindings {
	if len(params) == 0 {
		return b
	}
	out := make(bindings, len(b))
	for k, v := range b {
		out[k] = v
	}
	for _, p := range params {
		delete(out, p.Name)
	}
	return out
}

func (db *DB) substArg(a cxx.Arg, b bindings) cxx.Arg {
	if a.Type == nil {
		if bound, ok := b[a.Value]; ok {
			return bound
		}
		return a
	}
	if a.Type.Kind == cxx.KindTemplateParam {
		if bound, ok := b[a.Type.Name]; ok && bound.Type == nil {
			return bound
		}
	}
	return cxx.Arg{Type: db.subst(a.Type, b)}
}

// subst replaces template parameters in t. Dependent specializations whose
// arguments become concrete are instantiated.
func (db *DB) subst(t *cxx.Type, b bindings) *cxx.Type {
	if t == nil || len(b) == 0 || !t.Dependent() {
		return t
	}
	switch t.Kind {
	case cxx.KindTemplateParam:
		bound, ok := b[t.Name]
		if !ok || bound.Type == nil {
			return t
		}
		out := bound.Type.Clone()
		out.Const = out.Const || t.Const
		out.Volatile = out.Volatile || t.Volatile
		return out
	case cxx.KindPointer, cxx.KindLValueRef, cxx.KindRValueRef:
		out := *t
		out.Elem = db.subst(t.Elem, b)
		// reference collapsing
		if t.IsRef() && out.Elem.IsRef() {
			if t.Kind == cxx.KindLValueRef || out.Elem.Kind == cxx.KindLValueRef {
				return cxx.LRefTo(out.Elem.Elem)
			}
			return out.Elem
		}
		return &out
	case cxx.KindFunction:
		out := *t
		out.Result = db.subst(t.Result, b)
		out.Params = make([]*cxx.Type, len(t.Params))
		for i, p := range t.Params {
			out.Params[i] = db.subst(p, b)
		}
		return &out
	}
	out := *t
	out.Args = make([]cxx.Arg, len(t.Args))
	for i, a := range t.Args {
		out.Args[i] = db.substArg(a, b)
	}
	if out.Kind == cxx.KindRecord && out.Decl != nil && !dependentArgs(out.Args) {
		tmpl := out.Decl
		if tmpl.Record != nil && tmpl.Record.Template != nil {
			tmpl = tmpl.Record.Template
		}
		if tmpl.Record != nil && tmpl.Record.IsTemplate() {
			if spec, err := db.instantiate(tmpl, out.Args); err == nil {
				st := spec.Type()
				st.Const, st.Volatile = t.Const, t.Volatile
				return st
			}
		}
	}
	return &out
}

// specializeExplicit specializes a function template with explicitly
// written arguments; parameters left over must have defaults.
func (db *DB) specializeExplicit(fn *cxx.Entity, args []cxx.Arg) (*cxx.Entity, error) {
	b, full, err := db.bind(fn.QualifiedName(), fn.Func.TemplateParams, args)
	if err != nil {
		return nil, err
	}
	return db.specializeFunc(fn, b, full), nil
}

// specializeFunc returns the specialization of a function template for
// fully bound parameters.
func (db *DB) specializeFunc(fn *cxx.Entity, b bindings, full []cxx.Arg) *cxx.Entity {
	key := specKey(fn, full)
	db.mu.Lock()
	spec, ok := db.specs[key]
	db.mu.Unlock()
	if ok {
		return spec
	}
	f := *fn.Func
	f.TemplateArgs = full
	f.Template = fn
	f.Mangled = ""
	f.Result = db.subst(fn.Func.Result, b)
	f.Params = make([]cxx.Param, len(fn.Func.Params))
	for i, p := range fn.Func.Params {
		p.Type = db.subst(p.Type, b)
		f.Params[i] = p
	}
	spec = &cxx.Entity{
		Kind:   cxx.EntityFunction,
		Name:   fn.Name,
		Parent: fn.Parent,
		Loc:    fn.Loc,
		Access: fn.Access,
		Func:   &f,
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if prev, ok := db.specs[key]; ok {
		return prev
	}
	db.specs[key] = spec
	return spec
}
