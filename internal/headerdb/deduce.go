package headerdb

import (
	"clifmatch/internal/cxx"
	"clifmatch/internal/oracle"
)

// deduce specializes the function template fn for call arguments of the
// given types. References and top-level qualifiers are ignored.
func (db *DB) deduce(fn *cxx.Entity, args []*cxx.Type) (*cxx.Entity, error) {
	name := fn.QualifiedName()
	if fn.Func == nil || !fn.Func.IsTemplate() {
		return nil, &oracle.DeductionError{Reason: oracle.DeduceNotTemplate, Template: name}
	}
	f := fn.Func
	if len(args) > len(f.Params) && !f.Variadic {
		return nil, &oracle.DeductionError{Reason: oracle.DeduceTooManyArguments, Template: name}
	}
	if len(args) < f.RequiredParams() {
		return nil, &oracle.DeductionError{Reason: oracle.DeduceTooFewArguments, Template: name}
	}
	tparams := make(map[string]bool, len(f.TemplateParams))
	for _, p := range f.TemplateParams {
		tparams[p.Name] = true
	}
	b := make(bindings)
	for i, a := range args {
		if i >= len(f.Params) {
			break
		}
		if err := unify(f.Params[i].Type, a, tparams, b); err != nil {
			err.Template = name
			return nil, err
		}
	}
	full := make([]cxx.Arg, 0, len(f.TemplateParams))
	for _, p := range f.TemplateParams {
		a, ok := b[p.Name]
		if !ok {
			if p.Default == nil {
				return nil, &oracle.DeductionError{Reason: oracle.DeduceIncomplete, Template: name, Param: p.Name}
			}
			a = db.substArg(*p.Default, b)
			b[p.Name] = a
		}
		full = append(full, a)
	}
	return db.specializeFunc(fn, b, full), nil
}

func unify(p, a *cxx.Type, tparams map[string]bool, b bindings) *oracle.DeductionError {
	if p == nil || a == nil {
		return nil
	}
	p = p.NonRef().Unqualified()
	a = a.NonRef().Unqualified()
	return unifyInner(p, a, tparams, b)
}

func unifyInner(p, a *cxx.Type, tparams map[string]bool, b bindings) *oracle.DeductionError {
	if !p.Dependent() {
		return nil
	}
	switch p.Kind {
	case cxx.KindTemplateParam:
		if !tparams[p.Name] {
			return nil
		}
		val := a
		if p.Const {
			val = a.WithConst(false)
		}
		if prev, ok := b[p.Name]; ok {
			if !cxx.Identical(prev.Type, val) {
				return &oracle.DeductionError{Reason: oracle.DeduceConflict, Param: p.Name}
			}
			return nil
		}
		b[p.Name] = cxx.Arg{Type: val}
		return nil
	case cxx.KindPointer:
		if a.Kind != cxx.KindPointer {
			return &oracle.DeductionError{Reason: oracle.DeduceMismatch, Param: p.String()}
		}
		pe, ae := p.Elem, a.Elem
		if pe.Const {
			ae = ae.WithConst(false)
			pe = pe.WithConst(false)
		}
		return unifyInner(pe, ae, tparams, b)
	case cxx.KindRecord:
		if a.Kind == cxx.KindRecord && sameTemplate(p, a) && len(p.Args) == len(a.Args) {
			for i := range p.Args {
				pa, aa := p.Args[i], a.Args[i]
				switch {
				case pa.Type != nil && pa.Type.Kind == cxx.KindTemplateParam && tparams[pa.Type.Name] && aa.Type == nil:
					b[pa.Type.Name] = aa
				case pa.Type != nil && aa.Type != nil:
					if err := unifyInner(pa.Type, aa.Type, tparams, b); err != nil {
						return err
					}
				}
			}
			return nil
		}
		return &oracle.DeductionError{Reason: oracle.DeduceMismatch, Param: p.String()}
	case cxx.KindFunction:
		if a.Kind != cxx.KindFunction || len(a.Params) != len(p.Params) {
			return &oracle.DeductionError{Reason: oracle.DeduceMismatch, Param: p.String()}
		}
		if err := unifyInner(p.Result, a.Result, tparams, b); err != nil {
			return err
		}
		for i := range p.Params {
			if err := unify(p.Params[i], a.Params[i], tparams, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// sameTemplate reports whether the dependent specialization p and the
// concrete specialization a come from the same class template.
func sameTemplate(p, a *cxx.Type) bool {
	if a.Decl != nil && a.Decl.Record != nil && a.Decl.Record.Template != nil && a.Decl.Record.Template == p.Decl {
		return true
	}
	return p.Name == a.Name
}
