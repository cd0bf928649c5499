package headerdb

import (
	"clifmatch/internal/cxx"
	"clifmatch/internal/oracle"
)

// bases resolves the direct bases of a record.
func (db *DB) bases(rec *cxx.Entity) []oracle.BaseRef {
	if rec == nil || rec.Record == nil {
		return nil
	}
	var out []oracle.BaseRef
	for _, b := range rec.Record.Bases {
		if b.Type == nil || b.Type.Decl == nil || b.Type.Kind != cxx.KindRecord {
			continue
		}
		out = append(out, oracle.BaseRef{Entity: b.Type.Decl, Virtual: b.Virtual, Access: b.Access})
	}
	return out
}

// derivesFrom reports whether derived has base as a public ancestor.
func (db *DB) derivesFrom(derived, base *cxx.Entity) bool {
	if derived == nil || base == nil || derived == base {
		return false
	}
	seen := map[*cxx.Entity]bool{derived: true}
	queue := []*cxx.Entity{derived}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, b := range db.bases(cur) {
			if b.Access != cxx.AccessPublic || seen[b.Entity] {
				continue
			}
			if b.Entity == base {
				return true
			}
			seen[b.Entity] = true
			queue = append(queue, b.Entity)
		}
	}
	return false
}

// convert ranks the implicit conversion of a value of type from to type
// to. References on either side bind to the referred type.
func (db *DB) convert(from, to *cxx.Type) oracle.Conversion {
	if c := db.standard(from, to); c.OK() {
		return c
	}
	return db.userDefined(from, to)
}

func (db *DB) standard(from, to *cxx.Type) oracle.Conversion {
	none := oracle.Conversion{}
	if from == nil || to == nil {
		return none
	}
	f := from.NonRef()
	t := to.NonRef()
	if to.Kind == cxx.KindLValueRef && !t.Const && f.Const {
		return none
	}
	fu, tu := f.Unqualified(), t.Unqualified()
	if cxx.Identical(fu, tu) {
		return oracle.Conversion{Kind: oracle.ConvIdentity}
	}
	switch {
	case fu.Kind == cxx.KindPointer && tu.Kind == cxx.KindPointer:
		fe, te := fu.Elem, tu.Elem
		if fe.Const && !te.Const {
			return none
		}
		if cxx.Identical(fe.Unqualified(), te.Unqualified()) {
			return oracle.Conversion{Kind: oracle.ConvQualification}
		}
		if fe.IsRecord() && te.IsRecord() && db.derivesFrom(fe.Decl, te.Decl) {
			return oracle.Conversion{Kind: oracle.ConvDerivedToBase}
		}
		if te.IsVoid() && fe.Kind != cxx.KindFunction {
			return oracle.Conversion{Kind: oracle.ConvNumeric}
		}
	case fu.Kind == cxx.KindBuiltin && fu.Name == "nullptr_t" && tu.Kind == cxx.KindPointer:
		return oracle.Conversion{Kind: oracle.ConvNumeric}
	case fu.IsRecord() && tu.IsRecord():
		if db.derivesFrom(fu.Decl, tu.Decl) {
			return oracle.Conversion{Kind: oracle.ConvDerivedToBase}
		}
	case fu.Kind == cxx.KindEnum && tu.Kind == cxx.KindBuiltin:
		if fu.Decl != nil && fu.Decl.Enum != nil && !fu.Decl.Enum.Scoped && cxx.IsIntegral(tu) {
			return oracle.Conversion{Kind: oracle.ConvPromotion}
		}
	case fu.Kind == cxx.KindBuiltin && tu.Kind == cxx.KindBuiltin:
		return arithmetic(fu, tu)
	}
	return none
}

// arithmetic ranks conversions between builtin types. Conversions to or
// from bool and between integral and floating types are not accepted.
func arithmetic(from, to *cxx.Type) oracle.Conversion {
	switch {
	case cxx.IsBool(from) || cxx.IsBool(to):
		return oracle.Conversion{}
	case cxx.IsIntegral(from) && cxx.IsIntegral(to):
		if to.Name == "int" && cxx.IntegralRank(from) < cxx.IntegralRank(to) {
			return oracle.Conversion{Kind: oracle.ConvPromotion}
		}
		return oracle.Conversion{Kind: oracle.ConvNumeric}
	case cxx.IsFloating(from) && cxx.IsFloating(to):
		if from.Name == "float" && to.Name == "double" {
			return oracle.Conversion{Kind: oracle.ConvPromotion}
		}
		return oracle.Conversion{Kind: oracle.ConvNumeric}
	}
	return oracle.Conversion{}
}

// userDefined looks for one non-explicit converting constructor of the
// target or one conversion function of the source.
func (db *DB) userDefined(from, to *cxx.Type) oracle.Conversion {
	if from == nil || to == nil {
		return oracle.Conversion{}
	}
	f := from.NonRef()
	t := to.NonRef()
	if to.Kind == cxx.KindLValueRef && !t.Const {
		// a temporary cannot bind to a non-const lvalue reference
		return oracle.Conversion{}
	}
	if t.IsRecord() && t.Decl != nil {
		for _, ctor := range db.constructors(t.Decl) {
			fn := ctor.Func
			if fn.Deleted || fn.Explicit || ctor.Access != cxx.AccessPublic ||
				fn.Ctor == cxx.CtorCopy || fn.Ctor == cxx.CtorMove ||
				len(fn.Params) == 0 || fn.RequiredParams() > 1 {
				continue
			}
			if db.standard(f, fn.Params[0].Type).OK() {
				return oracle.Conversion{Kind: oracle.ConvUserDefined, Via: ctor}
			}
		}
	}
	if f.IsRecord() && f.Decl != nil {
		for _, fnEnt := range db.conversionFunctions(f.Decl) {
			fn := fnEnt.Func
			if fn.Deleted || fn.Explicit || fnEnt.Access != cxx.AccessPublic {
				continue
			}
			if f.Const && !fn.Const {
				continue
			}
			if db.standard(fn.Result, to).OK() {
				return oracle.Conversion{Kind: oracle.ConvUserDefined, Via: fnEnt}
			}
		}
	}
	return oracle.Conversion{}
}

// conversionFunctions lists "operator T" members of a record and its bases.
func (db *DB) conversionFunctions(rec *cxx.Entity) []*cxx.Entity {
	var out []*cxx.Entity
	seen := make(map[*cxx.Entity]bool)
	var walk func(*cxx.Entity)
	walk = func(r *cxx.Entity) {
		if seen[r] {
			return
		}
		seen[r] = true
		for _, c := range r.Children {
			if c.Kind == cxx.EntityFunction && c.Func.Conversion {
				out = append(out, c)
			}
		}
		for _, b := range db.bases(r) {
			if b.Access == cxx.AccessPublic {
				walk(b.Entity)
			}
		}
	}
	walk(rec)
	return out
}
