package match

import (
	"fmt"
	"strings"

	"clifmatch/internal/cxx"
	"clifmatch/internal/ir"
	"clifmatch/internal/oracle"
	"clifmatch/internal/synth"
)

const (
	msgOutputNotPointer = "An output parameter must be either a pointer or a reference."
	msgOutputConst      = "Output parameter is constant."
	msgOutputOrder      = "Do all output parameters follow all input parameters?"
	msgCopyMove         = "Clif expects output parameters or return types to be copyable or movable."
)

// resolved is one slot candidate the unit accepted.
type resolved struct {
	ref synth.Ref
	typ *cxx.Type
}

// typeFit is the outcome of fitting one candidate to one C++ type.
type typeFit struct {
	ref      synth.Ref
	conv     oracle.Conversion
	cppType  string
	exact    string
	props    oracle.Properties
	raw      bool
	implicit bool
	toptr    bool
	touniq   bool
}

// resolve returns the candidates of a slot whose typedef compiled, or why
// none did.
func (s *Session) resolve(id ir.DeclID, slot synth.Slot) ([]resolved, string) {
	refs := s.unit.Index.Candidates(id, slot)
	if len(refs) == 0 {
		return nil, fmt.Sprintf("Clif has no C++ type for %s.", slot)
	}
	out := make([]resolved, 0, len(refs))
	var spellings, why []string
	for _, r := range refs {
		// a typedef the front end rejected stays invalid even when the
		// model can still read it
		if t, ok := s.cu.Typedef(r.Symbol); ok && len(s.symDiags[r.Symbol]) == 0 {
			out = append(out, resolved{ref: r, typ: t})
			continue
		}
		spellings = append(spellings, r.Spelling)
		for _, d := range s.symDiags[r.Symbol] {
			why = append(why, d.Message)
		}
	}
	if len(out) == 0 {
		msg := fmt.Sprintf("C++ type %s of %s is not valid", strings.Join(spellings, ", "), slot)
		if len(why) > 0 {
			msg += ": " + strings.Join(why, "; ")
		}
		return nil, msg + "."
	}
	return out, ""
}

// pick runs check over cands in two passes: exact conversions in
// declared order, then any conversion in declared order. On failure the
// reason of the first candidate is returned.
func pick(cands []resolved, check func(resolved) (typeFit, string)) (typeFit, string) {
	fits := make([]typeFit, len(cands))
	whys := make([]string, len(cands))
	for i, c := range cands {
		fits[i], whys[i] = check(c)
		if whys[i] == "" && fits[i].conv.Exact() {
			return fits[i], ""
		}
	}
	for i := range cands {
		if whys[i] == "" {
			return fits[i], ""
		}
	}
	if len(whys) == 0 {
		return typeFit{}, "no candidate types"
	}
	return typeFit{}, whys[0]
}

// smartPointee returns T of std::unique_ptr<T> or std::shared_ptr<T>.
func smartPointee(t *cxx.Type) *cxx.Type {
	if t == nil || !t.IsRecord() || len(t.Args) == 0 {
		return nil
	}
	switch t.Name {
	case "::std::unique_ptr", "::std::shared_ptr":
		return t.Args[0].Type
	}
	return nil
}

func isFunctionObject(t *cxx.Type) bool {
	return t != nil && t.IsRecord() && t.Name == "::std::function"
}

// valueType is the type whose capabilities a written C++ type reports.
// References, one pointer level and smart pointers are looked through, so
// a T* result describes T.
func valueType(t *cxx.Type) *cxx.Type {
	v := t.NonRef()
	if v.IsPointer() && v.Elem != nil && v.Elem.Kind != cxx.KindFunction {
		v = v.Elem
	}
	if p := smartPointee(v); p != nil {
		v = p
	}
	return v.Unqualified()
}

// written records the C++ type a fit reports. Capability flags follow it,
// so reading the decorated type back as a candidate reports the same.
func (s *Session) written(fit *typeFit, t *cxx.Type) {
	fit.cppType = t.String()
	fit.props = s.cu.Properties(valueType(t))
}

// checkInput fits candidate c to the C++ parameter type p. Values flow
// from the host into C++.
func (s *Session) checkInput(c resolved, p *cxx.Type, raw bool) (typeFit, string) {
	a := c.typ
	fit := typeFit{ref: c.ref, exact: p.String(), raw: raw}
	if raw && !p.IsPointer() {
		return fit, fmt.Sprintf("Clif expects a raw pointer, but C++ parameter type is %q.", p)
	}
	var out *cxx.Type
	switch {
	case a.IsPointer() || smartPointee(a) != nil:
		fit.conv = s.cu.Convert(a, p)
		out = p.NonRef().WithConst(false)
	case p.IsPointer():
		fit.conv = s.cu.Convert(cxx.PointerTo(a), p)
		fit.raw = true
		out = p.WithConst(false)
		if fit.conv.Kind == oracle.ConvDerivedToBase {
			out = cxx.PointerTo(a.Unqualified().WithConst(p.Elem.Const))
		}
	case p.Kind == cxx.KindLValueRef && !p.Elem.Const && !isFunctionObject(p.Elem):
		return fit, fmt.Sprintf("C++ parameter type %q is a non-const reference, which Clif only accepts as an output.", p)
	case smartPointee(p.NonRef()) != nil:
		fit.conv = s.cu.Convert(a, smartPointee(p.NonRef()))
		out = p.NonRef().WithConst(false)
	default:
		fit.conv = s.cu.Convert(a, p)
		base := p.NonRef().Unqualified()
		out = base
		switch fit.conv.Kind {
		case oracle.ConvDerivedToBase:
			out = a.Unqualified()
		case oracle.ConvUserDefined:
			fit.implicit = true
		}
		if fit.conv.OK() && !p.IsRef() && base.IsRecord() && !s.cu.Properties(base).Copyable {
			return fit, fmt.Sprintf("Clif expects input parameters passed by value to be copyable, but %q is not.", base)
		}
	}
	if !fit.conv.OK() {
		return fit, fmt.Sprintf("Clif type %q does not convert to C++ parameter type %q.", a, p)
	}
	s.written(&fit, out)
	fit.toptr, fit.touniq = s.conversionHooks(p)
	return fit, ""
}

// checkReturn fits the C++ result type r to candidate c. Values flow from
// C++ to the host.
func (s *Session) checkReturn(c resolved, r *cxx.Type) (typeFit, string) {
	a := c.typ
	fit := typeFit{ref: c.ref, exact: r.String()}
	v := r.NonRef()
	fit.raw = v.IsPointer()
	switch {
	case a.IsPointer() || smartPointee(a) != nil:
		fit.conv = s.cu.Convert(r, a)
	case v.IsPointer():
		fit.conv = s.cu.Convert(v.Elem, a)
	case smartPointee(v) != nil:
		fit.conv = s.cu.Convert(smartPointee(v), a)
	default:
		fit.conv = s.cu.Convert(r, a)
		if v.IsRecord() {
			if p := s.cu.Properties(v); !p.Copyable && !p.Movable {
				return fit, msgCopyMove
			}
		}
	}
	if !fit.conv.OK() {
		return fit, fmt.Sprintf("C++ return type %q does not convert to Clif type %q.", r, a)
	}
	s.written(&fit, r.WithConst(false))
	fit.toptr, fit.touniq = s.conversionHooks(r)
	return fit, ""
}

// checkOutput fits the C++ output parameter type p to candidate c.
func (s *Session) checkOutput(c resolved, p *cxx.Type) (typeFit, string) {
	a := c.typ
	fit := typeFit{ref: c.ref, exact: p.String()}
	if !p.IsPointer() && p.Kind != cxx.KindLValueRef {
		return fit, msgOutputNotPointer
	}
	elem := p.Elem
	if elem.Const {
		return fit, msgOutputConst
	}
	fit.conv = s.cu.Convert(elem, a)
	if !fit.conv.OK() {
		return fit, fmt.Sprintf("C++ output parameter type %q does not convert to Clif type %q.", p, a)
	}
	if elem.IsRecord() {
		if props := s.cu.Properties(elem); !props.Copyable && !props.Movable {
			return fit, msgCopyMove
		}
	}
	s.written(&fit, elem.Unqualified())
	fit.toptr, fit.touniq = s.conversionHooks(p)
	return fit, ""
}

// checkValue fits a variable or constant of C++ type v to candidate c.
// Settable variables must also accept the host value.
func (s *Session) checkValue(c resolved, v *cxx.Type, settable bool) (typeFit, string) {
	a := c.typ
	fit := typeFit{ref: c.ref, exact: v.String()}
	fit.conv = s.cu.Convert(v, a)
	if !fit.conv.OK() {
		return fit, fmt.Sprintf("C++ type %q does not convert to Clif type %q.", v, a)
	}
	if settable && !s.cu.Convert(a, v).OK() {
		return fit, fmt.Sprintf("Clif type %q does not convert to C++ type %q.", a, v)
	}
	s.written(&fit, v.WithConst(false))
	return fit, ""
}

// conversionHooks reports whether the host runtime declares
// Clif_PyObjAs(obj, T**) and Clif_PyObjAs(obj, std::unique_ptr<T>*) for
// the type under at most one pointer or reference.
func (s *Session) conversionHooks(t *cxx.Type) (toptr, touniq bool) {
	base := t.NonRef()
	if base.IsPointer() {
		base = base.Elem
	}
	if base.IsPointer() {
		return false, false
	}
	base = base.Unqualified()
	for _, fn := range s.pyObjAsOverloads() {
		if len(fn.Func.Params) < 2 {
			continue
		}
		q := fn.Func.Params[1].Type
		if !q.IsPointer() {
			continue
		}
		switch {
		case q.Elem.IsPointer() && cxx.Identical(q.Elem.Elem.Unqualified(), base):
			toptr = true
		case q.Elem.IsRecord() && q.Elem.Name == "::std::unique_ptr" && smartPointee(q.Elem) != nil &&
			cxx.Identical(smartPointee(q.Elem).Unqualified(), base):
			touniq = true
		}
	}
	return toptr, touniq
}

func (s *Session) pyObjAsOverloads() []*cxx.Entity {
	if s.pyObjAsSet {
		return s.pyObjAs
	}
	s.pyObjAsSet = true
	for _, name := range []string{"::Clif_PyObjAs", "::clif::Clif_PyObjAs"} {
		for _, e := range s.cu.Lookup(nil, name) {
			if e.Kind == cxx.EntityFunction && !e.Func.IsTemplate() {
				s.pyObjAs = append(s.pyObjAs, e)
			}
		}
	}
	return s.pyObjAs
}

// applyType writes a fit into the IR type.
func applyType(t *ir.Type, fit typeFit) {
	if t == nil {
		return
	}
	t.CppType = fit.cppType
	if fit.ref.Postconversion != "" {
		t.Postconversion = fit.ref.Postconversion
	}
	t.CppHasDefCtor = fit.props.HasDefaultCtor
	t.CppCopyable = fit.props.Copyable
	t.CppMovable = fit.props.Movable
	t.CppAbstract = fit.props.Abstract
	t.CppHasPublicDtor = fit.props.HasPublicDtor
	t.CppRawPointer = fit.raw
	t.CppToptrConversion = fit.toptr
	t.CppTouniqptrConversion = fit.touniq
	t.CppNeedsImplicitConversion = fit.implicit
}
