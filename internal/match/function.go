package match

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"clifmatch/internal/cxx"
	"clifmatch/internal/diag"
	"clifmatch/internal/ir"
	"clifmatch/internal/oracle"
	"clifmatch/internal/synth"
)

const (
	msgRequiredAfterDefault = "Clif expects all required parameters to be placed before default arguments."
	msgUnexpectedDefault    = "Clif contains unexpected default specifiers."
	msgMustUse              = "Clif can not ignore ABSL_MUST_USE_RESULT return values."
	msgExplicit             = "Is the keyword \"explicit\" missed in C++'s definition of constructors?"
	msgDeleted              = "Are you wrapping a deleted method?"
	msgNotDeduced           = "Template argument deduction did not deduce a value for every template parameter."
	msgTooFewArgs           = "Too few CLIF arguments"
	msgTooManyArgs          = "Too many CLIF arguments"
	msgNotSpecialized       = "Function template can't be specialized"
)

// classCtx is the matched class a member declaration is resolved in.
type classCtx struct {
	id  ir.DeclID
	ent *cxx.Entity
	typ *cxx.Type
}

// funcQuery is one IR function with its resolved slot candidates.
type funcQuery struct {
	id      ir.DeclID
	d       *ir.Decl
	fn      *ir.Func
	name    string
	opfunc  bool
	cls     *classCtx
	params  [][]resolved
	returns [][]resolved
}

type paramFit struct {
	typeFit
	def string
}

// funcFit is a C++ function the IR function can wrap.
type funcFit struct {
	ent      *cxx.Entity
	params   []paramFit
	returns  []typeFit
	receiver bool
	voidRet  bool
	convs    int
}

type rejection struct {
	ent *cxx.Entity
	why string
}

// lookupMode says where an IR function name is resolved.
type lookupMode uint8

const (
	lookupScope lookupMode = iota
	// lookupScopeReceiver resolves a qualified name to free functions
	// taking the class as an implicit first argument.
	lookupScopeReceiver
	lookupMember
	lookupFree
	lookupFreeReceiver
)

// receives reports whether the class instance is passed as the first
// argument of the functions a mode finds.
func (m lookupMode) receives() bool {
	return m == lookupScopeReceiver || m == lookupFreeReceiver
}

func (s *Session) matchFunc(id ir.DeclID, cls *classCtx) {
	d := s.ast.Decl(id)
	q := &funcQuery{
		id:     id,
		d:      d,
		fn:     d.Func,
		name:   cppName(s.orig[id].name),
		opfunc: s.orig[id].opfunc,
		cls:    cls,
	}
	seenDefault := false
	for _, p := range q.fn.Params {
		if p.DefaultValue != "" {
			seenDefault = true
		} else if seenDefault {
			s.fail(id, diag.MatchNotFound, msgRequiredAfterDefault)
			return
		}
	}
	for i := range q.fn.Params {
		cands, why := s.resolve(id, synth.Slot{Kind: synth.SlotParam, Index: i})
		if why != "" {
			s.fail(id, diag.MatchTypeRejected, why)
			return
		}
		q.params = append(q.params, cands)
	}
	for i := range q.fn.Returns {
		cands, why := s.resolve(id, synth.Slot{Kind: synth.SlotReturn, Index: i})
		if why != "" {
			s.fail(id, diag.MatchTypeRejected, why)
			return
		}
		q.returns = append(q.returns, cands)
	}

	if q.fn.Constructor {
		s.matchConstructor(q)
		return
	}

	var modes []lookupMode
	switch {
	case cls == nil:
		modes = []lookupMode{lookupScope}
	case !cxx.IsOperatorName(q.name):
		modes = []lookupMode{lookupMember}
	case strings.Contains(q.name, "::"):
		// a qualified operator names a member, a free function listing
		// the class among its parameters, or a free function taking the
		// instance implicitly; matched names are written back this way
		modes = []lookupMode{lookupScope, lookupScopeReceiver}
	case q.opfunc:
		modes = []lookupMode{lookupFree}
	default:
		modes = []lookupMode{lookupMember, lookupFreeReceiver}
	}

	var (
		rejected []rejection
		found    bool
	)
	for _, mode := range modes {
		ents := s.lookupFunc(q, mode)
		if len(ents) == 0 {
			continue
		}
		found = true
		fns, why := functionsOf(q.name, ents)
		if why != "" {
			rejected = append(rejected, rejection{why: why})
			continue
		}
		live := liveOverloads(fns)
		if len(live) == 0 {
			rejected = append(rejected, rejection{why: fmt.Sprintf("C++ symbol \"%s\" not found in %s.\n    %s", q.name, s.scopeLabel(q), msgDeleted)})
			continue
		}
		var fits []*funcFit
		for _, e := range live {
			fit, why := s.evalFunc(q, e, mode.receives())
			if why != "" {
				rejected = append(rejected, rejection{ent: e, why: why})
				continue
			}
			fits = append(fits, fit)
		}
		if len(fits) == 0 {
			continue
		}
		best, why := selectFunc(fits)
		if why != "" {
			s.fail(id, diag.MatchAmbiguous, why)
			return
		}
		s.applyFunc(q, best, len(live))
		return
	}
	if !found {
		s.fail(id, diag.MatchNotFound, fmt.Sprintf("C++ symbol \"%s\" not found in %s.", q.name, s.scopeLabel(q)))
		return
	}
	s.fail(id, rejectionCode(rejected), rejectionMessage(q.name, rejected))
}

// lookupFunc resolves the IR name for one lookup mode.
func (s *Session) lookupFunc(q *funcQuery, mode lookupMode) []*cxx.Entity {
	switch mode {
	case lookupMember:
		if strings.Contains(q.name, "::") {
			return s.cu.Lookup(q.cls.ent, q.name)
		}
		return s.cu.Lookup(nil, q.cls.ent.QualifiedName()+"::"+q.name)
	case lookupFree, lookupFreeReceiver:
		return freeOnly(s.cu.Lookup(q.cls.ent.Parent, q.name))
	case lookupScopeReceiver:
		return freeOnly(s.cu.Lookup(q.cls.ent, q.name))
	}
	if q.cls != nil {
		return s.cu.Lookup(q.cls.ent, q.name)
	}
	return s.cu.Lookup(s.nsScope(q.d), q.name)
}

func freeOnly(ents []*cxx.Entity) []*cxx.Entity {
	var out []*cxx.Entity
	for _, e := range ents {
		if e.EnclosingRecord() == nil {
			out = append(out, e)
		}
	}
	return out
}

// functionsOf keeps the functions of a lookup result.
func functionsOf(name string, ents []*cxx.Entity) ([]*cxx.Entity, string) {
	var fns []*cxx.Entity
	for _, e := range ents {
		if e.Kind == cxx.EntityFunction {
			fns = append(fns, e)
		}
	}
	if len(fns) == 0 {
		return nil, kindMismatch("function", name, ents[0])
	}
	return fns, ""
}

func liveOverloads(fns []*cxx.Entity) []*cxx.Entity {
	var out []*cxx.Entity
	for _, e := range fns {
		if !e.Func.Deleted {
			out = append(out, e)
		}
	}
	return out
}

func (s *Session) matchConstructor(q *funcQuery) {
	if q.cls == nil {
		s.fail(q.id, diag.MatchNotFound, "Clif constructors must be declared inside a class.")
		return
	}
	var all []*cxx.Entity
	for _, e := range s.cu.Constructors(q.cls.ent) {
		if e.Access == cxx.AccessPublic {
			all = append(all, e)
		}
	}
	live := liveOverloads(all)
	if len(live) == 0 {
		msg := fmt.Sprintf("C++ symbol \"%s\" not found in %s.", q.cls.ent.Name, s.scopeLabel(q))
		if len(all) > 0 {
			msg += "\n    " + msgDeleted
		}
		s.fail(q.id, diag.MatchNotFound, msg)
		return
	}
	var (
		fits     []*funcFit
		rejected []rejection
	)
	for _, e := range live {
		fit, why := s.evalFunc(q, e, false)
		if why == "" && (e.Func.Ctor == cxx.CtorCopy || e.Func.Ctor == cxx.CtorMove) {
			for _, p := range fit.params {
				if p.conv.Kind == oracle.ConvUserDefined && p.conv.Via != nil && p.conv.Via.Func.Ctor != cxx.CtorNone {
					why = msgExplicit
				}
			}
		}
		if why != "" {
			rejected = append(rejected, rejection{ent: e, why: why})
			continue
		}
		fits = append(fits, fit)
	}
	if len(fits) == 0 {
		s.fail(q.id, rejectionCode(rejected), rejectionMessage(q.cls.ent.Name, rejected))
		return
	}
	best, why := selectFunc(fits)
	if why != "" {
		s.fail(q.id, diag.MatchAmbiguous, why)
		return
	}
	s.applyFunc(q, best, len(live))
}

// evalFunc checks whether e can implement q. receiver prepends the class
// as the first argument of a free operator.
func (s *Session) evalFunc(q *funcQuery, e *cxx.Entity, receiver bool) (*funcFit, string) {
	if e.Access != cxx.AccessPublic {
		return nil, fmt.Sprintf("C++ function %s is not public.", e.QualifiedName())
	}
	if e.Func.IsTemplate() {
		spec, why := s.specialize(q, e, receiver)
		if why != "" {
			return nil, why
		}
		e = spec
	}
	f := e.Func
	if why := s.checkFile(q.d, e); why != "" {
		return nil, why
	}
	if !q.fn.Constructor && !receiver && f.Method {
		switch {
		case q.cls != nil && q.fn.Classmethod && !f.Static:
			return nil, fmt.Sprintf("Clif classmethod %s matched a non-static C++ member function.", q.name)
		case q.cls != nil && !q.fn.Classmethod && f.Static:
			return nil, fmt.Sprintf("C++ member function %s is static and must be wrapped as a classmethod.", q.name)
		case q.cls == nil && !f.Static:
			return nil, fmt.Sprintf("C++ member function %s is not static and needs an instance.", q.name)
		}
	}

	fit := &funcFit{ent: e, receiver: receiver}
	cpp := f.Params
	if receiver {
		if len(cpp) == 0 || !s.cu.Convert(q.cls.typ, cpp[0].Type).OK() {
			return nil, fmt.Sprintf("First parameter of %s does not accept %s.", e.QualifiedName(), q.cls.typ)
		}
		cpp = cpp[1:]
	}

	fit.voidRet = f.Result == nil || f.Result.IsVoid()
	trueRet := false
	outs := len(q.fn.Returns)
	switch {
	case fit.voidRet:
	case q.fn.IgnoreReturnValue:
		if f.MustUse {
			return nil, msgMustUse
		}
	case outs == 0:
		return nil, fmt.Sprintf("C++ function %s returns %q; declare the return or set ignore_return_value.", e.QualifiedName(), f.Result)
	default:
		trueRet = true
		outs--
	}

	ins := len(q.fn.Params)
	if ins+outs > len(cpp) {
		if outs > 0 && ins <= len(cpp) {
			return nil, fmt.Sprintf("Clif declares %d return values but C++ function %s has only %d parameters for %d inputs.", len(q.fn.Returns), e.QualifiedName(), len(cpp), ins)
		}
		return nil, fmt.Sprintf("Clif declares %d parameters but C++ function %s takes at most %d.", ins, e.QualifiedName(), len(cpp)-outs)
	}
	for i := ins; i < len(cpp)-outs; i++ {
		if !cpp[i].HasDefault {
			required := 0
			for _, p := range cpp[:len(cpp)-outs] {
				if !p.HasDefault {
					required++
				}
			}
			return nil, fmt.Sprintf("Clif declares %d parameters but C++ function %s requires %d.", ins, e.QualifiedName(), required)
		}
	}

	retOffset := 0
	if trueRet {
		retOffset = 1
	}
	fit.returns = make([]typeFit, len(q.fn.Returns))
	for j := 0; j < outs; j++ {
		cp := cpp[len(cpp)-outs+j].Type
		rf, why := pick(q.returns[j+retOffset], func(c resolved) (typeFit, string) {
			return s.checkOutput(c, cp)
		})
		if why != "" {
			if outputsBeforeInputs(cpp[:ins]) {
				return nil, msgOutputOrder
			}
			return nil, why
		}
		fit.returns[j+retOffset] = rf
	}

	fit.params = make([]paramFit, ins)
	for i, p := range q.fn.Params {
		cp := cpp[i]
		if p.DefaultValue != "" && !cp.HasDefault {
			return nil, msgUnexpectedDefault
		}
		tf, why := pick(q.params[i], func(c resolved) (typeFit, string) {
			return s.checkInput(c, cp.Type, s.raw[p.Type])
		})
		if why != "" {
			return nil, why
		}
		pf := paramFit{typeFit: tf}
		if p.DefaultValue != "" {
			pf.def = p.DefaultValue
			if isLiteral(cp.Default) {
				pf.def = cp.Default
			}
		}
		fit.params[i] = pf
	}

	if trueRet {
		rf, why := pick(q.returns[0], func(c resolved) (typeFit, string) {
			return s.checkReturn(c, f.Result)
		})
		if why != "" {
			return nil, why
		}
		fit.returns[0] = rf
	}

	for _, p := range fit.params {
		if !p.conv.Exact() {
			fit.convs++
		}
	}
	for _, r := range fit.returns {
		if !r.conv.Exact() {
			fit.convs++
		}
	}
	return fit, ""
}

// outputsBeforeInputs reports whether an input position holds what can
// only be an output: a non-const pointer or reference.
func outputsBeforeInputs(inputs []cxx.Param) bool {
	for _, p := range inputs {
		t := p.Type
		if (t.IsPointer() || t.Kind == cxx.KindLValueRef) && !t.Elem.Const && !isFunctionObject(t.Elem) {
			return true
		}
	}
	return false
}

// specialize deduces the template arguments of e from the first
// candidate of every parameter. A pointer parameter also accepts the
// address of the host value.
func (s *Session) specialize(q *funcQuery, e *cxx.Entity, receiver bool) (*cxx.Entity, string) {
	var args []*cxx.Type
	if receiver {
		args = append(args, q.cls.typ)
	}
	for _, cands := range q.params {
		args = append(args, cands[0].typ)
	}
	spec, err := s.cu.Deduce(e, args)
	var de *oracle.DeductionError
	if err != nil && errors.As(err, &de) && de.Reason == oracle.DeduceMismatch {
		adjusted := make([]*cxx.Type, len(args))
		for i, a := range args {
			adjusted[i] = a
			if i < len(e.Func.Params) && e.Func.Params[i].Type.NonRef().IsPointer() && !a.IsPointer() {
				adjusted[i] = cxx.PointerTo(a)
			}
		}
		spec, err = s.cu.Deduce(e, adjusted)
	}
	if err == nil {
		return spec, ""
	}
	if !errors.As(err, &de) {
		return nil, fmt.Sprintf("%s: %v", msgNotSpecialized, err)
	}
	switch de.Reason {
	case oracle.DeduceIncomplete:
		return nil, msgNotDeduced
	case oracle.DeduceTooFewArguments:
		return nil, msgTooFewArgs
	case oracle.DeduceTooManyArguments:
		return nil, msgTooManyArgs
	}
	return nil, fmt.Sprintf("%s: %v", msgNotSpecialized, err)
}

// selectFunc picks the best fit: fewest conversions, then a non-const
// method, then a non-deprecated function, then a non-template. A tie that
// survives is ambiguous.
func selectFunc(fits []*funcFit) (*funcFit, string) {
	key := func(f *funcFit) [4]int {
		var k [4]int
		k[0] = f.convs
		if f.ent.Func.Const {
			k[1] = 1
		}
		if f.ent.Func.Deprecated {
			k[2] = 1
		}
		if f.ent.Func.Template != nil {
			k[3] = 1
		}
		return k
	}
	sort.SliceStable(fits, func(i, j int) bool {
		a, b := key(fits[i]), key(fits[j])
		for n := range a {
			if a[n] != b[n] {
				return a[n] < b[n]
			}
		}
		return false
	})
	best := key(fits[0])
	var tied []string
	for _, f := range fits {
		if key(f) == best {
			tied = append(tied, signature(f.ent))
		}
	}
	if len(tied) > 1 {
		return nil, "Clif declaration is ambiguous; it matches " + fmt.Sprint(len(tied)) + " C++ functions:\n    " + strings.Join(tied, "\n    ")
	}
	return fits[0], ""
}

// applyFunc decorates the IR function with the chosen overload. The
// result matches the same overload again when it is read back as input.
func (s *Session) applyFunc(q *funcQuery, best *funcFit, overloads int) {
	fn := q.fn
	e := best.ent
	f := e.Func
	switch {
	case fn.Constructor:
		fn.Name.CppName = q.cls.ent.QualifiedName() + "::" + e.Name
	case f.Template != nil && !strings.Contains(cxx.UnqualifiedName(q.name), "<"):
		fn.Name.CppName = f.Template.QualifiedName()
	default:
		fn.Name.CppName = e.QualifiedName()
	}
	fn.Virtual = f.Virtual
	fn.IsPureVirtual = f.Pure
	fn.CppConstMethod = f.Const
	fn.CppNoexcept = f.Noexcept
	fn.CppVoidReturn = best.voidRet
	fn.CppOpfunction = q.cls != nil && !fn.Constructor && !f.Method
	fn.CppNumParams = len(f.Params)
	fn.MangledName = cxx.Mangle(e)
	fn.IsOverloaded = overloads > 1
	for i, p := range fn.Params {
		pf := best.params[i]
		applyType(p.Type, pf.typeFit)
		p.CppExactType = pf.exact
		p.DefaultValue = pf.def
	}
	for i, r := range fn.Returns {
		applyType(r.Type, best.returns[i])
		r.CppExactType = best.returns[i].exact
	}
	if f.Deprecated {
		s.warn(q.id, fmt.Sprintf("C++ function %s is deprecated.", signature(e)))
	}
}

// isLiteral reports whether a default argument spelling is a plain
// literal that generated code can repeat.
func isLiteral(s string) bool {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return false
	case "true", "false", "nullptr":
		return true
	}
	if strings.HasPrefix(s, "\"") && strings.HasSuffix(s, "\"") && len(s) >= 2 {
		return true
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c == '.', c == 'x', c == 'X', c == 'e', c == 'E',
			c >= 'a' && c <= 'f', c >= 'A' && c <= 'F', c == 'u', c == 'U', c == 'l', c == 'L':
		default:
			return false
		}
	}
	return s[0] >= '0' && s[0] <= '9' || s[0] == '.'
}

// signature spells a function for diagnostics.
func signature(e *cxx.Entity) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimPrefix(e.QualifiedName(), "::"))
	sb.WriteByte('(')
	for i, p := range e.Func.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Type.String())
	}
	sb.WriteByte(')')
	if e.Func.Const {
		sb.WriteString(" const")
	}
	return sb.String()
}

// rejectionCode classifies a failed overload search: wrong file only
// when that is why every overload was rejected.
func rejectionCode(rejected []rejection) diag.Code {
	if len(rejected) == 0 {
		return diag.MatchNotFound
	}
	for _, r := range rejected {
		if codeFor(r.why) != diag.MatchWrongFile {
			return diag.MatchNotFound
		}
	}
	return diag.MatchWrongFile
}

// rejectionMessage explains why no overload fit. A single rejection is
// reported as is.
func rejectionMessage(name string, rejected []rejection) string {
	if len(rejected) == 1 {
		return rejected[0].why
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "No C++ overload of \"%s\" matches the Clif declaration:", name)
	for _, r := range rejected {
		sb.WriteString("\n    ")
		if r.ent != nil {
			sb.WriteString(signature(r.ent))
			sb.WriteString(": ")
		}
		sb.WriteString(strings.ReplaceAll(r.why, "\n", "\n    "))
	}
	return sb.String()
}
