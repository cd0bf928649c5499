package cxx

import "strings"

// Kind classifies a C++ type node.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindNamed is a parsed but not yet resolved name.
	KindNamed
	KindBuiltin
	KindRecord
	KindEnum
	KindPointer
	KindLValueRef
	KindRValueRef
	KindFunction
	// KindTemplateParam is a dependent type inside a template.
	KindTemplateParam
)

func (k Kind) String() string {
	switch k {
	case KindNamed:
		return "named"
	case KindBuiltin:
		return "builtin"
	case KindRecord:
		return "record"
	case KindEnum:
		return "enum"
	case KindPointer:
		return "pointer"
	case KindLValueRef:
		return "lvalue-ref"
	case KindRValueRef:
		return "rvalue-ref"
	case KindFunction:
		return "function"
	case KindTemplateParam:
		return "template-param"
	default:
		return "invalid"
	}
}

// Arg is one template argument: a type or a constant value.
type Arg struct {
	Type  *Type
	Value string
}

func (a Arg) String() string {
	if a.Type != nil {
		return a.Type.String()
	}
	return a.Value
}

// Type is a C++ type. Record and enum names are fully qualified
// ("::ns::C") once resolved.
type Type struct {
	Kind     Kind
	Name     string
	Args     []Arg
	Elem     *Type
	Result   *Type
	Params   []*Type
	Variadic bool
	Const    bool
	Volatile bool
	// Alias keeps the typedef spelling the type was reached through.
	Alias string
	// Decl points at the declaring entity of records and enums.
	Decl *Entity
}

// Builtin returns a builtin type with the given canonical spelling.
func Builtin(name string) *Type { return &Type{Kind: KindBuiltin, Name: name} }

// PointerTo returns a pointer to t.
func PointerTo(t *Type) *Type { return &Type{Kind: KindPointer, Elem: t} }

// LRefTo returns an lvalue reference to t.
func LRefTo(t *Type) *Type { return &Type{Kind: KindLValueRef, Elem: t} }

// RRefTo returns an rvalue reference to t.
func RRefTo(t *Type) *Type { return &Type{Kind: KindRValueRef, Elem: t} }

// Clone returns a deep copy of t. Decl links are shared.
func (t *Type) Clone() *Type {
	if t == nil {
		return nil
	}
	c := *t
	if t.Args != nil {
		c.Args = make([]Arg, len(t.Args))
		for i, a := range t.Args {
			c.Args[i] = Arg{Type: a.Type.Clone(), Value: a.Value}
		}
	}
	c.Elem = t.Elem.Clone()
	c.Result = t.Result.Clone()
	if t.Params != nil {
		c.Params = make([]*Type, len(t.Params))
		for i, p := range t.Params {
			c.Params[i] = p.Clone()
		}
	}
	return &c
}

// WithConst returns a copy of t with the const qualifier set to c.
func (t *Type) WithConst(c bool) *Type {
	if t == nil || t.Const == c {
		return t
	}
	cp := *t
	cp.Const = c
	return &cp
}

// Unqualified drops top-level cv-qualifiers.
func (t *Type) Unqualified() *Type {
	if t == nil || (!t.Const && !t.Volatile) {
		return t
	}
	cp := *t
	cp.Const, cp.Volatile = false, false
	return &cp
}

// IsPointer reports whether t is a raw pointer.
func (t *Type) IsPointer() bool { return t != nil && t.Kind == KindPointer }

// IsRef reports whether t is an lvalue or rvalue reference.
func (t *Type) IsRef() bool {
	return t != nil && (t.Kind == KindLValueRef || t.Kind == KindRValueRef)
}

// IsVoid reports whether t is the void type.
func (t *Type) IsVoid() bool { return t != nil && t.Kind == KindBuiltin && t.Name == "void" }

// IsRecord reports whether t is a class, struct or union.
func (t *Type) IsRecord() bool { return t != nil && t.Kind == KindRecord }

// NonRef strips one level of reference.
func (t *Type) NonRef() *Type {
	if t.IsRef() {
		return t.Elem
	}
	return t
}

// Dependent reports whether t mentions a template parameter.
func (t *Type) Dependent() bool {
	if t == nil {
		return false
	}
	if t.Kind == KindTemplateParam {
		return true
	}
	for _, a := range t.Args {
		if a.Type.Dependent() {
			return true
		}
	}
	if t.Elem.Dependent() || t.Result.Dependent() {
		return true
	}
	for _, p := range t.Params {
		if p.Dependent() {
			return true
		}
	}
	return false
}

// String spells t the way generated glue code refers to it.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t *Type) write(sb *strings.Builder) {
	switch t.Kind {
	case KindPointer:
		if t.Elem != nil && t.Elem.Kind == KindFunction {
			t.Elem.Result.write(sb)
			sb.WriteString(" (*)")
			writeParams(sb, t.Elem)
			return
		}
		t.Elem.write(sb)
		sb.WriteString(" *")
		writeTrailingCV(sb, t)
	case KindLValueRef:
		t.Elem.write(sb)
		sb.WriteString(" &")
	case KindRValueRef:
		t.Elem.write(sb)
		sb.WriteString(" &&")
	case KindFunction:
		t.Result.write(sb)
		sb.WriteString(" ")
		writeParams(sb, t)
	default:
		if t.Const {
			sb.WriteString("const ")
		}
		if t.Volatile {
			sb.WriteString("volatile ")
		}
		sb.WriteString(t.Name)
		if len(t.Args) > 0 {
			sb.WriteByte('<')
			for i, a := range t.Args {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(a.String())
			}
			sb.WriteByte('>')
		}
	}
}

func writeTrailingCV(sb *strings.Builder, t *Type) {
	if t.Const {
		sb.WriteString("const")
	}
	if t.Volatile {
		if t.Const {
			sb.WriteByte(' ')
		}
		sb.WriteString("volatile")
	}
}

func writeParams(sb *strings.Builder, fn *Type) {
	sb.WriteByte('(')
	for i, p := range fn.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		p.write(sb)
	}
	if fn.Variadic {
		if len(fn.Params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	sb.WriteByte(')')
}

// Identical reports whether a and b denote the same type, ignoring
// typedef sugar.
func Identical(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Const != b.Const || a.Volatile != b.Volatile {
		return false
	}
	switch a.Kind {
	case KindPointer, KindLValueRef, KindRValueRef:
		return Identical(a.Elem, b.Elem)
	case KindFunction:
		if !Identical(a.Result, b.Result) || len(a.Params) != len(b.Params) || a.Variadic != b.Variadic {
			return false
		}
		for i := range a.Params {
			if !Identical(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return true
	default:
		if a.Name != b.Name || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !identicalArg(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	}
}

func identicalArg(a, b Arg) bool {
	if a.Type != nil || b.Type != nil {
		return Identical(a.Type, b.Type)
	}
	return a.Value == b.Value
}
