package cxx

import "strings"

// EntityKind classifies a named C++ declaration.
type EntityKind uint8

const (
	EntityInvalid EntityKind = iota
	EntityNamespace
	EntityRecord
	EntityEnum
	EntityEnumerator
	EntityFunction
	EntityVariable
	EntityField
	EntityTypedef
)

func (k EntityKind) String() string {
	switch k {
	case EntityNamespace:
		return "namespace"
	case EntityRecord:
		return "class"
	case EntityEnum:
		return "enum"
	case EntityEnumerator:
		return "enumerator"
	case EntityFunction:
		return "function"
	case EntityVariable:
		return "variable"
	case EntityField:
		return "field"
	case EntityTypedef:
		return "typedef"
	default:
		return "invalid"
	}
}

// Access is a member access specifier.
type Access uint8

const (
	AccessPublic Access = iota
	AccessProtected
	AccessPrivate
)

// Loc is the declaring file and line of an entity.
type Loc struct {
	File string
	Line int
}

// Entity is a named declaration known to the oracle.
type Entity struct {
	Kind     EntityKind
	Name     string
	Parent   *Entity
	Loc      Loc
	Access   Access
	Implicit bool

	Record     *Record
	Enum       *Enum
	Func       *Function
	Var        *Variable
	Alias      *Type
	Enumerator *Enumerator

	// Children holds scope members in declaration order.
	Children []*Entity
}

// AddChild appends c to the scope of e.
func (e *Entity) AddChild(c *Entity) {
	c.Parent = e
	e.Children = append(e.Children, c)
}

// IsScope reports whether names can be looked up inside e.
func (e *Entity) IsScope() bool {
	switch e.Kind {
	case EntityNamespace, EntityRecord, EntityEnum:
		return true
	}
	return false
}

// IsGlobal reports whether e is the translation unit scope.
func (e *Entity) IsGlobal() bool { return e.Kind == EntityNamespace && e.Parent == nil }

// QualifiedName returns the fully qualified name, e.g. "::ns::C::f".
// Record specializations carry their argument list. Unscoped enumerators
// are qualified through the enum's parent, as C++ names them.
func (e *Entity) QualifiedName() string {
	if e == nil || e.IsGlobal() {
		return ""
	}
	var parts []string
	for cur := e; cur != nil && !cur.IsGlobal(); cur = cur.Parent {
		if cur.Kind == EntityEnum && cur != e && e.Kind == EntityEnumerator && !cur.Enum.Scoped {
			continue
		}
		if cur.Kind == EntityNamespace && cur.Name == "" {
			continue
		}
		parts = append(parts, cur.displayName())
	}
	var sb strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		sb.WriteString("::")
		sb.WriteString(parts[i])
	}
	return sb.String()
}

func (e *Entity) displayName() string {
	if e.Kind == EntityRecord && e.Record != nil && len(e.Record.TemplateArgs) > 0 {
		var sb strings.Builder
		sb.WriteString(e.Name)
		sb.WriteByte('<')
		for i, a := range e.Record.TemplateArgs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
		}
		sb.WriteByte('>')
		return sb.String()
	}
	if e.Kind == EntityFunction && e.Func != nil && len(e.Func.TemplateArgs) > 0 {
		var sb strings.Builder
		sb.WriteString(e.Name)
		sb.WriteByte('<')
		for i, a := range e.Func.TemplateArgs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
		}
		sb.WriteByte('>')
		return sb.String()
	}
	return e.Name
}

// Lookup returns the direct children of e named name.
func (e *Entity) Lookup(name string) []*Entity {
	var out []*Entity
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// EnclosingRecord returns the record e is a member of, or nil.
func (e *Entity) EnclosingRecord() *Entity {
	if e.Parent != nil && e.Parent.Kind == EntityRecord {
		return e.Parent
	}
	return nil
}

// Type returns the type an entity names: records and enums their own type,
// typedefs their target.
func (e *Entity) Type() *Type {
	switch e.Kind {
	case EntityRecord:
		t := &Type{Kind: KindRecord, Name: e.QualifiedName(), Decl: e}
		if e.Record != nil && len(e.Record.TemplateArgs) > 0 {
			t.Name = qualifiedStem(e)
			t.Args = e.Record.TemplateArgs
		}
		return t
	case EntityEnum:
		return &Type{Kind: KindEnum, Name: e.QualifiedName(), Decl: e}
	case EntityTypedef:
		if e.Alias == nil {
			return nil
		}
		t := e.Alias.Clone()
		t.Alias = e.QualifiedName()
		return t
	}
	return nil
}

func qualifiedStem(e *Entity) string {
	return e.Parent.QualifiedName() + "::" + e.Name
}

// Base is one base-specifier of a record.
type Base struct {
	Type    *Type
	Virtual bool
	Access  Access
}

// TemplateParam is a template parameter declaration.
type TemplateParam struct {
	Name    string
	NonType bool
	Default *Arg
	Pack    bool
}

// PropertyOverride carries capability judgements stated directly by the
// front end. Nil fields are derived from the record's members.
type PropertyOverride struct {
	HasDefaultCtor *bool
	TrivialCtor    *bool
	Copyable       *bool
	Movable        *bool
	HasPublicDtor  *bool
	TrivialDtor    *bool
	Abstract       *bool
	Polymorphic    *bool
}

// Record is a class, struct or union.
type Record struct {
	Tag            string
	Complete       bool
	Final          bool
	Bases          []Base
	TemplateParams []TemplateParam
	TemplateArgs   []Arg
	// Template is the primary template of a specialization.
	Template *Entity
	// InheritedCtors lists bases whose constructors are inherited
	// through a using-declaration.
	InheritedCtors []*Type
	// UsingMembers maps a member name to the bases it is imported from.
	UsingMembers map[string][]*Type
	Override     *PropertyOverride
}

// IsTemplate reports whether the record is an uninstantiated template.
func (r *Record) IsTemplate() bool { return len(r.TemplateParams) > 0 && len(r.TemplateArgs) == 0 }

// Enum is an enumeration.
type Enum struct {
	Scoped     bool
	Underlying *Type
}

// Enumerator is one enum constant.
type Enumerator struct {
	Value string
}

// Variable is a variable or data member.
type Variable struct {
	Type      *Type
	Static    bool
	Constexpr bool
}

// CtorKind classifies constructors.
type CtorKind uint8

const (
	CtorNone CtorKind = iota
	CtorDefault
	CtorCopy
	CtorMove
	CtorConverting
	CtorOther
)

func (k CtorKind) String() string {
	switch k {
	case CtorDefault:
		return "default"
	case CtorCopy:
		return "copy"
	case CtorMove:
		return "move"
	case CtorConverting:
		return "converting"
	case CtorOther:
		return "other"
	default:
		return "none"
	}
}

// Param is a function parameter.
type Param struct {
	Name    string
	Type    *Type
	Default string
	// HasDefault is set even when the default expression has no spelling.
	HasDefault bool
}

// Function is a free function, method, constructor or operator.
type Function struct {
	Result   *Type
	Params   []Param
	Variadic bool

	Method     bool
	Static     bool
	Const      bool
	Virtual    bool
	Pure       bool
	Deleted    bool
	Defaulted  bool
	Explicit   bool
	Noexcept   bool
	Deprecated bool
	MustUse    bool
	Ctor       CtorKind
	Dtor       bool
	// Conversion marks "operator T" conversion functions.
	Conversion bool

	TemplateParams []TemplateParam
	TemplateArgs   []Arg
	Template       *Entity
	Mangled        string
}

// IsTemplate reports whether the function is an uninstantiated template.
func (f *Function) IsTemplate() bool { return len(f.TemplateParams) > 0 && len(f.TemplateArgs) == 0 }

// RequiredParams counts parameters without a default argument.
func (f *Function) RequiredParams() int {
	n := 0
	for _, p := range f.Params {
		if !p.HasDefault {
			n++
		}
	}
	return n
}

// IsOperatorName reports whether name spells an operator function,
// optionally qualified.
func IsOperatorName(name string) bool {
	return strings.HasPrefix(UnqualifiedName(name), "operator")
}

// UnqualifiedName returns the last component of a possibly qualified name.
// Template argument lists are not split.
func UnqualifiedName(name string) string {
	parts := SplitQualified(name)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// SplitQualified splits "a::b<c::d>::e" into its components without
// breaking inside template argument lists. A leading "::" yields an
// empty first component.
func SplitQualified(name string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 && i+1 < len(name) && name[i+1] == ':' {
				parts = append(parts, strings.TrimSpace(name[start:i]))
				i++
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(name[start:]))
	return parts
}
