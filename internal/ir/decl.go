package ir

import "strings"

// DeclKind is the decltype tag of a declaration.
type DeclKind uint8

const (
	DeclUnknown DeclKind = iota
	DeclClass
	DeclEnum
	DeclVar
	DeclConst
	DeclFunc
	// DeclType is a forward declaration of a C++ type (an opaque capsule).
	DeclType
)

func (k DeclKind) String() string {
	switch k {
	case DeclClass:
		return "CLASS"
	case DeclEnum:
		return "ENUM"
	case DeclVar:
		return "VAR"
	case DeclConst:
		return "CONST"
	case DeclFunc:
		return "FUNC"
	case DeclType:
		return "TYPE"
	default:
		return "UNKNOWN"
	}
}

// ParseDeclKind maps a decltype tag back to its kind.
func ParseDeclKind(s string) (DeclKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CLASS":
		return DeclClass, true
	case "ENUM":
		return DeclEnum, true
	case "VAR":
		return DeclVar, true
	case "CONST":
		return DeclConst, true
	case "FUNC":
		return DeclFunc, true
	case "TYPE":
		return DeclType, true
	}
	return DeclUnknown, false
}

// Name pairs the host-side identifier with the C++ one.
type Name struct {
	Native  string `yaml:"native,omitempty" msgpack:"native,omitempty"`
	CppName string `yaml:"cpp_name,omitempty" msgpack:"cpp_name,omitempty"`
}

// Type is a possibly nested host type with its resolved C++ spelling.
type Type struct {
	LangType string  `yaml:"lang_type,omitempty" msgpack:"lang_type,omitempty"`
	CppType  string  `yaml:"cpp_type,omitempty" msgpack:"cpp_type,omitempty"`
	Params   []*Type `yaml:"params,omitempty" msgpack:"params,omitempty"`
	Callable *Func   `yaml:"callable,omitempty" msgpack:"callable,omitempty"`

	Postconversion string `yaml:"postconversion,omitempty" msgpack:"postconversion,omitempty"`

	CppHasDefCtor              bool `yaml:"cpp_has_def_ctor,omitempty" msgpack:"cpp_has_def_ctor,omitempty"`
	CppCopyable                bool `yaml:"cpp_copyable,omitempty" msgpack:"cpp_copyable,omitempty"`
	CppMovable                 bool `yaml:"cpp_movable,omitempty" msgpack:"cpp_movable,omitempty"`
	CppAbstract                bool `yaml:"cpp_abstract,omitempty" msgpack:"cpp_abstract,omitempty"`
	CppHasPublicDtor           bool `yaml:"cpp_has_public_dtor,omitempty" msgpack:"cpp_has_public_dtor,omitempty"`
	CppRawPointer              bool `yaml:"cpp_raw_pointer,omitempty" msgpack:"cpp_raw_pointer,omitempty"`
	CppToptrConversion         bool `yaml:"cpp_toptr_conversion,omitempty" msgpack:"cpp_toptr_conversion,omitempty"`
	CppTouniqptrConversion     bool `yaml:"cpp_touniqptr_conversion,omitempty" msgpack:"cpp_touniqptr_conversion,omitempty"`
	CppNeedsImplicitConversion bool `yaml:"cpp_needs_implicit_conversion,omitempty" msgpack:"cpp_needs_implicit_conversion,omitempty"`
}

// IsContainer reports whether the type composes nested parameter types.
func (t *Type) IsContainer() bool { return t != nil && len(t.Params) > 0 }

// Param is one function parameter or return slot.
type Param struct {
	Name         Name   `yaml:"name,omitempty" msgpack:"name,omitempty"`
	Type         *Type  `yaml:"type,omitempty" msgpack:"type,omitempty"`
	DefaultValue string `yaml:"default_value,omitempty" msgpack:"default_value,omitempty"`
	CppExactType string `yaml:"cpp_exact_type,omitempty" msgpack:"cpp_exact_type,omitempty"`
}

// Func describes a function, method, constructor or operator.
type Func struct {
	Name       Name     `yaml:"name" msgpack:"name"`
	Params     []*Param `yaml:"params,omitempty" msgpack:"params,omitempty"`
	Returns    []*Param `yaml:"returns,omitempty" msgpack:"returns,omitempty"`
	Exceptions []string `yaml:"exceptions,omitempty" msgpack:"exceptions,omitempty"`

	Constructor       bool `yaml:"constructor,omitempty" msgpack:"constructor,omitempty"`
	Classmethod       bool `yaml:"classmethod,omitempty" msgpack:"classmethod,omitempty"`
	Virtual           bool `yaml:"virtual,omitempty" msgpack:"virtual,omitempty"`
	IsPureVirtual     bool `yaml:"is_pure_virtual,omitempty" msgpack:"is_pure_virtual,omitempty"`
	IsOverloaded      bool `yaml:"is_overloaded,omitempty" msgpack:"is_overloaded,omitempty"`
	CppConstMethod    bool `yaml:"cpp_const_method,omitempty" msgpack:"cpp_const_method,omitempty"`
	CppNoexcept       bool `yaml:"cpp_noexcept,omitempty" msgpack:"cpp_noexcept,omitempty"`
	CppVoidReturn     bool `yaml:"cpp_void_return,omitempty" msgpack:"cpp_void_return,omitempty"`
	CppOpfunction     bool `yaml:"cpp_opfunction,omitempty" msgpack:"cpp_opfunction,omitempty"`
	IgnoreReturnValue bool `yaml:"ignore_return_value,omitempty" msgpack:"ignore_return_value,omitempty"`

	CppNumParams int    `yaml:"cpp_num_params,omitempty" msgpack:"cpp_num_params,omitempty"`
	MangledName  string `yaml:"mangled_name,omitempty" msgpack:"mangled_name,omitempty"`
}

// Class describes a wrapped C++ class. Members live in the arena.
type Class struct {
	Name    Name     `yaml:"name" msgpack:"name"`
	Bases   []Name   `yaml:"bases,omitempty" msgpack:"bases,omitempty"`
	Members []DeclID `yaml:"-" msgpack:"-"`

	Final                bool `yaml:"final,omitempty" msgpack:"final,omitempty"`
	CppHasDefCtor        bool `yaml:"cpp_has_def_ctor,omitempty" msgpack:"cpp_has_def_ctor,omitempty"`
	CppHasTrivialDefctor bool `yaml:"cpp_has_trivial_defctor,omitempty" msgpack:"cpp_has_trivial_defctor,omitempty"`
	CppHasTrivialDtor    bool `yaml:"cpp_has_trivial_dtor,omitempty" msgpack:"cpp_has_trivial_dtor,omitempty"`
	CppHasPublicDtor     bool `yaml:"cpp_has_public_dtor,omitempty" msgpack:"cpp_has_public_dtor,omitempty"`
	CppCopyable          bool `yaml:"cpp_copyable,omitempty" msgpack:"cpp_copyable,omitempty"`
	CppMovable           bool `yaml:"cpp_movable,omitempty" msgpack:"cpp_movable,omitempty"`
	CppAbstract          bool `yaml:"cpp_abstract,omitempty" msgpack:"cpp_abstract,omitempty"`
	IsCppPolymorphic     bool `yaml:"is_cpp_polymorphic,omitempty" msgpack:"is_cpp_polymorphic,omitempty"`
}

// Enum describes a wrapped C++ enumeration.
type Enum struct {
	Name      Name   `yaml:"name" msgpack:"name"`
	Members   []Name `yaml:"members,omitempty" msgpack:"members,omitempty"`
	EnumClass bool   `yaml:"enum_class,omitempty" msgpack:"enum_class,omitempty"`
}

// Var describes a global variable or a class field.
type Var struct {
	Name Name  `yaml:"name" msgpack:"name"`
	Type *Type `yaml:"type,omitempty" msgpack:"type,omitempty"`
}

// Const describes a C++ constant (const variable or enumerator).
type Const struct {
	Name Name  `yaml:"name" msgpack:"name"`
	Type *Type `yaml:"type,omitempty" msgpack:"type,omitempty"`
}

// Fdecl is a forward-declared C++ type used as an opaque handle.
type Fdecl struct {
	Name Name `yaml:"name" msgpack:"name"`
}

// Decl is a tagged union over all declaration kinds.
// Exactly one of the variant pointers matches Kind.
type Decl struct {
	Kind      DeclKind
	Line      int
	CppFile   string
	Namespace string
	NotFound  string
	Parent    DeclID

	Class *Class
	Enum  *Enum
	Var   *Var
	Const *Const
	Func  *Func
	Fdecl *Fdecl
}

// Name returns the name of whichever variant is set.
func (d *Decl) Name() *Name {
	if d == nil {
		return nil
	}
	switch d.Kind {
	case DeclClass:
		if d.Class != nil {
			return &d.Class.Name
		}
	case DeclEnum:
		if d.Enum != nil {
			return &d.Enum.Name
		}
	case DeclVar:
		if d.Var != nil {
			return &d.Var.Name
		}
	case DeclConst:
		if d.Const != nil {
			return &d.Const.Name
		}
	case DeclFunc:
		if d.Func != nil {
			return &d.Func.Name
		}
	case DeclType:
		if d.Fdecl != nil {
			return &d.Fdecl.Name
		}
	}
	return nil
}

// Label is a short human name used in traces and reports.
func (d *Decl) Label() string {
	n := d.Name()
	if n == nil {
		return d.Kind.String()
	}
	name := n.CppName
	if name == "" {
		name = n.Native
	}
	return d.Kind.String() + " " + name
}
