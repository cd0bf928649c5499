package headerdb

import "fmt"

// Node mirrors one entry of clang's JSON AST dump
// (clang -Xclang -ast-dump=json). Only the fields the matcher needs are
// decoded; fixtures written in YAML use the same keys.
type Node struct {
	ID    string  `json:"id,omitempty" yaml:"id,omitempty"`
	Kind  string  `json:"kind" yaml:"kind"`
	Name  string  `json:"name,omitempty" yaml:"name,omitempty"`
	Loc   *SrcLoc `json:"loc,omitempty" yaml:"loc,omitempty"`
	Type  *QualT  `json:"type,omitempty" yaml:"type,omitempty"`
	Inner []*Node `json:"inner,omitempty" yaml:"inner,omitempty"`

	IsImplicit bool   `json:"isImplicit,omitempty" yaml:"isImplicit,omitempty"`
	Access     string `json:"access,omitempty" yaml:"access,omitempty"`

	// records
	TagUsed            string          `json:"tagUsed,omitempty" yaml:"tagUsed,omitempty"`
	CompleteDefinition bool            `json:"completeDefinition,omitempty" yaml:"completeDefinition,omitempty"`
	Bases              []BaseNode      `json:"bases,omitempty" yaml:"bases,omitempty"`
	DefinitionData     *DefinitionData `json:"definitionData,omitempty" yaml:"definitionData,omitempty"`

	// functions
	Virtual             bool   `json:"virtual,omitempty" yaml:"virtual,omitempty"`
	Pure                bool   `json:"pure,omitempty" yaml:"pure,omitempty"`
	ExplicitlyDeleted   bool   `json:"explicitlyDeleted,omitempty" yaml:"explicitlyDeleted,omitempty"`
	ExplicitlyDefaulted string `json:"explicitlyDefaulted,omitempty" yaml:"explicitlyDefaulted,omitempty"`
	Explicit            bool   `json:"explicit,omitempty" yaml:"explicit,omitempty"`
	StorageClass        string `json:"storageClass,omitempty" yaml:"storageClass,omitempty"`
	MangledName         string `json:"mangledName,omitempty" yaml:"mangledName,omitempty"`
	Variadic            bool   `json:"variadic,omitempty" yaml:"variadic,omitempty"`

	// variables and parameters
	Init      string `json:"init,omitempty" yaml:"init,omitempty"`
	Default   string `json:"default,omitempty" yaml:"default,omitempty"`
	Constexpr bool   `json:"constexpr,omitempty" yaml:"constexpr,omitempty"`

	// enums
	ScopedEnumTag      string `json:"scopedEnumTag,omitempty" yaml:"scopedEnumTag,omitempty"`
	FixedUnderlyingTyp *QualT `json:"fixedUnderlyingType,omitempty" yaml:"fixedUnderlyingType,omitempty"`

	// literals and operators
	Value  any    `json:"value,omitempty" yaml:"value,omitempty"`
	Opcode string `json:"opcode,omitempty" yaml:"opcode,omitempty"`

	// template parameters
	IsParameterPack bool `json:"isParameterPack,omitempty" yaml:"isParameterPack,omitempty"`
}

// SrcLoc is a clang source location. Clang omits file when it equals the
// previously printed one.
type SrcLoc struct {
	File         string   `json:"file,omitempty" yaml:"file,omitempty"`
	Line         int      `json:"line,omitempty" yaml:"line,omitempty"`
	IncludedFrom *FileRef `json:"includedFrom,omitempty" yaml:"includedFrom,omitempty"`
	ExpansionLoc *SrcLoc  `json:"expansionLoc,omitempty" yaml:"expansionLoc,omitempty"`
}

// FileRef names a file.
type FileRef struct {
	File string `json:"file" yaml:"file"`
}

// QualT is clang's type printout.
type QualT struct {
	QualType          string `json:"qualType" yaml:"qualType"`
	DesugaredQualType string `json:"desugaredQualType,omitempty" yaml:"desugaredQualType,omitempty"`
}

// BaseNode is a base-specifier.
type BaseNode struct {
	Type      QualT  `json:"type" yaml:"type"`
	IsVirtual bool   `json:"isVirtual,omitempty" yaml:"isVirtual,omitempty"`
	Access    string `json:"access,omitempty" yaml:"access,omitempty"`
}

// DefinitionData is the subset of clang's record definition data that
// states capabilities directly.
type DefinitionData struct {
	IsAbstract    *bool       `json:"isAbstract,omitempty" yaml:"isAbstract,omitempty"`
	IsPolymorphic *bool       `json:"isPolymorphic,omitempty" yaml:"isPolymorphic,omitempty"`
	DefaultCtor   *MemberData `json:"defaultCtor,omitempty" yaml:"defaultCtor,omitempty"`
	CopyCtor      *MemberData `json:"copyCtor,omitempty" yaml:"copyCtor,omitempty"`
	MoveCtor      *MemberData `json:"moveCtor,omitempty" yaml:"moveCtor,omitempty"`
	Dtor          *MemberData `json:"dtor,omitempty" yaml:"dtor,omitempty"`
}

// MemberData describes one special member in DefinitionData.
type MemberData struct {
	Exists  *bool `json:"exists,omitempty" yaml:"exists,omitempty"`
	Trivial *bool `json:"trivial,omitempty" yaml:"trivial,omitempty"`
	Deleted *bool `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

func (n *Node) String() string {
	if n.Name == "" {
		return n.Kind
	}
	return fmt.Sprintf("%s %s", n.Kind, n.Name)
}

// hasAttr reports whether an attribute node of the given kind is attached.
func (n *Node) hasAttr(kind string) bool {
	for _, c := range n.Inner {
		if c != nil && c.Kind == kind {
			return true
		}
	}
	return false
}

// literalText extracts the spelling of a literal default argument.
// Non-literal expressions yield "".
func literalText(n *Node) string {
	for n != nil {
		switch n.Kind {
		case "IntegerLiteral", "FloatingLiteral":
			return fmt.Sprint(n.Value)
		case "CXXBoolLiteralExpr":
			return fmt.Sprint(n.Value)
		case "CXXNullPtrLiteralExpr":
			return "nullptr"
		case "StringLiteral":
			return fmt.Sprint(n.Value)
		case "UnaryOperator":
			if n.Opcode == "-" && len(n.Inner) == 1 {
				if s := literalText(n.Inner[0]); s != "" {
					return "-" + s
				}
			}
			return ""
		case "ImplicitCastExpr", "ConstantExpr", "ExprWithCleanups", "ParenExpr",
			"CStyleCastExpr", "MaterializeTemporaryExpr", "CXXDefaultArgExpr":
			if len(n.Inner) != 1 {
				return ""
			}
			n = n.Inner[0]
		default:
			return ""
		}
	}
	return ""
}
