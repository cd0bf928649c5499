// Package oracle defines the narrow capability interface the matcher uses
// to ask a C++ front end about a synthesized translation unit.
package oracle

import (
	"context"
	"fmt"

	"clifmatch/internal/cxx"
)

// Severity of a front-end diagnostic.
type Severity uint8

const (
	SevNote Severity = iota
	SevWarning
	SevError
	SevFatal
)

func (s Severity) String() string {
	switch s {
	case SevNote:
		return "note"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	case SevFatal:
		return "fatal error"
	}
	return "unknown"
}

// Diagnostic is one message produced while compiling a unit.
// Symbol names the synthetic declaration the message is about when the
// front end can tell; otherwise File/Line locate it.
type Diagnostic struct {
	Severity Severity
	File     string
	Line     int
	Symbol   string
	Message  string
}

func (d Diagnostic) String() string {
	loc := d.File
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d", d.File, d.Line)
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", loc, d.Severity, d.Message)
}

// Oracle compiles a translation unit and hands back a queryable Unit.
type Oracle interface {
	// Compile parses source with the given include search path. Errors
	// confined to synthetic declarations come back as diagnostics with a
	// usable unit; a non-nil error means no unit could be produced.
	Compile(ctx context.Context, source string, includePaths []string) (Unit, []Diagnostic, error)
}

// Unit answers semantic questions about one compiled translation unit.
type Unit interface {
	// SourceFile is the name diagnostics use for the synthesized text.
	SourceFile() string

	// Typedef returns the type a synthetic typedef denotes, or false when
	// the typedef was rejected.
	Typedef(symbol string) (*cxx.Type, bool)

	// Lookup resolves name (possibly qualified, possibly carrying explicit
	// template arguments) from scope outward. A nil scope is the global
	// namespace. Functions come back as the whole overload set.
	Lookup(scope *cxx.Entity, name string) []*cxx.Entity

	// Global returns the translation unit scope.
	Global() *cxx.Entity

	// Convert reports how a value of type from converts to type to.
	Convert(from, to *cxx.Type) Conversion

	// Deduce performs template argument deduction of fn against argument
	// types and returns the specialization.
	Deduce(fn *cxx.Entity, args []*cxx.Type) (*cxx.Entity, error)

	// Properties answers capability questions about a type.
	Properties(t *cxx.Type) Properties

	// Bases returns the direct bases of a record, resolved to entities.
	Bases(record *cxx.Entity) []BaseRef

	// Constructors returns the constructors of a record, implicit ones
	// included, plus those inherited by using-declarations.
	Constructors(record *cxx.Entity) []*cxx.Entity
}

// BaseRef is a resolved base-specifier.
type BaseRef struct {
	Entity  *cxx.Entity
	Virtual bool
	Access  cxx.Access
}

// ConversionKind ranks an implicit conversion sequence.
type ConversionKind uint8

const (
	ConvNone ConversionKind = iota
	ConvIdentity
	ConvQualification
	ConvPromotion
	ConvNumeric
	ConvDerivedToBase
	ConvUserDefined
)

func (k ConversionKind) String() string {
	switch k {
	case ConvIdentity:
		return "identity"
	case ConvQualification:
		return "qualification"
	case ConvPromotion:
		return "promotion"
	case ConvNumeric:
		return "numeric"
	case ConvDerivedToBase:
		return "derived-to-base"
	case ConvUserDefined:
		return "user-defined"
	default:
		return "none"
	}
}

// Conversion is the verdict for one implicit conversion.
type Conversion struct {
	Kind ConversionKind
	// Via is the constructor or conversion function of a user-defined
	// conversion.
	Via *cxx.Entity
}

// OK reports whether the conversion exists.
func (c Conversion) OK() bool { return c.Kind != ConvNone }

// Exact reports whether no value transformation is involved.
func (c Conversion) Exact() bool { return c.Kind == ConvIdentity || c.Kind == ConvQualification }

// Properties is the capability verdict for a type.
type Properties struct {
	HasDefaultCtor bool
	TrivialCtor    bool
	Copyable       bool
	Movable        bool
	HasPublicDtor  bool
	TrivialDtor    bool
	Abstract       bool
	Polymorphic    bool
}
