package headerdb

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clifmatch/internal/cxx"
	"clifmatch/internal/oracle"
)

func loadModel(t *testing.T) *DB {
	t.Helper()
	db, err := LoadFile("testdata/model.yaml")
	require.NoError(t, err)
	return db
}

func compile(t *testing.T, db *DB, src string) (oracle.Unit, []oracle.Diagnostic) {
	t.Helper()
	u, diags, err := NewOracle(db).Compile(context.Background(), src, []string{"lib"})
	require.NoError(t, err)
	return u, diags
}

const unitSrc = `#include "widget.h"
namespace clif {
typedef
int
clif_type_0;
typedef
::ns::Widget
clif_type_1;
typedef
ns::WidgetPtr
clif_type_2;
typedef
Missing
clif_type_3;
template<class clif_unused_template_arg_4> class clif_class_4: public clif_type_1 { public:
typedef
Base
clif_type_5;
 };
void clif_stub_6(clif_type_0, clif_type_3);
} // clif
`

func TestCompileTypedefs(t *testing.T) {
	db := loadModel(t)
	u, diags := compile(t, db, unitSrc)

	ti, ok := u.Typedef("clif_type_0")
	require.True(t, ok)
	assert.Equal(t, "int", ti.String())

	tw, ok := u.Typedef("clif_type_1")
	require.True(t, ok)
	assert.Equal(t, "::ns::Widget", tw.String())
	require.NotNil(t, tw.Decl)

	tp, ok := u.Typedef("clif_type_2")
	require.True(t, ok)
	assert.Equal(t, "::std::unique_ptr<::ns::Widget>", tp.String())
	assert.Equal(t, "::ns::WidgetPtr", tp.Alias)

	// member typedefs resolve in the scope of the class block's base
	tb, ok := u.Typedef("clif_type_5")
	require.True(t, ok)
	assert.Equal(t, "::ns::Base", tb.String())

	_, ok = u.Typedef("clif_type_3")
	assert.False(t, ok)

	bySymbol := map[string]oracle.Diagnostic{}
	for _, d := range diags {
		assert.NotEqual(t, oracle.SevFatal, d.Severity, d.String())
		bySymbol[d.Symbol] = d
	}
	require.Contains(t, bySymbol, "clif_type_3")
	assert.Equal(t, 12, bySymbol["clif_type_3"].Line)
	assert.Contains(t, bySymbol["clif_type_3"].Message, "Missing")
	require.Contains(t, bySymbol, "clif_stub_6")
}

func TestCompileMissingIncludeIsFatal(t *testing.T) {
	db := loadModel(t)
	_, diags := compile(t, db, "#include \"nope.h\"\n")
	require.Len(t, diags, 1)
	assert.Equal(t, oracle.SevFatal, diags[0].Severity)
	assert.Equal(t, "'nope.h' file not found", diags[0].Message)
}

func TestCompileUnbalancedIsFatal(t *testing.T) {
	db := loadModel(t)
	_, diags := compile(t, db, "namespace clif {\n")
	require.NotEmpty(t, diags)
	assert.Equal(t, oracle.SevFatal, diags[len(diags)-1].Severity)
}

func TestCompileOneLineTypedef(t *testing.T) {
	db := loadModel(t)
	u, diags := compile(t, db, "#include \"base.h\"\ntypedef const ns::Base * clif_type_0;\n")
	require.Empty(t, diags)
	tt, ok := u.Typedef("clif_type_0")
	require.True(t, ok)
	assert.Equal(t, "const ::ns::Base *", tt.String())
}

func TestVisibilityFollowsIncludes(t *testing.T) {
	db := loadModel(t)
	u, diags := compile(t, db, "#include \"base.h\"\ntypedef\nns::Widget\nclif_type_0;\ntypedef\n::Secret\nclif_type_1;\n")
	require.Len(t, diags, 2)
	_, ok := u.Typedef("clif_type_0")
	assert.False(t, ok)
	assert.Empty(t, u.Lookup(nil, "ns::Widget"))
	assert.Len(t, u.Lookup(nil, "ns::Base"), 1)
}

func TestLookup(t *testing.T) {
	db := loadModel(t)
	u, _ := compile(t, db, "#include \"widget.h\"\n")

	ns := u.Lookup(nil, "ns")
	require.Len(t, ns, 1)

	w := u.Lookup(ns[0], "Widget")
	require.Len(t, w, 1)
	assert.Equal(t, "::ns::Widget", w[0].QualifiedName())

	// inherited member
	get := u.Lookup(w[0], "Get")
	require.Len(t, get, 1)
	assert.Equal(t, "::ns::Base::Get", get[0].QualifiedName())

	// own member hides the base one
	draw := u.Lookup(w[0], "Draw")
	require.Len(t, draw, 1)
	assert.Equal(t, "::ns::Widget::Draw", draw[0].QualifiedName())

	// constructors are not found by name
	for _, e := range u.Lookup(nil, "::ns::Widget::Widget") {
		assert.NotEqual(t, cxx.EntityFunction, e.Kind)
	}

	red := u.Lookup(nil, "ns::kRed")
	require.Len(t, red, 1)
	assert.Equal(t, "::ns::kRed", red[0].QualifiedName())

	assert.Empty(t, u.Lookup(nil, "ns::kOn"))
	on := u.Lookup(nil, "ns::Mode::kOn")
	require.Len(t, on, 1)
	assert.Equal(t, "::ns::Mode::kOn", on[0].QualifiedName())

	box := u.Lookup(nil, "ns::Box<int>")
	require.Len(t, box, 1)
	assert.Equal(t, "::ns::Box<int>", box[0].QualifiedName())
	clone := u.Lookup(box[0], "Clone")
	require.Len(t, clone, 1)
	assert.Equal(t, "::ns::Box<int>", clone[0].Func.Result.String())
	getter := u.Lookup(box[0], "Get")
	require.Len(t, getter, 1)
	assert.Equal(t, "const int &", getter[0].Func.Result.String())

	add := u.Lookup(nil, "ns::Add<long>")
	require.Len(t, add, 1)
	assert.Equal(t, "long", add[0].Func.Result.String())
	assert.Equal(t, "::ns::Add<long>", add[0].QualifiedName())
}

func TestConvert(t *testing.T) {
	db := loadModel(t)
	u, _ := compile(t, db, "#include \"widget.h\"\n")
	widget := u.Lookup(nil, "ns::Widget")[0].Type()
	base := u.Lookup(nil, "ns::Base")[0].Type()
	str := u.Lookup(nil, "std::string")[0].Type()
	color := u.Lookup(nil, "ns::Color")[0].Type()
	mode := u.Lookup(nil, "ns::Mode")[0].Type()

	cases := []struct {
		name     string
		from, to *cxx.Type
		want     oracle.ConversionKind
	}{
		{"identity", cxx.Builtin("int"), cxx.Builtin("int"), oracle.ConvIdentity},
		{"const ref binds", cxx.Builtin("int"), cxx.LRefTo(cxx.Builtin("int").WithConst(true)), oracle.ConvIdentity},
		{"promotion", cxx.Builtin("short"), cxx.Builtin("int"), oracle.ConvPromotion},
		{"integral", cxx.Builtin("int"), cxx.Builtin("long"), oracle.ConvNumeric},
		{"floating", cxx.Builtin("double"), cxx.Builtin("float"), oracle.ConvNumeric},
		{"no bool to int", cxx.Builtin("bool"), cxx.Builtin("int"), oracle.ConvNone},
		{"no int to float", cxx.Builtin("int"), cxx.Builtin("double"), oracle.ConvNone},
		{"unscoped enum", color, cxx.Builtin("int"), oracle.ConvPromotion},
		{"scoped enum", mode, cxx.Builtin("int"), oracle.ConvNone},
		{"derived to base", widget, base, oracle.ConvDerivedToBase},
		{"base to derived", base, widget, oracle.ConvNone},
		{"pointer qualification", cxx.PointerTo(widget), cxx.PointerTo(widget.WithConst(true)), oracle.ConvQualification},
		{"pointer drops const", cxx.PointerTo(widget.WithConst(true)), cxx.PointerTo(widget), oracle.ConvNone},
		{"converting ctor", cxx.Builtin("int"), widget, oracle.ConvUserDefined},
		{"explicit ctor", str, widget, oracle.ConvNone},
		{"string from char pointer", cxx.PointerTo(cxx.Builtin("char").WithConst(true)), str, oracle.ConvUserDefined},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, u.Convert(tc.from, tc.to).Kind)
		})
	}
}

func TestProperties(t *testing.T) {
	db := loadModel(t)
	u, _ := compile(t, db, "#include \"widget.h\"\ntypedef\nns::WidgetPtr\nclif_type_0;\n")

	base := u.Properties(u.Lookup(nil, "ns::Base")[0].Type())
	assert.True(t, base.Abstract)
	assert.True(t, base.Polymorphic)

	widget := u.Properties(u.Lookup(nil, "ns::Widget")[0].Type())
	assert.False(t, widget.Abstract)
	assert.False(t, widget.HasDefaultCtor)
	assert.True(t, widget.Copyable)
	assert.True(t, widget.Movable)
	assert.True(t, widget.HasPublicDtor)

	handle := u.Properties(u.Lookup(nil, "ns::Handle")[0].Type())
	assert.True(t, handle.HasDefaultCtor)
	assert.False(t, handle.Copyable)
	assert.True(t, handle.Movable)

	ptr, ok := u.Typedef("clif_type_0")
	require.True(t, ok)
	pp := u.Properties(ptr)
	assert.False(t, pp.Copyable)
	assert.True(t, pp.Movable)

	scalar := u.Properties(cxx.Builtin("int"))
	assert.True(t, scalar.Copyable)
	assert.True(t, scalar.TrivialCtor)
	assert.Equal(t, oracle.Properties{}, u.Properties(cxx.Builtin("void")))
}

func TestOverridesMatchParameterTypes(t *testing.T) {
	db, err := LoadFixture(strings.NewReader(`
std_prelude: false
files:
  - path: shape.h
    decls:
      - kind: CXXRecordDecl
        name: Shape
        loc: {line: 1}
        tagUsed: struct
        completeDefinition: true
        inner:
          - {kind: CXXMethodDecl, name: Area, loc: {line: 2}, type: {qualType: "double (int) const"}, virtual: true, pure: true}
      - kind: CXXRecordDecl
        name: Square
        loc: {line: 4}
        tagUsed: struct
        completeDefinition: true
        bases:
          - {type: {qualType: "Shape"}, access: public}
        inner:
          - {kind: CXXMethodDecl, name: Area, loc: {line: 5}, type: {qualType: "double (long) const"}, virtual: true}
      - kind: CXXRecordDecl
        name: Circle
        loc: {line: 7}
        tagUsed: struct
        completeDefinition: true
        bases:
          - {type: {qualType: "Shape"}, access: public}
        inner:
          - {kind: CXXMethodDecl, name: Area, loc: {line: 8}, type: {qualType: "double (int) const"}, virtual: true}
`))
	require.NoError(t, err)

	square := db.lookup(db.global, "Square", nil)
	require.Len(t, square, 1)
	assert.True(t, db.properties(square[0].Type()).Abstract, "Area(long) hides Area(int)")

	circle := db.lookup(db.global, "Circle", nil)
	require.Len(t, circle, 1)
	assert.False(t, db.properties(circle[0].Type()).Abstract)
}

func TestConstructors(t *testing.T) {
	db := loadModel(t)
	u, _ := compile(t, db, "#include \"widget.h\"\n")
	ctors := u.Constructors(u.Lookup(nil, "ns::Widget")[0])
	kinds := map[cxx.CtorKind]int{}
	for _, c := range ctors {
		kinds[c.Func.Ctor]++
	}
	assert.Equal(t, 2, kinds[cxx.CtorConverting])
	assert.Equal(t, 1, kinds[cxx.CtorCopy])
	assert.Equal(t, 1, kinds[cxx.CtorMove])
	assert.Zero(t, kinds[cxx.CtorDefault])
}

func TestDeduce(t *testing.T) {
	db := loadModel(t)
	u, _ := compile(t, db, "#include \"widget.h\"\n")
	add := u.Lookup(nil, "ns::Add")
	require.Len(t, add, 1)

	spec, err := u.Deduce(add[0], []*cxx.Type{cxx.Builtin("int"), cxx.LRefTo(cxx.Builtin("int").WithConst(true))})
	require.NoError(t, err)
	assert.Equal(t, "int", spec.Func.Result.String())
	assert.Equal(t, "::ns::Add<int>", spec.QualifiedName())

	_, err = u.Deduce(add[0], []*cxx.Type{cxx.Builtin("int"), cxx.Builtin("long")})
	var de *oracle.DeductionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, oracle.DeduceConflict, de.Reason)

	_, err = u.Deduce(add[0], []*cxx.Type{cxx.Builtin("int")})
	require.True(t, errors.As(err, &de))
	assert.Equal(t, oracle.DeduceTooFewArguments, de.Reason)

	_, err = u.Deduce(add[0], []*cxx.Type{cxx.Builtin("int"), cxx.Builtin("int"), cxx.Builtin("int")})
	require.True(t, errors.As(err, &de))
	assert.Equal(t, oracle.DeduceTooManyArguments, de.Reason)

	mk := u.Lookup(nil, "ns::Make")
	require.Len(t, mk, 1)
	_, err = u.Deduce(mk[0], nil)
	require.True(t, errors.As(err, &de))
	assert.Equal(t, oracle.DeduceIncomplete, de.Reason)
	assert.Equal(t, "T", de.Param)
}

func TestDefaultsAndLocations(t *testing.T) {
	db := loadModel(t)
	u, _ := compile(t, db, "#include \"widget.h\"\n")
	scale := u.Lookup(nil, "ns::Scale")
	require.Len(t, scale, 1)
	fn := scale[0].Func
	require.Len(t, fn.Params, 2)
	assert.False(t, fn.Params[0].HasDefault)
	assert.True(t, fn.Params[1].HasDefault)
	assert.Equal(t, "2.0", fn.Params[1].Default)
	assert.Equal(t, 1, fn.RequiredParams())
	assert.Equal(t, cxx.Loc{File: "lib/widget.h", Line: 25}, scale[0].Loc)
}

func TestFixtureRejectsUnknownFields(t *testing.T) {
	_, err := LoadFixture(strings.NewReader("files:\n  - path: a.h\n    bogus: 1\n"))
	require.Error(t, err)
}

func TestClangJSON(t *testing.T) {
	const dump = `{
  "id": "0x1", "kind": "TranslationUnitDecl",
  "inner": [
    {"id": "0x2", "kind": "TypedefDecl", "isImplicit": true, "name": "__int128_t", "type": {"qualType": "__int128"}},
    {"id": "0x3", "kind": "NamespaceDecl", "loc": {"file": "/src/a.h", "line": 2, "includedFrom": {"file": "/src/main.cc"}}, "name": "a",
     "inner": [
       {"id": "0x4", "kind": "CXXRecordDecl", "loc": {"line": 3}, "name": "S", "tagUsed": "struct", "completeDefinition": true,
        "inner": [
          {"id": "0x5", "kind": "CXXRecordDecl", "loc": {"line": 3}, "isImplicit": true, "name": "S", "tagUsed": "struct"},
          {"id": "0x6", "kind": "FieldDecl", "loc": {"line": 4}, "name": "x", "type": {"qualType": "int"}}
        ]},
       {"id": "0x7", "kind": "FunctionDecl", "loc": {"line": 6}, "name": "F", "mangledName": "_ZN1a1FEv", "type": {"qualType": "a::S ()"}}
     ]}
  ]
}`
	db, err := LoadClangJSON(strings.NewReader(dump))
	require.NoError(t, err)
	assert.Empty(t, db.Problems)
	u, diags := compile(t, db, "#include \"/src/a.h\"\n")
	require.Empty(t, diags)
	f := u.Lookup(nil, "a::F")
	require.Len(t, f, 1)
	assert.Equal(t, "_ZN1a1FEv", f[0].Func.Mangled)
	assert.Equal(t, "::a::S", f[0].Func.Result.String())
	assert.Equal(t, cxx.Loc{File: "/src/a.h", Line: 6}, f[0].Loc)
}
