package synth

import (
	"context"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clifmatch/internal/headerdb"
	"clifmatch/internal/ir"
	"clifmatch/internal/typetable"
)

const widgetIR = `
headers: [lib/widget.h, lib/widget.h]
typemaps:
  - lang_type: int
    cpp_type: [int, long]
decls:
  - decltype: CLASS
    cpp_file: lib/widget.h
    namespace_: ns
    class_:
      name: {native: Widget, cpp_name: Widget}
      members:
        - decltype: FUNC
          func:
            name: {native: resize, cpp_name: Resize}
            params:
              - name: {native: w}
                type: {lang_type: int}
              - name: {native: h}
                type: {lang_type: int}
  - decltype: FUNC
    func:
      name: {native: scale, cpp_name: ns::Scale}
      params:
        - name: {native: v}
          type: {lang_type: int}
      returns:
        - type: {lang_type: int}
`

func build(t *testing.T, src string) (*ir.AST, *Unit) {
	t.Helper()
	ast, err := ir.Decode(strings.NewReader(src), ir.FormatYAML)
	require.NoError(t, err)
	return ast, Build(ast, typetable.New(ast.Typemaps))
}

func TestBuildGolden(t *testing.T) {
	_, u := build(t, widgetIR)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "unit", []byte(u.Source))
}

func TestBuildDeterministic(t *testing.T) {
	_, a := build(t, widgetIR)
	_, b := build(t, widgetIR)
	assert.Equal(t, a.Source, b.Source)
}

func TestIndex(t *testing.T) {
	ast, u := build(t, widgetIR)
	cls := ast.Decls[0]
	resize := ast.Members(cls)[0]
	scale := ast.Decls[1]

	sym, ok := u.Index.ClassSymbol(cls)
	require.True(t, ok)
	assert.Equal(t, "clif_class_1", sym)
	at, ok := u.Index.SymbolAt(7)
	require.True(t, ok)
	assert.Equal(t, sym, at)
	assert.Equal(t, []ir.DeclID{cls}, u.Index.Decls(sym))

	self := u.Index.Candidates(cls, Slot{Kind: SlotSelf})
	require.Len(t, self, 1)
	assert.Equal(t, "clif_type_0", self[0].Symbol)
	assert.Equal(t, "Widget", self[0].Spelling)

	p1 := u.Index.Candidates(resize, Slot{Kind: SlotParam, Index: 1})
	require.Len(t, p1, 2)
	assert.Equal(t, "clif_type_2", p1[0].Symbol)
	assert.Equal(t, "clif_type_3", p1[1].Symbol)

	e, ok := u.Index.Entry("clif_type_2")
	require.True(t, ok)
	assert.Equal(t, 8, e.Line)
	for _, line := range []int{8, 9, 10} {
		at, ok := u.Index.SymbolAt(line)
		require.True(t, ok, "line %d", line)
		assert.Equal(t, "clif_type_2", at, "line %d", line)
	}
	assert.Equal(t, []Use{
		{Decl: resize, Slot: Slot{Kind: SlotParam, Index: 0}, Candidate: 0},
		{Decl: resize, Slot: Slot{Kind: SlotParam, Index: 1}, Candidate: 0},
	}, e.Uses)

	assert.Len(t, u.Index.Stubs(resize), 4)
	stubs := u.Index.Stubs(scale)
	require.Len(t, stubs, 2)
	assert.Equal(t, []string{"clif_type_9"}, stubs[1].Params)

	ret := u.Index.Candidates(scale, Slot{Kind: SlotReturn, Index: 0})
	require.Len(t, ret, 2)
	assert.Equal(t, "clif_type_8", ret[0].Symbol)
	assert.Equal(t, []ir.DeclID{scale}, u.Index.Decls("clif_type_8"))
}

func TestBuildCompilesAgainstModel(t *testing.T) {
	_, u := build(t, widgetIR)
	db, err := headerdb.LoadFile("../headerdb/testdata/model.yaml")
	require.NoError(t, err)
	unit, diags, err := headerdb.NewOracle(db).Compile(context.Background(), u.Source, nil)
	require.NoError(t, err)
	assert.Empty(t, diags)

	typ, ok := unit.Typedef("clif_type_0")
	require.True(t, ok)
	assert.Equal(t, "::ns::Widget", typ.String())
}

func TestExplicitCppTypeAndEnums(t *testing.T) {
	src := `
decls:
  - decltype: ENUM
    namespace_: ns
    enum:
      name: {native: Color, cpp_name: Color}
  - decltype: VAR
    var:
      name: {native: v, cpp_name: v}
      type: {lang_type: int, cpp_type: short}
`
	ast, u := build(t, src)
	self := u.Index.Candidates(ast.Decls[0], Slot{Kind: SlotSelf})
	require.Len(t, self, 1)
	assert.Equal(t, "Color", self[0].Spelling)
	vt := u.Index.Candidates(ast.Decls[1], Slot{Kind: SlotType})
	require.Len(t, vt, 1)
	assert.Equal(t, "short", vt[0].Spelling)
	assert.NotContains(t, u.Source, "#include")
}
