package typetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clifmatch/internal/ir"
)

func spellings(list []Candidate) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.Spelling
	}
	return out
}

func TestResolvePassThrough(t *testing.T) {
	tbl := New(nil)
	got := tbl.Resolve("::ns::Widget")
	require.Len(t, got, 1)
	assert.Equal(t, "::ns::Widget", got[0].Spelling)
	assert.False(t, tbl.Has("::ns::Widget"))
}

func TestDuplicateEntriesAppend(t *testing.T) {
	tbl := New([]ir.Typemap{
		{LangType: "int", CppType: []string{"int", "long"}},
		{LangType: "str", CppType: []string{"std::string"}, Postconversion: "AsBytes"},
		{LangType: "int", CppType: []string{"long", "char"}},
	})
	assert.Equal(t, []string{"int", "long", "char"}, spellings(tbl.Resolve("int")))
	assert.Equal(t, []string{"int", "str"}, tbl.Names())
	assert.Equal(t, "AsBytes", tbl.Postconversion("str"))
	assert.Empty(t, tbl.Postconversion("int"))
}

func TestSpellingsExplicitCppTypeWins(t *testing.T) {
	tbl := New([]ir.Typemap{{LangType: "int", CppType: []string{"int", "long"}}})
	got := tbl.Spellings(&ir.Type{LangType: "int", CppType: "short"})
	assert.Equal(t, []string{"short"}, spellings(got))
}

func TestSpellingsExplicitStemComposesParams(t *testing.T) {
	tbl := New([]ir.Typemap{{LangType: "int", CppType: []string{"int", "long"}}})
	typ := &ir.Type{
		LangType: "composed",
		CppType:  "ComposedType",
		Params: []*ir.Type{{
			LangType: "composed",
			CppType:  "ComposedType",
			Params:   []*ir.Type{{LangType: "int", CppType: "int"}},
		}},
	}
	assert.Equal(t, []string{"ComposedType<ComposedType<int>>"}, spellings(tbl.Spellings(typ)))

	// an empty argument list is still a stem
	typ = &ir.Type{LangType: "list", CppType: "std::vector<>", Params: []*ir.Type{{LangType: "int"}}}
	assert.Equal(t, []string{"std::vector<int>", "std::vector<long>"}, spellings(tbl.Spellings(typ)))

	// a decorated spelling is already complete
	typ = &ir.Type{LangType: "list", CppType: "::std::vector<int>", Params: []*ir.Type{{LangType: "int"}}}
	assert.Equal(t, []string{"::std::vector<int>"}, spellings(tbl.Spellings(typ)))
}

func TestSpellingsExplicitStemWithCallableArg(t *testing.T) {
	tbl := New(nil)
	typ := &ir.Type{
		LangType: "vector",
		CppType:  "::example::Vector",
		Params: []*ir.Type{{
			LangType: "callable",
			Callable: &ir.Func{Params: []*ir.Param{
				{Type: &ir.Type{LangType: "child", CppType: "child"}},
				{Type: &ir.Type{LangType: "int", CppType: "int"}},
			}},
		}},
	}
	assert.Equal(t, []string{"::example::Vector<std::function<void (child, int)>>"}, spellings(tbl.Spellings(typ)))

	callable := &ir.Type{LangType: "callable", CppType: "std::function", Callable: &ir.Func{}}
	assert.Equal(t, []string{"std::function<void ()>"}, spellings(tbl.Spellings(callable)))
}

func TestHasArgs(t *testing.T) {
	assert.True(t, hasArgs("std::vector<int>"))
	assert.True(t, hasArgs("Box<int> *"))
	assert.False(t, hasArgs("std::vector"))
	assert.False(t, hasArgs("std::vector<>"))
	assert.False(t, hasArgs("std::vector< >"))
}

func TestSpellingsContainerCrossProduct(t *testing.T) {
	tbl := New([]ir.Typemap{
		{LangType: "int", CppType: []string{"int", "long"}},
		{LangType: "dict", CppType: []string{"std::map", "std::unordered_map<>"}},
		{LangType: "str", CppType: []string{"std::string"}},
	})
	typ := &ir.Type{
		LangType: "dict",
		Params: []*ir.Type{
			{LangType: "str"},
			{LangType: "int"},
		},
	}
	assert.Equal(t, []string{
		"std::map<std::string, int>",
		"std::map<std::string, long>",
		"std::unordered_map<std::string, int>",
		"std::unordered_map<std::string, long>",
	}, spellings(tbl.Spellings(typ)))
}

func TestSpellingsNested(t *testing.T) {
	tbl := New([]ir.Typemap{
		{LangType: "list", CppType: []string{"std::vector"}},
		{LangType: "int", CppType: []string{"int"}},
	})
	typ := &ir.Type{LangType: "list", Params: []*ir.Type{{LangType: "list", Params: []*ir.Type{{LangType: "int"}}}}}
	assert.Equal(t, []string{"std::vector<std::vector<int>>"}, spellings(tbl.Spellings(typ)))
}

func TestSpellingsBounded(t *testing.T) {
	tbl := New([]ir.Typemap{
		{LangType: "int", CppType: []string{"int", "long", "short", "char"}},
		{LangType: "tuple", CppType: []string{"std::tuple"}},
	})
	tbl.MaxCandidates = 5
	typ := &ir.Type{LangType: "tuple", Params: []*ir.Type{{LangType: "int"}, {LangType: "int"}, {LangType: "int"}}}
	got := spellings(tbl.Spellings(typ))
	require.Len(t, got, 5)
	assert.Equal(t, "std::tuple<int, int, int>", got[0])
	assert.Equal(t, "std::tuple<int, int, long>", got[1])
}

func TestSpellingsCallable(t *testing.T) {
	tbl := New([]ir.Typemap{{LangType: "int", CppType: []string{"int", "long"}}})
	typ := &ir.Type{
		LangType: "callable",
		Callable: &ir.Func{
			Params:  []*ir.Param{{Type: &ir.Type{LangType: "int"}}},
			Returns: []*ir.Param{{Type: &ir.Type{LangType: "bool"}}},
		},
	}
	assert.Equal(t, []string{
		"std::function<bool (int)>",
		"std::function<bool (long)>",
	}, spellings(tbl.Spellings(typ)))

	void := &ir.Type{LangType: "callable", Callable: &ir.Func{}}
	assert.Equal(t, []string{"std::function<void ()>"}, spellings(tbl.Spellings(void)))
}

func TestProductOrder(t *testing.T) {
	tbl := New(nil)
	slots := [][]Candidate{
		{{Spelling: "a"}, {Spelling: "b"}},
		{{Spelling: "1"}, {Spelling: "2"}},
	}
	var got []string
	tbl.Product(slots, func(tuple []Candidate) bool {
		got = append(got, tuple[0].Spelling+tuple[1].Spelling)
		return true
	})
	assert.Equal(t, []string{"a1", "a2", "b1", "b2"}, got)

	tbl.MaxCandidates = 3
	got = got[:0]
	tbl.Product(slots, func(tuple []Candidate) bool {
		got = append(got, tuple[0].Spelling+tuple[1].Spelling)
		return true
	})
	assert.Equal(t, []string{"a1", "a2", "b1"}, got)
}
