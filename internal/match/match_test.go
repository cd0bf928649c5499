package match

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clifmatch/internal/diag"
	"clifmatch/internal/headerdb"
	"clifmatch/internal/ir"
	"clifmatch/internal/oracle"
)

const prelude = `
headers: [test/matcher.h]
typemaps:
  - lang_type: int
    cpp_type: [int]
  - lang_type: float
    cpp_type: [double]
  - lang_type: bool
    cpp_type: [bool]
  - lang_type: wide
    cpp_type: [char, int, long]
decls:
`

func newSession(t *testing.T, decls string, opts Options) (*ir.AST, *Session, *diag.Bag) {
	t.Helper()
	ast, err := ir.Decode(strings.NewReader(prelude+decls), ir.FormatYAML)
	require.NoError(t, err)
	db, err := headerdb.LoadFile("testdata/headers.yaml")
	require.NoError(t, err)
	bag := diag.NewBag(0)
	opts.Reporter = diag.BagReporter{Bag: bag}
	return ast, NewSession(ast, headerdb.NewOracle(db), opts), bag
}

func run(t *testing.T, decls string, opts Options) (*ir.AST, *Session, *diag.Bag) {
	t.Helper()
	ast, s, bag := newSession(t, decls, opts)
	require.NoError(t, s.Run(context.Background()))
	return ast, s, bag
}

func topFunc(ast *ir.AST, i int) *ir.Func { return ast.Decl(ast.Decls[i]).Func }

func notFound(ast *ir.AST, i int) string { return ast.Decl(ast.Decls[i]).NotFound }

func TestFunctionReturnShapes(t *testing.T) {
	ast, s, _ := run(t, `
  - decltype: FUNC
    func:
      name: {native: f, cpp_name: FuncReturnsVoid}
      params:
        - {name: {native: x}, type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: g, cpp_name: FuncReturnsInt}
      params:
        - {name: {native: x}, type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: h, cpp_name: FuncReturnsInt}
      ignore_return_value: true
      params:
        - {name: {native: x}, type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: m, cpp_name: FuncMustUse}
      ignore_return_value: true
  - decltype: FUNC
    func:
      name: {native: r, cpp_name: FuncReturnsInt}
      params:
        - {name: {native: x}, type: {lang_type: int}}
      returns:
        - {type: {lang_type: int}}
`, Options{})

	f := topFunc(ast, 0)
	assert.Empty(t, notFound(ast, 0))
	assert.Equal(t, Matched, s.State(ast.Decls[0]))
	assert.Equal(t, "::FuncReturnsVoid", f.Name.CppName)
	assert.True(t, f.CppVoidReturn)
	assert.Equal(t, 1, f.CppNumParams)
	assert.Equal(t, "int", f.Params[0].Type.CppType)
	assert.Equal(t, "int", f.Params[0].CppExactType)

	assert.Contains(t, notFound(ast, 1), "declare the return or set ignore_return_value")
	assert.Equal(t, NotFound, s.State(ast.Decls[1]))

	assert.Empty(t, notFound(ast, 2))
	assert.False(t, topFunc(ast, 2).CppVoidReturn)

	assert.Equal(t, msgMustUse, notFound(ast, 3))

	r := topFunc(ast, 4)
	assert.Empty(t, notFound(ast, 4))
	assert.Equal(t, "int", r.Returns[0].Type.CppType)
	assert.False(t, r.CppVoidReturn)
}

func TestOutputParameters(t *testing.T) {
	ast, _, _ := run(t, `
  - decltype: FUNC
    func:
      name: {native: divide, cpp_name: Divide}
      params:
        - {name: {native: a}, type: {lang_type: int}}
        - {name: {native: b}, type: {lang_type: int}}
      returns:
        - {name: {native: q}, type: {lang_type: int}}
        - {name: {native: r}, type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: split, cpp_name: Split}
      params:
        - {name: {native: a}, type: {lang_type: int}}
      returns:
        - {type: {lang_type: int}}
        - {name: {native: rest}, type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: const_out, cpp_name: ConstOut}
      params:
        - {name: {native: a}, type: {lang_type: int}}
      returns:
        - {name: {native: o}, type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: value_out, cpp_name: ValueOut}
      params:
        - {name: {native: a}, type: {lang_type: int}}
      returns:
        - {name: {native: o}, type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: backwards, cpp_name: Backwards}
      params:
        - {name: {native: a}, type: {lang_type: int}}
      returns:
        - {name: {native: o}, type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: no_copy, cpp_name: NoCopyOut}
      params:
        - {name: {native: a}, type: {lang_type: int}}
      returns:
        - {name: {native: o}, type: {lang_type: NoCopy, cpp_type: NoCopy}}
`, Options{})

	div := topFunc(ast, 0)
	require.Empty(t, notFound(ast, 0))
	assert.True(t, div.CppVoidReturn)
	assert.Equal(t, 4, div.CppNumParams)
	assert.Equal(t, "int", div.Returns[0].Type.CppType)
	assert.Equal(t, "int *", div.Returns[1].CppExactType)

	split := topFunc(ast, 1)
	require.Empty(t, notFound(ast, 1))
	assert.False(t, split.CppVoidReturn)
	assert.Equal(t, "int", split.Returns[0].CppExactType)
	assert.Equal(t, "int *", split.Returns[1].CppExactType)

	assert.Equal(t, msgOutputConst, notFound(ast, 2))
	assert.Equal(t, msgOutputNotPointer, notFound(ast, 3))
	assert.Equal(t, msgOutputOrder, notFound(ast, 4))
	assert.Equal(t, msgCopyMove, notFound(ast, 5))
}

func TestArityAndDefaults(t *testing.T) {
	decl := func(native string, n int, defaults ...int) string {
		var sb strings.Builder
		sb.WriteString("  - decltype: FUNC\n    func:\n      name: {native: " + native + ", cpp_name: WithDefaults}\n")
		if n > 0 {
			sb.WriteString("      params:\n")
		}
		for i := 0; i < n; i++ {
			typ := "int"
			if i == 2 {
				typ = "float"
			}
			def := ""
			for _, d := range defaults {
				if d == i {
					def = ", default_value: default"
				}
			}
			sb.WriteString("        - {name: {native: p" + string(rune('0'+i)) + "}, type: {lang_type: " + typ + "}" + def + "}\n")
		}
		sb.WriteString("      returns:\n        - {type: {lang_type: int}}\n")
		return sb.String()
	}
	src := decl("zero", 0) + decl("one", 1) + decl("two", 2, 1) + decl("three", 3, 1, 2) + decl("four", 4)
	ast, _, _ := run(t, src, Options{})

	assert.Equal(t, "Clif declares 0 parameters but C++ function ::WithDefaults requires 1.", notFound(ast, 0))
	assert.Empty(t, notFound(ast, 1))
	assert.Equal(t, 3, topFunc(ast, 1).CppNumParams)

	require.Empty(t, notFound(ast, 2))
	assert.Equal(t, "2", topFunc(ast, 2).Params[1].DefaultValue)

	require.Empty(t, notFound(ast, 3))
	three := topFunc(ast, 3)
	assert.Equal(t, "2", three.Params[1].DefaultValue)
	assert.Equal(t, "default", three.Params[2].DefaultValue)
	assert.Equal(t, "double", three.Params[2].Type.CppType)

	assert.Equal(t, "Clif declares 4 parameters but C++ function ::WithDefaults takes at most 3.", notFound(ast, 4))
}

func TestDefaultSpecifiers(t *testing.T) {
	ast, _, _ := run(t, `
  - decltype: FUNC
    func:
      name: {native: f, cpp_name: NoDefaults}
      params:
        - {name: {native: x}, type: {lang_type: int}, default_value: default}
  - decltype: FUNC
    func:
      name: {native: g, cpp_name: WithDefaults}
      params:
        - {name: {native: a}, type: {lang_type: int}, default_value: default}
        - {name: {native: b}, type: {lang_type: int}}
      returns:
        - {type: {lang_type: int}}
`, Options{})
	assert.Equal(t, msgUnexpectedDefault, notFound(ast, 0))
	assert.Equal(t, msgRequiredAfterDefault, notFound(ast, 1))
}

func TestOverloadSelection(t *testing.T) {
	ast, _, bag := run(t, `
  - decltype: FUNC
    func:
      name: {native: amb, cpp_name: Amb}
      params:
        - {name: {native: x}, type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: pick, cpp_name: Pick}
      params:
        - {name: {native: x}, type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: old, cpp_name: Old}
      params:
        - {name: {native: x}, type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: gone, cpp_name: Gone}
      params:
        - {name: {native: x}, type: {lang_type: int}}
`, Options{})

	msg := notFound(ast, 0)
	assert.Contains(t, msg, "ambiguous")
	assert.Contains(t, msg, "Amb(long)")
	assert.Contains(t, msg, "Amb(short)")

	require.Empty(t, notFound(ast, 1))
	assert.Equal(t, "short", topFunc(ast, 1).Params[0].CppExactType)
	assert.True(t, topFunc(ast, 1).IsOverloaded)

	require.Empty(t, notFound(ast, 2))
	assert.Equal(t, "C++ symbol \"Gone\" not found in the global namespace.\n    "+msgDeleted, notFound(ast, 3))

	var warnings, errs []diag.Diagnostic
	for _, d := range bag.Items() {
		switch d.Severity {
		case diag.SevWarning:
			warnings = append(warnings, d)
		case diag.SevError:
			errs = append(errs, d)
		}
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, diag.MatchDeprecatedTaken, warnings[0].Code)
	assert.Equal(t, "C++ function Old(int) is deprecated.", warnings[0].Message)
	require.Len(t, errs, 2)
	assert.Equal(t, diag.MatchAmbiguous, errs[0].Code)
	assert.Equal(t, diag.MatchNotFound, errs[1].Code)
}

func TestConversions(t *testing.T) {
	ast, _, _ := run(t, `
  - decltype: FUNC
    func:
      name: {native: implicit, cpp_name: TakeImplicit}
      params:
        - {name: {native: x}, type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: take_a, cpp_name: TakeA}
      params:
        - {name: {native: x}, type: {lang_type: B1, cpp_type: B1}}
  - decltype: FUNC
    func:
      name: {native: take_ptr, cpp_name: ns::TakeWidgetPtr}
      params:
        - {name: {native: x}, type: {lang_type: Widget, cpp_type: ns::Widget}}
  - decltype: FUNC
    func:
      name: {native: make_unique, cpp_name: MakeUnique}
      returns:
        - {type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: peek, cpp_name: Peek}
      returns:
        - {type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: grand, cpp_name: TakeGrand}
      params:
        - {name: {native: g}, type: {lang_type: Grand, cpp_type: Grand}}
        - {name: {native: pp}, type: {lang_type: GrandPtr, cpp_type: "Grand **"}}
`, Options{})

	for i := range ast.Decls {
		require.Empty(t, notFound(ast, i), "decl %d", i)
	}

	p := topFunc(ast, 0).Params[0].Type
	assert.True(t, p.CppNeedsImplicitConversion)
	assert.Equal(t, "::Implicit", p.CppType)

	assert.Equal(t, "::B1", topFunc(ast, 1).Params[0].Type.CppType)

	w := topFunc(ast, 2).Params[0].Type
	assert.True(t, w.CppRawPointer)
	assert.Equal(t, "::ns::Widget *", w.CppType)
	assert.Equal(t, "::ns::TakeWidgetPtr", topFunc(ast, 2).Name.CppName)

	assert.Contains(t, topFunc(ast, 3).Returns[0].Type.CppType, "unique_ptr<long long>")
	assert.Equal(t, "const int *", topFunc(ast, 4).Returns[0].Type.CppType)

	g := topFunc(ast, 5)
	assert.True(t, g.Params[0].Type.CppToptrConversion)
	assert.True(t, g.Params[0].Type.CppTouniqptrConversion)
	assert.True(t, g.Params[0].Type.CppCopyable)
	assert.False(t, g.Params[1].Type.CppToptrConversion)
	assert.False(t, g.Params[1].Type.CppTouniqptrConversion)
}

func TestExplicitTemplateStems(t *testing.T) {
	ast, _, _ := run(t, `
  - decltype: FUNC
    func:
      name: {native: take_composed, cpp_name: TakeComposed}
      params:
        - name: {native: c}
          type:
            lang_type: composed
            cpp_type: ComposedType
            params:
              - lang_type: composed
                cpp_type: ComposedType
                params:
                  - {lang_type: int}
  - decltype: FUNC
    func:
      name: {native: take_callbacks, cpp_name: TakeCallbacks}
      params:
        - name: {native: v}
          type:
            lang_type: callbacks
            cpp_type: example::Vector
            params:
              - lang_type: callable
                callable:
                  params:
                    - {name: {native: c}, type: {lang_type: child, cpp_type: child}}
                    - {name: {native: n}, type: {lang_type: int}}
`, Options{})

	require.Empty(t, notFound(ast, 0))
	composed := topFunc(ast, 0).Params[0].Type.CppType
	assert.Contains(t, composed, "ComposedType<")
	assert.Contains(t, composed, "ComposedType<int>")

	require.Empty(t, notFound(ast, 1))
	callbacks := topFunc(ast, 1).Params[0].Type.CppType
	assert.Contains(t, callbacks, "example::Vector<")
	assert.Contains(t, callbacks, "std::function<void (")
	assert.Contains(t, callbacks, "child, int)>")
}

func TestFunctionTemplates(t *testing.T) {
	ast, _, _ := run(t, `
  - decltype: FUNC
    func:
      name: {native: add, cpp_name: Add}
      params:
        - {name: {native: a}, type: {lang_type: int}}
        - {name: {native: b}, type: {lang_type: int}}
      returns:
        - {type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: make, cpp_name: Make}
      returns:
        - {type: {lang_type: int}}
  - decltype: FUNC
    func:
      name: {native: take0, cpp_name: Take}
  - decltype: FUNC
    func:
      name: {native: take2, cpp_name: Take}
      params:
        - {name: {native: a}, type: {lang_type: int}}
        - {name: {native: b}, type: {lang_type: int}}
`, Options{})

	require.Empty(t, notFound(ast, 0))
	add := topFunc(ast, 0)
	assert.Equal(t, "::Add", add.Name.CppName)
	assert.Equal(t, "int", add.Returns[0].Type.CppType)

	assert.Equal(t, msgNotDeduced, notFound(ast, 1))
	assert.Equal(t, msgTooFewArgs, notFound(ast, 2))
	assert.Equal(t, msgTooManyArgs, notFound(ast, 3))
}

const widgetClass = `
  - decltype: CLASS
    namespace_: ns
    class_:
      name: {native: Widget, cpp_name: Widget}
      members:
        - decltype: FUNC
          func:
            name: {native: __init__, cpp_name: Widget}
            constructor: true
            params:
              - {name: {native: n}, type: {lang_type: int}}
        - decltype: FUNC
          func:
            name: {native: resize, cpp_name: Resize}
            params:
              - {name: {native: w}, type: {lang_type: int}}
              - {name: {native: h}, type: {lang_type: int}}
        - decltype: FUNC
          func:
            name: {native: get, cpp_name: Get}
            returns:
              - {type: {lang_type: int}}
        - decltype: FUNC
          func:
            name: {native: create, cpp_name: Create}
            classmethod: true
            returns:
              - {type: {lang_type: Widget, cpp_type: Widget}}
        - decltype: FUNC
          func:
            name: {native: draw, cpp_name: Draw}
        - decltype: VAR
          var:
            name: {native: size, cpp_name: size}
            type: {lang_type: wide}
`

func TestClassMembers(t *testing.T) {
	ast, s, bag := run(t, widgetClass, Options{})
	cls := ast.Decl(ast.Decls[0])
	require.Empty(t, cls.NotFound)
	assert.Equal(t, Matched, s.State(ast.Decls[0]))
	assert.Equal(t, "::ns::Widget", cls.Class.Name.CppName)
	assert.True(t, cls.Class.CppAbstract)
	assert.True(t, cls.Class.IsCppPolymorphic)
	assert.False(t, cls.Class.CppHasDefCtor)

	members := ast.Members(ast.Decls[0])
	require.Len(t, members, 6)
	for _, m := range members {
		require.Empty(t, ast.Decl(m).NotFound, ast.Decl(m).Label())
	}

	ctor := ast.Decl(members[0]).Func
	assert.Equal(t, "::ns::Widget::Widget", ctor.Name.CppName)
	assert.Equal(t, "int", ctor.Params[0].CppExactType)

	resize := ast.Decl(members[1]).Func
	assert.Equal(t, "::ns::Widget::Resize", resize.Name.CppName)
	assert.False(t, resize.CppOpfunction)

	get := ast.Decl(members[2]).Func
	assert.False(t, get.CppConstMethod)
	assert.True(t, get.IsOverloaded)

	create := ast.Decl(members[3]).Func
	assert.Equal(t, "::ns::Widget *", create.Returns[0].Type.CppType)

	draw := ast.Decl(members[4]).Func
	assert.True(t, draw.Virtual)
	assert.True(t, draw.IsPureVirtual)
	assert.True(t, draw.CppNoexcept)

	size := ast.Decl(members[5]).Var
	assert.Equal(t, "::ns::Widget::size", size.Name.CppName)
	assert.Equal(t, "long", size.Type.CppType)

	assert.Zero(t, bag.Len())
}

func TestClassMemberFailures(t *testing.T) {
	ast, _, bag := run(t, `
  - decltype: CLASS
    namespace_: ns
    class_:
      name: {native: Widget, cpp_name: Widget}
      members:
        - decltype: FUNC
          func:
            name: {native: hidden, cpp_name: Hidden}
        - decltype: FUNC
          func:
            name: {native: create, cpp_name: Create}
            returns:
              - {type: {lang_type: Widget, cpp_type: Widget}}
  - decltype: CLASS
    class_:
      name: {native: Conv, cpp_name: Conv}
      members:
        - decltype: FUNC
          func:
            name: {native: __init__, cpp_name: Conv}
            constructor: true
            params:
              - {name: {native: n}, type: {lang_type: int}}
`, Options{})

	members := ast.Members(ast.Decls[0])
	hidden := ast.Decl(members[0]).NotFound
	assert.Equal(t, "C++ function ::ns::Widget::Hidden is not public.", hidden)
	assert.Contains(t, ast.Decl(members[1]).NotFound, "must be wrapped as a classmethod")

	summary := notFound(ast, 0)
	assert.True(t, strings.HasPrefix(summary, "2 member(s) of Widget not matched:"), summary)
	assert.Contains(t, summary, "FUNC Hidden: "+hidden)

	conv := ast.Decl(ast.Members(ast.Decls[1])[0]).NotFound
	assert.Contains(t, conv, "No C++ overload of \"Conv\" matches the Clif declaration:")
	assert.Contains(t, conv, msgExplicit)
	assert.Contains(t, conv, "non-const reference")

	var noted bool
	for _, d := range bag.Items() {
		if d.Message == hidden {
			require.Len(t, d.Notes, 1)
			assert.Equal(t, "member of CLASS Widget", d.Notes[0].Msg)
			noted = true
		}
		if d.Message == summary {
			assert.Equal(t, diag.MatchMemberSummary, d.Code)
		}
	}
	assert.True(t, noted)
}

func TestOperators(t *testing.T) {
	ast, _, _ := run(t, `
  - decltype: CLASS
    namespace_: ns
    class_:
      name: {native: Vec, cpp_name: Vec}
      members:
        - decltype: FUNC
          func:
            name: {native: __add__, cpp_name: operator+}
            params:
              - {name: {native: other}, type: {lang_type: Vec, cpp_type: Vec}}
            returns:
              - {type: {lang_type: Vec, cpp_type: Vec}}
        - decltype: FUNC
          func:
            name: {native: __mul__, cpp_name: operator*}
            params:
              - {name: {native: k}, type: {lang_type: int}}
            returns:
              - {type: {lang_type: Vec, cpp_type: Vec}}
        - decltype: FUNC
          func:
            name: {native: __eq__, cpp_name: operator==}
            cpp_opfunction: true
            params:
              - {name: {native: a}, type: {lang_type: Vec, cpp_type: Vec}}
              - {name: {native: b}, type: {lang_type: Vec, cpp_type: Vec}}
            returns:
              - {type: {lang_type: bool}}
`, Options{})

	require.Empty(t, notFound(ast, 0))
	members := ast.Members(ast.Decls[0])

	add := ast.Decl(members[0]).Func
	assert.Equal(t, "::ns::Vec::operator+", add.Name.CppName)
	assert.False(t, add.CppOpfunction)
	assert.True(t, add.CppConstMethod)

	mul := ast.Decl(members[1]).Func
	assert.Equal(t, "::ns::operator*", mul.Name.CppName)
	assert.True(t, mul.CppOpfunction)
	assert.Equal(t, 2, mul.CppNumParams)

	eq := ast.Decl(members[2]).Func
	assert.Equal(t, "::ns::operator==", eq.Name.CppName)
	assert.True(t, eq.CppOpfunction)
	assert.Equal(t, "bool", eq.Returns[0].Type.CppType)
}

func TestInheritance(t *testing.T) {
	ast, _, _ := run(t, `
  - decltype: CLASS
    class_:
      name: {native: D, cpp_name: D}
  - decltype: CLASS
    class_:
      name: {native: VD, cpp_name: VD}
      bases:
        - {native: VirtualBase1, cpp_name: VB1}
`, Options{})

	assert.Equal(t, msgDiamond, notFound(ast, 0))

	require.Empty(t, notFound(ast, 1))
	vd := ast.Decl(ast.Decls[1]).Class
	require.Len(t, vd.Bases, 3)
	assert.Equal(t, ir.Name{Native: "VirtualBase1", CppName: "::VB1"}, vd.Bases[0])
	assert.Equal(t, "::VB2", vd.Bases[1].CppName)
	assert.Equal(t, "::A", vd.Bases[2].CppName)
	assert.Empty(t, vd.Bases[2].Native)
	assert.True(t, vd.IsCppPolymorphic)
}

func TestEnums(t *testing.T) {
	ast, _, _ := run(t, `
  - decltype: ENUM
    namespace_: ns
    enum:
      name: {native: Color, cpp_name: Color}
      members:
        - {native: GREEN, cpp_name: kGreen}
  - decltype: ENUM
    namespace_: ns
    enum:
      name: {native: Plain, cpp_name: Plain}
  - decltype: ENUM
    namespace_: ns
    enum:
      name: {native: Color2, cpp_name: Color}
      members:
        - {native: PURPLE, cpp_name: kPurple}
`, Options{})

	require.Empty(t, notFound(ast, 0))
	color := ast.Decl(ast.Decls[0]).Enum
	assert.Equal(t, "::ns::Color", color.Name.CppName)
	assert.True(t, color.EnumClass)
	assert.Equal(t, []ir.Name{
		{Native: "GREEN", CppName: "::ns::Color::kGreen"},
		{Native: "kRed", CppName: "::ns::Color::kRed"},
		{Native: "kBlue", CppName: "::ns::Color::kBlue"},
	}, color.Members)

	require.Empty(t, notFound(ast, 1))
	plain := ast.Decl(ast.Decls[1]).Enum
	assert.False(t, plain.EnumClass)
	assert.Equal(t, []ir.Name{
		{Native: "kOne", CppName: "::ns::kOne"},
		{Native: "kTwo", CppName: "::ns::kTwo"},
	}, plain.Members)

	assert.Equal(t, "Extra enumerators in Clif enum declaration Color.  C++ enum ns::Color does not contain enumerator(s): kPurple", notFound(ast, 2))
}

func TestVariablesAndConstants(t *testing.T) {
	ast, _, _ := run(t, `
  - decltype: VAR
    var:
      name: {native: counter, cpp_name: counter}
      type: {lang_type: wide}
  - decltype: CONST
    const:
      name: {native: ANSWER, cpp_name: kAnswer}
      type: {lang_type: wide}
  - decltype: CONST
    const:
      name: {native: SIMPLE, cpp_name: simple}
      type: {lang_type: int}
  - decltype: CONST
    const:
      name: {native: ONE, cpp_name: ns::kOne}
      type: {lang_type: Plain, cpp_type: ns::Plain}
  - decltype: VAR
    var:
      name: {native: missing, cpp_name: NoSuchVar}
      type: {lang_type: int}
  - decltype: VAR
    var:
      name: {native: f, cpp_name: FuncReturnsVoid}
      type: {lang_type: int}
`, Options{})

	require.Empty(t, notFound(ast, 0))
	counter := ast.Decl(ast.Decls[0]).Var
	assert.Equal(t, "::counter", counter.Name.CppName)
	assert.Equal(t, "long", counter.Type.CppType)

	require.Empty(t, notFound(ast, 1))
	assert.Equal(t, "int", ast.Decl(ast.Decls[1]).Const.Type.CppType)

	assert.Equal(t, "Clif expects a constant, but C++ variable ::simple is not const.", notFound(ast, 2))

	require.Empty(t, notFound(ast, 3))
	assert.Equal(t, "::ns::kOne", ast.Decl(ast.Decls[3]).Const.Name.CppName)

	assert.Equal(t, "C++ symbol \"NoSuchVar\" not found.", notFound(ast, 4))
	assert.Equal(t, "Clif expects a variable, but name matched \"FuncReturnsVoid\" which is a C++ function.", notFound(ast, 5))
}

func TestClassTemplateInstance(t *testing.T) {
	ast, _, _ := run(t, `
  - decltype: CLASS
    namespace_: ns
    class_:
      name: {native: IntBox, cpp_name: Box<int>}
      members:
        - decltype: FUNC
          func:
            name: {native: get, cpp_name: Get}
            returns:
              - {type: {lang_type: int}}
        - decltype: VAR
          var:
            name: {native: value, cpp_name: value}
            type: {lang_type: int}
`, Options{})

	require.Empty(t, notFound(ast, 0))
	assert.Contains(t, ast.Decl(ast.Decls[0]).Class.Name.CppName, "Box<int>")
	get := ast.Decl(ast.Members(ast.Decls[0])[0]).Func
	assert.True(t, get.CppConstMethod)
	assert.Equal(t, "int", get.Returns[0].Type.CppType)
}

func TestFileScoping(t *testing.T) {
	src := `
  - decltype: FUNC
    cpp_file: test/matcher.h
    func:
      name: {native: elsewhere, cpp_name: Elsewhere}
  - decltype: FUNC
    cpp_file: test/matcher.h
    func:
      name: {native: helper, cpp_name: Helper}
      params:
        - {name: {native: x}, type: {lang_type: int}}
      returns:
        - {type: {lang_type: int}}
  - decltype: CLASS
    cpp_file: test/matcher.h
    class_:
      name: {native: Remote, cpp_name: Remote}
      members:
        - decltype: FUNC
          func:
            name: {native: ping, cpp_name: Ping}
        - decltype: CLASS
          class_:
            name: {native: Inner, cpp_name: Inner}
            members:
              - decltype: VAR
                var:
                  name: {native: n, cpp_name: n}
                  type: {lang_type: int}
  - decltype: FUNC
    cpp_file: matcher.h
    func:
      name: {native: f, cpp_name: FuncReturnsVoid}
      params:
        - {name: {native: x}, type: {lang_type: int}}
`
	ast, s, bag := run(t, src, Options{})
	assert.Equal(t, "Clif expects it in the file test/matcher.h but found it at test/other.h:3", notFound(ast, 0))
	assert.Equal(t, "Clif expects it in the file test/matcher.h but found it at test/aux.h:2", notFound(ast, 1))
	assert.Equal(t, "Clif expects it in the file test/matcher.h but found it at test/other.h:5", notFound(ast, 2))
	for i := 0; i < 3; i++ {
		assert.Equal(t, diag.MatchWrongFile, s.codes[ast.Decls[i]], "decl %d", i)
	}
	assert.Empty(t, notFound(ast, 3))

	// members of the misplaced class are never tried
	remote := ast.Members(ast.Decls[2])
	require.Len(t, remote, 2)
	assert.Equal(t, "Enclosing class Remote was not matched.", ast.Decl(remote[0]).NotFound)
	assert.Equal(t, NotFound, s.State(remote[0]))
	assert.Equal(t, "Enclosing class Remote was not matched.", ast.Decl(remote[1]).NotFound)
	inner := ast.Members(remote[1])
	require.Len(t, inner, 1)
	assert.Equal(t, "Enclosing class Inner was not matched.", ast.Decl(inner[0]).NotFound)
	assert.Equal(t, 3, bag.Len())

	ast, _, _ = run(t, src, Options{AuxFiles: []string{"test/aux.h"}})
	assert.Equal(t, "Clif expects it in one of the files {test/matcher.h, test/aux.h} but found it at test/other.h:3", notFound(ast, 0))
	assert.Empty(t, notFound(ast, 1))
}

func TestMatchFile(t *testing.T) {
	files := []string{"a/b.h", "c.h"}
	assert.Equal(t, 0, matchFile("a/b.h", files))
	assert.Equal(t, 0, matchFile("/src/a/b.h", files))
	assert.Equal(t, 1, matchFile("x/c.h", files))
	assert.Equal(t, -1, matchFile("xc.h", files))
	assert.Equal(t, -1, matchFile("b.h", []string{" "}))
}

func TestIsLiteral(t *testing.T) {
	for _, s := range []string{"0", "-1", "2.0", "1e3", "0x1F", "10u", "true", "nullptr", `"text"`} {
		assert.True(t, isLiteral(s), s)
	}
	for _, s := range []string{"", "kScale", "Foo()", "-", "a"} {
		assert.False(t, isLiteral(s), s)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	src := widgetClass + `
  - decltype: ENUM
    namespace_: ns
    enum:
      name: {native: Color, cpp_name: Color}
      members:
        - {native: GREEN, cpp_name: kGreen}
  - decltype: FUNC
    func:
      name: {native: old, cpp_name: Old}
      params:
        - {name: {native: x}, type: {lang_type: int}}
  - decltype: FUNC
    namespace_: ns
    func:
      name: {native: take_ptr, cpp_name: TakeWidgetPtr}
      params:
        - {name: {native: x}, type: {lang_type: Widget, cpp_type: Widget}}
`

	ast, s, bag := newSession(t, src, Options{})
	ctx := context.Background()
	require.NoError(t, s.Run(ctx))
	var first bytes.Buffer
	require.NoError(t, ir.Encode(&first, ast, ir.FormatYAML))
	firstDiags := bag.Len()

	require.NoError(t, s.Run(ctx))
	var second bytes.Buffer
	require.NoError(t, ir.Encode(&second, ast, ir.FormatYAML))
	assert.Equal(t, first.String(), second.String())
	assert.Equal(t, 2*firstDiags, bag.Len())
	assert.True(t, ast.Decl(ast.Decls[3]).Func.Params[0].Type.CppRawPointer)
}

// rematch feeds an encoded result to a fresh session and returns both
// encodings.
func rematch(t *testing.T, ast *ir.AST) (string, string, *ir.AST) {
	t.Helper()
	var first bytes.Buffer
	require.NoError(t, ir.Encode(&first, ast, ir.FormatYAML))
	again, err := ir.Decode(strings.NewReader(first.String()), ir.FormatYAML)
	require.NoError(t, err)
	db, err := headerdb.LoadFile("testdata/headers.yaml")
	require.NoError(t, err)
	require.NoError(t, NewSession(again, headerdb.NewOracle(db), Options{}).Run(context.Background()))
	var second bytes.Buffer
	require.NoError(t, ir.Encode(&second, again, ir.FormatYAML))
	return first.String(), second.String(), again
}

func TestMatchedOutputRematches(t *testing.T) {
	ast, _, _ := run(t, widgetClass+`
  - decltype: CLASS
    namespace_: ns
    class_:
      name: {native: Vec, cpp_name: Vec}
      members:
        - decltype: FUNC
          func:
            name: {native: __add__, cpp_name: operator+}
            params:
              - {name: {native: other}, type: {lang_type: Vec, cpp_type: Vec}}
            returns:
              - {type: {lang_type: Vec, cpp_type: Vec}}
        - decltype: FUNC
          func:
            name: {native: __mul__, cpp_name: operator*}
            params:
              - {name: {native: k}, type: {lang_type: int}}
            returns:
              - {type: {lang_type: Vec, cpp_type: Vec}}
        - decltype: FUNC
          func:
            name: {native: __eq__, cpp_name: operator==}
            cpp_opfunction: true
            params:
              - {name: {native: a}, type: {lang_type: Vec, cpp_type: Vec}}
              - {name: {native: b}, type: {lang_type: Vec, cpp_type: Vec}}
            returns:
              - {type: {lang_type: bool}}
  - decltype: FUNC
    func:
      name: {native: take_composed, cpp_name: TakeComposed}
      params:
        - name: {native: c}
          type:
            lang_type: composed
            cpp_type: ComposedType
            params:
              - lang_type: composed
                cpp_type: ComposedType
                params:
                  - {lang_type: int}
`, Options{})
	for i := range ast.Decls {
		require.Empty(t, notFound(ast, i), "decl %d", i)
	}

	first, second, again := rematch(t, ast)
	assert.Equal(t, first, second)

	for i := range again.Decls {
		require.Empty(t, notFound(again, i), "decl %d", i)
	}
	vec := again.Members(again.Decls[1])
	assert.False(t, again.Decl(vec[0]).Func.CppOpfunction)
	mul := again.Decl(vec[1]).Func
	assert.True(t, mul.CppOpfunction)
	assert.Equal(t, "::ns::operator*", mul.Name.CppName)
	assert.True(t, again.Decl(vec[2]).Func.CppOpfunction)

	widget := again.Members(again.Decls[0])
	create := again.Decl(widget[3]).Func.Returns[0].Type
	assert.True(t, create.CppRawPointer)
	assert.True(t, create.CppAbstract)
	assert.False(t, create.CppHasDefCtor)
	assert.Equal(t, "::ns::Widget *", create.CppType)
}

func TestRunIsDeterministic(t *testing.T) {
	encode := func() string {
		ast, _, _ := run(t, widgetClass, Options{})
		var buf bytes.Buffer
		require.NoError(t, ir.Encode(&buf, ast, ir.FormatYAML))
		return buf.String()
	}
	assert.Equal(t, encode(), encode())
}

func TestFatalOnMissingHeader(t *testing.T) {
	src := strings.Replace(prelude, "headers: [test/matcher.h]", "headers: [test/missing.h]", 1) + `
  - decltype: FUNC
    func:
      name: {native: f, cpp_name: FuncReturnsVoid}
`
	ast, err := ir.Decode(strings.NewReader(src), ir.FormatYAML)
	require.NoError(t, err)
	db, err := headerdb.LoadFile("testdata/headers.yaml")
	require.NoError(t, err)
	bag := diag.NewBag(0)
	s := NewSession(ast, headerdb.NewOracle(db), Options{Reporter: diag.BagReporter{Bag: bag}})

	err = s.Run(context.Background())
	var fatal *FatalError
	require.True(t, errors.As(err, &fatal))
	require.NotEmpty(t, fatal.Diagnostics)
	assert.Equal(t, oracle.SevFatal, fatal.Diagnostics[0].Severity)
	assert.Contains(t, fatal.Error(), "test/missing.h")
	assert.True(t, bag.HasFatal())
	assert.Equal(t, diag.OracleFatal, bag.Items()[0].Code)

	// the session stays failed without recompiling
	var again *FatalError
	require.True(t, errors.As(s.Run(context.Background()), &again))
	assert.Same(t, fatal, again)
}

func TestCanceledRun(t *testing.T) {
	_, s, _ := newSession(t, widgetClass, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
}

// rejectingOracle reports an error on every unit line spelled exactly
// spelling, the way a front end rejects a typedef the model still reads.
type rejectingOracle struct {
	oracle.Oracle
	spelling string
}

func (o rejectingOracle) Compile(ctx context.Context, source string, includePaths []string) (oracle.Unit, []oracle.Diagnostic, error) {
	u, diags, err := o.Oracle.Compile(ctx, source, includePaths)
	for i, line := range strings.Split(source, "\n") {
		if strings.TrimSpace(line) == o.spelling {
			diags = append(diags, oracle.Diagnostic{
				Severity: oracle.SevError,
				File:     headerdb.SourceName,
				Line:     i + 1,
				Message:  "incomplete type 'Rejected' used here",
			})
		}
	}
	return u, diags, err
}

func TestFrontEndErrorsRejectReadableTypedefs(t *testing.T) {
	ast, err := ir.Decode(strings.NewReader(prelude+`
  - decltype: FUNC
    func:
      name: {native: f, cpp_name: FuncReturnsVoid}
      params:
        - {name: {native: x}, type: {lang_type: int}}
`), ir.FormatYAML)
	require.NoError(t, err)
	db, err := headerdb.LoadFile("testdata/headers.yaml")
	require.NoError(t, err)

	s := NewSession(ast, rejectingOracle{Oracle: headerdb.NewOracle(db), spelling: "int"}, Options{})
	require.NoError(t, s.Run(context.Background()))

	assert.Contains(t, notFound(ast, 0), "incomplete type 'Rejected' used here")

	// the same declaration matches when the front end is silent
	again, _, _ := run(t, `
  - decltype: FUNC
    func:
      name: {native: f, cpp_name: FuncReturnsVoid}
      params:
        - {name: {native: x}, type: {lang_type: int}}
`, Options{})
	assert.Empty(t, notFound(again, 0))
}
