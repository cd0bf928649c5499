package cxx

import "testing"

func TestParseTypeRoundTrip(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"int", "int"},
		{"unsigned", "unsigned int"},
		{"long int", "long"},
		{"unsigned long long int", "unsigned long long"},
		{"signed char", "signed char"},
		{"long double", "long double"},
		{"int const", "const int"},
		{"const int *", "const int *"},
		{"int *const", "int *const"},
		{"const ::ns::C &", "const ::ns::C &"},
		{"ns::C&&", "ns::C &&"},
		{"std::unique_ptr<long long>", "std::unique_ptr<long long>"},
		{"ComposedType<ComposedType<int>>", "ComposedType<ComposedType<int>>"},
		{"std::array<int, 3>", "std::array<int, 3>"},
		{"std::function<void (child, int)>", "std::function<void (child, int)>"},
		{"int (*)(int, double)", "int (*)(int, double)"},
		{"struct Foo *", "Foo *"},
		{"outer<int>::inner", "outer<int>::inner"},
		{"char[4]", "char *"},
	}
	for _, tc := range cases {
		got, err := ParseType(tc.in)
		if err != nil {
			t.Fatalf("ParseType(%q): %v", tc.in, err)
		}
		if s := got.String(); s != tc.want {
			t.Errorf("ParseType(%q) = %q, want %q", tc.in, s, tc.want)
		}
	}
}

func TestParseTypeErrors(t *testing.T) {
	for _, in := range []string{"", "int int", "unsigned double", "C<int", "decltype(x)", "int @"} {
		if _, err := ParseType(in); err == nil {
			t.Errorf("ParseType(%q): expected error", in)
		}
	}
}

func TestParseFunctionType(t *testing.T) {
	fn, quals, err := ParseFunctionType("int (const char *, int) const noexcept")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !quals.Const || !quals.Noexcept {
		t.Fatalf("qualifiers lost: %+v", quals)
	}
	if len(fn.Params) != 2 || fn.Result.Name != "int" {
		t.Fatalf("unexpected function %s", fn)
	}
	if fn.Params[0].String() != "const char *" {
		t.Fatalf("param 0 = %s", fn.Params[0])
	}

	fn, quals, err = ParseFunctionType("void (void)")
	if err != nil {
		t.Fatalf("parse void: %v", err)
	}
	if len(fn.Params) != 0 || quals.Const {
		t.Fatalf("void parameter list should be empty: %s", fn)
	}

	if _, _, err := ParseFunctionType("int"); err == nil {
		t.Fatalf("expected error for non-function spelling")
	}
}

func TestNestedFunctionQualsDoNotLeak(t *testing.T) {
	_, quals, err := ParseFunctionType("void (int (*)(int) noexcept)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if quals.Noexcept {
		t.Fatalf("inner noexcept leaked to the outer function")
	}
}

func TestIdenticalIgnoresAlias(t *testing.T) {
	a := &Type{Kind: KindRecord, Name: "::C", Alias: "::CAlias"}
	b := &Type{Kind: KindRecord, Name: "::C"}
	if !Identical(a, b) {
		t.Fatalf("alias should not affect identity")
	}
	if Identical(a, b.WithConst(true)) {
		t.Fatalf("const must affect identity")
	}
	if Identical(PointerTo(Builtin("int")), PointerTo(Builtin("long"))) {
		t.Fatalf("int * and long * are different")
	}
}

func TestSplitQualified(t *testing.T) {
	cases := map[string][]string{
		"a::b":             {"a", "b"},
		"::a::b":           {"", "a", "b"},
		"a<c::d>::e":       {"a<c::d>", "e"},
		"ns::operator<<":   {"ns", "operator<<"},
		"C::operator()":    {"C", "operator()"},
		"plain":            {"plain"},
		"a::operator bool": {"a", "operator bool"},
	}
	for in, want := range cases {
		got := SplitQualified(in)
		if len(got) != len(want) {
			t.Fatalf("SplitQualified(%q) = %q, want %q", in, got, want)
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("SplitQualified(%q) = %q, want %q", in, got, want)
			}
		}
	}
}
