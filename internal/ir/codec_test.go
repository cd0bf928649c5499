package ir

import (
	"bytes"
	"strings"
	"testing"
)

const sampleIR = `
source: sample.clif
headers: [test.h, other.h]
typemaps:
  - lang_type: int
    cpp_type: [int, long]
decls:
  - decltype: CLASS
    line: 3
    cpp_file: test.h
    class_:
      name: {native: Klass, cpp_name: aClass}
      members:
        - decltype: FUNC
          func:
            name: {native: method, cpp_name: Method}
            params:
              - name: {native: x}
                type: {lang_type: int}
        - decltype: VAR
          var:
            name: {native: a, cpp_name: a}
            type: {lang_type: int}
  - decltype: ENUM
    namespace_: Namespace
    enum:
      name: {native: E, cpp_name: anEnum}
      members:
        - {native: a, cpp_name: a}
`

func TestDecodeFlattensMembers(t *testing.T) {
	ast, err := Decode(strings.NewReader(sampleIR), FormatYAML)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := len(ast.Decls); got != 2 {
		t.Fatalf("expected 2 top-level decls, got %d", got)
	}
	if ast.Len() != 4 {
		t.Fatalf("expected 4 arena entries, got %d", ast.Len())
	}
	cls := ast.Decl(ast.Decls[0])
	if cls.Kind != DeclClass || cls.Class.Name.CppName != "aClass" {
		t.Fatalf("unexpected first decl %+v", cls)
	}
	members := ast.Members(ast.Decls[0])
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	for _, m := range members {
		if ast.Decl(m).Parent != ast.Decls[0] {
			t.Fatalf("member %d has wrong parent", m)
		}
	}
	enum := ast.Decl(ast.Decls[1])
	if enum.Namespace != "Namespace" {
		t.Fatalf("namespace hint lost: %q", enum.Namespace)
	}
	if len(ast.Typemaps) != 1 || len(ast.Typemaps[0].CppType) != 2 {
		t.Fatalf("typemaps not decoded: %+v", ast.Typemaps)
	}
}

func TestWalkOrder(t *testing.T) {
	ast, err := Decode(strings.NewReader(sampleIR), FormatYAML)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var labels []string
	ast.Walk(func(_ DeclID, d *Decl) bool {
		labels = append(labels, d.Label())
		return true
	})
	want := []string{"CLASS aClass", "FUNC Method", "VAR a", "ENUM anEnum"}
	if strings.Join(labels, "|") != strings.Join(want, "|") {
		t.Fatalf("walk order = %v, want %v", labels, want)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	src := "decls:\n  - decltype: FUNC\n    func:\n      name: {cpp_name: f}\n      bogus: true\n"
	if _, err := Decode(strings.NewReader(src), FormatYAML); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestDecodeRejectsBadDecltype(t *testing.T) {
	src := "decls:\n  - decltype: MODULE\n"
	_, err := Decode(strings.NewReader(src), FormatYAML)
	if err == nil || !strings.Contains(err.Error(), "unknown decltype") {
		t.Fatalf("expected decltype error, got %v", err)
	}
}

func TestDecodeRejectsMissingBody(t *testing.T) {
	src := "decls:\n  - decltype: CLASS\n"
	if _, err := Decode(strings.NewReader(src), FormatYAML); err == nil {
		t.Fatalf("expected missing body error")
	}
}

func TestDecodeNormalizesNames(t *testing.T) {
	// "e" followed by a combining acute accent.
	src := "decls:\n  - decltype: FUNC\n    func:\n      name: {native: \"cafe\\u0301\", cpp_name: f}\n"
	ast, err := Decode(strings.NewReader(src), FormatYAML)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := ast.Decl(ast.Decls[0]).Func.Name.Native; got != "caf\u00e9" {
		t.Fatalf("native name not NFC: %q", got)
	}
}

func TestMsgpackKeepsDecorations(t *testing.T) {
	ast, err := Decode(strings.NewReader(sampleIR), FormatYAML)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cls := ast.Decl(ast.Decls[0])
	cls.Class.Name.CppName = "::aClass"
	cls.Class.CppCopyable = true
	fn := ast.Decl(ast.Members(ast.Decls[0])[0]).Func
	fn.MangledName = "_ZN6aClass6MethodEi"
	fn.Params[0].Type.CppType = "int"
	ast.Decl(ast.Decls[1]).NotFound = "missing"

	var buf bytes.Buffer
	if err := Encode(&buf, ast, FormatMsgpack); err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := Decode(&buf, FormatMsgpack)
	if err != nil {
		t.Fatalf("decode msgpack: %v", err)
	}
	bc := back.Decl(back.Decls[0])
	if bc.Class.Name.CppName != "::aClass" || !bc.Class.CppCopyable {
		t.Fatalf("class decorations lost: %+v", bc.Class)
	}
	bf := back.Decl(back.Members(back.Decls[0])[0]).Func
	if bf.MangledName != fn.MangledName || bf.Params[0].Type.CppType != "int" {
		t.Fatalf("func decorations lost: %+v", bf)
	}
	if back.Decl(back.Decls[1]).NotFound != "missing" {
		t.Fatalf("not_found lost")
	}
}

func TestFormatForPath(t *testing.T) {
	if FormatForPath("a/b.msgpack") != FormatMsgpack {
		t.Fatalf("msgpack extension not detected")
	}
	if FormatForPath("a/b.yaml") != FormatYAML {
		t.Fatalf("yaml extension not detected")
	}
}
