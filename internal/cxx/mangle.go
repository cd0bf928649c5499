package cxx

import (
	"strconv"
	"strings"
)

var operatorCodes = map[string]string{
	"new": "nw", "new[]": "na", "delete": "dl", "delete[]": "da",
	"+": "pl", "-": "mi", "*": "ml", "/": "dv", "%": "rm",
	"&": "an", "|": "or", "^": "eo", "~": "co", "!": "nt",
	"=": "aS", "<": "lt", ">": "gt", "+=": "pL", "-=": "mI",
	"*=": "mL", "/=": "dV", "%=": "rM", "&=": "aN", "|=": "oR",
	"^=": "eO", "<<": "ls", ">>": "rs", "<<=": "lS", ">>=": "rS",
	"==": "eq", "!=": "ne", "<=": "le", ">=": "ge", "<=>": "ss",
	"&&": "aa", "||": "oo", "++": "pp", "--": "mm", ",": "cm",
	"->*": "pm", "->": "pt", "()": "cl", "[]": "ix",
}

// Mangle returns an Itanium-style mangled name for a function entity.
// Substitution compression is not applied, so names are longer than the
// ones a compiler emits but stable per overload.
func Mangle(e *Entity) string {
	if e == nil || e.Func == nil {
		return ""
	}
	if e.Func.Mangled != "" {
		return e.Func.Mangled
	}
	var sb strings.Builder
	sb.WriteString("_Z")
	var scopes []*Entity
	for cur := e.Parent; cur != nil && !cur.IsGlobal(); cur = cur.Parent {
		if cur.Kind == EntityNamespace && cur.Name == "" {
			continue
		}
		scopes = append(scopes, cur)
	}
	nested := len(scopes) > 0
	if nested {
		sb.WriteByte('N')
		if e.Func.Const {
			sb.WriteByte('K')
		}
		for i := len(scopes) - 1; i >= 0; i-- {
			s := scopes[i]
			writeSourceName(&sb, s.Name)
			if s.Record != nil && len(s.Record.TemplateArgs) > 0 {
				writeTemplateArgs(&sb, s.Record.TemplateArgs)
			}
		}
	}
	writeUnqualifiedName(&sb, e)
	if len(e.Func.TemplateArgs) > 0 {
		writeTemplateArgs(&sb, e.Func.TemplateArgs)
	}
	if nested {
		sb.WriteByte('E')
	}
	if len(e.Func.TemplateArgs) > 0 && e.Func.Result != nil {
		writeType(&sb, e.Func.Result)
	}
	if len(e.Func.Params) == 0 && !e.Func.Variadic {
		sb.WriteByte('v')
	}
	for _, p := range e.Func.Params {
		writeType(&sb, p.Type.Unqualified())
	}
	if e.Func.Variadic {
		sb.WriteByte('z')
	}
	return sb.String()
}

func writeSourceName(sb *strings.Builder, name string) {
	sb.WriteString(strconv.Itoa(len(name)))
	sb.WriteString(name)
}

func writeUnqualifiedName(sb *strings.Builder, e *Entity) {
	switch {
	case e.Func.Ctor != CtorNone:
		sb.WriteString("C1")
	case e.Func.Dtor:
		sb.WriteString("D1")
	case e.Func.Conversion:
		sb.WriteString("cv")
		writeType(sb, e.Func.Result)
	case strings.HasPrefix(e.Name, "operator"):
		op := strings.TrimSpace(strings.TrimPrefix(e.Name, "operator"))
		if code, ok := operatorCodes[op]; ok {
			sb.WriteString(code)
			return
		}
		writeSourceName(sb, e.Name)
	default:
		writeSourceName(sb, e.Name)
	}
}

func writeTemplateArgs(sb *strings.Builder, args []Arg) {
	sb.WriteByte('I')
	for _, a := range args {
		if a.Type != nil {
			writeType(sb, a.Type)
			continue
		}
		switch a.Value {
		case "true":
			sb.WriteString("Lb1E")
		case "false":
			sb.WriteString("Lb0E")
		default:
			sb.WriteString("Li")
			sb.WriteString(strings.Replace(a.Value, "-", "n", 1))
			sb.WriteByte('E')
		}
	}
	sb.WriteByte('E')
}

func writeType(sb *strings.Builder, t *Type) {
	if t == nil {
		sb.WriteByte('v')
		return
	}
	switch t.Kind {
	case KindPointer:
		sb.WriteByte('P')
		writeQualified(sb, t.Elem)
		return
	case KindLValueRef:
		sb.WriteByte('R')
		writeQualified(sb, t.Elem)
		return
	case KindRValueRef:
		sb.WriteByte('O')
		writeQualified(sb, t.Elem)
		return
	case KindFunction:
		sb.WriteByte('F')
		writeType(sb, t.Result)
		if len(t.Params) == 0 {
			sb.WriteByte('v')
		}
		for _, p := range t.Params {
			writeType(sb, p.Unqualified())
		}
		sb.WriteByte('E')
		return
	case KindBuiltin:
		if code, ok := builtinMangling[t.Name]; ok {
			sb.WriteString(code)
			return
		}
		writeSourceName(sb, t.Name)
		return
	}
	parts := SplitQualified(t.Name)
	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
	}
	if len(parts) > 1 {
		sb.WriteByte('N')
	}
	for _, part := range parts {
		writeSourceName(sb, part)
	}
	if len(t.Args) > 0 {
		writeTemplateArgs(sb, t.Args)
	}
	if len(parts) > 1 {
		sb.WriteByte('E')
	}
}

func writeQualified(sb *strings.Builder, t *Type) {
	if t == nil {
		sb.WriteByte('v')
		return
	}
	if t.Volatile {
		sb.WriteByte('V')
	}
	if t.Const {
		sb.WriteByte('K')
	}
	writeType(sb, t)
}
