package ir

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Format selects the serialized form of an IR document.
type Format uint8

const (
	FormatYAML Format = iota
	FormatMsgpack
)

// FormatForPath picks a format from the file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk", ".ir":
		return FormatMsgpack
	default:
		return FormatYAML
	}
}

type document struct {
	Source   string     `yaml:"source,omitempty" msgpack:"source,omitempty"`
	Headers  []string   `yaml:"headers,omitempty" msgpack:"headers,omitempty"`
	Typemaps []Typemap  `yaml:"typemaps,omitempty" msgpack:"typemaps,omitempty"`
	Decls    []*declDoc `yaml:"decls" msgpack:"decls"`
}

type declDoc struct {
	Decltype  string    `yaml:"decltype" msgpack:"decltype"`
	Line      int       `yaml:"line,omitempty" msgpack:"line,omitempty"`
	CppFile   string    `yaml:"cpp_file,omitempty" msgpack:"cpp_file,omitempty"`
	Namespace string    `yaml:"namespace_,omitempty" msgpack:"namespace_,omitempty"`
	NotFound  string    `yaml:"not_found,omitempty" msgpack:"not_found,omitempty"`
	Class     *classDoc `yaml:"class_,omitempty" msgpack:"class_,omitempty"`
	Enum      *Enum     `yaml:"enum,omitempty" msgpack:"enum,omitempty"`
	Var       *Var      `yaml:"var,omitempty" msgpack:"var,omitempty"`
	Const     *Const    `yaml:"const,omitempty" msgpack:"const,omitempty"`
	Func      *Func     `yaml:"func,omitempty" msgpack:"func,omitempty"`
	Fdecl     *Fdecl    `yaml:"fdecl,omitempty" msgpack:"fdecl,omitempty"`
}

type classDoc struct {
	Class   `yaml:",inline" msgpack:",inline"`
	Members []*declDoc `yaml:"members,omitempty" msgpack:"members,omitempty"`
}

// LoadFile reads an IR document, choosing the codec by extension.
func LoadFile(path string) (*AST, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ast, err := Decode(bytes.NewReader(data), FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if ast.Source == "" {
		ast.Source = path
	}
	return ast, nil
}

// Decode reads one IR document and flattens it into an arena.
func Decode(r io.Reader, format Format) (*AST, error) {
	var doc document
	switch format {
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode msgpack IR: %w", err)
		}
	default:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("empty IR document")
			}
			return nil, fmt.Errorf("decode yaml IR: %w", err)
		}
	}
	return fromDocument(&doc)
}

// Encode writes the AST in the requested format.
func Encode(w io.Writer, ast *AST, format Format) error {
	doc := toDocument(ast)
	switch format {
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetSortMapKeys(true)
		return enc.Encode(doc)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
}

func fromDocument(doc *document) (*AST, error) {
	ast := NewAST()
	ast.Source = doc.Source
	for _, h := range doc.Headers {
		ast.Headers = append(ast.Headers, nfc(h))
	}
	for _, tm := range doc.Typemaps {
		tm.LangType = nfc(tm.LangType)
		for i := range tm.CppType {
			tm.CppType[i] = nfc(tm.CppType[i])
		}
		ast.Typemaps = append(ast.Typemaps, tm)
	}
	for i, dd := range doc.Decls {
		if _, err := addDecl(ast, NoDeclID, dd); err != nil {
			return nil, fmt.Errorf("decl %d: %w", i, err)
		}
	}
	return ast, nil
}

func addDecl(ast *AST, parent DeclID, dd *declDoc) (DeclID, error) {
	if dd == nil {
		return NoDeclID, errors.New("null declaration")
	}
	kind, ok := ParseDeclKind(dd.Decltype)
	if !ok {
		return NoDeclID, fmt.Errorf("unknown decltype %q", dd.Decltype)
	}
	d := &Decl{
		Kind:      kind,
		Line:      dd.Line,
		CppFile:   dd.CppFile,
		Namespace: nfc(dd.Namespace),
		NotFound:  dd.NotFound,
	}
	var members []*declDoc
	switch kind {
	case DeclClass:
		if dd.Class == nil {
			return NoDeclID, errors.New("CLASS without class_ body")
		}
		c := dd.Class.Class
		c.Members = nil
		d.Class = &c
		members = dd.Class.Members
	case DeclEnum:
		d.Enum = dd.Enum
	case DeclVar:
		d.Var = dd.Var
	case DeclConst:
		d.Const = dd.Const
	case DeclFunc:
		d.Func = dd.Func
	case DeclType:
		d.Fdecl = dd.Fdecl
	}
	if d.Name() == nil {
		return NoDeclID, fmt.Errorf("%s without %s body", kind, strings.ToLower(kind.String()))
	}
	normalizeDecl(d)

	var id DeclID
	if parent.IsValid() {
		id = ast.AddMember(parent, d)
	} else {
		id = ast.Add(d)
	}
	for i, m := range members {
		if _, err := addDecl(ast, id, m); err != nil {
			return NoDeclID, fmt.Errorf("member %d: %w", i, err)
		}
	}
	return id, nil
}

func toDocument(ast *AST) *document {
	doc := &document{
		Source:   ast.Source,
		Headers:  ast.Headers,
		Typemaps: ast.Typemaps,
	}
	for _, id := range ast.Decls {
		doc.Decls = append(doc.Decls, toDeclDoc(ast, id))
	}
	return doc
}

func toDeclDoc(ast *AST, id DeclID) *declDoc {
	d := ast.Decl(id)
	dd := &declDoc{
		Decltype:  d.Kind.String(),
		Line:      d.Line,
		CppFile:   d.CppFile,
		Namespace: d.Namespace,
		NotFound:  d.NotFound,
		Enum:      d.Enum,
		Var:       d.Var,
		Const:     d.Const,
		Func:      d.Func,
		Fdecl:     d.Fdecl,
	}
	if d.Class != nil {
		cd := &classDoc{Class: *d.Class}
		cd.Class.Members = nil
		for _, m := range d.Class.Members {
			cd.Members = append(cd.Members, toDeclDoc(ast, m))
		}
		dd.Class = cd
	}
	return dd
}

func nfc(s string) string {
	if s == "" || norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}

func normalizeName(n *Name) {
	n.Native = nfc(n.Native)
	n.CppName = nfc(n.CppName)
}

func normalizeType(t *Type) {
	if t == nil {
		return
	}
	t.LangType = nfc(t.LangType)
	t.CppType = nfc(t.CppType)
	for _, p := range t.Params {
		normalizeType(p)
	}
	normalizeFunc(t.Callable)
}

func normalizeFunc(f *Func) {
	if f == nil {
		return
	}
	normalizeName(&f.Name)
	for _, p := range f.Params {
		if p != nil {
			normalizeName(&p.Name)
			normalizeType(p.Type)
		}
	}
	for _, p := range f.Returns {
		if p != nil {
			normalizeName(&p.Name)
			normalizeType(p.Type)
		}
	}
}

func normalizeDecl(d *Decl) {
	normalizeName(d.Name())
	switch d.Kind {
	case DeclClass:
		for i := range d.Class.Bases {
			normalizeName(&d.Class.Bases[i])
		}
	case DeclEnum:
		for i := range d.Enum.Members {
			normalizeName(&d.Enum.Members[i])
		}
	case DeclVar:
		normalizeType(d.Var.Type)
	case DeclConst:
		normalizeType(d.Const.Type)
	case DeclFunc:
		normalizeFunc(d.Func)
	}
}
