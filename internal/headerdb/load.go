package headerdb

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"clifmatch/internal/cxx"
)

// Fixture is the YAML form of a header model: a list of headers, each
// with the clang-shaped declarations it contains.
type Fixture struct {
	// StdPrelude adds a small model of the standard library. Defaults to
	// true.
	StdPrelude *bool         `yaml:"std_prelude,omitempty"`
	Files      []FixtureFile `yaml:"files"`
}

// FixtureFile is one header of a fixture.
type FixtureFile struct {
	Path     string   `yaml:"path"`
	Includes []string `yaml:"includes,omitempty"`
	Decls    []*Node  `yaml:"decls"`
}

//go:embed std_prelude.yaml
var stdPrelude []byte

// LoadFile loads a header model. Files ending in .json are clang AST
// dumps; .yaml and .yml files are fixtures.
func LoadFile(path string) (*DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadClangJSON(f)
	case ".yaml", ".yml":
		return LoadFixture(f)
	}
	return nil, fmt.Errorf("%s: unknown header model format", path)
}

// LoadFixture decodes a YAML fixture into a resolved model.
func LoadFixture(r io.Reader) (*DB, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty header model")
		}
		return nil, fmt.Errorf("decode header model: %w", err)
	}
	return fx.Build()
}

// Build resolves the fixture into a model.
func (fx *Fixture) Build() (*DB, error) {
	db := NewDB()
	b := newBuilder(db)
	if fx.StdPrelude == nil || *fx.StdPrelude {
		if err := b.addPrelude(); err != nil {
			return nil, err
		}
	}
	for _, f := range fx.Files {
		if f.Path == "" {
			return nil, errors.New("header model file without path")
		}
		db.AddFile(f.Path, f.Includes...)
		b.setFile(f.Path)
		b.decls(db.global, f.Decls, cxx.AccessPublic)
	}
	db.finish(b.entities)
	return db, nil
}

// addPrelude declares the standard library subset fixtures rely on. Its
// declarations carry no file and are visible to every unit.
func (b *builder) addPrelude() error {
	var nodes []*Node
	if err := yaml.Unmarshal(stdPrelude, &nodes); err != nil {
		return fmt.Errorf("std prelude: %w", err)
	}
	b.curFile, b.curLine = "", 0
	b.decls(b.db.global, nodes, cxx.AccessPublic)
	b.curFile, b.curLine = "", 0
	return nil
}

// LoadClangJSON decodes the output of clang -Xclang -ast-dump=json.
func LoadClangJSON(r io.Reader) (*DB, error) {
	var root Node
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode clang AST: %w", err)
	}
	return FromClangAST(&root, "")
}

// FromClangAST builds a model from a decoded clang AST. mainFile names the
// file clang compiled; declarations in it are dropped.
func FromClangAST(root *Node, mainFile string) (*DB, error) {
	if root.Kind != "TranslationUnitDecl" {
		return nil, fmt.Errorf("clang AST root is %s, want TranslationUnitDecl", root.Kind)
	}
	db := NewDB()
	b := newBuilder(db)
	main := filepath.Clean(mainFile)
	for _, n := range root.Inner {
		if n == nil || n.IsImplicit {
			continue
		}
		loc := b.loc(n)
		if mainFile != "" && loc.File == main {
			continue
		}
		b.decl(db.global, n, cxx.AccessPublic, nil)
	}
	db.finish(b.entities)
	return db, nil
}
