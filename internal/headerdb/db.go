// Package headerdb is an in-process C++ semantic oracle. It holds a model
// of the declarations in a set of headers, built from clang's JSON AST dump
// or from YAML fixtures in the same shape, and answers the matcher's
// lookup, conversion, deduction and capability questions against a
// synthesized translation unit.
package headerdb

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"clifmatch/internal/cxx"
	"clifmatch/internal/oracle"
)

// DB is a loaded header model. Queries instantiate templates lazily, so
// units serialize them through query.
type DB struct {
	global *cxx.Entity
	files  map[string]*fileInfo
	query  sync.Mutex

	// Problems collects declarations the loader could not model.
	Problems []string

	mu    sync.Mutex
	specs map[string]*cxx.Entity
	props map[*cxx.Entity]oracle.Properties
	ctors map[*cxx.Entity][]*cxx.Entity
	// resolving guards typedef targets against cycles.
	resolving map[*cxx.Entity]bool
	// resolved marks entities whose written types have been bound.
	resolved map[*cxx.Entity]bool
}

type fileInfo struct {
	path     string
	includes []string
}

// NewDB returns an empty model holding only the builtin prelude.
func NewDB() *DB {
	db := &DB{
		global:    &cxx.Entity{Kind: cxx.EntityNamespace},
		files:     make(map[string]*fileInfo),
		specs:     make(map[string]*cxx.Entity),
		props:     make(map[*cxx.Entity]oracle.Properties),
		ctors:     make(map[*cxx.Entity][]*cxx.Entity),
		resolving: make(map[*cxx.Entity]bool),
		resolved:  make(map[*cxx.Entity]bool),
	}
	addPrelude(db)
	return db
}

// Global returns the translation unit scope.
func (db *DB) Global() *cxx.Entity { return db.global }

// Files lists every header the model knows, sorted.
func (db *DB) Files() []string {
	out := make([]string, 0, len(db.files))
	for f := range db.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// AddFile registers a header and the headers it includes.
func (db *DB) AddFile(path string, includes ...string) {
	path = filepath.Clean(path)
	fi := db.file(path)
	for _, inc := range includes {
		inc = filepath.Clean(inc)
		db.file(inc)
		if !containsString(fi.includes, inc) {
			fi.includes = append(fi.includes, inc)
		}
	}
}

func (db *DB) file(path string) *fileInfo {
	fi, ok := db.files[path]
	if !ok {
		fi = &fileInfo{path: path}
		db.files[path] = fi
	}
	return fi
}

// ResolveInclude finds the model file an #include spelling refers to,
// trying the spelling itself, then each include directory in order, then
// a path-suffix match.
func (db *DB) ResolveInclude(spelling string, includePaths []string) (string, bool) {
	clean := filepath.Clean(spelling)
	if _, ok := db.files[clean]; ok {
		return clean, true
	}
	for _, dir := range includePaths {
		cand := filepath.Clean(filepath.Join(dir, spelling))
		if _, ok := db.files[cand]; ok {
			return cand, true
		}
	}
	var matches []string
	for f := range db.files {
		if pathHasSuffix(f, clean) {
			matches = append(matches, f)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}

// closure returns files reachable from roots through includes.
func (db *DB) closure(roots []string) map[string]bool {
	seen := make(map[string]bool)
	var visit func(string)
	visit = func(f string) {
		if seen[f] {
			return
		}
		seen[f] = true
		if fi, ok := db.files[f]; ok {
			for _, inc := range fi.includes {
				visit(inc)
			}
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return seen
}

func (db *DB) problemf(format string, args ...any) {
	db.Problems = append(db.Problems, fmt.Sprintf(format, args...))
}

// pathHasSuffix reports whether path ends with suffix on a path
// component boundary.
func pathHasSuffix(path, suffix string) bool {
	path = filepath.ToSlash(path)
	suffix = filepath.ToSlash(suffix)
	if path == suffix {
		return true
	}
	return strings.HasSuffix(path, "/"+strings.TrimPrefix(suffix, "/"))
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

var preludeTypedefs = []struct{ name, target string }{
	{"size_t", "unsigned long"},
	{"ssize_t", "long"},
	{"ptrdiff_t", "long"},
	{"intptr_t", "long"},
	{"uintptr_t", "unsigned long"},
	{"int8_t", "signed char"},
	{"int16_t", "short"},
	{"int32_t", "int"},
	{"int64_t", "long"},
	{"uint8_t", "unsigned char"},
	{"uint16_t", "unsigned short"},
	{"uint32_t", "unsigned int"},
	{"uint64_t", "unsigned long"},
}

func addPrelude(db *DB) {
	std := &cxx.Entity{Kind: cxx.EntityNamespace, Name: "std"}
	db.global.AddChild(std)
	for _, scope := range []*cxx.Entity{db.global, std} {
		for _, td := range preludeTypedefs {
			scope.AddChild(&cxx.Entity{
				Kind:     cxx.EntityTypedef,
				Name:     td.name,
				Implicit: true,
				Alias:    cxx.Builtin(td.target),
			})
		}
	}
	std.AddChild(&cxx.Entity{
		Kind:     cxx.EntityTypedef,
		Name:     "nullptr_t",
		Implicit: true,
		Alias:    cxx.Builtin("nullptr_t"),
	})
}
