package match

import (
	"fmt"
	"path"
	"strings"

	"clifmatch/internal/cxx"
	"clifmatch/internal/ir"
)

// checkFile verifies that e is declared in the file the IR expects, or in
// one of the auxiliary files. Entities without a file are builtins.
func (s *Session) checkFile(d *ir.Decl, e *cxx.Entity) string {
	want := strings.TrimSpace(d.CppFile)
	if want == "" || e.Loc.File == "" {
		return ""
	}
	files := append([]string{want}, s.opts.AuxFiles...)
	if matchFile(e.Loc.File, files) >= 0 {
		return ""
	}
	at := fmt.Sprintf("%s:%d", e.Loc.File, e.Loc.Line)
	if len(files) == 1 {
		return fmt.Sprintf("Clif expects it in the file %s but found it at %s", want, at)
	}
	return fmt.Sprintf("Clif expects it in one of the files {%s} but found it at %s", strings.Join(files, ", "), at)
}

// matchFile returns the index of the first file in files naming got, or
// -1. Paths match when equal after cleaning or when one is a path suffix
// of the other.
func matchFile(got string, files []string) int {
	g := path.Clean(got)
	for i, f := range files {
		f = path.Clean(strings.TrimSpace(f))
		if f == "." {
			continue
		}
		if g == f || strings.HasSuffix(g, "/"+f) || strings.HasSuffix(f, "/"+g) {
			return i
		}
	}
	return -1
}
