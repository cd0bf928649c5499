package typetable

import (
	"strings"

	"clifmatch/internal/ir"
)

// Spellings expands t into its concrete C++ spellings. An explicit
// cpp_type wins over the table: verbatim when it is a full spelling, as
// the template stem of a container otherwise. Containers compose over the
// cross product of their parameters' candidates, outer candidates first;
// callables become std::function. The result is deduplicated and bounded
// by MaxCandidates.
func (t *Table) Spellings(typ *ir.Type) []Candidate {
	if typ == nil {
		return nil
	}
	explicit := strings.TrimSpace(typ.CppType)
	if explicit != "" && (!typ.IsContainer() && typ.Callable == nil || hasArgs(explicit)) {
		return []Candidate{{Spelling: explicit, Postconversion: typ.Postconversion}}
	}
	if typ.Callable != nil {
		return t.callable(typ.Callable)
	}
	outer := t.Resolve(typ.LangType)
	if explicit != "" {
		outer = []Candidate{{Spelling: explicit, Postconversion: typ.Postconversion}}
	}
	if !typ.IsContainer() {
		return t.bound(outer)
	}
	args := make([][]Candidate, len(typ.Params))
	for i, p := range typ.Params {
		args[i] = t.Spellings(p)
		if len(args[i]) == 0 {
			return nil
		}
	}
	var out []Candidate
	for _, o := range outer {
		stem := templateStem(o.Spelling)
		t.product(args, func(tuple []Candidate) bool {
			out = append(out, Candidate{
				Spelling:       compose(stem, tuple),
				Postconversion: o.Postconversion,
			})
			return len(out) < t.limit()
		})
		if len(out) >= t.limit() {
			break
		}
	}
	return t.bound(out)
}

// callable spells a host callable as std::function<R (A, B)>. Several
// returns are not expressible and yield no spelling.
func (t *Table) callable(fn *ir.Func) []Candidate {
	var slots [][]Candidate
	switch len(fn.Returns) {
	case 0:
		slots = append(slots, []Candidate{{Spelling: "void"}})
	case 1:
		slots = append(slots, t.Spellings(fn.Returns[0].Type))
	default:
		return nil
	}
	for _, p := range fn.Params {
		slots = append(slots, t.Spellings(p.Type))
	}
	for _, s := range slots {
		if len(s) == 0 {
			return nil
		}
	}
	var out []Candidate
	t.product(slots, func(tuple []Candidate) bool {
		params := make([]string, 0, len(tuple)-1)
		for _, c := range tuple[1:] {
			params = append(params, c.Spelling)
		}
		out = append(out, Candidate{
			Spelling: "std::function<" + tuple[0].Spelling + " (" + strings.Join(params, ", ") + ")>",
		})
		return len(out) < t.limit()
	})
	return t.bound(out)
}

// Product walks the cross product of slots in order, first slot varying
// slowest, until fn returns false or limit tuples were visited.
func (t *Table) Product(slots [][]Candidate, fn func(tuple []Candidate) bool) {
	n := 0
	t.product(slots, func(tuple []Candidate) bool {
		n++
		return fn(tuple) && n < t.limit()
	})
}

func (t *Table) product(slots [][]Candidate, fn func([]Candidate) bool) {
	tuple := make([]Candidate, len(slots))
	var walk func(i int) bool
	walk = func(i int) bool {
		if i == len(slots) {
			return fn(append([]Candidate(nil), tuple...))
		}
		for _, c := range slots[i] {
			tuple[i] = c
			if !walk(i + 1) {
				return false
			}
		}
		return true
	}
	walk(0)
}

func (t *Table) bound(list []Candidate) []Candidate {
	out := make([]Candidate, 0, len(list))
	for _, c := range list {
		if hasSpelling(out, c.Spelling) {
			continue
		}
		out = append(out, c)
		if len(out) == t.limit() {
			break
		}
	}
	return out
}

// templateStem drops a trailing argument list so "std::vector<>" and
// "std::vector" both compose as "std::vector<...>".
func templateStem(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ">") {
		if i := strings.IndexByte(s, '<'); i > 0 {
			return strings.TrimSpace(s[:i])
		}
	}
	return s
}

// hasArgs reports whether a spelling carries a non-empty template
// argument list, as "std::vector<int>" or "Box<int> *" do.
func hasArgs(s string) bool {
	i := strings.IndexByte(s, '<')
	return i > 0 && !strings.HasPrefix(strings.TrimSpace(s[i+1:]), ">")
}

func compose(stem string, args []Candidate) string {
	var sb strings.Builder
	sb.WriteString(stem)
	sb.WriteByte('<')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.Spelling)
	}
	sb.WriteByte('>')
	return sb.String()
}
