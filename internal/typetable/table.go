// Package typetable maps host type names to the ordered C++ spellings they
// may stand for and expands IR types into concrete candidate spellings.
package typetable

import (
	"strings"

	"clifmatch/internal/ir"
)

// DefaultMaxCandidates bounds the spellings one type position expands to.
const DefaultMaxCandidates = 64

// Candidate is one C++ spelling for a host type.
type Candidate struct {
	Spelling       string
	Postconversion string
}

// Table is the per-session host name -> spellings map.
type Table struct {
	entries map[string][]Candidate
	order   []string

	// MaxCandidates bounds Spellings; zero means DefaultMaxCandidates.
	MaxCandidates int
}

// New builds a table from typemap entries. A host name listed twice keeps
// the first entry's order and appends new spellings from later ones.
func New(typemaps []ir.Typemap) *Table {
	t := &Table{entries: make(map[string][]Candidate)}
	for _, tm := range typemaps {
		t.Add(tm)
	}
	return t
}

// Add merges one typemap entry into the table.
func (t *Table) Add(tm ir.Typemap) {
	name := strings.TrimSpace(tm.LangType)
	if name == "" {
		return
	}
	cur, seen := t.entries[name]
	if !seen {
		t.order = append(t.order, name)
	}
	for _, sp := range tm.CppType {
		sp = strings.TrimSpace(sp)
		if sp == "" || hasSpelling(cur, sp) {
			continue
		}
		cur = append(cur, Candidate{Spelling: sp, Postconversion: tm.Postconversion})
	}
	t.entries[name] = cur
}

func hasSpelling(list []Candidate, sp string) bool {
	for _, c := range list {
		if c.Spelling == sp {
			return true
		}
	}
	return false
}

// Resolve returns the ordered candidates for host. Unknown names pass
// through as a single literal candidate.
func (t *Table) Resolve(host string) []Candidate {
	host = strings.TrimSpace(host)
	if c, ok := t.entries[host]; ok && len(c) > 0 {
		return append([]Candidate(nil), c...)
	}
	return []Candidate{{Spelling: host}}
}

// Has reports whether host has an entry.
func (t *Table) Has(host string) bool {
	_, ok := t.entries[strings.TrimSpace(host)]
	return ok
}

// Names lists host names in first-declared order.
func (t *Table) Names() []string { return append([]string(nil), t.order...) }

// Postconversion returns the hook name of the first candidate of host that
// declares one.
func (t *Table) Postconversion(host string) string {
	for _, c := range t.entries[strings.TrimSpace(host)] {
		if c.Postconversion != "" {
			return c.Postconversion
		}
	}
	return ""
}

func (t *Table) limit() int {
	if t.MaxCandidates > 0 {
		return t.MaxCandidates
	}
	return DefaultMaxCandidates
}
