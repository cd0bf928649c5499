package diag

import (
	"fmt"
	"sort"
)

type Bag struct {
	items []Diagnostic
	max   int
}

// NewBag returns a bag holding at most max diagnostics; max <= 0 means
// unbounded.
func NewBag(max int) *Bag {
	capacity := max
	if capacity <= 0 || capacity > 64 {
		capacity = 64
	}
	return &Bag{
		items: make([]Diagnostic, 0, capacity),
		max:   max,
	}
}

// Add appends d unless the limit is reached.
// Returns false when the diagnostic was dropped.
func (b *Bag) Add(d Diagnostic) bool {
	if b.max > 0 && len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, d)
	return true
}

func (b *Bag) Cap() int {
	return b.max
}

// HasErrors reports whether any diagnostic has Severity >= Error.
func (b *Bag) HasErrors() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevError {
			return true
		}
	}
	return false
}

// HasFatal reports whether any diagnostic aborted its session.
func (b *Bag) HasFatal() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevFatal {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any diagnostic has Severity >= Warning.
func (b *Bag) HasWarnings() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevWarning {
			return true
		}
	}
	return false
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Items returns the diagnostics. The slice aliases the bag's storage and
// must not be modified.
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// Merge appends the diagnostics of other, raising the limit when needed.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	newTotal := len(b.items) + len(other.items)
	if b.max > 0 && newTotal > b.max {
		b.max = newTotal
	}
	b.items = append(b.items, other.items...)
}

// Sort orders diagnostics by file, line, severity (desc), code (asc) for
// a stable output order.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Primary.File != dj.Primary.File {
			return di.Primary.File < dj.Primary.File
		}
		if di.Primary.Line != dj.Primary.Line {
			return di.Primary.Line < dj.Primary.Line
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		return di.Code < dj.Code
	})
}

// Dedup drops repeated (Code, Primary, Message) entries.
func (b *Bag) Dedup() {
	seen := make(map[string]bool)
	newitems := make([]Diagnostic, 0, len(b.items))
	for _, d := range b.items {
		key := fmt.Sprintf("%s:%s:%s:%s", d.Code.ID(), d.Primary.String(), d.Primary.Decl, d.Message)
		if seen[key] {
			continue
		}
		seen[key] = true
		newitems = append(newitems, d)
	}
	b.items = newitems
}
