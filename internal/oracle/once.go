package oracle

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrRecompile is returned when a session asks for a second, different unit.
var ErrRecompile = errors.New("oracle: session already compiled a different unit")

// Once wraps an Oracle so that a session compiles at most one unit.
// Repeated calls with the same input return the cached result.
type Once struct {
	next Oracle

	mu       sync.Mutex
	done     bool
	source   string
	includes []string
	unit     Unit
	diags    []Diagnostic
	err      error
	compiles int
}

// NewOnce returns a caching wrapper around next.
func NewOnce(next Oracle) *Once {
	return &Once{next: next}
}

// Compile implements Oracle.
func (o *Once) Compile(ctx context.Context, source string, includePaths []string) (Unit, []Diagnostic, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		if source != o.source || !slices.Equal(includePaths, o.includes) {
			return nil, nil, ErrRecompile
		}
		return o.unit, o.diags, o.err
	}
	o.unit, o.diags, o.err = o.next.Compile(ctx, source, includePaths)
	o.done = true
	o.source = source
	o.includes = slices.Clone(includePaths)
	o.compiles++
	return o.unit, o.diags, o.err
}

// Compiles reports how many times the wrapped oracle was invoked.
func (o *Once) Compiles() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.compiles
}
