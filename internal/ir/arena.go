package ir

import (
	"fmt"

	"fortio.org/safecast"
)

// Arena stores declarations in a compact slice addressed by DeclID.
type Arena struct {
	data []Decl
}

// NewArena creates an arena with optional capacity hint.
func NewArena(capacity uint32) *Arena {
	if capacity == 0 {
		capacity = 64
	}
	return &Arena{
		data: make([]Decl, 1, capacity+1), // index 0 reserved for NoDeclID
	}
}

// New allocates a declaration in the arena and returns its ID.
func (a *Arena) New(d *Decl) DeclID {
	if d == nil {
		panic("ir.Arena.New: nil decl")
	}
	value, err := safecast.Conv[uint32](len(a.data))
	if err != nil {
		panic(fmt.Errorf("decl arena overflow: %w", err))
	}
	id := DeclID(value)
	a.data = append(a.data, *d)
	return id
}

// Get returns a declaration pointer or nil for invalid ID.
// Pointers stay valid only until the next New.
func (a *Arena) Get(id DeclID) *Decl {
	if !id.IsValid() || int(id) >= len(a.data) {
		return nil
	}
	return &a.data[id]
}

// Len reports number of stored declarations excluding sentinel.
func (a *Arena) Len() int { return len(a.data) - 1 }
