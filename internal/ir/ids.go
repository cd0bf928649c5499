package ir

// DeclID identifies a declaration inside the AST arena.
type DeclID uint32

const (
	// NoDeclID marks the absence of a declaration reference.
	NoDeclID DeclID = 0
)

// IsValid reports whether the ID refers to an allocated declaration.
func (id DeclID) IsValid() bool { return id != NoDeclID }
