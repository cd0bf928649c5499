package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	// KindHeartbeat is a periodic liveness signal.
	KindHeartbeat
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	// ScopeDriver covers a whole session or CLI command.
	ScopeDriver Scope = iota + 1
	// ScopePass covers one phase: synthesize, compile, match.
	ScopePass
	// ScopeDecl covers the resolution of one declaration.
	ScopeDecl
	// ScopeNode covers single oracle queries.
	ScopeNode
)

func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopePass:
		return "pass"
	case ScopeDecl:
		return "decl"
	case ScopeNode:
		return "node"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	GID      uint64
	Name     string // "session", "compile", "decl:FUNC Resize"
	Detail   string
	Extra    map[string]string
}
