package diag

type dedupKey struct {
	code Code
	sev  Severity
	file string
	line int
	decl string
	msg  string
}

// DedupReporter wraps another Reporter and suppresses duplicate diagnostics
// with the same code, severity, primary span and message. Re-running a
// session reports every failure again; the wrapper keeps the output single.
type DedupReporter struct {
	next Reporter
	seen map[dedupKey]struct{}
}

// NewDedupReporter returns a Reporter that filters out duplicates while
// forwarding unique diagnostics to the provided reporter.
func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{
		next: next,
		seen: make(map[dedupKey]struct{}),
	}
}

func (r *DedupReporter) Report(code Code, sev Severity, primary Span, msg string, notes []Note) {
	if r == nil {
		return
	}
	key := dedupKey{
		code: code,
		sev:  sev,
		file: primary.File,
		line: primary.Line,
		decl: primary.Decl,
		msg:  msg,
	}
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	if r.next != nil {
		r.next.Report(code, sev, primary, msg, notes)
	}
}
