// Package trace records what a matching session spends its time on.
//
// Sessions open a driver span, one pass span per phase (synthesize,
// compile, match) and, at detail level, one span per declaration:
//
//	t := trace.FromContext(ctx)
//	span := trace.Begin(t, trace.ScopePass, "compile", parent)
//	defer span.End("")
//
// Tracers stream events as text, NDJSON or Chrome trace JSON, keep the
// last events in a ring for post-mortem dumps, or both. The nop tracer
// costs nothing when tracing is off.
package trace
