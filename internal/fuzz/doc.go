// Package fuzztests houses Go fuzz harnesses for the parsers that take
// untrusted input: C++ type spellings, IR documents and header models.
// They guard against panics and hangs, and check that accepted input
// survives a round trip.
package fuzztests
