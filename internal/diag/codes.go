package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// IR documents
	IRInfo          Code = 1000
	IRDecodeFailed  Code = 1001
	IREncodeFailed  Code = 1002
	IRUnknownDecl   Code = 1003
	IRMissingName   Code = 1004
	IRUnknownFormat Code = 1005

	// Synthesized unit
	SynthInfo            Code = 2000
	SynthNoCandidates    Code = 2001
	SynthCandidatesLimit Code = 2002
	SynthEmitFailed      Code = 2003

	// Matching
	MatchInfo            Code = 3000
	MatchNotFound        Code = 3001
	MatchAmbiguous       Code = 3002
	MatchWrongFile       Code = 3003
	MatchTypeRejected    Code = 3004
	MatchMemberSummary   Code = 3005
	MatchDeprecatedTaken Code = 3006

	// Oracle
	OracleInfo         Code = 4000
	OracleFatal        Code = 4001
	OracleUnattributed Code = 4002
	OracleUnavailable  Code = 4003
	OracleCacheFailed  Code = 4004

	// Configuration
	ConfigInfo         Code = 5000
	ConfigNotFound     Code = 5001
	ConfigDecodeFailed Code = 5002
	ConfigUnknownKey   Code = 5003
	ConfigBadValue     Code = 5004
)

var (
	codeDescription = map[Code]string{
		UnknownCode:          "Unknown error",
		IRInfo:               "IR information",
		IRDecodeFailed:       "Cannot decode IR document",
		IREncodeFailed:       "Cannot encode IR document",
		IRUnknownDecl:        "Unknown declaration kind",
		IRMissingName:        "Declaration without a name",
		IRUnknownFormat:      "Unknown IR format",
		SynthInfo:            "Translation unit information",
		SynthNoCandidates:    "Type has no C++ spelling",
		SynthCandidatesLimit: "Candidate list truncated",
		SynthEmitFailed:      "Cannot write translation unit",
		MatchInfo:            "Match information",
		MatchNotFound:        "C++ declaration not found",
		MatchAmbiguous:       "Ambiguous C++ declaration",
		MatchWrongFile:       "C++ declaration in unexpected file",
		MatchTypeRejected:    "Type candidate rejected by the front end",
		MatchMemberSummary:   "Class members failed to match",
		MatchDeprecatedTaken: "Matched a deprecated declaration",
		OracleInfo:           "Front end information",
		OracleFatal:          "Front end failed",
		OracleUnattributed:   "Front end error outside synthesized declarations",
		OracleUnavailable:    "Front end unavailable",
		OracleCacheFailed:    "AST cache failure",
		ConfigInfo:           "Configuration information",
		ConfigNotFound:       "Configuration file not found",
		ConfigDecodeFailed:   "Cannot decode configuration",
		ConfigUnknownKey:     "Unknown configuration key",
		ConfigBadValue:       "Invalid configuration value",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("IR%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("TU%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("MAT%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("ORA%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("CFG%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
