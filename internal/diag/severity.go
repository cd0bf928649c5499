package diag

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevInfo is for informational diagnostics.
	SevInfo Severity = iota
	// SevWarning is for warning diagnostics.
	SevWarning
	SevError
	// SevFatal aborts the session that produced it.
	SevFatal
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	case SevFatal:
		return "FATAL"
	}
	return "UNKNOWN"
}
