package diagfmt

import "path/filepath"

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto shows paths relative to BaseDir when they live under it.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color     bool
	PathMode  PathMode
	BaseDir   string
	Width     int // wraps message lines; 0 means unlimited
	ShowNotes bool
	Summary   bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	PathMode     PathMode
	BaseDir      string
	Max          int // output cut, the bag is not touched
	IncludeNotes bool
}

func formatPath(path string, mode PathMode, base string) string {
	if path == "" {
		return ""
	}
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
	case PathModeBasename:
		return filepath.Base(path)
	case PathModeRelative, PathModeAuto:
		if base == "" {
			return path
		}
		absBase, err1 := filepath.Abs(base)
		absPath, err2 := filepath.Abs(path)
		if err1 != nil || err2 != nil {
			return path
		}
		rel, err := filepath.Rel(absBase, absPath)
		if err != nil {
			return path
		}
		if mode == PathModeAuto && (rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)) {
			return path
		}
		return rel
	}
	return path
}
