// Package config loads clifmatch.toml, the per-project defaults for
// matching sessions. Command-line flags override every value.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"clifmatch/internal/diag"
)

// FileName is the manifest looked up from the working directory upward.
const FileName = "clifmatch.toml"

// Oracle kinds.
const (
	OracleModel = "model"
	OracleClang = "clang"
)

// Config is a decoded clifmatch.toml.
type Config struct {
	// Path is the manifest file, Root its directory. Both are empty for
	// the built-in defaults.
	Path string `toml:"-"`
	Root string `toml:"-"`

	Session SessionConfig `toml:"session"`
	Oracle  OracleConfig  `toml:"oracle"`
	Trace   TraceConfig   `toml:"trace"`
	UI      UIConfig      `toml:"ui"`
}

type SessionConfig struct {
	IncludePaths  []string `toml:"include_paths"`
	AuxFiles      []string `toml:"aux_files"`
	MaxCandidates int      `toml:"max_candidates"`
	Jobs          int      `toml:"jobs"`
	MaxDiags      int      `toml:"max_diagnostics"`
}

type OracleConfig struct {
	Kind string `toml:"kind"`
	// Model is the header model for kind "model": a YAML fixture or a
	// clang JSON AST dump.
	Model    string   `toml:"model"`
	Clang    string   `toml:"clang"`
	Std      string   `toml:"std"`
	Args     []string `toml:"args"`
	CacheDir string   `toml:"cache_dir"`
	NoCache  bool     `toml:"no_cache"`
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
	Mode   string `toml:"mode"`
}

type UIConfig struct {
	Mode  string `toml:"mode"`
	Color string `toml:"color"`
}

// Error is a manifest problem, tagged with its diagnostic code.
type Error struct {
	Code diag.Code
	Path string
	Msg  string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return e.Path + ": " + e.Msg
}

// Default returns the configuration used when no manifest exists.
func Default() *Config {
	return &Config{
		Oracle: OracleConfig{Kind: OracleModel, Clang: "clang++", Std: "c++17"},
		Trace:  TraceConfig{Level: "off", Mode: "stream"},
		UI:     UIConfig{Mode: "auto", Color: "auto"},
	}
}

// Find walks from startDir to the filesystem root looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the nearest manifest above startDir, or the defaults
// when there is none.
func Discover(startDir string) (*Config, bool, error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return Default(), false, err
	}
	cfg, err := Load(path)
	return cfg, true, err
}

// Load decodes path over the defaults. Relative paths in the manifest are
// resolved against its directory.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Code: diag.ConfigNotFound, Path: path, Msg: "file not found"}
		}
		return nil, &Error{Code: diag.ConfigDecodeFailed, Path: path, Msg: fmt.Sprintf("failed to parse TOML: %v", err)}
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, &Error{Code: diag.ConfigUnknownKey, Path: path, Msg: "unknown keys: " + strings.Join(keys, ", ")}
	}
	cfg.Path = path
	cfg.Root = filepath.Dir(path)

	if meta.IsDefined("oracle", "kind") {
		cfg.Oracle.Kind = strings.ToLower(strings.TrimSpace(cfg.Oracle.Kind))
	}
	if meta.IsDefined("oracle", "model") && strings.TrimSpace(cfg.Oracle.Model) == "" {
		return nil, &Error{Code: diag.ConfigBadValue, Path: path, Msg: "[oracle].model is empty"}
	}
	if err := cfg.Validate(); err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return nil, err
	}

	for i, p := range cfg.Session.IncludePaths {
		cfg.Session.IncludePaths[i] = cfg.resolve(p)
	}
	cfg.Oracle.Model = cfg.resolve(cfg.Oracle.Model)
	cfg.Oracle.CacheDir = cfg.resolve(cfg.Oracle.CacheDir)
	if meta.IsDefined("trace", "output") && cfg.Trace.Output != "-" {
		cfg.Trace.Output = cfg.resolve(cfg.Trace.Output)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Oracle.Kind {
	case OracleModel, OracleClang:
	default:
		return &Error{Code: diag.ConfigBadValue, Msg: fmt.Sprintf("[oracle].kind must be %q or %q, got %q", OracleModel, OracleClang, c.Oracle.Kind)}
	}
	if c.Session.MaxCandidates < 0 {
		return &Error{Code: diag.ConfigBadValue, Msg: "[session].max_candidates must not be negative"}
	}
	if c.Session.Jobs < 0 {
		return &Error{Code: diag.ConfigBadValue, Msg: "[session].jobs must not be negative"}
	}
	switch strings.ToLower(c.UI.Mode) {
	case "", "auto", "on", "off":
	default:
		return &Error{Code: diag.ConfigBadValue, Msg: fmt.Sprintf("[ui].mode must be auto, on or off, got %q", c.UI.Mode)}
	}
	switch strings.ToLower(c.UI.Color) {
	case "", "auto", "on", "off":
	default:
		return &Error{Code: diag.ConfigBadValue, Msg: fmt.Sprintf("[ui].color must be auto, on or off, got %q", c.UI.Color)}
	}
	return nil
}

func (c *Config) resolve(p string) string {
	if p == "" || c.Root == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}
