// Package clangast answers oracle queries from a real clang front end.
// The include lines of a synthesized unit are compiled with
// -ast-dump=json and the dump becomes the header model that answers
// queries. The whole unit is then compiled once more so clang decides
// which synthesized declarations are valid.
package clangast

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"clifmatch/internal/headerdb"
	"clifmatch/internal/oracle"
	"clifmatch/internal/trace"
)

// stdinName is how clang names a translation unit read from stdin.
const stdinName = "<stdin>"

// ErrClangNotFound is returned when the clang binary is not on PATH.
var ErrClangNotFound = errors.New("clang not found; install with: sudo apt-get update && sudo apt-get install -y clang")

// Runner executes name with args, feeding stdin, and returns what the
// process wrote. A non-zero exit is reported through err.
type Runner func(ctx context.Context, name string, args []string, stdin []byte) (stdout, stderr []byte, err error)

// Options configures the clang oracle.
type Options struct {
	Clang  string   // binary, default "clang++"
	Std    string   // language standard, default "c++17"
	Args   []string // extra flags passed before the include directories
	Cache  *Cache   // nil disables caching
	Runner Runner   // nil runs the real binary
	Tracer trace.Tracer
}

// Oracle compiles units with clang. It is safe for concurrent use.
type Oracle struct {
	opts Options
}

var _ oracle.Oracle = (*Oracle)(nil)

// New returns a clang-backed oracle.
func New(opts Options) *Oracle {
	if opts.Clang == "" {
		opts.Clang = "clang++"
	}
	if opts.Std == "" {
		opts.Std = "c++17"
	}
	if opts.Runner == nil {
		opts.Runner = execRunner
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.Nop
	}
	return &Oracle{opts: opts}
}

// Available reports whether the configured binary can be found.
func (o *Oracle) Available() error {
	if _, err := exec.LookPath(o.opts.Clang); err != nil {
		return ErrClangNotFound
	}
	return nil
}

// Compile implements oracle.Oracle.
func (o *Oracle) Compile(ctx context.Context, source string, includePaths []string) (oracle.Unit, []oracle.Diagnostic, error) {
	db, diags, err := o.Model(ctx, source, includePaths)
	if err != nil || db == nil {
		return nil, diags, err
	}
	checked, err := o.check(ctx, source, includePaths)
	if err != nil {
		return nil, nil, err
	}
	unit, modeled, err := headerdb.NewOracle(db).Compile(ctx, source, includePaths)
	return unit, mergeDiagnostics(checked, modeled), err
}

// Model returns the header model for the includes of source. When clang
// rejects the headers the model is nil and the diagnostics say why.
func (o *Oracle) Model(ctx context.Context, source string, includePaths []string) (*headerdb.DB, []oracle.Diagnostic, error) {
	sp := trace.Begin(o.opts.Tracer, trace.ScopePass, "clang", trace.ParentID(ctx))
	main := includesOnly(source)
	args := o.args(includePaths, true)
	key := cacheKey(append([]string{o.opts.Clang}, args...), main)

	root, hit, err := o.opts.Cache.get(key)
	if err != nil {
		sp.End("cache error")
		return nil, nil, fmt.Errorf("read clang cache: %w", err)
	}
	if hit {
		sp.WithExtra("cache", "hit")
	} else {
		var diags []oracle.Diagnostic
		root, diags, err = o.dump(ctx, args, main)
		if err != nil || root == nil {
			sp.End("failed")
			return nil, diags, err
		}
	}

	db, err := headerdb.FromClangAST(root, stdinName)
	if err != nil {
		sp.End("failed")
		return nil, nil, err
	}
	if !hit {
		var files []string
		for _, f := range db.Files() {
			if f != stdinName {
				files = append(files, f)
			}
		}
		if err := o.opts.Cache.put(key, args, files, root); err != nil {
			trace.Point(o.opts.Tracer, trace.ScopePass, "clang cache", err.Error(), sp.ID())
		}
	}
	sp.End(fmt.Sprintf("%d files", len(db.Files())))
	return db, nil, nil
}

func (o *Oracle) args(includePaths []string, dump bool) []string {
	args := []string{"-x", "c++", "-std=" + o.opts.Std, "-fsyntax-only"}
	if dump {
		args = append(args, "-Xclang", "-ast-dump=json")
	}
	args = append(args, o.opts.Args...)
	for _, dir := range includePaths {
		args = append(args, "-I"+dir)
	}
	return append(args, "-")
}

// dump runs clang and decodes its AST. Compilation errors come back as
// fatal diagnostics with a nil root.
func (o *Oracle) dump(ctx context.Context, args []string, main string) (*headerdb.Node, []oracle.Diagnostic, error) {
	stdout, stderr, runErr := o.opts.Runner(ctx, o.opts.Clang, args, []byte(main))
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	diags := parseDiagnostics(stderr)
	failed := false
	for i := range diags {
		if diags[i].Severity >= oracle.SevError {
			// no unit exists yet, so nothing can be attributed to a symbol
			diags[i].Severity = oracle.SevFatal
			failed = true
		}
	}
	if failed {
		return nil, diags, nil
	}
	if runErr != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			return nil, nil, runErr
		}
		return nil, nil, fmt.Errorf("%s: %s", o.opts.Clang, msg)
	}
	var root headerdb.Node
	if err := json.Unmarshal(stdout, &root); err != nil {
		return nil, nil, fmt.Errorf("decode clang AST: %w", err)
	}
	return &root, nil, nil
}

// check compiles the whole unit. Its diagnostics carry unit line numbers,
// so errors in synthesized declarations can be tied to their symbols.
func (o *Oracle) check(ctx context.Context, source string, includePaths []string) ([]oracle.Diagnostic, error) {
	sp := trace.Begin(o.opts.Tracer, trace.ScopePass, "clang check", trace.ParentID(ctx))
	_, stderr, runErr := o.opts.Runner(ctx, o.opts.Clang, o.args(includePaths, false), []byte(source))
	if err := ctx.Err(); err != nil {
		sp.End("canceled")
		return nil, err
	}
	diags := parseDiagnostics(stderr)
	blameUnit(diags)
	if runErr != nil && !hasErrors(diags) {
		sp.End("failed")
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			return nil, runErr
		}
		return nil, fmt.Errorf("%s: %s", o.opts.Clang, msg)
	}
	sp.End(fmt.Sprintf("%d diagnostics", len(diags)))
	return diags, nil
}

// blameUnit moves a header error raised while instantiating a template to
// the unit line that requested the instantiation, keeping the header
// location in the message.
func blameUnit(diags []oracle.Diagnostic) {
	for i := range diags {
		if diags[i].Severity != oracle.SevError || diags[i].File == headerdb.SourceName {
			continue
		}
		for j := i + 1; j < len(diags) && diags[j].Severity == oracle.SevNote; j++ {
			if diags[j].File == headerdb.SourceName {
				diags[i].Message = fmt.Sprintf("%s:%d: %s", diags[i].File, diags[i].Line, diags[i].Message)
				diags[i].File, diags[i].Line = diags[j].File, diags[j].Line
				break
			}
		}
	}
}

func hasErrors(diags []oracle.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity >= oracle.SevError {
			return true
		}
	}
	return false
}

// mergeDiagnostics keeps everything clang reported. A model error on a
// line clang already rejected is dropped.
func mergeDiagnostics(checked, modeled []oracle.Diagnostic) []oracle.Diagnostic {
	rejected := make(map[int]bool)
	for _, d := range checked {
		if d.Severity >= oracle.SevError && d.File == headerdb.SourceName {
			rejected[d.Line] = true
		}
	}
	out := checked
	for _, d := range modeled {
		if d.Severity == oracle.SevError && d.File == headerdb.SourceName && rejected[d.Line] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// includesOnly blanks every line that is not a preprocessor include, so
// clang sees the headers and line numbers still match the unit.
func includesOnly(source string) string {
	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(source))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<24)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#include") {
			b.WriteString(line)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

var diagLine = regexp.MustCompile(`^(.*?):(\d+):(?:\d+:)? (fatal error|error|warning|note): (.*)$`)

// parseDiagnostics reads clang's "file:line:col: severity: message" lines.
func parseDiagnostics(stderr []byte) []oracle.Diagnostic {
	var out []oracle.Diagnostic
	sc := bufio.NewScanner(bytes.NewReader(stderr))
	for sc.Scan() {
		m := diagLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		line, _ := strconv.Atoi(m[2])
		d := oracle.Diagnostic{File: m[1], Line: line, Message: m[4]}
		if d.File == stdinName {
			d.File = headerdb.SourceName
		}
		switch m[3] {
		case "fatal error":
			d.Severity = oracle.SevFatal
		case "error":
			d.Severity = oracle.SevError
		case "warning":
			d.Severity = oracle.SevWarning
		default:
			d.Severity = oracle.SevNote
		}
		out = append(out, d)
	}
	return out
}

func execRunner(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, nil, ErrClangNotFound
		}
		return stdout.Bytes(), stderr.Bytes(), err
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}
