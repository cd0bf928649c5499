package clangast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clifmatch/internal/headerdb"
	"clifmatch/internal/oracle"
)

// fakeClang answers AST dumps with stdout, stderr and err, and whole-unit
// checks with checkStderr and checkErr.
type fakeClang struct {
	dumps     int
	dumpArgs  []string
	dumpStdin string
	stdout    []byte
	stderr    []byte
	err       error

	checks      int
	checkArgs   []string
	checkStdin  string
	checkStderr []byte
	checkErr    error
}

func (f *fakeClang) run(_ context.Context, _ string, args []string, stdin []byte) ([]byte, []byte, error) {
	if !slices.Contains(args, "-ast-dump=json") {
		f.checks++
		f.checkArgs = args
		f.checkStdin = string(stdin)
		return nil, f.checkStderr, f.checkErr
	}
	f.dumps++
	f.dumpArgs = args
	f.dumpStdin = string(stdin)
	return f.stdout, f.stderr, f.err
}

// dumpFor returns a minimal AST dump declaring int F(int) in header.
func dumpFor(t *testing.T, header string) []byte {
	t.Helper()
	file, err := json.Marshal(header)
	require.NoError(t, err)
	return []byte(fmt.Sprintf(`{
  "id": "0x1", "kind": "TranslationUnitDecl",
  "inner": [
    {"id": "0x2", "kind": "TypedefDecl", "isImplicit": true, "name": "__int128_t", "type": {"qualType": "__int128"}},
    {"id": "0x3", "kind": "FunctionDecl", "loc": {"file": %s, "line": 4, "includedFrom": {"file": "<stdin>"}},
     "name": "F", "type": {"qualType": "int (int)"}}
  ]
}`, file))
}

func writeHeader(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "a.h")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const unitSource = "#include \"a.h\"\nnamespace clif {\ntypedef int clif_t0;\n}\n"

func TestCompileBuildsModelFromDump(t *testing.T) {
	dir := t.TempDir()
	header := writeHeader(t, dir, "int F(int);\n")
	fake := &fakeClang{stdout: dumpFor(t, header)}
	o := New(Options{Runner: fake.run})

	u, diags, err := o.Compile(context.Background(), unitSource, []string{dir})
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.NotNil(t, u)

	found := u.Lookup(nil, "F")
	require.Len(t, found, 1)
	assert.Equal(t, header, found[0].Loc.File)
	assert.Equal(t, 4, found[0].Loc.Line)

	assert.Equal(t, "#include \"a.h\"\n\n\n\n", fake.dumpStdin)
	assert.Contains(t, fake.dumpArgs, "-I"+dir)
	assert.Contains(t, fake.dumpArgs, "-std=c++17")
	assert.Equal(t, "-", fake.dumpArgs[len(fake.dumpArgs)-1])

	assert.Equal(t, 1, fake.checks)
	assert.Equal(t, unitSource, fake.checkStdin)
	assert.Contains(t, fake.checkArgs, "-I"+dir)
	assert.Contains(t, fake.checkArgs, "-fsyntax-only")
}

func TestCompileReportsUnitErrorsOnTheirLines(t *testing.T) {
	dir := t.TempDir()
	header := writeHeader(t, dir, "int F(int);\n")
	fake := &fakeClang{
		stdout:      dumpFor(t, header),
		checkStderr: []byte("<stdin>:3:13: error: unknown type name 'Nope'\n1 error generated.\n"),
		checkErr:    errors.New("exit status 1"),
	}

	u, diags, err := New(Options{Runner: fake.run}).Compile(context.Background(), unitSource, []string{dir})
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Len(t, diags, 1)
	assert.Equal(t, oracle.Diagnostic{
		Severity: oracle.SevError,
		File:     headerdb.SourceName,
		Line:     3,
		Message:  "unknown type name 'Nope'",
	}, diags[0])
}

func TestCompileCheckFailureWithoutDiagnostics(t *testing.T) {
	dir := t.TempDir()
	header := writeHeader(t, dir, "int F(int);\n")
	fake := &fakeClang{
		stdout:      dumpFor(t, header),
		checkStderr: []byte("clang: crashed\n"),
		checkErr:    errors.New("exit status 139"),
	}
	_, _, err := New(Options{Runner: fake.run}).Compile(context.Background(), unitSource, []string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clang: crashed")
}

func TestBlameUnitMovesInstantiationErrors(t *testing.T) {
	diags := parseDiagnostics([]byte(
		"/inc/v.h:5:3: error: static assertion failed\n" +
			"<stdin>:9:1: note: in instantiation of template class 'V<int &>' requested here\n"))
	blameUnit(diags)
	require.Len(t, diags, 2)
	assert.Equal(t, headerdb.SourceName, diags[0].File)
	assert.Equal(t, 9, diags[0].Line)
	assert.Equal(t, "/inc/v.h:5: static assertion failed", diags[0].Message)
}

func TestMergeDiagnosticsPrefersClang(t *testing.T) {
	checked := []oracle.Diagnostic{{Severity: oracle.SevError, File: headerdb.SourceName, Line: 4, Message: "clang"}}
	modeled := []oracle.Diagnostic{
		{Severity: oracle.SevError, File: headerdb.SourceName, Line: 4, Symbol: "clif_type_0", Message: "model"},
		{Severity: oracle.SevError, File: headerdb.SourceName, Line: 7, Symbol: "clif_type_1", Message: "model only"},
	}
	merged := mergeDiagnostics(checked, modeled)
	require.Len(t, merged, 2)
	assert.Equal(t, "clang", merged[0].Message)
	assert.Equal(t, "model only", merged[1].Message)
}

func TestCompileReportsClangErrorsAsFatal(t *testing.T) {
	fake := &fakeClang{
		stderr: []byte("<stdin>:1:10: fatal error: 'nope.h' file not found\n1 error generated.\n"),
		err:    errors.New("exit status 1"),
	}
	o := New(Options{Runner: fake.run})

	u, diags, err := o.Compile(context.Background(), "#include \"nope.h\"\n", nil)
	require.NoError(t, err)
	assert.Nil(t, u)
	require.Len(t, diags, 1)
	assert.Equal(t, oracle.SevFatal, diags[0].Severity)
	assert.Equal(t, headerdb.SourceName, diags[0].File)
	assert.Equal(t, 1, diags[0].Line)
	assert.Equal(t, "'nope.h' file not found", diags[0].Message)
}

func TestCompileHeaderErrorsBecomeFatal(t *testing.T) {
	fake := &fakeClang{
		stderr: []byte("/inc/a.h:3:1: error: unknown type name 'Foo'\n"),
		err:    errors.New("exit status 1"),
	}
	_, diags, err := New(Options{Runner: fake.run}).Compile(context.Background(), unitSource, nil)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, oracle.SevFatal, diags[0].Severity)
	assert.Equal(t, "/inc/a.h", diags[0].File)
}

func TestCompileFailureWithoutDiagnostics(t *testing.T) {
	fake := &fakeClang{stderr: []byte("clang: crashed\n"), err: errors.New("exit status 139")}
	_, _, err := New(Options{Runner: fake.run}).Compile(context.Background(), unitSource, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clang: crashed")
}

func TestCompileRejectsMalformedDump(t *testing.T) {
	fake := &fakeClang{stdout: []byte("{not json")}
	_, _, err := New(Options{Runner: fake.run}).Compile(context.Background(), unitSource, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode clang AST")
}

func TestCacheSkipsClangUntilHeaderChanges(t *testing.T) {
	dir := t.TempDir()
	header := writeHeader(t, dir, "int F(int);\n")
	cache, err := OpenCache(t.TempDir())
	require.NoError(t, err)

	fake := &fakeClang{stdout: dumpFor(t, header)}
	ctx := context.Background()

	_, _, err = New(Options{Runner: fake.run, Cache: cache}).Compile(ctx, unitSource, []string{dir})
	require.NoError(t, err)
	u, _, err := New(Options{Runner: fake.run, Cache: cache}).Compile(ctx, unitSource, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.dumps)
	assert.Len(t, u.Lookup(nil, "F"), 1)

	writeHeader(t, dir, "int F(int);\nint G();\n")
	_, _, err = New(Options{Runner: fake.run, Cache: cache}).Compile(ctx, unitSource, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.dumps)

	// different flags are a different key
	_, _, err = New(Options{Runner: fake.run, Cache: cache, Std: "c++20"}).Compile(ctx, unitSource, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 3, fake.dumps)

	require.NoError(t, cache.Clear())
	_, _, err = New(Options{Runner: fake.run, Cache: cache}).Compile(ctx, unitSource, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 4, fake.dumps)
}

func TestCanceledCompile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := &fakeClang{}
	_, _, err := New(Options{Runner: fake.run}).Compile(ctx, unitSource, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseDiagnostics(t *testing.T) {
	diags := parseDiagnostics([]byte(
		"a.h:2:5: warning: unused variable 'x'\n" +
			"In file included from <stdin>:1:\n" +
			"a.h:7: note: declared here\n"))
	require.Len(t, diags, 2)
	assert.Equal(t, oracle.Diagnostic{Severity: oracle.SevWarning, File: "a.h", Line: 2, Message: "unused variable 'x'"}, diags[0])
	assert.Equal(t, oracle.SevNote, diags[1].Severity)
	assert.Equal(t, 7, diags[1].Line)
}

func TestOpenCacheDefaultsToXDG(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", base)
	c, err := OpenCache("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "clifmatch"), c.Dir())
}
