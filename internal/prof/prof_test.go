package prof

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileWritesFiles(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		CPU:   filepath.Join(dir, "cpu.pprof"),
		Mem:   filepath.Join(dir, "mem.pprof"),
		Trace: filepath.Join(dir, "rt.trace"),
	}
	require.True(t, opts.Enabled())

	p, err := Start(opts)
	require.NoError(t, err)
	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())

	for _, path := range []string{opts.CPU, opts.Mem, opts.Trace} {
		st, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, st.Size(), path)
	}
}

func TestStartFailureLeavesNothingRunning(t *testing.T) {
	dir := t.TempDir()
	_, err := Start(Options{
		CPU:   filepath.Join(dir, "cpu.pprof"),
		Trace: filepath.Join(dir, "missing", "rt.trace"),
	})
	require.Error(t, err)

	// the CPU profiler must be free again
	p, err := Start(Options{CPU: filepath.Join(dir, "cpu2.pprof")})
	require.NoError(t, err)
	assert.NoError(t, p.Stop())
}

func TestNilProfile(t *testing.T) {
	var p *Profile
	assert.NoError(t, p.Stop())
	assert.False(t, Options{}.Enabled())
}
