package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONBasic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleBag(), JSONOpts{IncludeNotes: true, PathMode: PathModeBasename}))

	var out DiagnosticsOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 4, out.Count)
	require.Len(t, out.Diagnostics, 4)

	first := out.Diagnostics[0]
	assert.Equal(t, "ERROR", first.Severity)
	assert.Equal(t, "MAT3001", first.Code)
	assert.Equal(t, "C++ declaration not found", first.Title)
	assert.Equal(t, LocationJSON{File: "calc.yaml", Line: 12, Decl: "FUNC add"}, first.Location)
	assert.Empty(t, first.Notes)

	second := out.Diagnostics[1]
	require.Len(t, second.Notes, 1)
	assert.Equal(t, "member of CLASS Outer", second.Notes[0].Message)
	assert.Equal(t, 18, second.Notes[0].Location.Line)

	assert.Equal(t, "FATAL", out.Diagnostics[3].Severity)
}

func TestJSONMaxAndNotes(t *testing.T) {
	out := BuildDiagnosticsOutput(sampleBag(), JSONOpts{Max: 2})
	assert.Equal(t, 2, out.Count)
	assert.Empty(t, out.Diagnostics[1].Notes)
}

func TestJSONEmptyBag(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, nil, JSONOpts{}))
	assert.JSONEq(t, `{"diagnostics": [], "count": 0}`, buf.String())
}
