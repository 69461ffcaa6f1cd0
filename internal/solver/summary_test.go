package solver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryErrorShape(t *testing.T) {
	f := mustCompile(t, BackendGovaluate, "x^2 + 1")
	s := Summarize(Solve(f, -1, 1, 1e-6))
	require.False(t, s.OK())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Try another equation or bracket"}`, string(data))
}

func TestSummarySuccessShape(t *testing.T) {
	f := mustCompile(t, BackendGovaluate, "x^2 - 2")
	s := Summarize(Solve(f, 0, 2, 1e-6))
	require.True(t, s.OK())

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(20), raw["iterations"])
	assert.Contains(t, raw, "result")
	assert.NotContains(t, raw, "error")
	assert.NotContains(t, raw, "capReached")

	log, ok := raw["log"].([]any)
	require.True(t, ok)
	require.Len(t, log, 20)
	entry := log[0].(map[string]any)
	assert.Equal(t, float64(1), entry["iteration"])
	assert.Contains(t, entry, "xm")
	assert.Contains(t, entry, "error")
}

func TestSummaryEndpointRootKeepsZeroFields(t *testing.T) {
	f := mustCompile(t, BackendGovaluate, "x")
	s := Summarize(Solve(f, 0, 1, 1e-6))

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"iterations":0,"result":0,"log":[]}`, string(data))

	var back Summary
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, back.OK())
	assert.Zero(t, back.Result.Root)
}
