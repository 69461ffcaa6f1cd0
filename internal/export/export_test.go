package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bisection/internal/solver"
)

func sqrt2(t *testing.T) solver.Result {
	t.Helper()
	f, err := solver.NewEvalFunc("x^2 - 2")
	require.NoError(t, err)
	res, err := solver.Solve(f, 0, 2, 1e-6)
	require.NoError(t, err)
	return res
}

func TestWriteCSV(t *testing.T) {
	res := sqrt2(t)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, res))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, res.Iterations+1)
	assert.Equal(t, []string{"iteration", "xm", "error", "xl", "xr"}, records[0])
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "1.5", records[1][1])
}

func TestWriteJSONUsesResultShape(t *testing.T) {
	res := sqrt2(t)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JSON, res))

	var s solver.Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &s))
	require.True(t, s.OK())
	assert.Equal(t, res.Iterations, s.Result.Iterations)
	assert.Len(t, s.Result.Trace, res.Iterations)
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Markdown, sqrt2(t)))
	assert.Contains(t, buf.String(), "Root ≈ 1.414214 (iterations: 20)")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": CSV, "CSV": CSV, "json": JSON, "markdown": Markdown, "md": Markdown} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xlsx")
	assert.Error(t, err)

	assert.Equal(t, JSON, FormatFromPath("out/trace.json"))
	assert.Equal(t, CSV, FormatFromPath("trace.txt"))
}

func TestWriteFileAtomicAndConcurrent(t *testing.T) {
	res := sqrt2(t)
	path := filepath.Join(t.TempDir(), "nested", "trace.csv")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, WriteFile(path, CSV, res))
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, res.Iterations+1)

	// временные файлы не остаются
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}
