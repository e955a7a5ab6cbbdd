package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.File(OutcomeIndexed)
	m.File(OutcomeIndexed)
	m.File(OutcomeSecret)
	m.AddTokens(42)
	m.AddTokens(8)
	m.AddChunks(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Files.WithLabelValues(OutcomeIndexed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Files.WithLabelValues(OutcomeSecret)))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.Tokens))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Chunks))
}

func TestMetrics_Stage(t *testing.T) {
	m := New()
	done := m.Stage(StageLoad)
	time.Sleep(time.Millisecond)
	done()

	assert.Greater(t, testutil.ToFloat64(m.StageDuration.WithLabelValues(StageLoad)), 0.0)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.AddChunks(5)

	assert.Equal(t, 0.0, testutil.ToFloat64(b.Chunks))
	assert.NotSame(t, a.Registry(), b.Registry())
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.File(OutcomeIndexed)
	m.AddTokens(7)
	m.Finish(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "textfile", "repovec.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `repovec_files_total{outcome="indexed"} 1`)
	assert.Contains(t, out, "repovec_tokens_total 7")
	assert.Contains(t, out, "repovec_last_run_timestamp_seconds 1.7e+09")

	expected := `
# HELP repovec_chunks_total Total number of chunks loaded into the vector index
# TYPE repovec_chunks_total counter
repovec_chunks_total 0
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "repovec_chunks_total"))
}
