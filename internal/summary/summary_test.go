package summary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_OrderAndTotal(t *testing.T) {
	r := NewRecorder()
	r.Add("src/z.go", 10)
	r.Add("README.md", 3)
	r.Add("a.txt", 0)

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 13, r.Total())
	assert.Equal(t, []Record{{"src/z.go", 10}, {"README.md", 3}, {"a.txt", 0}}, r.Records())
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "corpus_summary.csv")

	r := NewRecorder()
	r.Add("b.go", 7)
	r.Add("dir/with,comma.txt", 2)
	require.NoError(t, r.WriteCSV(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file_name,n_tokens\nb.go,7\n\"dir/with,comma.txt\",2\n", string(data))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, r.Records(), got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteCSV_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.csv")
	require.NoError(t, NewRecorder().WriteCSV(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file_name,n_tokens\n", string(data))
}

func TestWriteCSV_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("stale\n", 100)), 0o644))

	r := NewRecorder()
	r.Add("x", 1)
	require.NoError(t, r.WriteCSV(path))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []Record{{"x", 1}}, got)
}

func TestReadCSV_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadCSV(filepath.Join(dir, "missing.csv"))
	assert.True(t, os.IsNotExist(err))

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("name,count\na,1\n"), 0o644))
	_, err = ReadCSV(bad)
	assert.Error(t, err)

	nan := filepath.Join(dir, "nan.csv")
	require.NoError(t, os.WriteFile(nan, []byte("file_name,n_tokens\na,many\n"), 0o644))
	_, err = ReadCSV(nan)
	assert.Error(t, err)
}
