package progress

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/repovec/internal/logging"
)

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminal(&buf)

	r.Start(2)
	r.Advance("a.go", 10)
	r.Advance("b.png", 0)
	r.Finish()

	line := r.Line()
	assert.Contains(t, line, "Total tokens: ")
	assert.Contains(t, line, "10")
	assert.Contains(t, line, "2/2")
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\r")))
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
}

func TestTerminal_EmptyRun(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminal(&buf)
	r.Start(0)
	assert.Contains(t, r.Line(), "0/0")
}

func TestLog(t *testing.T) {
	tl := logging.NewTestLogger()
	r := NewLog(tl.Logger)

	r.Start(3)
	r.Advance("a.go", 4)
	r.Advance("b.go", 6)
	r.Advance("c.png", 0)
	r.Finish()

	assert.Equal(t, 10, r.Tokens())
	assert.Equal(t, 3, tl.FilterMessage("file processed").Len())

	done := tl.FilterMessage("files processed").All()
	require.Len(t, done, 1)
	assert.Equal(t, int64(10), done[0].ContextMap()["total_tokens"])
}

func TestNew_NotATerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.IsType(t, &Log{}, New(f, nil))
	assert.IsType(t, &Log{}, New(nil, nil))
}

func TestNop(t *testing.T) {
	Nop.Start(1)
	Nop.Advance("x", 1)
	Nop.Finish()
}
