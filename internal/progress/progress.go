// Package progress reports per-file progress of an ingestion run, as a
// terminal progress bar or as log lines.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/repovec/internal/logging"
)

// Reporter receives progress of the per-file loop.
type Reporter interface {
	// Start announces how many files will be visited.
	Start(total int)
	// Advance marks one file as done; tokens is added to the running
	// total (0 for skipped files).
	Advance(path string, tokens int)
	// Finish ends reporting.
	Finish()
}

// New returns a terminal reporter when out is a terminal and a log
// reporter otherwise.
func New(out *os.File, log *logging.Logger) Reporter {
	if out != nil && (isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())) {
		return NewTerminal(out)
	}
	return NewLog(log)
}

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// Terminal redraws a single status line: bar, running token total and
// file count.
type Terminal struct {
	w      io.Writer
	bar    progress.Model
	total  int
	done   int
	tokens int
}

// NewTerminal creates a terminal reporter writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{
		w: w,
		bar: progress.New(
			progress.WithGradient("#00ffff", "#ff00ff"),
			progress.WithWidth(40),
		),
	}
}

func (t *Terminal) Start(total int) {
	t.total = total
	t.done = 0
	t.tokens = 0
	t.render()
}

func (t *Terminal) Advance(_ string, tokens int) {
	t.done++
	t.tokens += tokens
	t.render()
}

func (t *Terminal) Finish() {
	fmt.Fprintln(t.w)
}

// Line renders the current status line.
func (t *Terminal) Line() string {
	percent := 1.0
	if t.total > 0 {
		percent = float64(t.done) / float64(t.total)
	}
	return t.bar.ViewAs(percent) + "  " +
		labelStyle.Render("Total tokens: ") + valueStyle.Render(fmt.Sprintf("%d", t.tokens)) + "  " +
		dimStyle.Render(fmt.Sprintf("%d/%d", t.done, t.total))
}

func (t *Terminal) render() {
	fmt.Fprint(t.w, "\r"+t.Line())
}

// Log emits one debug line per file and an info line at the end.
type Log struct {
	log    *logging.Logger
	total  int
	done   int
	tokens int
}

// NewLog creates a log reporter. A nil logger discards output.
func NewLog(log *logging.Logger) *Log {
	if log == nil {
		log = logging.NewNop()
	}
	return &Log{log: log.Named("progress")}
}

func (l *Log) Start(total int) {
	l.total = total
	l.done = 0
	l.tokens = 0
}

func (l *Log) Advance(path string, tokens int) {
	l.done++
	l.tokens += tokens
	l.log.Debug(context.Background(), "file processed",
		zap.String("path", path),
		zap.Int("tokens", tokens),
		zap.Int("done", l.done),
		zap.Int("total", l.total),
	)
}

func (l *Log) Finish() {
	l.log.Info(context.Background(), "files processed",
		zap.Int("files", l.done),
		zap.Int("total_tokens", l.tokens),
	)
}

// Tokens returns the running token total.
func (l *Log) Tokens() int { return l.tokens }

type nop struct{}

// Nop discards progress.
var Nop Reporter = nop{}

func (nop) Start(int)           {}
func (nop) Advance(string, int) {}
func (nop) Finish()             {}
