package pipeline

import (
	"time"

	"github.com/fyrsmithlabs/repovec/internal/secrets"
	"github.com/fyrsmithlabs/repovec/internal/source"
)

// Entry is one ingested file.
type Entry struct {
	// Path is slash separated and relative to the tree root.
	Path string

	Text   string
	Tokens int
}

// FileResult describes what happened to one file of the tree.
type FileResult struct {
	Path    string
	Outcome string

	// Match is the deny-list entry or glob behind a filter rejection.
	Match string

	Findings []secrets.Finding

	// Remediated is where a secret-bearing file ended up; empty when it
	// was deleted.
	Remediated string

	Tokens int
}

// Options tune a single run.
type Options struct {
	// SkipLoad stops after the summary is written.
	SkipLoad bool

	// SummaryPath overrides summary.path.
	SummaryPath string

	// Visit, when set, is called for every file of the tree.
	Visit func(FileResult)
}

// Result summarizes a run.
type Result struct {
	RunID string
	Tree  *source.Tree

	// Files is the number of files visited.
	Files   int
	Entries []Entry

	// Skipped counts skipped files by outcome.
	Skipped map[string]int

	// Secrets lists the relative paths with findings.
	Secrets []string

	Tokens      int
	Chunks      int
	SummaryPath string
	Loaded      bool

	Duration   time.Duration
	FinishedAt time.Time
}
