package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/repovec/internal/filter"
	"github.com/fyrsmithlabs/repovec/internal/ignore"
	"github.com/fyrsmithlabs/repovec/internal/metrics"
	"github.com/fyrsmithlabs/repovec/internal/secrets"
	"github.com/fyrsmithlabs/repovec/internal/summary"
)

type walkedFile struct {
	rel  string
	abs  string
	info fs.FileInfo
}

// Collect walks root and returns the entries that survive filtering,
// secret scanning and decoding, recording each in rec.
func (p *Pipeline) Collect(ctx context.Context, root string, rec *summary.Recorder, opts Options) ([]Entry, *Result, error) {
	res := &Result{Skipped: make(map[string]int)}

	f := p.filter
	patterns, err := ignore.TreePatterns(root)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", ignore.TreeFile, err)
	}
	if len(patterns) > 0 {
		if f, err = f.WithPatterns(patterns...); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", ignore.TreeFile, err)
		}
		p.log.Debug(ctx, "applying tree exclude patterns", zap.Strings("patterns", patterns))
	}

	files, err := walk(ctx, root)
	if err != nil {
		return nil, nil, err
	}

	p.progress.Start(len(files))
	defer p.progress.Finish()

	var entries []Entry
	for _, wf := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		res.Files++

		fr, entry, err := p.processFile(ctx, f, wf)
		if err != nil {
			return nil, nil, err
		}
		p.metrics.File(fr.Outcome)
		if opts.Visit != nil {
			opts.Visit(fr)
		}

		if entry == nil {
			res.Skipped[fr.Outcome]++
			if fr.Outcome == metrics.OutcomeSecret {
				res.Secrets = append(res.Secrets, fr.Path)
			}
			p.progress.Advance(fr.Path, 0)
			continue
		}

		rec.Add(entry.Path, entry.Tokens)
		p.metrics.AddTokens(entry.Tokens)
		res.Tokens += entry.Tokens
		entries = append(entries, *entry)
		p.progress.Advance(entry.Path, entry.Tokens)
	}

	res.Entries = entries
	return entries, res, nil
}

func (p *Pipeline) processFile(ctx context.Context, f *filter.Filter, wf walkedFile) (FileResult, *Entry, error) {
	fr := FileResult{Path: wf.rel}

	if d := f.Check(wf.rel, wf.info); !d.Eligible {
		fr.Outcome = string(d.Reason)
		fr.Match = d.Match
		p.log.Info(ctx, "skipping file",
			zap.String("path", wf.rel),
			zap.String("reason", fr.Outcome),
			zap.String("match", d.Match),
		)
		return fr, nil, nil
	}

	if p.scanner != nil {
		findings, err := p.scanner.Scan(ctx, wf.abs)
		if err != nil {
			return fr, nil, fmt.Errorf("scan %s: %w", wf.rel, err)
		}
		if len(findings) > 0 {
			dst, err := p.remediator.Apply(wf.rel)
			if err != nil {
				return fr, nil, err
			}
			fr.Outcome = metrics.OutcomeSecret
			fr.Findings = findings
			fr.Remediated = dst
			p.log.Warn(ctx, "secret detected, excluding file",
				zap.String("path", wf.rel),
				zap.Strings("rules", ruleIDs(findings)),
				zap.String("action", string(p.remediator.Action)),
				zap.String("destination", dst),
			)
			return fr, nil, nil
		}
	}

	content, err := os.ReadFile(wf.abs)
	if err != nil {
		return fr, nil, fmt.Errorf("read %s: %w", wf.rel, err)
	}
	if !utf8.Valid(content) {
		fr.Outcome = metrics.OutcomeUndecodable
		p.log.Info(ctx, "skipping undecodable file", zap.String("path", wf.rel))
		return fr, nil, nil
	}

	text := string(content)
	fr.Outcome = metrics.OutcomeIndexed
	fr.Tokens = p.counter.Count(text)
	return fr, &Entry{Path: wf.rel, Text: text, Tokens: fr.Tokens}, nil
}

// walk lists the files under root in lexical order, pruning VCS
// metadata directories.
func walk(ctx context.Context, root string) ([]walkedFile, error) {
	var files []walkedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && filter.IsVCSDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)
		if rel == ignore.TreeFile {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, walkedFile{rel: rel, abs: path, info: info})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking file tree: %w", err)
	}
	return files, nil
}

func ruleIDs(findings []secrets.Finding) []string {
	seen := make(map[string]bool, len(findings))
	var ids []string
	for _, f := range findings {
		if !seen[f.RuleID] {
			seen[f.RuleID] = true
			ids = append(ids, f.RuleID)
		}
	}
	return ids
}
