package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
	"github.com/zricethezav/gitleaks/v8/report"
)

// GitleaksScanner runs the gitleaks default rule set (800+ patterns)
// in-process. It is not safe for concurrent use.
type GitleaksScanner struct {
	detector  *detect.Detector
	allowlist *Allowlist
}

// NewGitleaksScanner builds the detector once; compiling the default
// config is the expensive part.
func NewGitleaksScanner(allow *Allowlist) (*GitleaksScanner, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: gitleaks config: %v", ErrScannerFailed, err)
	}
	if allow != nil && len(allow.regexes) > 0 {
		applyAllowlist(&detector.Config, allow)
	}
	return &GitleaksScanner{detector: detector, allowlist: allow}, nil
}

// Scan reads path and reports every finding.
func (s *GitleaksScanner) Scan(ctx context.Context, path string) ([]Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.allowlist.PathAllowed(filepath.ToSlash(path)) {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrScannerFailed, path, err)
	}

	found := s.detector.DetectString(string(content))
	findings := make([]Finding, 0, len(found))
	for _, f := range found {
		findings = append(findings, fromReport(f, path))
	}
	return findings, nil
}

// fromReport converts a gitleaks finding to the 1-based line and
// [StartCol, EndCol) columns reported by RulesScanner. DetectString
// counts lines from 0, and past the first line its columns also count
// the preceding newline.
func fromReport(f report.Finding, path string) Finding {
	start, end := f.StartColumn, f.EndColumn+1
	if f.StartLine > 0 {
		start--
	}
	if f.EndLine > 0 {
		end--
	}
	return Finding{
		RuleID:      f.RuleID,
		Description: f.Description,
		File:        path,
		Line:        f.StartLine + 1,
		StartCol:    start,
		EndCol:      end,
	}
}

// applyAllowlist appends the content patterns as a global gitleaks
// allowlist. Patterns were compiled by NewAllowlist.
func applyAllowlist(cfg *gitleaksConfig.Config, allow *Allowlist) {
	global := &gitleaksConfig.Allowlist{
		Description: "repovec allowlist",
	}
	for _, re := range allow.regexes {
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	cfg.Allowlists = append(cfg.Allowlists, global)
}
