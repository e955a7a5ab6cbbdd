// Package secrets detects credentials in corpus files before they are
// ingested and applies the configured remediation to offending files.
//
// Three scanners share the Scanner interface:
//   - gitleaks: the gitleaks v8 SDK in-process with its default rule set
//   - command: an external gitleaks binary producing a JSON report
//   - rules: a small built-in regex rule set with no external dependencies
//
// A scanner error is fatal to the run; a finding only excludes the file.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/repovec/internal/config"
)

var (
	// ErrScannerFailed wraps any failure of the scanner itself.
	ErrScannerFailed = errors.New("secret scanner failed")

	// ErrInvalidRegex indicates a regex pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)

// Finding is a detected secret. The secret value itself is never kept.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	File        string `json:"file,omitempty"`
	Line        int    `json:"line"`
	StartCol    int    `json:"start_col"`
	EndCol      int    `json:"end_col"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s:%d:%d %s", f.File, f.Line, f.StartCol, f.RuleID)
}

// Scanner inspects one file on disk.
type Scanner interface {
	Scan(ctx context.Context, path string) ([]Finding, error)
}

// Scanner kinds.
const (
	KindGitleaks = "gitleaks"
	KindCommand  = "command"
	KindRules    = "rules"
)

// New builds the scanner selected by cfg.Scanner.
func New(cfg config.SecretsConfig) (Scanner, error) {
	var allow *Allowlist
	if cfg.AllowlistFile != "" {
		var err error
		if allow, err = LoadAllowlist(cfg.AllowlistFile); err != nil {
			return nil, err
		}
	}

	var (
		s   Scanner
		err error
	)
	switch cfg.Scanner {
	case KindGitleaks, "":
		s, err = NewGitleaksScanner(allow)
	case KindCommand:
		s, err = NewCommandScanner(cfg.Command)
	case KindRules:
		s, err = NewRulesScanner(DefaultRules(), allow)
	default:
		return nil, fmt.Errorf("unknown secret scanner %q (must be %s, %s or %s)", cfg.Scanner, KindGitleaks, KindCommand, KindRules)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
