package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/repovec/internal/config"
	"github.com/google/shlex"
)

// Command template placeholders.
const (
	placeholderPath   = "{path}"
	placeholderReport = "{report}"
)

// CommandScanner runs an external scanner per file. The command must
// write a gitleaks style JSON report to {report}; a non-zero exit is
// treated as a scanner failure.
type CommandScanner struct {
	args []string
}

// NewCommandScanner parses a command template. {path} is required.
func NewCommandScanner(command string) (*CommandScanner, error) {
	if strings.TrimSpace(command) == "" {
		command = config.DefaultScanCommand
	}
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse scanner command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("scanner command is empty")
	}
	if !strings.Contains(command, placeholderPath) {
		return nil, fmt.Errorf("scanner command must contain %s", placeholderPath)
	}
	return &CommandScanner{args: args}, nil
}

// reportFinding mirrors the gitleaks JSON report fields in use.
type reportFinding struct {
	RuleID      string `json:"RuleID"`
	Description string `json:"Description"`
	StartLine   int    `json:"StartLine"`
	StartColumn int    `json:"StartColumn"`
	EndColumn   int    `json:"EndColumn"`
	File        string `json:"File"`
}

// Scan runs the command for path and parses the report it writes.
func (s *CommandScanner) Scan(ctx context.Context, path string) ([]Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "repovec-scan-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScannerFailed, err)
	}
	defer os.RemoveAll(dir)
	report := filepath.Join(dir, "report.json")

	args := s.expand(path, report)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrScannerFailed, args[0], err, strings.TrimSpace(stderr.String()))
	}

	return parseReport(report, path)
}

func (s *CommandScanner) expand(path, report string) []string {
	out := make([]string, len(s.args))
	r := strings.NewReplacer(placeholderPath, path, placeholderReport, report)
	for i, a := range s.args {
		out[i] = r.Replace(a)
	}
	return out
}

// parseReport reads a gitleaks JSON report. A missing or empty report
// means no findings.
func parseReport(report, path string) ([]Finding, error) {
	data, err := os.ReadFile(report)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read report: %v", ErrScannerFailed, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var raw []reportFinding
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse report: %v", ErrScannerFailed, err)
	}

	findings := make([]Finding, 0, len(raw))
	for _, f := range raw {
		file := f.File
		if file == "" {
			file = path
		}
		findings = append(findings, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			File:        file,
			Line:        f.StartLine,
			StartCol:    f.StartColumn,
			EndCol:      f.EndColumn,
		})
	}
	return findings, nil
}
