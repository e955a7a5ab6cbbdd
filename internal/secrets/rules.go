package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Rule is a regex based detection rule.
type Rule struct {
	ID          string
	Description string
	Pattern     string
	// Keywords gate the rule: when set, at least one must occur
	// (case-insensitively) in the content before the pattern runs.
	Keywords []string
}

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []string
}

// RulesScanner matches a fixed set of regex rules. It needs no external
// binary and no rule download, and is safe for concurrent use.
type RulesScanner struct {
	rules     []compiledRule
	allowlist *Allowlist
}

// NewRulesScanner compiles rules.
func NewRulesScanner(rules []Rule, allow *Allowlist) (*RulesScanner, error) {
	s := &RulesScanner{allowlist: allow}
	for i, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: ID is required", i)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %s: %v", ErrInvalidRegex, r.ID, err)
		}
		kws := make([]string, len(r.Keywords))
		for j, kw := range r.Keywords {
			kws[j] = strings.ToLower(kw)
		}
		s.rules = append(s.rules, compiledRule{Rule: r, pattern: re, keywords: kws})
	}
	return s, nil
}

// Scan reads path and matches every rule against its content.
func (s *RulesScanner) Scan(ctx context.Context, path string) ([]Finding, error) {
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

	findings := s.ScanString(string(content))
	for i := range findings {
		findings[i].File = path
	}
	return findings, nil
}

// ScanString matches every rule against content.
func (s *RulesScanner) ScanString(content string) []Finding {
	var lower string
	var findings []Finding

	for _, r := range s.rules {
		if len(r.keywords) > 0 {
			if lower == "" {
				lower = strings.ToLower(content)
			}
			if !containsAny(lower, r.keywords) {
				continue
			}
		}

		for _, m := range r.pattern.FindAllStringIndex(content, -1) {
			if s.allowlist.MatchAllowed(content[m[0]:m[1]]) {
				continue
			}
			line, col := position(content, m[0])
			findings = append(findings, Finding{
				RuleID:      r.ID,
				Description: r.Description,
				Line:        line,
				StartCol:    col,
				EndCol:      col + (m[1] - m[0]),
			})
		}
	}
	return findings
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// position converts a byte offset to a 1-indexed line and column.
func position(content string, offset int) (line, col int) {
	before := content[:offset]
	line = strings.Count(before, "\n") + 1
	col = offset - strings.LastIndex(before, "\n")
	return line, col
}

// DefaultRules returns the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "private-key",
			Description: "Private Key",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP |ENCRYPTED )?PRIVATE KEY(?: BLOCK)?-----`,
		},
		{
			ID:          "aws-access-key-id",
			Description: "AWS Access Key ID",
			Pattern:     `\b(?:A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}\b`,
		},
		{
			ID:          "aws-secret-access-key",
			Description: "AWS Secret Access Key",
			Pattern:     `(?i)(?:aws_secret_access_key|aws_secret_key|secret_access_key)\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`,
			Keywords:    []string{"secret"},
		},
		{
			ID:          "github-pat",
			Description: "GitHub Personal Access Token",
			Pattern:     `\bghp_[A-Za-z0-9]{36}\b`,
		},
		{
			ID:          "github-oauth",
			Description: "GitHub OAuth or App Token",
			Pattern:     `\b(?:gho|ghu|ghs|ghr)_[A-Za-z0-9]{36}\b`,
		},
		{
			ID:          "github-fine-grained-pat",
			Description: "GitHub Fine-grained Personal Access Token",
			Pattern:     `\bgithub_pat_[A-Za-z0-9_]{22,}`,
		},
		{
			ID:          "gitlab-pat",
			Description: "GitLab Personal Access Token",
			Pattern:     `\bglpat-[A-Za-z0-9\-]{20,}`,
		},
		{
			ID:          "slack-token",
			Description: "Slack Token",
			Pattern:     `\bxox[baprs]-[A-Za-z0-9\-]{10,}`,
		},
		{
			ID:          "stripe-key",
			Description: "Stripe API Key",
			Pattern:     `\b(?:sk|rk)_live_[A-Za-z0-9]{24,}`,
		},
		{
			ID:          "openai-api-key",
			Description: "OpenAI API Key",
			Pattern:     `\bsk-(?:proj-)?[A-Za-z0-9_\-]{40,}`,
		},
		{
			ID:          "anthropic-api-key",
			Description: "Anthropic API Key",
			Pattern:     `\bsk-ant-[A-Za-z0-9_\-]{90,}`,
		},
		{
			ID:          "google-api-key",
			Description: "Google API Key",
			Pattern:     `\bAIza[A-Za-z0-9_\-]{35}`,
		},
		{
			ID:          "sendgrid-api-key",
			Description: "SendGrid API Key",
			Pattern:     `\bSG\.[A-Za-z0-9_\-]{22,}\.[A-Za-z0-9_\-]{43,}`,
		},
		{
			ID:          "npm-token",
			Description: "npm Access Token",
			Pattern:     `\bnpm_[A-Za-z0-9]{36}\b`,
		},
		{
			ID:          "database-url",
			Description: "Connection URL with embedded credentials",
			Pattern:     `(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^:/\s]+:[^@\s]+@[^\s'"]+`,
		},
		{
			ID:          "generic-api-key",
			Description: "Generic API Key assignment",
			Pattern:     `(?i)\b(?:api[_-]?key|apikey|access[_-]?token|auth[_-]?token)\s*[:=]\s*['"][A-Za-z0-9_\-]{20,64}['"]`,
			Keywords:    []string{"key", "token"},
		},
	}
}
