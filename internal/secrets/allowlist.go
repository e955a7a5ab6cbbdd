package secrets

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Allowlist holds path and content patterns exempt from detection.
//
// The file format is the [allowlist] table of a gitleaks config:
//
//	[allowlist]
//	paths = ['''(^|/)testdata/''']
//	regexes = ['''EXAMPLE_KEY''']
type Allowlist struct {
	Paths   []string
	Regexes []string

	paths   []*regexp.Regexp
	regexes []*regexp.Regexp
}

// LoadAllowlist reads and validates an allowlist file.
func LoadAllowlist(path string) (*Allowlist, error) {
	var file struct {
		Allowlist struct {
			Paths   []string
			Regexes []string
		}
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("allowlist %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	return NewAllowlist(file.Allowlist.Paths, file.Allowlist.Regexes)
}

// NewAllowlist compiles the given patterns.
func NewAllowlist(paths, regexes []string) (*Allowlist, error) {
	a := &Allowlist{Paths: paths, Regexes: regexes}
	for _, p := range paths {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: path pattern %q: %v", ErrInvalidRegex, p, err)
		}
		a.paths = append(a.paths, re)
	}
	for _, p := range regexes {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: content pattern %q: %v", ErrInvalidRegex, p, err)
		}
		a.regexes = append(a.regexes, re)
	}
	return a, nil
}

// PathAllowed reports whether path matches an allowlisted path pattern.
func (a *Allowlist) PathAllowed(path string) bool {
	if a == nil {
		return false
	}
	for _, re := range a.paths {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// MatchAllowed reports whether a matched secret is allowlisted.
func (a *Allowlist) MatchAllowed(match string) bool {
	if a == nil {
		return false
	}
	for _, re := range a.regexes {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}
