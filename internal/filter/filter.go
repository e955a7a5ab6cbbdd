// Package filter decides which files of an acquired tree are eligible for
// ingestion.
//
// Decisions are made on the relative path (slash separated) and, when
// available, the file's metadata. Content checks such as secret scanning
// and UTF-8 decoding happen later in the pipeline.
package filter

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fyrsmithlabs/repovec/internal/config"
	"github.com/fyrsmithlabs/repovec/internal/ignore"
)

// Reason explains why a path was rejected.
type Reason string

const (
	ReasonDirectory         Reason = "directory"
	ReasonVCS               Reason = "vcs"
	ReasonSymlink           Reason = "symlink"
	ReasonUnwantedName      Reason = "unwanted_name"
	ReasonUnwantedExtension Reason = "unwanted_extension"
	ReasonExcludedGlob      Reason = "excluded_glob"
	ReasonTooLarge          Reason = "too_large"
)

// Default deny lists, used when no list is configured.
var (
	DefaultUnwantedNames      = []string{".DS_Store", ".gitignore"}
	DefaultUnwantedExtensions = []string{".png", ".jpg", ".jpeg", ".mp3"}
)

// vcsDirs hold version control metadata.
var vcsDirs = map[string]bool{
	".git": true,
	".svn": true,
	".hg":  true,
}

// Decision is the outcome of Check.
type Decision struct {
	Eligible bool
	Reason   Reason
	// Match is the deny-list entry or glob that caused the rejection.
	Match string
}

// Options configures a Filter.
type Options struct {
	UnwantedNames      []string
	UnwantedExtensions []string
	ExcludeGlobs       []string
	MaxFileSize        int64 // 0 disables the limit
}

// Filter applies deny lists and size limits. It is immutable and safe for
// concurrent use.
type Filter struct {
	names      []string
	extensions []string
	globs      []string
	maxSize    int64
}

// New creates a filter. Glob patterns are validated up front.
func New(opts Options) (*Filter, error) {
	f := &Filter{
		names:   ignore.Merge(opts.UnwantedNames),
		maxSize: opts.MaxFileSize,
	}
	for _, ext := range ignore.Merge(opts.UnwantedExtensions) {
		f.extensions = append(f.extensions, strings.ToLower(ext))
	}
	return f.WithPatterns(opts.ExcludeGlobs...)
}

// FromConfig builds a filter from configuration. Deny-list files are merged
// with inline lists; a list left entirely unconfigured gets its default.
func FromConfig(cfg config.FilterConfig) (*Filter, error) {
	names, err := loadList(cfg.UnwantedNamesFile, cfg.UnwantedNames, DefaultUnwantedNames)
	if err != nil {
		return nil, fmt.Errorf("unwanted names: %w", err)
	}
	exts, err := loadList(cfg.UnwantedExtensionsFile, cfg.UnwantedExtensions, DefaultUnwantedExtensions)
	if err != nil {
		return nil, fmt.Errorf("unwanted extensions: %w", err)
	}
	return New(Options{
		UnwantedNames:      names,
		UnwantedExtensions: exts,
		ExcludeGlobs:       cfg.ExcludeGlobs,
		MaxFileSize:        cfg.MaxFileSize,
	})
}

func loadList(file string, inline, defaults []string) ([]string, error) {
	if file == "" && len(inline) == 0 {
		return defaults, nil
	}
	var fromFile []string
	if file != "" {
		var err error
		if fromFile, err = ignore.ReadList(file); err != nil {
			return nil, err
		}
	}
	return ignore.Merge(fromFile, inline), nil
}

// WithPatterns returns a copy of f with extra exclude globs.
func (f *Filter) WithPatterns(patterns ...string) (*Filter, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	cp := *f
	cp.globs = ignore.Merge(f.globs, patterns)
	return &cp, nil
}

// Check evaluates relPath. info may be nil when only the path is known,
// as for archive members; metadata based checks are then skipped.
func (f *Filter) Check(relPath string, info fs.FileInfo) Decision {
	if strings.HasSuffix(relPath, "/") || (info != nil && info.IsDir()) {
		return reject(ReasonDirectory, "")
	}

	clean := path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	for _, part := range strings.Split(clean, "/") {
		if vcsDirs[part] {
			return reject(ReasonVCS, part)
		}
	}

	if info != nil && info.Mode()&fs.ModeSymlink != 0 {
		return reject(ReasonSymlink, "")
	}

	for _, name := range f.names {
		if strings.Contains(clean, name) {
			return reject(ReasonUnwantedName, name)
		}
	}

	lower := strings.ToLower(clean)
	for _, ext := range f.extensions {
		if strings.HasSuffix(lower, ext) {
			return reject(ReasonUnwantedExtension, ext)
		}
	}

	base := path.Base(clean)
	for _, g := range f.globs {
		if doublestar.MatchUnvalidated(g, clean) || doublestar.MatchUnvalidated(g, base) {
			return reject(ReasonExcludedGlob, g)
		}
	}

	if f.maxSize > 0 && info != nil && info.Size() > f.maxSize {
		return reject(ReasonTooLarge, fmt.Sprintf("%d", f.maxSize))
	}

	return Decision{Eligible: true}
}

// Eligible reports whether relPath passes every check.
func (f *Filter) Eligible(relPath string, info fs.FileInfo) bool {
	return f.Check(relPath, info).Eligible
}

// IsVCSDir reports whether a directory name holds version control metadata.
func IsVCSDir(name string) bool {
	return vcsDirs[name]
}

func reject(r Reason, match string) Decision {
	return Decision{Reason: r, Match: match}
}
