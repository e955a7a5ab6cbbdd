// Package source materializes the repository to ingest as a local
// directory tree: from a zip archive over HTTP, a git clone, or a GitHub
// zipball.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/repovec/internal/config"
	"github.com/fyrsmithlabs/repovec/internal/logging"
)

var (
	// ErrHTTPStatus is returned for a non-2xx download response.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrUnsafePath is returned for an archive member that would be
	// written outside the destination.
	ErrUnsafePath = errors.New("unsafe archive path")

	// ErrRemoteMismatch is returned when the destination is a clone of a
	// different remote.
	ErrRemoteMismatch = errors.New("destination tracks a different remote")
)

// Tree is an acquired directory.
type Tree struct {
	Root string
	Mode string

	// Revision is the checked out commit for git mode.
	Revision string

	// Updated is true when an existing clone was pulled.
	Updated bool
}

// Acquirer produces a local tree.
type Acquirer interface {
	Acquire(ctx context.Context) (*Tree, error)
}

// New builds the acquirer for cfg.Mode.
func New(cfg config.SourceConfig, log *logging.Logger) (Acquirer, error) {
	if log == nil {
		log = logging.NewNop()
	}
	log = log.Named("source")

	switch strings.ToLower(cfg.Mode) {
	case config.ModeZip, "":
		return &ZipAcquirer{
			URL:         cfg.URL,
			Token:       cfg.Token.Value(),
			ArchivePath: cfg.ArchivePath,
			Dest:        cfg.Dest,
			Timeout:     cfg.Timeout.Duration(),
			Log:         log,
		}, nil
	case config.ModeGit:
		return &GitAcquirer{
			URL:    cfg.URL,
			Token:  cfg.Token.Value(),
			Dest:   cfg.Dest,
			Depth:  cfg.Depth,
			Branch: cfg.Branch,
			Log:    log,
		}, nil
	case config.ModeGitHub:
		return NewGitHubAcquirer(GitHubOptions{
			Owner:       cfg.Owner,
			Repo:        cfg.Repo,
			Ref:         cfg.Ref,
			Token:       cfg.Token.Value(),
			ArchivePath: cfg.ArchivePath,
			Dest:        cfg.Dest,
			Timeout:     cfg.Timeout.Duration(),
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown source mode %q (must be %s, %s or %s)", cfg.Mode, config.ModeZip, config.ModeGit, config.ModeGitHub)
	}
}

// defaultTimeout bounds a single download when none is configured.
const defaultTimeout = 5 * time.Minute

// redactURL drops credentials and the query string from raw for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
