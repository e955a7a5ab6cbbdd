package source

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/repovec/internal/config"
	"github.com/fyrsmithlabs/repovec/internal/logging"
)

// maxArchiveRedirects bounds redirects followed while resolving the
// archive link.
const maxArchiveRedirects = 5

// GitHubOptions configures a GitHubAcquirer.
type GitHubOptions struct {
	Owner string
	Repo  string

	// Ref is a branch, tag or commit; empty means the default branch.
	Ref string

	Token       string
	ArchivePath string
	Dest        string
	Timeout     time.Duration
}

// GitHubAcquirer resolves a zipball link through the GitHub API and
// downloads it with a ZipAcquirer.
type GitHubAcquirer struct {
	opts   GitHubOptions
	client *github.Client
	log    *logging.Logger
}

// NewGitHubAcquirer creates an acquirer. A token authenticates API calls
// so private repositories resolve.
func NewGitHubAcquirer(opts GitHubOptions, log *logging.Logger) *GitHubAcquirer {
	if log == nil {
		log = logging.NewNop()
	}
	return &GitHubAcquirer{
		opts:   opts,
		client: newGitHubClient(opts.Token),
		log:    log,
	}
}

func newGitHubClient(token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return github.NewClient(tc)
}

// Acquire resolves the archive link and extracts the zipball into Dest.
func (a *GitHubAcquirer) Acquire(ctx context.Context) (*Tree, error) {
	if a.opts.Owner == "" || a.opts.Repo == "" {
		return nil, fmt.Errorf("github owner and repo: %w", config.ErrMissingValue)
	}

	link, _, err := a.client.Repositories.GetArchiveLink(ctx, a.opts.Owner, a.opts.Repo, github.Zipball,
		&github.RepositoryContentGetOptions{Ref: a.opts.Ref}, maxArchiveRedirects)
	if err != nil {
		return nil, fmt.Errorf("resolve archive for %s/%s: %w", a.opts.Owner, a.opts.Repo, err)
	}
	a.log.Debug(ctx, "resolved archive link",
		zap.String("repo", a.opts.Owner+"/"+a.opts.Repo),
		zap.String("ref", a.opts.Ref),
	)

	// The resolved link is pre-signed; the API token stays with the API.
	zip := &ZipAcquirer{
		URL:         link.String(),
		ArchivePath: a.opts.ArchivePath,
		Dest:        a.opts.Dest,
		Timeout:     a.opts.Timeout,
		Log:         a.log,
	}
	tree, err := zip.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	tree.Mode = config.ModeGitHub
	tree.Revision = a.opts.Ref
	return tree, nil
}
