package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/repovec/internal/config"
	"github.com/fyrsmithlabs/repovec/internal/logging"
)

// GitAcquirer clones URL into Dest, or pulls when Dest already holds a
// clone of URL.
type GitAcquirer struct {
	URL  string
	Dest string

	// Token is used as the basic auth password for HTTPS remotes.
	Token string

	// Depth limits history; 0 or a negative value fetches everything.
	Depth int

	Branch string
	Log    *logging.Logger
}

// Acquire clones or updates the repository.
func (g *GitAcquirer) Acquire(ctx context.Context) (*Tree, error) {
	if g.URL == "" {
		return nil, fmt.Errorf("git url: %w", config.ErrMissingValue)
	}
	log := g.Log
	if log == nil {
		log = logging.NewNop()
	}

	repo, err := git.PlainOpen(g.Dest)
	switch {
	case err == nil:
		if err := g.checkOrigin(repo); err != nil {
			return nil, err
		}
		if err := g.pull(ctx, repo); err != nil {
			return nil, err
		}
		rev := revision(repo)
		log.Info(ctx, "pulled repository", zap.String("dest", g.Dest), zap.String("revision", rev))
		return &Tree{Root: g.Dest, Mode: config.ModeGit, Revision: rev, Updated: true}, nil
	case errors.Is(err, git.ErrRepositoryNotExists):
		if nonEmptyDir(g.Dest) {
			return nil, fmt.Errorf("destination %s exists and is not a git repository", g.Dest)
		}
	default:
		return nil, fmt.Errorf("open %s: %w", g.Dest, err)
	}

	repo, err = git.PlainCloneContext(ctx, g.Dest, false, &git.CloneOptions{
		URL:           g.URL,
		Auth:          g.auth(),
		Depth:         g.depth(),
		SingleBranch:  true,
		ReferenceName: g.reference(),
		Tags:          git.NoTags,
	})
	if err != nil {
		os.RemoveAll(g.Dest)
		return nil, fmt.Errorf("clone %s: %w", redactURL(g.URL), err)
	}
	rev := revision(repo)
	log.Info(ctx, "cloned repository", zap.String("dest", g.Dest), zap.String("revision", rev))
	return &Tree{Root: g.Dest, Mode: config.ModeGit, Revision: rev}, nil
}

func (g *GitAcquirer) checkOrigin(repo *git.Repository) error {
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return fmt.Errorf("%w: %s has no origin remote", ErrRemoteMismatch, g.Dest)
	}
	for _, u := range remote.Config().URLs {
		if sameRemote(u, g.URL) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s tracks %v, want %s", ErrRemoteMismatch, g.Dest, remote.Config().URLs, redactURL(g.URL))
}

func (g *GitAcquirer) pull(ctx context.Context, repo *git.Repository) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	// Files removed by an earlier secret scan leave the worktree dirty
	// and pull refuses to merge into it. They are rescanned after the pull.
	if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		return fmt.Errorf("reset worktree: %w", err)
	}
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    git.DefaultRemoteName,
		ReferenceName: g.reference(),
		SingleBranch:  true,
		Depth:         g.depth(),
		Auth:          g.auth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pull %s: %w", redactURL(g.URL), err)
	}
	return nil
}

func (g *GitAcquirer) depth() int {
	if g.Depth < 0 {
		return 0
	}
	return g.Depth
}

func (g *GitAcquirer) auth() transport.AuthMethod {
	if g.Token == "" {
		return nil
	}
	return &http.BasicAuth{Username: "x-access-token", Password: g.Token}
}

func (g *GitAcquirer) reference() plumbing.ReferenceName {
	if g.Branch == "" {
		return ""
	}
	return plumbing.NewBranchReferenceName(g.Branch)
}

func revision(repo *git.Repository) string {
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}

// sameRemote compares remote URLs ignoring credentials, a trailing slash
// and a ".git" suffix.
func sameRemote(a, b string) bool {
	return normalizeRemote(a) == normalizeRemote(b)
}

func normalizeRemote(raw string) string {
	s := redactURL(raw)
	if strings.HasPrefix(s, "<") {
		s = raw
	}
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")
	return strings.ToLower(s)
}

func nonEmptyDir(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
