package source

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/repovec/internal/config"
	"github.com/fyrsmithlabs/repovec/internal/logging"
)

// ZipAcquirer downloads a zip archive and extracts it into Dest.
type ZipAcquirer struct {
	URL string

	// Token is sent as a bearer token when set.
	Token string

	// ArchivePath may lie inside Dest; the archive is kept across the
	// replacement of Dest.
	ArchivePath string
	Dest        string
	Timeout     time.Duration
	Log         *logging.Logger

	// Client overrides the HTTP client, mainly for tests.
	Client *resty.Client
}

// Acquire downloads the archive, replaces Dest with its contents and
// returns the tree.
func (z *ZipAcquirer) Acquire(ctx context.Context) (*Tree, error) {
	if z.URL == "" {
		return nil, fmt.Errorf("zip url: %w", config.ErrMissingValue)
	}
	log := z.Log
	if log == nil {
		log = logging.NewNop()
	}

	if err := z.download(ctx); err != nil {
		return nil, err
	}
	log.Info(ctx, "downloaded archive", zap.String("path", z.ArchivePath))

	staging, err := stagingDir(z.Dest)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging)

	n, err := Extract(ctx, z.ArchivePath, staging, log)
	if err != nil {
		return nil, err
	}
	if err := replaceDir(z.Dest, staging, z.ArchivePath); err != nil {
		return nil, err
	}
	log.Info(ctx, "extracted archive", zap.String("dest", z.Dest), zap.Int("files", n))

	return &Tree{Root: z.Dest, Mode: config.ModeZip}, nil
}

func (z *ZipAcquirer) download(ctx context.Context) error {
	client := z.Client
	if client == nil {
		timeout := z.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = resty.New().SetTimeout(timeout)
	}

	if err := os.MkdirAll(filepath.Dir(z.ArchivePath), 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	req := client.R().SetContext(ctx).SetOutput(z.ArchivePath)
	if z.Token != "" {
		req.SetAuthToken(z.Token)
	}

	resp, err := req.Get(z.URL)
	if err != nil {
		os.Remove(z.ArchivePath)
		return fmt.Errorf("download %s: %w", redactURL(z.URL), err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		os.Remove(z.ArchivePath)
		return fmt.Errorf("download %s: %w: %d", redactURL(z.URL), ErrHTTPStatus, resp.StatusCode())
	}
	return nil
}

// Extract writes the members of the archive at src into dest and returns
// the number of files written. A single top-level directory shared by
// every member is stripped. Symlinks are skipped.
func Extract(ctx context.Context, src, dest string, log *logging.Logger) (int, error) {
	if log == nil {
		log = logging.NewNop()
	}
	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return 0, err
	}
	prefix := commonPrefix(r.File)

	written := 0
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		name := strings.TrimPrefix(f.Name, prefix)
		if name == "" || f.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
			continue
		}
		if f.Mode()&os.ModeSymlink != 0 {
			log.Debug(ctx, "skipping symlink member", zap.String("name", f.Name))
			continue
		}

		target, err := safeJoin(root, name)
		if err != nil {
			return written, err
		}
		if err := writeMember(f, target); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// commonPrefix returns "dir/" when every member lives under the same
// top-level directory, as in GitHub zipballs.
func commonPrefix(files []*zip.File) string {
	var prefix string
	for _, f := range files {
		first, _, found := strings.Cut(f.Name, "/")
		if !found {
			return ""
		}
		if first == "" || first == "." || first == ".." {
			return ""
		}
		if prefix == "" {
			prefix = first
		} else if first != prefix {
			return ""
		}
	}
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// safeJoin joins an archive member name to root, rejecting names that
// are absolute or escape root.
func safeJoin(root, name string) (string, error) {
	if path.IsAbs(name) || filepath.IsAbs(name) || strings.Contains(name, `\`) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return target, nil
}

func writeMember(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open member %s: %w", f.Name, err)
	}
	defer rc.Close()

	mode := f.Mode().Perm() | 0o600
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// stagingDir creates an empty directory next to dest for extraction.
func stagingDir(dest string) (string, error) {
	clean := filepath.Clean(dest)
	if clean == "." || clean == string(os.PathSeparator) || dest == "" {
		return "", fmt.Errorf("refusing to replace destination %q", dest)
	}
	parent := filepath.Dir(clean)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("create destination parent: %w", err)
	}
	dir, err := os.MkdirTemp(parent, "."+filepath.Base(clean)+"-extract-")
	if err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	return dir, nil
}

// replaceDir swaps staging in for dest so stale files from an earlier run
// never reach the corpus. A file at keep that lives under dest is moved
// into staging first.
func replaceDir(dest, staging, keep string) error {
	clean := filepath.Clean(dest)
	if rel, ok := within(clean, keep); ok {
		target := filepath.Join(staging, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.Rename(keep, target); err != nil {
			return fmt.Errorf("keep archive: %w", err)
		}
	}
	if err := os.RemoveAll(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear destination: %w", err)
	}
	if err := os.Rename(staging, clean); err != nil {
		return fmt.Errorf("replace destination: %w", err)
	}
	return nil
}

// within reports whether path lies strictly under dir and returns its
// relative name.
func within(dir, path string) (string, bool) {
	if path == "" {
		return "", false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", false
	}
	return rel, true
}
