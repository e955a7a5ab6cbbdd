package secrets

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Action is what happens to a file with findings.
type Action string

// Remediation actions.
const (
	ActionDelete     Action = "delete"
	ActionQuarantine Action = "quarantine"
	ActionReport     Action = "report"
)

// ParseAction validates an action name. Empty means delete.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return ActionDelete, nil
	case ActionDelete, ActionQuarantine, ActionReport:
		return a, nil
	default:
		return "", fmt.Errorf("unknown secrets action %q", s)
	}
}

// Remediator applies an Action to files below Root.
type Remediator struct {
	Action        Action
	Root          string
	QuarantineDir string
}

// Apply remediates the file at relPath (relative to Root) and returns
// where it ended up, or "" when it was removed.
func (r Remediator) Apply(relPath string) (string, error) {
	src := filepath.Join(r.Root, filepath.FromSlash(relPath))

	switch r.Action {
	case ActionReport:
		return src, nil
	case ActionDelete, "":
		if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("delete %s: %w", relPath, err)
		}
		return "", nil
	case ActionQuarantine:
		if r.QuarantineDir == "" {
			return "", errors.New("quarantine directory is not set")
		}
		dst := filepath.Join(r.QuarantineDir, filepath.FromSlash(relPath))
		if !strings.HasPrefix(dst, filepath.Clean(r.QuarantineDir)+string(os.PathSeparator)) {
			return "", fmt.Errorf("quarantine %s: path escapes quarantine directory", relPath)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
			return "", fmt.Errorf("quarantine %s: %w", relPath, err)
		}
		if err := move(src, dst); err != nil {
			return "", fmt.Errorf("quarantine %s: %w", relPath, err)
		}
		return dst, nil
	default:
		return "", fmt.Errorf("unknown secrets action %q", r.Action)
	}
}

// move renames src to dst, falling back to copy and remove across
// filesystems.
func move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
