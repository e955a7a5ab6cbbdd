// Package ignore reads the line-oriented lists that drive file filtering:
// deny lists of names and extensions, and gitignore-style pattern files
// found in an acquired tree.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TreeFile is the gitignore-style file honoured at the root of a tree.
const TreeFile = ".repovecignore"

// ReadList reads a newline-delimited deny list. Blank lines and lines
// starting with '#' are skipped; surrounding whitespace is trimmed and
// duplicates are removed, keeping first occurrence order.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open deny list: %w", err)
	}
	defer f.Close()

	entries, err := readLines(f, func(line string) string {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return ""
		}
		return line
	})
	if err != nil {
		return nil, fmt.Errorf("read deny list %s: %w", path, err)
	}
	return Merge(entries), nil
}

// Merge concatenates lists and removes duplicates and empty entries.
func Merge(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// TreePatterns returns doublestar patterns from TreeFile under root.
// A missing file yields no patterns and no error.
func TreePatterns(root string) ([]string, error) {
	f, err := os.Open(filepath.Join(root, TreeFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	patterns, err := readLines(f, parseLine)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", TreeFile, err)
	}
	return Merge(patterns), nil
}

func readLines(r io.Reader, parse func(string) string) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if v := parse(scanner.Text()); v != "" {
			out = append(out, v)
		}
	}
	return out, scanner.Err()
}

// parseLine converts one gitignore line to a glob.
// Comments, blank lines and negations yield "".
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ""
	}
	return toGlobPattern(line)
}

// toGlobPattern converts a gitignore pattern to a doublestar glob.
//
//	/build      -> build/**
//	docs/       -> **/docs/**
//	*.min.js    -> *.min.js  (matched against the base name by the filter too)
//	secrets.txt -> **/secrets.txt
func toGlobPattern(pattern string) string {
	anchored := strings.HasPrefix(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")

	dir := strings.HasSuffix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")

	if !anchored && !strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "*") {
		pattern = "**/" + pattern
	}

	// Bare names without an extension are treated as directories.
	if dir || (!strings.Contains(filepath.Base(pattern), ".") && !strings.HasSuffix(pattern, "*")) {
		pattern += "/**"
	}
	return pattern
}
