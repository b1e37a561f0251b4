// Package security checks user-supplied file paths against the directories
// they are allowed to touch.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideDir is returned when a path resolves outside its allowed
// directory.
var ErrOutsideDir = errors.New("path escapes allowed directory")

// canonical resolves symlinks in path. For a path that does not exist yet
// the nearest existing ancestor is resolved and the rest re-joined, so a
// symlinked parent cannot smuggle a new file elsewhere.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, err := filepath.Rel(dir, abs)
			if err != nil {
				return "", err
			}
			return filepath.Join(resolved, rel), nil
		}
		if dir == filepath.Dir(dir) {
			return abs, nil
		}
	}
}

// CheckWithinDir returns ErrOutsideDir when path, after resolving symlinks,
// is not dir or a descendant of it.
func CheckWithinDir(path, dir string) error {
	p, err := canonical(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	d, err := canonical(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}
	rel, err := filepath.Rel(d, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%s: %w %s", path, ErrOutsideDir, dir)
	}
	return nil
}

// CheckOutputPath allows writes under the working directory or the system
// temp directory.
func CheckOutputPath(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	for _, dir := range []string{cwd, os.TempDir()} {
		if CheckWithinDir(path, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("%s: %w (working or temp directory)", path, ErrOutsideDir)
}
