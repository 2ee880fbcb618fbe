// Package security holds the path checks applied before the service reads
// or writes files named by configuration or by a caller.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside its allowed root.
var ErrPathEscape = errors.New("path escapes allowed directory")

// canonical returns the absolute, symlink-free form of path. A path that
// does not exist yet is resolved through its nearest existing ancestor, so
// a new file under a symlinked directory is judged by where it would land.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, err := filepath.Rel(dir, abs)
			if err != nil {
				return "", err
			}
			return filepath.Join(resolved, rest), nil
		}
		if dir == filepath.Dir(dir) {
			return abs, nil
		}
	}
}

// ValidatePathWithinDirectory returns ErrPathEscape unless filePath,
// after resolving ".." and symlinks, lies inside safeDir. safeDir must
// exist.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	target, err := canonical(filePath)
	if err != nil {
		return err
	}
	absDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", safeDir, err)
	}
	root, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", safeDir, err)
	}

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s not under %s", ErrPathEscape, filePath, safeDir)
	}
	return nil
}

// ValidatePathWithinAllowedDirs accepts filePath when it lies inside any of
// allowedDirs.
func ValidatePathWithinAllowedDirs(filePath string, allowedDirs []string) error {
	if len(allowedDirs) == 0 {
		return errors.New("no allowed directories specified")
	}
	for _, dir := range allowedDirs {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be within one of %v", ErrPathEscape, filePath, allowedDirs)
}

// ValidateExportPath accepts output paths under the temp directory, the
// working directory or any of extraDirs.
func ValidateExportPath(filePath string, extraDirs ...string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	dirs := append([]string{os.TempDir(), cwd}, extraDirs...)
	return ValidatePathWithinAllowedDirs(filePath, dirs)
}

// SanitizeFilename turns s into a short name made only of ASCII letters,
// digits and ". _ -". Runs of anything else become one underscore.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	under := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			under = false
		case !under:
			b.WriteByte('_')
			under = true
		}
	}
	if out := strings.Trim(b.String(), "._"); out != "" {
		return out
	}
	return "unknown"
}
