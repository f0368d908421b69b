// Package binlink exposes a CLI workspace's executables on PATH under
// workspace-suffixed names, so several checkouts of one tool coexist.
package binlink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LinkName returns the name a bin is linked under for a workspace
func LinkName(bin, workspaceKey string) string {
	return bin + "-" + workspaceKey
}

// Link symlinks each bin (name -> path relative to workspace) into binDir
// as LinkName(name, workspaceKey). Existing links pointing into the same
// workspace are replaced; anything else already at the link path is an
// error. It returns the created link paths.
func Link(binDir, workspace, workspaceKey string, bins map[string]string) ([]string, error) {
	if len(bins) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(binDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", binDir, err)
	}

	names := make([]string, 0, len(bins))
	for name := range bins {
		names = append(names, name)
	}
	sort.Strings(names)

	var created []string
	for _, name := range names {
		target := filepath.Join(workspace, filepath.FromSlash(bins[name]))
		if !within(target, workspace) {
			return created, fmt.Errorf("bin %s points outside the workspace: %s", name, bins[name])
		}
		link := filepath.Join(binDir, LinkName(name, workspaceKey))

		if existing, err := os.Readlink(link); err == nil {
			if !within(resolve(link, existing), workspace) {
				return created, fmt.Errorf("%s already exists and points to %s", link, existing)
			}
			if err := os.Remove(link); err != nil {
				return created, fmt.Errorf("failed to replace %s: %w", link, err)
			}
		} else if _, err := os.Lstat(link); err == nil {
			return created, fmt.Errorf("%s already exists and is not a symlink", link)
		}

		// Built outputs may not exist yet; only fix the mode when present
		if info, err := os.Stat(target); err == nil && info.Mode()&0111 == 0 {
			_ = os.Chmod(target, info.Mode()|0755)
		}

		if err := os.Symlink(target, link); err != nil {
			return created, fmt.Errorf("failed to link %s: %w", link, err)
		}
		created = append(created, link)
	}
	return created, nil
}

// Unlink removes every symlink in binDir whose target lies inside
// workspace and returns the removed paths. A missing binDir is not an
// error. Removal keeps going past individual failures.
func Unlink(binDir, workspace string, dryRun bool) ([]string, error) {
	entries, err := os.ReadDir(binDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", binDir, err)
	}

	var removed []string
	var errs []error
	for _, e := range entries {
		if e.Type()&os.ModeSymlink == 0 {
			continue
		}
		link := filepath.Join(binDir, e.Name())
		target, err := os.Readlink(link)
		if err != nil || !within(resolve(link, target), workspace) {
			continue
		}
		if !dryRun {
			if err := os.Remove(link); err != nil {
				errs = append(errs, fmt.Errorf("failed to remove %s: %w", link, err))
				continue
			}
		}
		removed = append(removed, link)
	}
	return removed, errors.Join(errs...)
}

func resolve(link, target string) string {
	if filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(filepath.Dir(link), target)
}

// within reports whether path is dir or inside it
func within(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
