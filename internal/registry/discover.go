// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/moduni/moduni/pkg/module"
)

// discoverDirs returns the module working copies under root, sorted.
// root itself is the project and never a module.
func discoverDirs(root string) ([]string, error) {
	fsys := os.DirFS(root)
	matches, err := doublestar.Glob(fsys, "**/"+module.MetadataFile)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, match := range matches {
		dir := path.Dir(match)
		if dir == "." || isGitInternal(dir) {
			continue
		}
		if _, err := fs.Stat(fsys, path.Join(dir, ".git")); err != nil {
			continue
		}
		dirs = append(dirs, filepath.Join(root, filepath.FromSlash(dir)))
	}
	slices.Sort(dirs)
	return slices.Compact(dirs), nil
}

func isGitInternal(dir string) bool {
	for {
		if path.Base(dir) == ".git" {
			return true
		}
		parent := path.Dir(dir)
		if parent == dir || parent == "." {
			return false
		}
		dir = parent
	}
}
