// SPDX-License-Identifier: MPL-2.0

package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/moduni/moduni/pkg/gitrepo"
)

const bareSuffix = ".git"

// FileSystem keeps bare repositories in a local folder.
type FileSystem struct {
	settings FileSystemSettings
	logger   *slog.Logger
}

func newFileSystem(s FileSystemSettings, o options) *FileSystem {
	if s.Color == "" {
		s.Color = DefaultColor
	}
	return &FileSystem{settings: s, logger: o.logger}
}

// Name returns the display name.
func (f *FileSystem) Name() string { return f.settings.Name }

// Color returns the display color.
func (f *FileSystem) Color() string { return f.settings.Color }

// Kind returns KindFileSystem.
func (f *FileSystem) Kind() Kind { return KindFileSystem }

// Folder returns the folder holding the repositories.
func (f *FileSystem) Folder() string { return f.settings.Folder }

func (f *FileSystem) repoPath(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: repository name %q contains a path separator", ErrInvalidSettings, name)
	}
	return filepath.Join(f.settings.Folder, name+bareSuffix), nil
}

// CreateRepository initializes a bare repository named name.
func (f *FileSystem) CreateRepository(ctx context.Context, name string) (Remote, error) {
	if err := ctx.Err(); err != nil {
		return Remote{}, provisioningError(f.Name(), "create", name, err)
	}
	dir, err := f.repoPath(name)
	if err != nil {
		return Remote{}, provisioningError(f.Name(), "create", name, err)
	}
	if _, err := os.Stat(dir); err == nil {
		return Remote{}, provisioningError(f.Name(), "create", name, ErrRepositoryExists)
	}
	if err := os.MkdirAll(f.settings.Folder, 0o755); err != nil {
		return Remote{}, provisioningError(f.Name(), "create", name, err)
	}
	repo, err := gitrepo.Init(dir, true, gitrepo.WithLogger(f.logger))
	if err != nil {
		return Remote{}, provisioningError(f.Name(), "create", name, err)
	}
	_ = repo.Close()
	f.logger.Debug("created repository", "manager", f.Name(), "path", dir)
	return Remote{Name: name, URL: dir}, nil
}

// DeleteRepository removes the bare repository named name.
func (f *FileSystem) DeleteRepository(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return provisioningError(f.Name(), "delete", name, err)
	}
	dir, err := f.repoPath(name)
	if err != nil {
		return provisioningError(f.Name(), "delete", name, err)
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return provisioningError(f.Name(), "delete", name, ErrRepositoryNotFound)
	}
	if err := os.RemoveAll(dir); err != nil {
		return provisioningError(f.Name(), "delete", name, err)
	}
	f.logger.Debug("deleted repository", "manager", f.Name(), "path", dir)
	return nil
}

// ListRepositories returns every "*.git" directory of the folder, sorted by name.
// A missing folder lists as empty.
func (f *FileSystem) ListRepositories(ctx context.Context) ([]Remote, error) {
	if err := ctx.Err(); err != nil {
		return nil, provisioningError(f.Name(), "list", "", err)
	}
	pattern := filepath.Join(doublestar.EscapeMeta(f.settings.Folder), "*"+bareSuffix)
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, provisioningError(f.Name(), "list", "", err)
	}
	remotes := make([]Remote, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() {
			continue
		}
		remotes = append(remotes, Remote{Name: strings.TrimSuffix(filepath.Base(m), bareSuffix), URL: m})
	}
	slices.SortFunc(remotes, func(a, b Remote) int { return strings.Compare(a.Name, b.Name) })
	return remotes, nil
}
