// SPDX-License-Identifier: MPL-2.0

package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/moduni/moduni/pkg/scm"
)

const gitmodulesFile = ".gitmodules"

func (r *Repository) readModules() (*config.Modules, error) {
	modules := config.NewModules()
	data, err := os.ReadFile(filepath.Join(r.location, gitmodulesFile))
	if errors.Is(err, os.ErrNotExist) {
		return modules, nil
	}
	if err != nil {
		return nil, err
	}
	if err := modules.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", gitmodulesFile, err)
	}
	return modules, nil
}

// writeModules persists modules and stages the result. An empty set
// removes the file.
func (r *Repository) writeModules(g *git.Repository, wt *git.Worktree, modules *config.Modules) error {
	file := filepath.Join(r.location, gitmodulesFile)
	if len(modules.Submodules) == 0 {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return removeIndexEntry(g, gitmodulesFile)
	}
	data, err := modules.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return err
	}
	_, err = wt.Add(gitmodulesFile)
	return err
}

func findByPath(modules *config.Modules, p string) *config.Submodule {
	for _, sm := range modules.Submodules {
		if sm.Path == p {
			return sm
		}
	}
	return nil
}

func removeIndexEntry(g *git.Repository, p string) error {
	idx, err := g.Storer.Index()
	if err != nil {
		return err
	}
	if _, err := idx.Remove(p); err != nil && !errors.Is(err, index.ErrEntryNotFound) {
		return err
	}
	return g.Storer.SetIndex(idx)
}

// modulesGitDir is where the git directory of submodule name is absorbed.
func (r *Repository) modulesGitDir(name string) string {
	return filepath.Join(r.location, git.GitDirName, "modules", filepath.FromSlash(name))
}

// linkGitDir points the working copy at gitDir and gitDir back at the
// working copy, using relative paths on both sides.
func linkGitDir(worktree, gitDir string) error {
	rel, err := filepath.Rel(worktree, gitDir)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("gitdir: %s\n", filepath.ToSlash(rel))
	if err := os.WriteFile(filepath.Join(worktree, git.GitDirName), []byte(link), 0o644); err != nil {
		return err
	}

	st := filesystem.NewStorage(osfs.New(gitDir), cache.NewObjectLRUDefault())
	cfg, err := st.Config()
	if err != nil {
		return err
	}
	back, err := filepath.Rel(gitDir, worktree)
	if err != nil {
		return err
	}
	cfg.Core.Worktree = filepath.ToSlash(back)
	return st.SetConfig(cfg)
}

// AddSubmodule implements scm.Repository. The submodule is cloned into p
// with its git directory absorbed under .git/modules; .gitmodules and the
// gitlink are staged.
func (r *Repository) AddSubmodule(ctx context.Context, url, p string) (scm.Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, wt, err := r.worktree("add submodule")
	if err != nil {
		return nil, err
	}
	p = filepath.ToSlash(filepath.Clean(p))
	worktree, err := r.within(p)
	if err != nil {
		return nil, err
	}
	modules, err := r.readModules()
	if err != nil {
		return nil, &scm.PathError{Op: "add submodule", Path: p, Err: err}
	}
	if findByPath(modules, p) != nil {
		return nil, &scm.PathError{Op: "add submodule", Path: p, Err: fmt.Errorf("%w: submodule already registered", scm.ErrInvalidPath)}
	}
	if err := ensureFreeDir(worktree); err != nil {
		return nil, &scm.PathError{Op: "add submodule", Path: p, Err: err}
	}

	gitDir := r.modulesGitDir(p)
	if err := os.MkdirAll(worktree, 0o755); err != nil {
		return nil, &scm.PathError{Op: "add submodule", Path: p, Err: err}
	}
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		return nil, &scm.PathError{Op: "add submodule", Path: p, Err: err}
	}
	st := filesystem.NewStorage(osfs.New(gitDir), cache.NewObjectLRUDefault())
	sub, err := git.CloneContext(ctx, st, osfs.New(worktree), &git.CloneOptions{URL: url, Auth: r.auth(url)})
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		sub, err = git.Init(st, osfs.New(worktree))
		if err == nil {
			_, err = sub.CreateRemote(&config.RemoteConfig{Name: scm.RemoteName, URLs: []string{url}})
		}
	}
	if err != nil {
		_ = os.RemoveAll(worktree)
		_ = os.RemoveAll(gitDir)
		return nil, r.refErr("add submodule", url, err)
	}
	if err := linkGitDir(worktree, gitDir); err != nil {
		return nil, &scm.PathError{Op: "add submodule", Path: p, Err: err}
	}

	sm := &config.Submodule{Name: p, Path: p, URL: url}
	modules.Submodules[p] = sm
	if err := r.registerSubmodule(g, sm); err != nil {
		return nil, &scm.PathError{Op: "add submodule", Path: p, Err: err}
	}
	if err := r.writeModules(g, wt, modules); err != nil {
		return nil, &scm.PathError{Op: "add submodule", Path: p, Err: err}
	}
	if err := r.stageGitlink(g, p); err != nil {
		return nil, err
	}
	r.logger.Debug("added submodule", "repository", r.name, "path", p, "url", url)

	child := newRepository(sub, worktree, r.options())
	child.submodule = true
	return child, nil
}

// registerSubmodule mirrors sm into .git/config, or removes it when sm.URL
// is empty.
func (r *Repository) registerSubmodule(g *git.Repository, sm *config.Submodule) error {
	cfg, err := g.Config()
	if err != nil {
		return err
	}
	if sm.URL == "" {
		delete(cfg.Submodules, sm.Name)
	} else {
		cfg.Submodules[sm.Name] = &config.Submodule{Name: sm.Name, Path: sm.Path, URL: sm.URL}
	}
	return g.SetConfig(cfg)
}

// MoveSubmodule implements scm.Repository. The submodule keeps its name
// and absorbed git directory; only its path changes.
func (r *Repository) MoveSubmodule(oldPath, newPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, wt, err := r.worktree("move submodule")
	if err != nil {
		return err
	}
	oldPath = filepath.ToSlash(filepath.Clean(oldPath))
	newPath = filepath.ToSlash(filepath.Clean(newPath))
	src, err := r.within(oldPath)
	if err != nil {
		return err
	}
	dst, err := r.within(newPath)
	if err != nil {
		return err
	}

	modules, err := r.readModules()
	if err != nil {
		return &scm.PathError{Op: "move submodule", Path: oldPath, Err: err}
	}
	sm := findByPath(modules, oldPath)
	if sm == nil {
		return &scm.PathError{Op: "move submodule", Path: oldPath, Err: fmt.Errorf("%w: not a submodule", scm.ErrInvalidPath)}
	}
	if findByPath(modules, newPath) != nil {
		return &scm.PathError{Op: "move submodule", Path: newPath, Err: fmt.Errorf("%w: submodule already registered", scm.ErrInvalidPath)}
	}
	if err := ensureFreeDir(dst); err != nil {
		return &scm.PathError{Op: "move submodule", Path: newPath, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &scm.PathError{Op: "move submodule", Path: newPath, Err: err}
	}
	_ = os.Remove(dst)
	if err := os.Rename(src, dst); err != nil {
		return &scm.PathError{Op: "move submodule", Path: newPath, Err: err}
	}
	if err := linkGitDir(dst, r.modulesGitDir(sm.Name)); err != nil {
		return &scm.PathError{Op: "move submodule", Path: newPath, Err: err}
	}

	idx, err := g.Storer.Index()
	if err != nil {
		return &scm.PathError{Op: "move submodule", Path: oldPath, Err: err}
	}
	if old, err := idx.Remove(oldPath); err == nil {
		e := idx.Add(newPath)
		e.Hash, e.Mode, e.ModifiedAt = old.Hash, filemode.Submodule, old.ModifiedAt
	}
	if err := g.Storer.SetIndex(idx); err != nil {
		return &scm.PathError{Op: "move submodule", Path: newPath, Err: err}
	}

	sm.Path = newPath
	if err := r.registerSubmodule(g, sm); err != nil {
		return &scm.PathError{Op: "move submodule", Path: newPath, Err: err}
	}
	if err := r.writeModules(g, wt, modules); err != nil {
		return &scm.PathError{Op: "move submodule", Path: newPath, Err: err}
	}
	return r.stageGitlink(g, newPath)
}

// RemoveSubmodule implements scm.Repository. Without force, a submodule
// with uncommitted changes is kept and ErrCheckoutConflict returned.
func (r *Repository) RemoveSubmodule(p string, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, wt, err := r.worktree("remove submodule")
	if err != nil {
		return err
	}
	p = filepath.ToSlash(filepath.Clean(p))
	worktree, err := r.within(p)
	if err != nil {
		return err
	}
	modules, err := r.readModules()
	if err != nil {
		return &scm.PathError{Op: "remove submodule", Path: p, Err: err}
	}
	sm := findByPath(modules, p)
	if sm == nil {
		return &scm.PathError{Op: "remove submodule", Path: p, Err: fmt.Errorf("%w: not a submodule", scm.ErrInvalidPath)}
	}

	if !force {
		if sub, err := git.PlainOpen(worktree); err == nil {
			if subWT, err := sub.Worktree(); err == nil {
				if status, err := subWT.Status(); err == nil && !status.IsClean() {
					return &scm.PathError{Op: "remove submodule", Path: p, Err: scm.ErrCheckoutConflict}
				}
			}
		}
	}

	if err := os.RemoveAll(worktree); err != nil {
		return &scm.PathError{Op: "remove submodule", Path: p, Err: err}
	}
	if err := os.RemoveAll(r.modulesGitDir(sm.Name)); err != nil {
		return &scm.PathError{Op: "remove submodule", Path: p, Err: err}
	}
	if err := removeIndexEntry(g, p); err != nil {
		return &scm.PathError{Op: "remove submodule", Path: p, Err: err}
	}
	delete(modules.Submodules, sm.Name)
	if err := r.registerSubmodule(g, &config.Submodule{Name: sm.Name}); err != nil {
		return &scm.PathError{Op: "remove submodule", Path: p, Err: err}
	}
	if err := r.writeModules(g, wt, modules); err != nil {
		return &scm.PathError{Op: "remove submodule", Path: p, Err: err}
	}
	r.logger.Debug("removed submodule", "repository", r.name, "path", p)
	return nil
}

// SubmodulePath implements scm.Repository.
func (r *Repository) SubmodulePath(p string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", &scm.PathError{Op: "relative path", Path: p, Err: err}
	}
	rel, err := filepath.Rel(r.location, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &scm.PathError{Op: "relative path", Path: p, Err: scm.ErrInvalidPath}
	}
	return filepath.ToSlash(rel), nil
}
