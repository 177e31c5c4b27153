// SPDX-License-Identifier: MPL-2.0

package gitrepo

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/moduni/moduni/pkg/scm"
)

func (r *Repository) worktree(op string) (*git.Repository, *git.Worktree, error) {
	g, err := r.handle()
	if err != nil {
		return nil, nil, err
	}
	if r.bare {
		return nil, nil, &scm.PathError{Op: op, Path: r.location, Err: fmt.Errorf("%w: bare repository", scm.ErrInvalidPath)}
	}
	wt, err := g.Worktree()
	if err != nil {
		return nil, nil, r.refErr(op, "", err)
	}
	return g, wt, nil
}

// StageAll implements scm.Repository. Additions, modifications and
// deletions are staged; submodule entries are pointed at the current
// commit of each submodule.
func (r *Repository) StageAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, wt, err := r.worktree("stage")
	if err != nil {
		return err
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return r.refErr("stage", "", err)
	}
	modules, err := r.readModules()
	if err != nil {
		return r.refErr("stage", "", err)
	}
	for _, sm := range modules.Submodules {
		if err := r.stageGitlink(g, sm.Path); err != nil {
			return err
		}
	}
	return nil
}

// StageFile implements scm.Repository.
func (r *Repository) StageFile(p string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, wt, err := r.worktree("stage")
	if err != nil {
		return err
	}
	p = filepath.ToSlash(filepath.Clean(p))
	modules, err := r.readModules()
	if err != nil {
		return r.refErr("stage", p, err)
	}
	if findByPath(modules, p) != nil {
		return r.stageGitlink(g, p)
	}
	if _, err := wt.Add(p); err != nil {
		return &scm.PathError{Op: "stage", Path: p, Err: err}
	}
	return nil
}

// stageGitlink records the HEAD commit of the submodule at p in the index.
func (r *Repository) stageGitlink(g *git.Repository, p string) error {
	sub, err := git.PlainOpen(filepath.Join(r.location, filepath.FromSlash(p)))
	if err != nil {
		return &scm.PathError{Op: "stage submodule", Path: p, Err: err}
	}
	head, err := sub.Head()
	if err != nil {
		// A submodule without commits has nothing to record yet.
		return nil
	}

	idx, err := g.Storer.Index()
	if err != nil {
		return &scm.PathError{Op: "stage submodule", Path: p, Err: err}
	}
	e, err := idx.Entry(p)
	if errors.Is(err, index.ErrEntryNotFound) {
		e = idx.Add(p)
	} else if err != nil {
		return &scm.PathError{Op: "stage submodule", Path: p, Err: err}
	}
	e.Hash = head.Hash()
	e.Mode = filemode.Submodule
	e.ModifiedAt = time.Now()
	if err := g.Storer.SetIndex(idx); err != nil {
		return &scm.PathError{Op: "stage submodule", Path: p, Err: err}
	}
	return nil
}

// Commit implements scm.Repository.
func (r *Repository) Commit(message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, wt, err := r.worktree("commit")
	if err != nil {
		return err
	}
	status, err := wt.Status()
	if err != nil {
		return r.refErr("commit", "HEAD", err)
	}
	staged := false
	for _, st := range status {
		if st.Staging != git.Unmodified && st.Staging != git.Untracked {
			staged = true
			break
		}
	}
	if !staged {
		return r.refErr("commit", "HEAD", scm.ErrEmptyCommit)
	}

	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: r.signature.Name, Email: r.signature.Email, When: time.Now()},
	})
	if err != nil {
		return r.refErr("commit", "HEAD", err)
	}
	r.logger.Debug("committed", "repository", r.name, "message", message)
	return nil
}

// Status implements scm.Repository.
func (r *Repository) Status() ([]scm.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bare {
		return nil, nil
	}
	_, wt, err := r.worktree("status")
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, r.refErr("status", "", err)
	}
	out := make([]scm.File, 0, len(status))
	for _, p := range slices.Sorted(maps.Keys(status)) {
		st := status[p]
		out = append(out, scm.File{
			Path:     p,
			Staging:  fileStatus(st.Staging),
			Worktree: fileStatus(st.Worktree),
		})
	}
	return out, nil
}

func fileStatus(c git.StatusCode) scm.FileStatus {
	switch c {
	case git.Untracked:
		return scm.StatusUntracked
	case git.Modified:
		return scm.StatusModified
	case git.Added:
		return scm.StatusAdded
	case git.Deleted:
		return scm.StatusDeleted
	case git.Renamed:
		return scm.StatusRenamed
	case git.Copied:
		return scm.StatusCopied
	case git.UpdatedButUnmerged:
		return scm.StatusUpdatedButUnmerged
	default:
		return scm.StatusUnmodified
	}
}

// IsDirty implements scm.Repository. Untracked files count as changes.
func (r *Repository) IsDirty() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bare {
		return false, nil
	}
	_, wt, err := r.worktree("status")
	if err != nil {
		return false, err
	}
	status, err := wt.Status()
	if err != nil {
		return false, r.refErr("status", "", err)
	}
	return !status.IsClean(), nil
}

// WriteFile implements scm.Repository. p is relative to the working copy.
func (r *Repository) WriteFile(p string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, _, err := r.worktree("write"); err != nil {
		return err
	}
	full, err := r.within(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return &scm.PathError{Op: "write", Path: p, Err: err}
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return &scm.PathError{Op: "write", Path: p, Err: err}
	}
	return nil
}

// within resolves p below the working copy, rejecting escapes.
func (r *Repository) within(p string) (string, error) {
	full := filepath.Join(r.location, filepath.FromSlash(p))
	rel, err := filepath.Rel(r.location, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &scm.PathError{Op: "resolve", Path: p, Err: scm.ErrInvalidPath}
	}
	return full, nil
}

// FileContentAt implements scm.Repository.
func (r *Repository) FileContentAt(p, ref string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return nil, err
	}
	hash, err := resolveCommit(g, ref)
	if err != nil {
		return nil, r.refErr("read", ref, err)
	}
	commit, err := g.CommitObject(hash)
	if err != nil {
		return nil, r.refErr("read", ref, err)
	}
	f, err := commit.File(filepath.ToSlash(p))
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, &scm.PathError{Op: "read", Path: p, Err: fs.ErrNotExist}
	}
	if err != nil {
		return nil, &scm.PathError{Op: "read", Path: p, Err: err}
	}
	content, err := f.Contents()
	if err != nil {
		return nil, &scm.PathError{Op: "read", Path: p, Err: err}
	}
	return []byte(content), nil
}
