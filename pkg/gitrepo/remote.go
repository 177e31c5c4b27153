// SPDX-License-Identifier: MPL-2.0

package gitrepo

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/moduni/moduni/pkg/scm"
)

const (
	trackingRefSpec = config.RefSpec("+refs/heads/*:refs/remotes/" + scm.RemoteName + "/*")
	mirrorRefSpec   = config.RefSpec("+refs/heads/*:refs/heads/*")
)

// RemoteURL implements scm.Repository. A bare repository reports its own
// location, which is what clones fetch from.
func (r *Repository) RemoteURL() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bare && !r.inMemory {
		return r.location, nil
	}
	g, err := r.handle()
	if err != nil {
		return "", err
	}
	if r.inMemory {
		return r.location, nil
	}
	return originURL(g)
}

func originURL(g *git.Repository) (string, error) {
	remote, err := g.Remote(scm.RemoteName)
	if errors.Is(err, git.ErrRemoteNotFound) {
		return "", scm.ErrNoRemote
	}
	if err != nil {
		return "", err
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", scm.ErrNoRemote
	}
	return urls[0], nil
}

// SetRemoteURL implements scm.Repository.
func (r *Repository) SetRemoteURL(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return err
	}
	if err := g.DeleteRemote(scm.RemoteName); err != nil && !errors.Is(err, git.ErrRemoteNotFound) {
		return r.refErr("set remote", url, err)
	}
	_, err = g.CreateRemote(&config.RemoteConfig{Name: scm.RemoteName, URLs: []string{url}})
	return r.refErr("set remote", url, err)
}

func (r *Repository) authFor(g *git.Repository) (string, transport.AuthMethod) {
	url, err := originURL(g)
	if err != nil {
		return "", nil
	}
	return url, r.auth(url)
}

// FetchAll implements scm.Repository. Branches land under origin/ and all
// tags are fetched; an in-memory handle mirrors branches instead.
func (r *Repository) FetchAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return err
	}
	return r.fetch(ctx, g)
}

func (r *Repository) fetch(ctx context.Context, g *git.Repository) error {
	url, auth := r.authFor(g)
	if url == "" {
		return r.refErr("fetch", scm.RemoteName, scm.ErrNoRemote)
	}
	spec := trackingRefSpec
	if r.bare {
		spec = mirrorRefSpec
	}
	err := g.FetchContext(ctx, &git.FetchOptions{
		RemoteName: scm.RemoteName,
		RefSpecs:   []config.RefSpec{spec},
		Tags:       git.AllTags,
		Force:      true,
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) && !errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return r.refErr("fetch", url, err)
	}
	return nil
}

// Push implements scm.Repository.
func (r *Repository) Push(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return err
	}
	head, err := g.Head()
	if err != nil {
		return r.refErr("push", "HEAD", err)
	}
	if !head.Name().IsBranch() {
		return r.refErr("push", "HEAD", scm.ErrUnknownReference)
	}
	return r.push(ctx, g, head.Name())
}

// PushRef implements scm.Repository. ref names a local tag or branch.
func (r *Repository) PushRef(ctx context.Context, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return err
	}
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewTagReferenceName(ref),
		plumbing.NewBranchReferenceName(ref),
	} {
		if _, err := g.Reference(name, false); err == nil {
			return r.push(ctx, g, name)
		}
	}
	return r.refErr("push", ref, scm.ErrUnknownReference)
}

func (r *Repository) push(ctx context.Context, g *git.Repository, name plumbing.ReferenceName) error {
	url, auth := r.authFor(g)
	if url == "" {
		return r.refErr("push", name.Short(), scm.ErrNoRemote)
	}
	err := g.PushContext(ctx, &git.PushOptions{
		RemoteName: scm.RemoteName,
		RefSpecs:   []config.RefSpec{config.RefSpec(name + ":" + name)},
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return r.refErr("push", name.Short(), err)
	}
	if name.IsBranch() {
		local, err := g.Reference(name, true)
		if err == nil {
			tracking := plumbing.NewHashReference(plumbing.NewRemoteReferenceName(scm.RemoteName, name.Short()), local.Hash())
			if err := g.Storer.SetReference(tracking); err != nil {
				r.logger.Debug("update tracking ref", "repository", r.name, "ref", name, "error", err)
			}
		}
	}
	r.logger.Debug("pushed", "repository", r.name, "ref", name.Short(), "remote", url)
	return nil
}

// Pull implements scm.Repository.
func (r *Repository) Pull(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, wt, err := r.worktree("pull")
	if err != nil {
		return err
	}
	url, auth := r.authFor(g)
	if url == "" {
		return r.refErr("pull", scm.RemoteName, scm.ErrNoRemote)
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: scm.RemoteName, Auth: auth})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return r.refErr("pull", url, err)
	}
	return r.fetch(ctx, g)
}

// CloneTo implements scm.Repository. A bare repository is cloned from
// itself, a working copy from its origin. When dir already holds files,
// or the source has no commits yet, dir is initialized in place and only
// wired to the remote, keeping its content.
func (r *Repository) CloneTo(ctx context.Context, dir string) (scm.Repository, error) {
	r.mu.Lock()
	g, err := r.handle()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	source := r.location
	if !r.bare {
		if source, err = originURL(g); err != nil {
			r.mu.Unlock()
			return nil, r.refErr("clone", dir, err)
		}
	}
	opts := r.options()
	auth := r.auth(source)
	r.mu.Unlock()

	dst, err := filepath.Abs(dir)
	if err != nil {
		return nil, &scm.PathError{Op: "clone", Path: dir, Err: err}
	}
	entries, err := os.ReadDir(dst)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &scm.PathError{Op: "clone", Path: dst, Err: err}
	}

	if len(entries) == 0 {
		_, err = git.PlainCloneContext(ctx, dst, false, &git.CloneOptions{URL: source, Auth: auth})
		if err == nil {
			return Open(dst, opts...)
		}
		if !errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return nil, r.refErr("clone", source, err)
		}
		// dst held nothing before the attempt.
		_ = os.RemoveAll(dst)
	}
	return initInto(ctx, dst, source, auth, opts)
}

func initInto(ctx context.Context, dir, source string, auth transport.AuthMethod, opts []Option) (*Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &scm.PathError{Op: "clone", Path: dir, Err: err}
	}
	g, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, &scm.PathError{Op: "clone", Path: dir, Err: err}
	}
	if _, err := g.CreateRemote(&config.RemoteConfig{Name: scm.RemoteName, URLs: []string{source}}); err != nil {
		return nil, &scm.PathError{Op: "clone", Path: dir, Err: err}
	}
	err = g.FetchContext(ctx, &git.FetchOptions{
		RemoteName: scm.RemoteName,
		RefSpecs:   []config.RefSpec{trackingRefSpec},
		Tags:       git.AllTags,
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) && !errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return nil, &scm.PathError{Op: "clone", Path: dir, Err: err}
	}
	return Open(dir, opts...)
}
