// SPDX-License-Identifier: MPL-2.0

package gitrepo

import (
	"errors"
	"regexp"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/moduni/moduni/pkg/scm"
	"github.com/moduni/moduni/pkg/version"
)

// Branches implements scm.Repository. Remote-tracking branches are
// reported as origin/<name>.
func (r *Repository) Branches() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return nil, err
	}
	refs, err := g.References()
	if err != nil {
		return nil, r.refErr("list branches", "", err)
	}
	var local, remote []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		switch name := ref.Name(); {
		case name.IsBranch():
			local = append(local, name.Short())
		case name.IsRemote() && !strings.HasSuffix(name.Short(), "/HEAD"):
			remote = append(remote, name.Short())
		}
		return nil
	})
	if err != nil {
		return nil, r.refErr("list branches", "", err)
	}
	slices.Sort(local)
	slices.Sort(remote)
	return append(local, remote...), nil
}

// LocalBranches implements scm.Repository.
func (r *Repository) LocalBranches() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return nil, err
	}
	return localBranches(g)
}

func localBranches(g *git.Repository) ([]string, error) {
	iter, err := g.Branches()
	if err != nil {
		return nil, err
	}
	var out []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		out = append(out, ref.Name().Short())
		return nil
	})
	slices.Sort(out)
	return out, err
}

// CurrentBranch implements scm.Repository.
func (r *Repository) CurrentBranch() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return "", err
	}
	head, err := g.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", r.refErr("head", "HEAD", err)
	}
	if !head.Name().IsBranch() {
		return "", nil
	}
	return head.Name().Short(), nil
}

// CurrentCommit implements scm.Repository.
func (r *Repository) CurrentCommit() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return "", err
	}
	head, err := g.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", r.refErr("head", "HEAD", err)
	}
	return head.Hash().String(), nil
}

// NearestTag implements scm.Repository. It walks the history of commit and
// returns the first tag found, preferring the highest version when several
// tags share a commit.
func (r *Repository) NearestTag(commit string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return "", err
	}
	from, err := resolveCommit(g, commit)
	if err != nil {
		return "", r.refErr("describe", commit, err)
	}
	byCommit, err := tagsByCommit(g)
	if err != nil {
		return "", r.refErr("describe", commit, err)
	}

	log, err := g.Log(&git.LogOptions{From: from})
	if err != nil {
		return "", r.refErr("describe", commit, err)
	}
	var found string
	err = log.ForEach(func(c *object.Commit) error {
		if names, ok := byCommit[c.Hash]; ok {
			found = highestTag(names)
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return "", r.refErr("describe", commit, err)
	}
	if found == "" {
		return "", r.refErr("describe", commit, scm.ErrUnknownReference)
	}
	return found, nil
}

// highestTag picks the greatest exact version among names. Other names
// only win when no name is an exact version, and then by string order.
func highestTag(names []string) string {
	var (
		best    string
		bestVer version.BranchVersion
	)
	for _, name := range names {
		v, err := version.Parse(name)
		if err != nil || !v.IsExact() {
			continue
		}
		if best == "" || v.Compare(bestVer) > 0 {
			best, bestVer = name, v
		}
	}
	if best != "" {
		return best
	}
	return slices.Max(names)
}

func tagsByCommit(g *git.Repository) (map[plumbing.Hash][]string, error) {
	iter, err := g.Tags()
	if err != nil {
		return nil, err
	}
	out := make(map[plumbing.Hash][]string)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		h := peel(g, ref.Hash())
		out[h] = append(out[h], ref.Name().Short())
		return nil
	})
	return out, err
}

// peel dereferences annotated tags to the commit they point at.
func peel(g *git.Repository, h plumbing.Hash) plumbing.Hash {
	if tag, err := g.TagObject(h); err == nil {
		return tag.Target
	}
	return h
}

// resolveCommit maps a tag, local branch, origin/<branch> or revision to
// a commit hash.
func resolveCommit(g *git.Repository, ref string) (plumbing.Hash, error) {
	if tag, err := g.Reference(plumbing.NewTagReferenceName(ref), true); err == nil {
		return peel(g, tag.Hash()), nil
	}
	if branch, err := g.Reference(plumbing.NewBranchReferenceName(ref), true); err == nil {
		return branch.Hash(), nil
	}
	if name, ok := strings.CutPrefix(ref, scm.RemoteName+"/"); ok {
		remote, err := g.Reference(plumbing.NewRemoteReferenceName(scm.RemoteName, name), true)
		if err != nil {
			return plumbing.ZeroHash, scm.ErrNoSuchRemoteRef
		}
		return remote.Hash(), nil
	}
	h, err := g.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.ZeroHash, scm.ErrUnknownReference
	}
	return *h, nil
}

// ContainsBranch implements scm.Repository.
func (r *Repository) ContainsBranch(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return false, err
	}
	for _, ref := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(name),
		plumbing.NewRemoteReferenceName(scm.RemoteName, name),
	} {
		if _, err := g.Reference(ref, false); err == nil {
			return true, nil
		}
	}
	return false, nil
}

// CreateBranch implements scm.Repository. The branch starts at HEAD and
// tracks its origin counterpart when a remote is configured.
func (r *Repository) CreateBranch(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return err
	}
	head, err := g.Head()
	if err != nil {
		return r.refErr("create branch", name, err)
	}
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), head.Hash())
	if err := g.Storer.SetReference(ref); err != nil {
		return r.refErr("create branch", name, err)
	}
	if _, err := g.Remote(scm.RemoteName); err != nil {
		return nil
	}
	err = g.CreateBranch(&config.Branch{
		Name:   name,
		Remote: scm.RemoteName,
		Merge:  plumbing.NewBranchReferenceName(name),
	})
	if err != nil && !errors.Is(err, git.ErrBranchExists) {
		return r.refErr("create branch", name, err)
	}
	return nil
}

// Checkout implements scm.Repository. Local branches are checked out
// attached; tags, remote-tracking branches and revisions leave HEAD
// detached. A bare repository only validates ref.
func (r *Repository) Checkout(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return err
	}
	hash, err := resolveCommit(g, ref)
	if err != nil {
		return r.refErr("checkout", ref, err)
	}
	if r.bare {
		return nil
	}

	wt, err := g.Worktree()
	if err != nil {
		return r.refErr("checkout", ref, err)
	}
	dirty, err := hasTrackedChanges(wt)
	if err != nil {
		return r.refErr("checkout", ref, err)
	}
	if dirty {
		return r.refErr("checkout", ref, scm.ErrCheckoutConflict)
	}

	opts := &git.CheckoutOptions{Hash: hash}
	if _, err := g.Reference(plumbing.NewBranchReferenceName(ref), false); err == nil {
		opts = &git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(ref)}
	}
	return r.refErr("checkout", ref, wt.Checkout(opts))
}

func hasTrackedChanges(wt *git.Worktree) (bool, error) {
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	for _, st := range status {
		if st.Worktree == git.Untracked && st.Staging == git.Untracked {
			continue
		}
		if st.Worktree != git.Unmodified || st.Staging != git.Unmodified {
			return true, nil
		}
	}
	return false, nil
}

// FindTags implements scm.Repository.
func (r *Repository) FindTags(pattern *regexp.Regexp) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return nil, err
	}
	iter, err := g.Tags()
	if err != nil {
		return nil, r.refErr("list tags", "", err)
	}
	var out []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if name := ref.Name().Short(); pattern == nil || pattern.MatchString(name) {
			out = append(out, name)
		}
		return nil
	})
	slices.Sort(out)
	return out, r.refErr("list tags", "", err)
}

// AddTag implements scm.Repository. Tags are lightweight.
func (r *Repository) AddTag(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.handle()
	if err != nil {
		return err
	}
	head, err := g.Head()
	if err != nil {
		return r.refErr("tag", name, err)
	}
	_, err = g.CreateTag(name, head.Hash(), nil)
	return r.refErr("tag", name, err)
}
