// SPDX-License-Identifier: MPL-2.0

// Package scmtest provides an in-memory scm.Repository for tests.
//
// History is linear: every repository sharing a Network agrees on commit
// indexes, so cloning copies the commit list and pushing publishes the
// local list back to the origin.
package scmtest

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/moduni/moduni/pkg/scm"
)

type (
	// Network resolves remote URLs to fake repositories.
	Network struct {
		mu    sync.Mutex
		repos map[string]*Repository
	}

	// Repository is an in-memory scm.Repository.
	Repository struct {
		mu sync.Mutex

		network   *Network
		name      string
		path      string
		url       string
		origin    *Repository
		bare      bool
		submodule bool
		closed    bool

		commits        []map[string][]byte
		branches       map[string]int
		remoteBranches map[string]int
		tags           map[string]int
		head           string
		detached       int

		worktree   map[string][]byte
		staged     map[string]bool
		submodules map[string]*Repository

		calls []string
		fail  map[string]error
	}
)

var _ scm.Repository = (*Repository)(nil)

// NewNetwork returns an empty network.
func NewNetwork() *Network {
	return &Network{repos: make(map[string]*Repository)}
}

// NewRemote registers a bare repository reachable at mem://<name>.
func (n *Network) NewRemote(name string) *Repository {
	r := newRepository(n, name, "mem://"+name)
	r.bare = true
	r.url = r.path
	n.mu.Lock()
	n.repos[r.url] = r
	n.mu.Unlock()
	return r
}

// Lookup returns the remote registered at url.
func (n *Network) Lookup(url string) (*Repository, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r, ok := n.repos[url]
	return r, ok
}

// Remove drops the remote registered at url.
func (n *Network) Remove(url string) {
	n.mu.Lock()
	delete(n.repos, url)
	n.mu.Unlock()
}

// Remotes returns every registered remote sorted by URL.
func (n *Network) Remotes() []*Repository {
	n.mu.Lock()
	defer n.mu.Unlock()
	keys := slices.Sorted(maps.Keys(n.repos))
	out := make([]*Repository, 0, len(keys))
	for _, k := range keys {
		out = append(out, n.repos[k])
	}
	return out
}

// NewWorkingCopy returns a non-bare repository without commits or remote.
func NewWorkingCopy(name, dir string) *Repository {
	return newRepository(nil, name, dir)
}

func newRepository(n *Network, name, dir string) *Repository {
	return &Repository{
		network:        n,
		name:           name,
		path:           dir,
		branches:       make(map[string]int),
		remoteBranches: make(map[string]int),
		tags:           make(map[string]int),
		head:           "master",
		detached:       -1,
		worktree:       make(map[string][]byte),
		staged:         make(map[string]bool),
		submodules:     make(map[string]*Repository),
		fail:           make(map[string]error),
	}
}

// Seed commits files directly onto the current branch, bypassing the
// index. Intended for test setup.
func (r *Repository) Seed(files map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	content := r.headContent()
	for p, data := range files {
		content[p] = []byte(data)
		if !r.bare {
			r.worktree[p] = []byte(data)
		}
	}
	r.commits = append(r.commits, content)
	r.advanceHead(len(r.commits) - 1)
}

// SeedTag tags the current commit without pushing.
func (r *Repository) SeedTag(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags[name] = r.headIndex()
}

// SeedBranch creates a branch at the current commit without switching.
func (r *Repository) SeedBranch(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branches[name] = r.headIndex()
}

// SetBranchContent commits files onto branch without touching HEAD.
func (r *Repository) SetBranchContent(branch string, files map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	content := make(map[string][]byte)
	if idx, ok := r.branches[branch]; ok {
		content = maps.Clone(r.commits[idx])
	}
	for p, data := range files {
		content[p] = []byte(data)
	}
	r.commits = append(r.commits, content)
	r.branches[branch] = len(r.commits) - 1
}

// FailOn makes every later call of op return err.
func (r *Repository) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[op] = err
}

// Calls returns the operations invoked so far, in order.
func (r *Repository) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// CountCalls returns how many times op was invoked.
func (r *Repository) CountCalls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Tags returns the tag names of the repository, sorted.
func (r *Repository) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.tags))
}

// WorktreeFile returns the working tree content of p.
func (r *Repository) WorktreeFile(p string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.worktree[p]
	return data, ok
}

// Submodule returns the submodule registered at p.
func (r *Repository) Submodule(p string) (*Repository, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.submodules[p]
	return sub, ok
}

// CommitCount returns the number of commits in the history.
func (r *Repository) CommitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commits)
}

// LastCommitContent returns the tree of the newest commit.
func (r *Repository) LastCommitContent() map[string][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.commits) == 0 {
		return nil
	}
	return maps.Clone(r.commits[len(r.commits)-1])
}

func (r *Repository) enter(op string) error {
	r.calls = append(r.calls, op)
	if r.closed {
		return scm.ErrRepositoryNotInitialized
	}
	if err, ok := r.fail[op]; ok {
		return err
	}
	if base, _, found := strings.Cut(op, ":"); found {
		if err, ok := r.fail[base]; ok {
			return err
		}
	}
	return nil
}

func (r *Repository) headIndex() int {
	if r.head == "" {
		return r.detached
	}
	if idx, ok := r.branches[r.head]; ok {
		return idx
	}
	return -1
}

func (r *Repository) headContent() map[string][]byte {
	idx := r.headIndex()
	if idx < 0 {
		return make(map[string][]byte)
	}
	return maps.Clone(r.commits[idx])
}

func (r *Repository) advanceHead(idx int) {
	if r.head == "" {
		r.detached = idx
		return
	}
	r.branches[r.head] = idx
}

func hash(idx int) string {
	if idx < 0 {
		return ""
	}
	return fmt.Sprintf("%040d", idx+1)
}

func (r *Repository) resolve(ref string) (int, bool) {
	if idx, ok := r.tags[ref]; ok {
		return idx, true
	}
	if idx, ok := r.branches[ref]; ok {
		return idx, true
	}
	if name, ok := strings.CutPrefix(ref, scm.RemoteName+"/"); ok {
		idx, found := r.remoteBranches[name]
		return idx, found
	}
	if n, err := strconv.Atoi(strings.TrimLeft(ref, "0")); err == nil && n >= 1 && n <= len(r.commits) && len(ref) == 40 {
		return n - 1, true
	}
	return -1, false
}

// Name implements scm.Repository.
func (r *Repository) Name() string { return r.name }

// WorkingCopyPath implements scm.Repository.
func (r *Repository) WorkingCopyPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// RemoteURL implements scm.Repository.
func (r *Repository) RemoteURL() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bare {
		return r.url, nil
	}
	if r.origin == nil {
		return "", scm.ErrNoRemote
	}
	return r.origin.url, nil
}

// SetRemoteURL implements scm.Repository.
func (r *Repository) SetRemoteURL(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("SetRemoteURL"); err != nil {
		return err
	}
	if r.network == nil {
		return scm.ErrNoRemote
	}
	remote, ok := r.network.Lookup(url)
	if !ok {
		return &scm.RefError{Op: "set remote", Repository: r.name, Ref: url, Err: scm.ErrNoRemote}
	}
	r.origin = remote
	return nil
}

// IsBare implements scm.Repository.
func (r *Repository) IsBare() bool { return r.bare }

// IsSubmodule implements scm.Repository.
func (r *Repository) IsSubmodule() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.submodule
}

// Branches implements scm.Repository.
func (r *Repository) Branches() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Branches"); err != nil {
		return nil, err
	}
	out := slices.Sorted(maps.Keys(r.branches))
	for _, b := range slices.Sorted(maps.Keys(r.remoteBranches)) {
		out = append(out, scm.RemoteName+"/"+b)
	}
	return out, nil
}

// LocalBranches implements scm.Repository.
func (r *Repository) LocalBranches() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("LocalBranches"); err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(r.branches)), nil
}

// CurrentBranch implements scm.Repository.
func (r *Repository) CurrentBranch() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("CurrentBranch"); err != nil {
		return "", err
	}
	if r.headIndex() < 0 {
		return "", nil
	}
	return r.head, nil
}

// CurrentCommit implements scm.Repository.
func (r *Repository) CurrentCommit() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("CurrentCommit"); err != nil {
		return "", err
	}
	return hash(r.headIndex()), nil
}

// NearestTag implements scm.Repository.
func (r *Repository) NearestTag(commit string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("NearestTag"); err != nil {
		return "", err
	}
	idx, ok := r.resolve(commit)
	if !ok {
		return "", &scm.RefError{Op: "describe", Repository: r.name, Ref: commit, Err: scm.ErrUnknownReference}
	}
	best, bestIdx := "", -1
	for _, name := range slices.Sorted(maps.Keys(r.tags)) {
		t := r.tags[name]
		if t <= idx && t > bestIdx {
			best, bestIdx = name, t
		}
	}
	if best == "" {
		return "", &scm.RefError{Op: "describe", Repository: r.name, Ref: commit, Err: scm.ErrUnknownReference}
	}
	return best, nil
}

// ContainsBranch implements scm.Repository.
func (r *Repository) ContainsBranch(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("ContainsBranch"); err != nil {
		return false, err
	}
	_, local := r.branches[name]
	_, remote := r.remoteBranches[name]
	return local || remote, nil
}

// CreateBranch implements scm.Repository.
func (r *Repository) CreateBranch(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("CreateBranch"); err != nil {
		return err
	}
	idx := r.headIndex()
	if idx < 0 {
		return &scm.RefError{Op: "create branch", Repository: r.name, Ref: name, Err: scm.ErrUnknownReference}
	}
	r.branches[name] = idx
	return nil
}

// Checkout implements scm.Repository.
func (r *Repository) Checkout(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Checkout"); err != nil {
		return err
	}
	idx, ok := r.resolve(ref)
	if !ok {
		if strings.HasPrefix(ref, scm.RemoteName+"/") {
			return &scm.RefError{Op: "checkout", Repository: r.name, Ref: ref, Err: scm.ErrNoSuchRemoteRef}
		}
		return &scm.RefError{Op: "checkout", Repository: r.name, Ref: ref, Err: scm.ErrUnknownReference}
	}
	if r.bare {
		return nil
	}
	if r.dirty() {
		return &scm.RefError{Op: "checkout", Repository: r.name, Ref: ref, Err: scm.ErrCheckoutConflict}
	}
	if _, isBranch := r.branches[ref]; isBranch {
		r.head = ref
	} else {
		r.head = ""
		r.detached = idx
	}
	r.worktree = maps.Clone(r.commits[idx])
	return nil
}

func (r *Repository) dirty() bool {
	head := r.headContent()
	if len(head) != len(r.worktree) {
		return true
	}
	for p, data := range r.worktree {
		if string(head[p]) != string(data) {
			return true
		}
	}
	return false
}

// StageAll implements scm.Repository.
func (r *Repository) StageAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("StageAll"); err != nil {
		return err
	}
	for _, f := range r.status() {
		r.staged[f.Path] = true
	}
	return nil
}

// StageFile implements scm.Repository.
func (r *Repository) StageFile(p string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("StageFile"); err != nil {
		return err
	}
	if sub, ok := r.submodules[p]; ok {
		r.worktree[p] = []byte(hash(sub.headIndexLocked()))
	}
	r.staged[p] = true
	return nil
}

func (r *Repository) headIndexLocked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headIndex()
}

// Commit implements scm.Repository.
func (r *Repository) Commit(message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Commit:" + message); err != nil {
		return err
	}
	content := r.headContent()
	changed := false
	for p := range r.staged {
		data, inTree := r.worktree[p]
		old, inHead := content[p]
		switch {
		case inTree && (!inHead || string(old) != string(data)):
			content[p] = data
			changed = true
		case !inTree && inHead:
			delete(content, p)
			changed = true
		}
	}
	clear(r.staged)
	if !changed {
		return &scm.RefError{Op: "commit", Repository: r.name, Err: scm.ErrEmptyCommit}
	}
	r.commits = append(r.commits, content)
	r.advanceHead(len(r.commits) - 1)
	return nil
}

// Status implements scm.Repository.
func (r *Repository) Status() ([]scm.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Status"); err != nil {
		return nil, err
	}
	return r.status(), nil
}

func (r *Repository) status() []scm.File {
	if r.bare {
		return nil
	}
	head := r.headContent()
	paths := make(map[string]struct{})
	for p := range head {
		paths[p] = struct{}{}
	}
	for p := range r.worktree {
		paths[p] = struct{}{}
	}
	var out []scm.File
	for _, p := range slices.Sorted(maps.Keys(paths)) {
		data, inTree := r.worktree[p]
		old, inHead := head[p]
		var st scm.FileStatus
		switch {
		case inTree && !inHead:
			st = scm.StatusUntracked
		case !inTree && inHead:
			st = scm.StatusDeleted
		case string(old) != string(data):
			st = scm.StatusModified
		default:
			continue
		}
		f := scm.File{Path: p, Worktree: st}
		if r.staged[p] {
			f.Staging, f.Worktree = st, scm.StatusUnmodified
			if st == scm.StatusUntracked {
				f.Staging = scm.StatusAdded
			}
		}
		out = append(out, f)
	}
	return out
}

// IsDirty implements scm.Repository.
func (r *Repository) IsDirty() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("IsDirty"); err != nil {
		return false, err
	}
	return len(r.status()) > 0, nil
}

// FindTags implements scm.Repository.
func (r *Repository) FindTags(pattern *regexp.Regexp) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("FindTags"); err != nil {
		return nil, err
	}
	var out []string
	for _, name := range slices.Sorted(maps.Keys(r.tags)) {
		if pattern == nil || pattern.MatchString(name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// AddTag implements scm.Repository.
func (r *Repository) AddTag(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("AddTag"); err != nil {
		return err
	}
	idx := r.headIndex()
	if idx < 0 {
		return &scm.RefError{Op: "tag", Repository: r.name, Ref: name, Err: scm.ErrUnknownReference}
	}
	if _, exists := r.tags[name]; exists {
		return &scm.RefError{Op: "tag", Repository: r.name, Ref: name, Err: fmt.Errorf("tag already exists")}
	}
	r.tags[name] = idx
	return nil
}

// FetchAll implements scm.Repository.
func (r *Repository) FetchAll(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("FetchAll"); err != nil {
		return err
	}
	if r.origin == nil {
		return scm.ErrNoRemote
	}
	r.syncFromOrigin()
	return nil
}

func (r *Repository) syncFromOrigin() {
	r.origin.mu.Lock()
	defer r.origin.mu.Unlock()
	if len(r.origin.commits) > len(r.commits) {
		r.commits = append(r.commits, cloneCommits(r.origin.commits[len(r.commits):])...)
	}
	r.remoteBranches = maps.Clone(r.origin.branches)
	maps.Copy(r.tags, r.origin.tags)
}

// Push implements scm.Repository.
func (r *Repository) Push(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Push"); err != nil {
		return err
	}
	if r.head == "" {
		return &scm.RefError{Op: "push", Repository: r.name, Ref: "HEAD", Err: scm.ErrUnknownReference}
	}
	return r.pushBranch(r.head)
}

// PushRef implements scm.Repository.
func (r *Repository) PushRef(_ context.Context, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("PushRef:" + ref); err != nil {
		return err
	}
	if idx, ok := r.tags[ref]; ok {
		if err := r.pushCommits(); err != nil {
			return err
		}
		r.origin.mu.Lock()
		r.origin.tags[ref] = idx
		r.origin.mu.Unlock()
		return nil
	}
	if _, ok := r.branches[ref]; ok {
		return r.pushBranch(ref)
	}
	return &scm.RefError{Op: "push", Repository: r.name, Ref: ref, Err: scm.ErrUnknownReference}
}

func (r *Repository) pushCommits() error {
	if r.origin == nil {
		return scm.ErrNoRemote
	}
	r.origin.mu.Lock()
	defer r.origin.mu.Unlock()
	if len(r.commits) > len(r.origin.commits) {
		r.origin.commits = append(r.origin.commits, cloneCommits(r.commits[len(r.origin.commits):])...)
	}
	return nil
}

func (r *Repository) pushBranch(name string) error {
	if err := r.pushCommits(); err != nil {
		return err
	}
	idx := r.branches[name]
	r.origin.mu.Lock()
	r.origin.branches[name] = idx
	r.origin.mu.Unlock()
	r.remoteBranches[name] = idx
	return nil
}

// Pull implements scm.Repository.
func (r *Repository) Pull(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Pull"); err != nil {
		return err
	}
	if r.origin == nil {
		return scm.ErrNoRemote
	}
	r.syncFromOrigin()
	if idx, ok := r.remoteBranches[r.head]; ok && r.head != "" {
		r.branches[r.head] = idx
		r.worktree = maps.Clone(r.commits[idx])
	}
	return nil
}

// FileContentAt implements scm.Repository.
func (r *Repository) FileContentAt(p, ref string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("FileContentAt"); err != nil {
		return nil, err
	}
	idx, ok := r.resolve(ref)
	if !ok {
		return nil, &scm.RefError{Op: "read", Repository: r.name, Ref: ref, Err: scm.ErrUnknownReference}
	}
	data, ok := r.commits[idx][p]
	if !ok {
		return nil, &scm.PathError{Op: "read", Path: p, Err: fs.ErrNotExist}
	}
	return slices.Clone(data), nil
}

// WriteFile implements scm.Repository.
func (r *Repository) WriteFile(p string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("WriteFile"); err != nil {
		return err
	}
	if r.bare {
		return &scm.PathError{Op: "write", Path: p, Err: scm.ErrInvalidPath}
	}
	r.worktree[p] = slices.Clone(data)
	return nil
}

// AddSubmodule implements scm.Repository.
func (r *Repository) AddSubmodule(ctx context.Context, url, p string) (scm.Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("AddSubmodule"); err != nil {
		return nil, err
	}
	if _, exists := r.submodules[p]; exists {
		return nil, &scm.PathError{Op: "add submodule", Path: p, Err: scm.ErrInvalidPath}
	}
	remote, ok := r.lookup(url)
	if !ok {
		return nil, &scm.RefError{Op: "add submodule", Repository: url, Err: scm.ErrNoRemote}
	}
	remote.mu.Lock()
	sub := remote.clone(path.Join(r.path, p))
	remote.mu.Unlock()
	sub.submodule = true
	r.submodules[p] = sub
	r.worktree[".gitmodules"] = []byte(r.gitmodules())
	r.worktree[p] = []byte(hash(sub.headIndex()))
	r.staged[".gitmodules"] = true
	return sub, nil
}

func (r *Repository) lookup(url string) (*Repository, bool) {
	if r.network == nil {
		return nil, false
	}
	return r.network.Lookup(url)
}

func (r *Repository) gitmodules() string {
	var sb strings.Builder
	for _, p := range slices.Sorted(maps.Keys(r.submodules)) {
		fmt.Fprintf(&sb, "[submodule %q]\n\tpath = %s\n\turl = %s\n", p, p, r.submodules[p].origin.url)
	}
	return sb.String()
}

// MoveSubmodule implements scm.Repository.
func (r *Repository) MoveSubmodule(oldPath, newPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("MoveSubmodule"); err != nil {
		return err
	}
	sub, ok := r.submodules[oldPath]
	if !ok {
		return &scm.PathError{Op: "move submodule", Path: oldPath, Err: scm.ErrInvalidPath}
	}
	if _, taken := r.submodules[newPath]; taken {
		return &scm.PathError{Op: "move submodule", Path: newPath, Err: scm.ErrInvalidPath}
	}
	delete(r.submodules, oldPath)
	r.submodules[newPath] = sub
	sub.mu.Lock()
	sub.path = path.Join(r.path, newPath)
	sub.mu.Unlock()
	r.worktree[newPath] = r.worktree[oldPath]
	delete(r.worktree, oldPath)
	r.worktree[".gitmodules"] = []byte(r.gitmodules())
	r.staged[oldPath], r.staged[newPath], r.staged[".gitmodules"] = true, true, true
	return nil
}

// RemoveSubmodule implements scm.Repository.
func (r *Repository) RemoveSubmodule(p string, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("RemoveSubmodule"); err != nil {
		return err
	}
	sub, ok := r.submodules[p]
	if !ok {
		return &scm.PathError{Op: "remove submodule", Path: p, Err: scm.ErrInvalidPath}
	}
	if !force {
		sub.mu.Lock()
		dirty := sub.dirty()
		sub.mu.Unlock()
		if dirty {
			return &scm.PathError{Op: "remove submodule", Path: p, Err: scm.ErrCheckoutConflict}
		}
	}
	delete(r.submodules, p)
	delete(r.worktree, p)
	r.worktree[".gitmodules"] = []byte(r.gitmodules())
	r.staged[p], r.staged[".gitmodules"] = true, true
	return nil
}

// SubmodulePath implements scm.Repository.
func (r *Repository) SubmodulePath(p string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rel, ok := strings.CutPrefix(p, r.path+"/")
	if !ok {
		return "", &scm.PathError{Op: "relative path", Path: p, Err: scm.ErrInvalidPath}
	}
	return rel, nil
}

// MoveTo implements scm.Repository.
func (r *Repository) MoveTo(newPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("MoveTo"); err != nil {
		return err
	}
	if r.submodule {
		return nil
	}
	r.path = newPath
	return nil
}

// CloneTo implements scm.Repository.
func (r *Repository) CloneTo(_ context.Context, p string) (scm.Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("CloneTo"); err != nil {
		return nil, err
	}
	source := r
	if !r.bare && r.origin != nil {
		source = r.origin
	}
	if source != r {
		source.mu.Lock()
		defer source.mu.Unlock()
	}
	return source.clone(p), nil
}

// clone copies the receiver into a new working copy. Callers hold r.mu.
func (r *Repository) clone(p string) *Repository {
	c := newRepository(r.network, r.name, p)
	c.origin = r
	c.commits = cloneCommits(r.commits)
	c.remoteBranches = maps.Clone(r.branches)
	c.tags = maps.Clone(r.tags)
	if idx, ok := r.branches["master"]; ok {
		c.branches["master"] = idx
		c.worktree = maps.Clone(r.commits[idx])
	}
	return c
}

func cloneCommits(in []map[string][]byte) []map[string][]byte {
	out := make([]map[string][]byte, len(in))
	for i, c := range in {
		out[i] = maps.Clone(c)
	}
	return out
}

// Close implements scm.Repository.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "Close")
	r.closed = true
	return nil
}

// Reopen clears the closed flag and returns r, standing in for opening the
// same working copy again after Close.
func (r *Repository) Reopen() *Repository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = false
	return r
}
