// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/moduni/moduni/internal/dag"
	"github.com/moduni/moduni/pkg/gitrepo"
	"github.com/moduni/moduni/pkg/module"
	"github.com/moduni/moduni/pkg/provider"
	"github.com/moduni/moduni/pkg/scm"
	"github.com/moduni/moduni/pkg/version"
)

// Commit messages of the registry workflows.
const (
	MessageInitialCommit  = "feat(Global): initial commit of the module"
	MessageImportModules  = "chore(modules): import modules: "
	MessageModifyMetadata = "chore(metadata): modify the metadata of the module"
	MessageModifyModule   = "chore(modules): modify module "
	MessageDeleteModules  = "chore(modules): delete modules"
)

var master = version.NewBranch(version.Master)

type (
	// Cloner creates a working copy of the repository at url in dir.
	Cloner func(ctx context.Context, url, dir string) (scm.Repository, error)

	// RemoteOpener opens the repository at url without a working copy.
	RemoteOpener func(ctx context.Context, url string) (scm.Repository, error)

	// RemoteModule is a module read straight from a manager's repository.
	RemoteModule struct {
		Manager provider.Manager
		Remote  provider.Remote
		Module  *module.Module
	}

	// Option configures a Registry.
	Option func(*Registry)

	// Registry is the set of local and remote modules of a project.
	//
	// Every mutation of the project repository is serialized behind one
	// mutex. Module transitions are serialized by the modules themselves.
	Registry struct {
		projectMu sync.Mutex
		project   scm.Repository
		root      string

		mu     sync.RWMutex
		local  []*module.Module
		remote []*RemoteModule

		managers   []provider.Manager
		open       scm.Opener
		clone      Cloner
		openRemote RemoteOpener
		notifier   module.Notifier
		logger     *slog.Logger
	}
)

// WithProject binds the aggregating project repository. Module paths are
// then relative to its working copy.
func WithProject(project scm.Repository) Option {
	return func(r *Registry) {
		r.project = project
		if project != nil {
			r.root = project.WorkingCopyPath()
		}
	}
}

// WithManagers sets the repository managers modules are provisioned on.
func WithManagers(managers ...provider.Manager) Option {
	return func(r *Registry) { r.managers = managers }
}

// WithOpener sets how local working copies are opened.
func WithOpener(open scm.Opener) Option {
	return func(r *Registry) { r.open = open }
}

// WithCloner sets how working copies are created outside a project.
func WithCloner(clone Cloner) Option {
	return func(r *Registry) { r.clone = clone }
}

// WithRemoteOpener sets how manager repositories are read.
func WithRemoteOpener(open RemoteOpener) Option {
	return func(r *Registry) { r.openRemote = open }
}

// WithGit backs the opener, cloner and remote opener with go-git.
func WithGit(opts ...gitrepo.Option) Option {
	return func(r *Registry) {
		r.open = func(dir string) (scm.Repository, error) {
			return gitrepo.Open(dir, opts...)
		}
		r.openRemote = func(ctx context.Context, url string) (scm.Repository, error) {
			return gitrepo.OpenRemote(ctx, url, opts...)
		}
		r.clone = func(ctx context.Context, url, dir string) (scm.Repository, error) {
			remote, err := gitrepo.OpenRemote(ctx, url, opts...)
			if err != nil {
				return nil, err
			}
			defer remote.Close()
			return remote.CloneTo(ctx, dir)
		}
	}
}

// WithNotifier routes registry and module events to n.
func WithNotifier(n module.Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns an empty registry rooted at root. WithProject overrides
// root with the project working copy.
func New(root string, opts ...Option) *Registry {
	r := &Registry{root: root, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Project returns the project repository, nil when none is bound.
func (r *Registry) Project() scm.Repository { return r.project }

// Root returns the directory module paths are relative to.
func (r *Registry) Root() string { return r.root }

// Managers returns the configured repository managers.
func (r *Registry) Managers() []provider.Manager { return slices.Clone(r.managers) }

// Modules returns the local modules sorted by name.
func (r *Registry) Modules() []*module.Module {
	r.mu.RLock()
	out := slices.Clone(r.local)
	r.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b *module.Module) int {
		return strings.Compare(strings.ToLower(a.Name()), strings.ToLower(b.Name()))
	})
	return out
}

// Remotes returns the modules found by the last Refresh.
func (r *Registry) Remotes() []*RemoteModule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.remote)
}

// Lookup returns the local module with the given ID.
func (r *Registry) Lookup(id uuid.UUID) (*module.Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.local {
		if m.ID() == id {
			return m, true
		}
	}
	return nil, false
}

// Find returns the local module whose ID, name or path matches key.
func (r *Registry) Find(key string) (*module.Module, error) {
	if id, err := uuid.Parse(key); err == nil {
		if m, ok := r.Lookup(id); ok {
			return m, nil
		}
	}
	for _, m := range r.Modules() {
		if strings.EqualFold(m.Name(), key) || filepath.Clean(m.Snapshot().Path) == filepath.Clean(key) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, key)
}

// FindRemote returns the remote module whose ID or name matches key.
func (r *Registry) FindRemote(key string) (*RemoteModule, error) {
	id, idErr := uuid.Parse(key)
	for _, rm := range r.Remotes() {
		if (idErr == nil && rm.Module.ID() == id) || strings.EqualFold(rm.Module.Name(), key) || rm.Remote.Name == key {
			return rm, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, key)
}

// CheckDependencies evaluates the dependencies of m against the local
// modules.
func (r *Registry) CheckDependencies(m *module.Module) []module.DependencyStatus {
	return m.Dependencies(r)
}

// DependencyOrder returns the local modules so that every module follows
// the local modules it depends on. Modules with unrelated dependencies
// keep their name order. On a cycle the ordered prefix is returned with a
// *dag.CycleError naming the module IDs left over.
func (r *Registry) DependencyOrder() ([]*module.Module, error) {
	mods := r.Modules()
	byID := make(map[uuid.UUID]*module.Module, len(mods))
	g := dag.New[uuid.UUID]()
	for _, m := range mods {
		byID[m.ID()] = m
		g.AddNode(m.ID())
	}
	for _, m := range mods {
		for _, dep := range m.Snapshot().Dependencies {
			if _, ok := byID[dep.ModuleID]; ok {
				g.AddEdge(dep.ModuleID, m.ID())
			}
		}
	}
	ids, err := g.TopologicalSort()
	out := make([]*module.Module, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out, err
}

// Add registers modules that were opened elsewhere.
func (r *Registry) Add(mods ...*module.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range mods {
		if !slices.ContainsFunc(r.local, func(o *module.Module) bool { return o.ID() == m.ID() }) {
			r.local = append(r.local, m)
		}
	}
}

func (r *Registry) replace(old, m *module.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := slices.Index(r.local, old); i >= 0 {
		r.local[i] = m
		return
	}
	r.local = append(r.local, m)
}

func (r *Registry) remove(m *module.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local = slices.DeleteFunc(r.local, func(o *module.Module) bool { return o == m })
}

func (r *Registry) moduleOptions() []module.Option {
	opts := []module.Option{module.WithLogger(r.logger)}
	if r.notifier != nil {
		opts = append(opts, module.WithNotifier(r.notifier))
	}
	return opts
}

// abs resolves a module path against the registry root.
func (r *Registry) abs(p string) string {
	if filepath.IsAbs(p) || r.root == "" {
		return p
	}
	return filepath.Join(r.root, filepath.FromSlash(p))
}

// relPath returns the path of m inside the project.
func (r *Registry) relPath(m *module.Module) (string, error) {
	repo := m.Repository()
	if repo == nil {
		return "", scm.ErrRepositoryNotInitialized
	}
	if r.project == nil {
		return repo.WorkingCopyPath(), nil
	}
	return r.project.SubmodulePath(repo.WorkingCopyPath())
}

// Discover opens every module whose working copy lies under the registry
// root: directories holding both a .git entry and the metadata file.
func (r *Registry) Discover(ctx context.Context) error {
	if r.open == nil {
		return errors.New("discover: no repository opener configured")
	}
	dirs, err := discoverDirs(r.root)
	if err != nil {
		return fmt.Errorf("discover modules in %s: %w", r.root, err)
	}
	var errs []error
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		repo, err := r.open(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m, err := module.Open(repo, r.moduleOptions()...)
		if err != nil {
			_ = repo.Close()
			errs = append(errs, err)
			continue
		}
		r.Add(m)
		r.logger.Debug("discovered module", "module", m.Name(), "path", dir)
	}
	r.broadcast(ctx)
	return batch("discover", errs)
}

// Refresh replaces the remote modules with the repositories every manager
// currently lists. A failing manager does not stop the others.
func (r *Registry) Refresh(ctx context.Context) error {
	if r.openRemote == nil {
		return errors.New("refresh: no remote opener configured")
	}
	var (
		found []*RemoteModule
		errs  []error
	)
	for _, mgr := range r.managers {
		remotes, err := mgr.ListRepositories(ctx)
		if err != nil {
			r.logger.Warn("list repositories", "manager", mgr.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		for _, remote := range remotes {
			repo, err := r.openRemote(ctx, remote.URL)
			if err != nil {
				errs = append(errs, moduleError(remote.Name, err))
				continue
			}
			m, err := module.Open(repo, r.moduleOptions()...)
			if err != nil {
				_ = repo.Close()
				errs = append(errs, moduleError(remote.Name, err))
				continue
			}
			found = append(found, &RemoteModule{Manager: mgr, Remote: remote, Module: m})
		}
	}

	r.mu.Lock()
	stale := r.remote
	r.remote = found
	r.mu.Unlock()
	for _, rm := range stale {
		_ = rm.Module.Close()
	}
	r.broadcast(ctx)
	return batch("refresh", errs)
}

// Create provisions a repository for a new module on mgr, publishes the
// content of the snapshot directory as its first commit and release, and
// checks it out on master. Inside a project the module becomes a staged
// submodule and the lock file is rewritten and staged, with no project
// commit.
func (r *Registry) Create(ctx context.Context, mgr provider.Manager, s *module.Snapshot, start version.BranchVersion) (*module.Module, error) {
	if !start.IsExact() {
		return nil, fmt.Errorf("create %s: %w, got %q", s.Name, ErrInvalidVersion, start)
	}
	if r.clone == nil {
		return nil, errors.New("create: no cloner configured")
	}
	check := s.Clone()
	check.Path = r.abs(s.Path)
	if err := check.Validate(true); err != nil {
		return nil, fmt.Errorf("create %s: %w", s.Name, err)
	}

	remote, err := mgr.CreateRepository(ctx, s.Name)
	if err != nil {
		return nil, err
	}
	dir := r.abs(s.Path)
	repo, err := r.clone(ctx, remote.URL, dir)
	if err != nil {
		return nil, moduleError(s.Name, err)
	}

	m := module.Create(repo, s, r.moduleOptions()...)
	if err := initialRelease(ctx, m, start); err != nil {
		_ = m.Close()
		return nil, err
	}

	if r.project != nil {
		if m, err = r.adopt(ctx, m, remote.URL, s.Path); err != nil {
			return nil, err
		}
	}
	if err := m.Checkout(ctx, master); err != nil {
		return m, err
	}

	r.Add(m)
	if r.project != nil {
		r.projectMu.Lock()
		err := r.stageLock()
		r.projectMu.Unlock()
		if err != nil {
			return m, moduleError(m.Name(), err)
		}
	}
	r.addRemote(ctx, mgr, remote)
	r.logger.Info("created module", "module", m.Name(), "version", start.String(), "manager", mgr.Name())
	r.broadcast(ctx)
	return m, nil
}

// addRemote reads the freshly provisioned repository into the remote
// modules. A failure only costs the entry until the next Refresh.
func (r *Registry) addRemote(ctx context.Context, mgr provider.Manager, remote provider.Remote) {
	if r.openRemote == nil {
		return
	}
	repo, err := r.openRemote(ctx, remote.URL)
	if err != nil {
		r.logger.Warn("open remote module", "remote", remote.URL, "error", err)
		return
	}
	m, err := module.Open(repo, r.moduleOptions()...)
	if err != nil {
		_ = repo.Close()
		r.logger.Warn("open remote module", "remote", remote.URL, "error", err)
		return
	}
	r.mu.Lock()
	r.remote = append(r.remote, &RemoteModule{Manager: mgr, Remote: remote, Module: m})
	r.mu.Unlock()
}

func initialRelease(ctx context.Context, m *module.Module, start version.BranchVersion) error {
	if err := m.SaveMetadata(); err != nil {
		return err
	}
	if err := m.PublishChanges(ctx, MessageInitialCommit); err != nil {
		return err
	}
	if err := m.PublishVersion(ctx, start); err != nil {
		return err
	}
	return m.CreateBaseBranches()
}

// adopt replaces the freshly published working copy of m with a project
// submodule of the same remote.
func (r *Registry) adopt(ctx context.Context, m *module.Module, url, rel string) (*module.Module, error) {
	r.projectMu.Lock()
	defer r.projectMu.Unlock()

	dir := r.abs(rel)
	if err := m.Close(); err != nil {
		return nil, moduleError(m.Name(), err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, moduleError(m.Name(), err)
	}
	sub, err := r.project.AddSubmodule(ctx, url, filepath.ToSlash(rel))
	if err != nil {
		return nil, moduleError(m.Name(), err)
	}
	opened, err := module.Open(sub, r.moduleOptions()...)
	if err != nil {
		return nil, moduleError(m.Name(), err)
	}
	if err := r.project.StageFile(filepath.ToSlash(rel)); err != nil {
		return opened, moduleError(m.Name(), err)
	}
	return opened, nil
}

// Import brings remote modules into the project at the version each one
// is checked out at. Missing modules are added, present ones are switched
// to the requested version and moved when their path changed. Failures
// are collected per module; the successful ones end up in a single
// project commit.
func (r *Registry) Import(ctx context.Context, remotes []*module.Module) error {
	r.projectMu.Lock()
	var (
		errs     []error
		imported []string
	)
	for _, remote := range remotes {
		target := remote.CurrentVersion()
		var err error
		if local, ok := r.Lookup(remote.ID()); !ok {
			err = r.importNew(ctx, remote, target)
		} else if local.CurrentVersion() != target {
			err = r.importExisting(ctx, local, remote.Snapshot().Path, target)
		} else {
			continue
		}
		if err != nil {
			errs = append(errs, moduleError(remote.Name(), err))
			continue
		}
		imported = append(imported, fmt.Sprintf("%s [%s]", remote.Name(), target))
	}
	if len(imported) > 0 {
		if err := r.commitProject(MessageImportModules + strings.Join(imported, ", ")); err != nil {
			errs = append(errs, err)
		}
	}
	r.projectMu.Unlock()

	r.broadcast(ctx)
	return batch("import", errs)
}

func (r *Registry) importNew(ctx context.Context, remote *module.Module, target version.BranchVersion) error {
	source := remote.Repository()
	if source == nil {
		return scm.ErrRepositoryNotInitialized
	}
	url, err := source.RemoteURL()
	if err != nil {
		return err
	}
	rel := remote.Snapshot().Path
	var repo scm.Repository
	if r.project != nil {
		repo, err = r.project.AddSubmodule(ctx, url, filepath.ToSlash(rel))
	} else if r.clone != nil {
		repo, err = r.clone(ctx, url, r.abs(rel))
	} else {
		err = errors.New("no cloner configured")
	}
	if err != nil {
		return err
	}
	m, err := module.Open(repo, r.moduleOptions()...)
	if err != nil {
		_ = repo.Close()
		return err
	}
	r.Add(m)
	if err := m.Checkout(ctx, target); err != nil {
		return err
	}
	return r.stage(filepath.ToSlash(rel))
}

func (r *Registry) importExisting(ctx context.Context, local *module.Module, wanted string, target version.BranchVersion) error {
	if !local.HasVersion(target) {
		if err := local.Fetch(ctx); err != nil {
			return err
		}
	}
	if err := local.Checkout(ctx, target); err != nil {
		return err
	}
	rel, err := r.relPath(local)
	if err != nil {
		return err
	}
	if wanted != "" && r.project != nil && filepath.ToSlash(wanted) != rel {
		if _, err := r.moveSubmodule(local, rel, filepath.ToSlash(wanted)); err != nil {
			return err
		}
		rel = filepath.ToSlash(wanted)
	}
	return r.stage(rel)
}

// moveSubmodule closes m, moves its submodule and reopens it at the new
// path. Callers hold projectMu.
func (r *Registry) moveSubmodule(m *module.Module, oldRel, newRel string) (*module.Module, error) {
	if r.open == nil {
		return nil, errors.New("no repository opener configured")
	}
	current := m.CurrentVersion()
	if err := m.Close(); err != nil {
		return nil, err
	}
	if err := r.project.MoveSubmodule(oldRel, newRel); err != nil {
		return nil, err
	}
	repo, err := r.open(r.abs(newRel))
	if err != nil {
		return nil, err
	}
	moved, err := module.Open(repo, r.moduleOptions()...)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	r.replace(m, moved)
	r.logger.Debug("moved module", "module", moved.Name(), "from", oldRel, "to", newRel, "version", current.String())
	return moved, nil
}

// Modify replaces the metadata of m with s and publishes it. Only modules
// checked out on master can be modified; anything else fails before any
// repository is touched. The returned module replaces m when the module
// had to be reopened at a new path.
func (r *Registry) Modify(ctx context.Context, m *module.Module, s *module.Snapshot) (*module.Module, error) {
	if current := m.CurrentVersion(); current != master {
		return m, fmt.Errorf("modify %s [%s]: %w", m.Name(), current, ErrModifyOutsideMaster)
	}
	if err := s.Validate(false); err != nil {
		return m, fmt.Errorf("modify %s: %w", m.Name(), err)
	}

	r.projectMu.Lock()
	m, err := r.modifyLocked(ctx, m, s)
	r.projectMu.Unlock()

	r.broadcast(ctx)
	return m, err
}

func (r *Registry) modifyLocked(ctx context.Context, m *module.Module, s *module.Snapshot) (*module.Module, error) {
	oldPath := m.Snapshot().Path
	if s.Path != oldPath {
		var err error
		if r.project != nil && m.Repository() != nil && m.Repository().IsSubmodule() {
			rel, relErr := r.relPath(m)
			if relErr != nil {
				return m, relErr
			}
			var moved *module.Module
			if moved, err = r.moveSubmodule(m, rel, filepath.ToSlash(s.Path)); err == nil {
				m = moved
			}
		} else {
			err = m.Relocate(r.abs(s.Path))
		}
		if err != nil {
			return m, err
		}
	}

	m.UpdateSnapshot(s)
	if err := m.SaveMetadata(); err != nil {
		return m, err
	}
	state, err := m.State()
	if err != nil {
		return m, err
	}
	if state != module.StateDirty {
		return m, nil
	}
	if err := m.PublishChanges(ctx, MessageModifyMetadata); err != nil {
		return m, err
	}
	if r.project == nil {
		return m, nil
	}
	rel, err := r.relPath(m)
	if err != nil {
		return m, err
	}
	if err := r.stage(rel); err != nil {
		return m, err
	}
	return m, r.commitProject(fmt.Sprintf("%s%s [%s]", MessageModifyModule, m.Name(), m.CurrentVersion()))
}

// Delete removes modules from the project. Without force a module with
// uncommitted changes is kept. Failures are collected per module; the
// removals that went through end up in a single project commit.
func (r *Registry) Delete(ctx context.Context, mods []*module.Module, force bool) error {
	r.projectMu.Lock()
	var (
		errs    []error
		removed int
	)
	for _, m := range mods {
		if err := r.deleteOne(m, force); err != nil {
			errs = append(errs, moduleError(m.Name(), err))
			continue
		}
		removed++
	}
	if removed > 0 {
		if err := r.commitProject(MessageDeleteModules); err != nil {
			errs = append(errs, err)
		}
	}
	r.projectMu.Unlock()

	r.broadcast(ctx)
	return batch("delete", errs)
}

func (r *Registry) deleteOne(m *module.Module, force bool) error {
	if !force {
		state, err := m.State()
		if err != nil {
			return err
		}
		if state == module.StateDirty {
			return fmt.Errorf("%w: use force to discard local changes", scm.ErrCheckoutConflict)
		}
	}
	rel, err := r.relPath(m)
	if err != nil {
		return err
	}
	if err := m.Close(); err != nil {
		return err
	}
	if r.project != nil {
		if err := r.project.RemoveSubmodule(rel, force); err != nil {
			return err
		}
	} else if err := os.RemoveAll(rel); err != nil {
		return err
	}
	r.remove(m)
	r.logger.Info("deleted module", "module", m.Name(), "path", rel)
	return nil
}

// PublishChanges commits and pushes every change of m, then stages the
// new module commit in the project.
func (r *Registry) PublishChanges(ctx context.Context, m *module.Module, message string) error {
	if err := m.PublishChanges(ctx, message); err != nil {
		return err
	}
	r.projectMu.Lock()
	err := r.stageModule(m)
	r.projectMu.Unlock()
	r.broadcast(ctx)
	return err
}

// PublishVersion releases the current commit of m as v.
func (r *Registry) PublishVersion(ctx context.Context, m *module.Module, v version.BranchVersion) error {
	if !v.IsExact() {
		return fmt.Errorf("release %s: %w, got %q", m.Name(), ErrInvalidVersion, v)
	}
	if err := m.PublishVersion(ctx, v); err != nil {
		return err
	}
	r.broadcast(ctx)
	return nil
}

// NextVersion returns the release following the latest one of m, bumped
// at the given part ("major", "minor" or "patch"). A module without
// releases starts at v0.1.0.
func NextVersion(m *module.Module, part string) (version.BranchVersion, error) {
	latest, ok := m.LatestRelease()
	if !ok {
		return version.New(0, 1, 0), nil
	}
	switch strings.ToLower(part) {
	case "major":
		latest.BumpMajor()
	case "minor":
		latest.BumpMinor()
	case "patch":
		latest.BumpPatch()
	default:
		return version.BranchVersion{}, fmt.Errorf("unknown version part %q, want major, minor or patch", part)
	}
	return latest, nil
}

func (r *Registry) stageModule(m *module.Module) error {
	if r.project == nil {
		return nil
	}
	rel, err := r.relPath(m)
	if err != nil {
		return err
	}
	return r.stage(rel)
}

// stage stages a module path in the project. Callers hold projectMu.
func (r *Registry) stage(rel string) error {
	if r.project == nil {
		return nil
	}
	return r.project.StageFile(rel)
}

// Lock returns the lock describing the local modules.
func (r *Registry) Lock() *Lock {
	l := &Lock{}
	for _, m := range r.Modules() {
		entry := LockedModule{
			ID:      m.ID().String(),
			Name:    m.Name(),
			Version: m.CurrentVersion().String(),
		}
		if rel, err := r.relPath(m); err == nil {
			entry.Path = rel
		} else {
			entry.Path = m.Snapshot().Path
		}
		if repo := m.Repository(); repo != nil {
			entry.Remote, _ = repo.RemoteURL()
		}
		l.Modules = append(l.Modules, entry)
	}
	return l
}

// commitProject writes the lock file and commits everything staged in the
// project. Callers hold projectMu.
func (r *Registry) commitProject(message string) error {
	if r.project == nil {
		return nil
	}
	if err := r.stageLock(); err != nil {
		return err
	}
	if err := r.project.Commit(message); err != nil {
		return fmt.Errorf("%w: %w", ErrUncommittedChanges, err)
	}
	r.logger.Info("committed project", "message", message)
	return nil
}

// stageLock writes the lock file of the local modules into the project
// and stages it. Callers hold projectMu.
func (r *Registry) stageLock() error {
	data, err := r.Lock().Encode()
	if err != nil {
		return err
	}
	if err := r.project.WriteFile(LockFile, data); err != nil {
		return fmt.Errorf("%w: %w", ErrUncommittedChanges, err)
	}
	if err := r.project.StageFile(LockFile); err != nil {
		return fmt.Errorf("%w: %w", ErrUncommittedChanges, err)
	}
	return nil
}

// Close releases every repository handle.
func (r *Registry) Close() error {
	r.mu.Lock()
	local, remote := r.local, r.remote
	r.local, r.remote = nil, nil
	r.mu.Unlock()

	var errs []error
	for _, m := range local {
		errs = append(errs, m.Close())
	}
	for _, rm := range remote {
		errs = append(errs, rm.Module.Close())
	}
	return errors.Join(errs...)
}
