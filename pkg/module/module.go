// SPDX-License-Identifier: MPL-2.0

package module

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/moduni/moduni/pkg/scm"
	"github.com/moduni/moduni/pkg/version"
)

// Module states.
const (
	// StateDetached means no repository is bound.
	StateDetached State = iota
	// StateClean means the working tree matches the current version.
	StateClean
	// StateDirty means the working tree has uncommitted changes.
	StateDirty
)

var master = version.NewBranch(version.Master)

type (
	// State is the checkout state of a Module.
	State int

	// Option configures a Module.
	Option func(*Module)

	// Module is one versioned repository and the metadata cached for every
	// version visited during the process lifetime.
	//
	// Checkout and publish operations are serialized per Module. Operations
	// on different modules are independent.
	Module struct {
		mu        sync.Mutex
		id        uuid.UUID
		repo      scm.Repository
		current   version.BranchVersion
		snapshots map[version.BranchVersion]*Snapshot
		versions  []version.BranchVersion
		files     []scm.File

		notifier Notifier
		logger   *slog.Logger
	}

	pendingEvent struct {
		eventType string
		data      any
	}
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WithNotifier routes module events to n.
func WithNotifier(n Notifier) Option {
	return func(m *Module) { m.notifier = n }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Module) { m.logger = l }
}

func newModule(opts []Option) *Module {
	m := &Module{
		snapshots: make(map[version.BranchVersion]*Snapshot),
		versions:  []version.BranchVersion{master},
		current:   master,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// New returns a detached module with a fresh ID. A nil snapshot stands
// for DefaultSnapshot.
func New(s *Snapshot, opts ...Option) *Module {
	return Create(nil, s, opts...)
}

// Create returns a new module with a fresh ID bound to repo, whose only
// known version is master.
func Create(repo scm.Repository, s *Snapshot, opts ...Option) *Module {
	m := newModule(opts)
	m.id = uuid.New()
	m.repo = repo
	if s == nil {
		s = DefaultSnapshot()
	}
	m.snapshots[master] = s.Clone()
	return m
}

// Open wraps an existing repository. The module ID and snapshot come from
// the metadata file at the checked out commit; the known versions are
// master plus every exact version tag and the floating line of each tag.
func Open(repo scm.Repository, opts ...Option) (*Module, error) {
	m := newModule(opts)
	m.repo = repo

	if err := m.loadVersions(); err != nil {
		return nil, &VersionError{Op: "open", Module: repo.Name(), Err: err}
	}

	commit, err := repo.CurrentCommit()
	if err != nil {
		return nil, &VersionError{Op: "open", Module: repo.Name(), Err: err}
	}
	if commit == "" {
		m.id = uuid.New()
		s := DefaultSnapshot()
		s.Name = repo.Name()
		m.snapshots[master] = s
		return m, nil
	}

	current, err := m.headVersion(commit)
	if err != nil {
		return nil, &VersionError{Op: "open", Module: repo.Name(), Err: err}
	}
	m.addVersion(current)
	m.current = current

	id, s, err := m.readMetadata(commit)
	if err != nil {
		return nil, &VersionError{Op: "open", Module: repo.Name(), Version: current, Err: err}
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	m.id = id
	m.snapshots[current] = s
	return m, nil
}

// headVersion names the checked out commit: its branch, or the nearest tag
// when HEAD is detached.
func (m *Module) headVersion(commit string) (version.BranchVersion, error) {
	branch, err := m.repo.CurrentBranch()
	if err != nil {
		return version.BranchVersion{}, err
	}
	if branch == "" {
		tag, err := m.repo.NearestTag(commit)
		if err != nil {
			m.logger.Debug("detached head without tag", "module", m.repo.Name(), "commit", commit)
			return version.NewBranch(commit), nil
		}
		branch = tag
	}
	return version.Parse(branch)
}

func (m *Module) loadVersions() error {
	tags, err := m.repo.FindTags(nil)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		v, err := version.Parse(tag)
		if err != nil || !v.IsExact() {
			continue
		}
		m.addVersion(v)
		m.addVersion(v.FloatingVersion())
	}
	version.SortDescending(m.versions)
	return nil
}

func (m *Module) addVersion(v version.BranchVersion) bool {
	if slices.Contains(m.versions, v) {
		return false
	}
	m.versions = append(m.versions, v)
	version.SortDescending(m.versions)
	return true
}

// readMetadata loads the metadata file at ref. A missing file yields
// uuid.Nil and a default snapshot.
func (m *Module) readMetadata(ref string) (uuid.UUID, *Snapshot, error) {
	data, err := m.repo.FileContentAt(MetadataFile, ref)
	if errors.Is(err, fs.ErrNotExist) {
		s := DefaultSnapshot()
		if !m.repo.IsBare() {
			s.Path = m.repo.WorkingCopyPath()
		}
		return uuid.Nil, s, nil
	}
	if err != nil {
		return uuid.Nil, nil, err
	}
	return DecodeMetadata(data)
}

// ID returns the immutable module ID.
func (m *Module) ID() uuid.UUID { return m.id }

// Name returns the name recorded in the current snapshot.
func (m *Module) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nameLocked()
}

func (m *Module) nameLocked() string {
	if s, ok := m.snapshots[m.current]; ok && s.Name != "" {
		return s.Name
	}
	if m.repo != nil {
		return m.repo.Name()
	}
	return DefaultName
}

// Repository returns the bound repository, nil when detached.
func (m *Module) Repository() scm.Repository {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repo
}

// CurrentVersion returns the checked out version.
func (m *Module) CurrentVersion() version.BranchVersion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Versions returns the known versions, newest first.
func (m *Module) Versions() []version.BranchVersion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.versions)
}

// HasVersion reports whether v is a known version.
func (m *Module) HasVersion(v version.BranchVersion) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.versions, v)
}

// LatestRelease returns the newest exact version.
func (m *Module) LatestRelease() (version.BranchVersion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return version.Latest(m.versions)
}

// Snapshot returns a copy of the metadata at the current version.
func (m *Module) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.snapshots[m.current]; ok {
		return s.Clone()
	}
	return DefaultSnapshot()
}

// CachedSnapshot returns a copy of the cached metadata of v.
func (m *Module) CachedSnapshot(v version.BranchVersion) (*Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[v]
	return s.Clone(), ok
}

// Files returns the status list derived after the last operation.
func (m *Module) Files() []scm.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.files)
}

// State reports whether the module is detached, clean or dirty.
func (m *Module) State() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repo == nil {
		return StateDetached, nil
	}
	if m.repo.IsBare() {
		return StateClean, nil
	}
	dirty, err := m.repo.IsDirty()
	if err != nil {
		return StateClean, &VersionError{Op: "status", Module: m.nameLocked(), Version: m.current, Err: err}
	}
	if dirty {
		return StateDirty, nil
	}
	return StateClean, nil
}

// Dependencies evaluates the dependencies of the current snapshot.
func (m *Module) Dependencies(lookup Lookup) []DependencyStatus {
	return CheckDependencies(m.Snapshot().Dependencies, lookup)
}

func (m *Module) wrap(op string, v version.BranchVersion, err error) error {
	if err == nil {
		return nil
	}
	return &VersionError{Op: op, Module: m.nameLocked(), Version: v, Err: err}
}

func (m *Module) publish(ctx context.Context, events []pendingEvent) {
	for _, ev := range events {
		m.emit(ctx, ev.eventType, ev.data)
	}
}

// Checkout switches the working copy to target. Unknown versions are
// rejected without touching the repository. Floating lines and named
// branches missing locally are created from their origin counterpart.
// The snapshot of target is read from the repository on the first visit
// only.
func (m *Module) Checkout(ctx context.Context, target version.BranchVersion) error {
	m.mu.Lock()
	events, err := m.checkoutLocked(target)
	m.mu.Unlock()
	m.publish(ctx, events)
	return err
}

func (m *Module) checkoutLocked(target version.BranchVersion) ([]pendingEvent, error) {
	if m.repo == nil {
		return nil, m.wrap("checkout", target, scm.ErrRepositoryNotInitialized)
	}
	if !slices.Contains(m.versions, target) {
		return nil, m.wrap("checkout", target, ErrUnknownVersion)
	}
	if err := m.checkoutRef(target); err != nil {
		return nil, m.wrap("checkout", target, err)
	}
	if _, cached := m.snapshots[target]; !cached {
		_, s, err := m.readMetadata(target.String())
		if err != nil {
			return nil, m.wrap("checkout", target, err)
		}
		m.snapshots[target] = s
	}
	m.current = target
	m.logger.Debug("checked out module", "module", m.nameLocked(), "version", target.String())
	return m.refreshFilesLocked(), nil
}

func (m *Module) checkoutRef(target version.BranchVersion) error {
	ref := target.String()
	if target.IsExact() || m.repo.IsBare() {
		return m.repo.Checkout(ref)
	}
	local, err := m.repo.LocalBranches()
	if err != nil {
		return err
	}
	if slices.Contains(local, ref) {
		return m.repo.Checkout(ref)
	}
	if err := m.repo.Checkout(scm.RemoteName + "/" + ref); err != nil {
		return err
	}
	if err := m.repo.CreateBranch(ref); err != nil {
		return err
	}
	return m.repo.Checkout(ref)
}

func (m *Module) refreshFilesLocked() []pendingEvent {
	if m.repo == nil || m.repo.IsBare() {
		return nil
	}
	files, err := m.repo.Status()
	if err != nil {
		m.logger.Warn("read module status", "module", m.nameLocked(), "error", err)
		return nil
	}
	m.files = files
	payload := FilesUpdated{
		ModuleID: m.id.String(),
		Name:     m.nameLocked(),
		Version:  m.current.String(),
		Files:    make([]string, 0, len(files)),
	}
	for _, f := range files {
		payload.Files = append(payload.Files, f.String())
	}
	return []pendingEvent{{eventType: EventTypeFilesUpdated, data: payload}}
}

// RefreshFiles re-derives the status list and emits a files updated
// event.
func (m *Module) RefreshFiles(ctx context.Context) {
	m.mu.Lock()
	events := m.refreshFilesLocked()
	m.mu.Unlock()
	m.publish(ctx, events)
}

// Fetch updates the remote-tracking refs and merges newly published
// versions into the known versions.
func (m *Module) Fetch(ctx context.Context) error {
	m.mu.Lock()
	events, err := m.fetchLocked(ctx)
	m.mu.Unlock()
	m.publish(ctx, events)
	return err
}

func (m *Module) fetchLocked(ctx context.Context) ([]pendingEvent, error) {
	if m.repo == nil {
		return nil, m.wrap("fetch", version.BranchVersion{}, scm.ErrRepositoryNotInitialized)
	}
	if err := m.repo.FetchAll(ctx); err != nil && !errors.Is(err, scm.ErrNoRemote) {
		return nil, m.wrap("fetch", version.BranchVersion{}, err)
	}
	before := len(m.versions)
	if err := m.loadVersions(); err != nil {
		return nil, m.wrap("fetch", version.BranchVersion{}, err)
	}
	if len(m.versions) == before {
		return nil, nil
	}
	return []pendingEvent{m.versionsEventLocked()}, nil
}

func (m *Module) versionsEventLocked() pendingEvent {
	payload := VersionsUpdated{
		ModuleID: m.id.String(),
		Name:     m.nameLocked(),
		Versions: make([]string, 0, len(m.versions)),
	}
	for _, v := range m.versions {
		payload.Versions = append(payload.Versions, v.String())
	}
	return pendingEvent{eventType: EventTypeVersionsUpdated, data: payload}
}

// UpdateSnapshot replaces the metadata of the current version. Moving the
// working copy is the caller's decision; see Relocate.
func (m *Module) UpdateSnapshot(s *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := s.Clone()
	c.MaturityLevel = ClampMaturity(c.MaturityLevel)
	m.snapshots[m.current] = c
}

// SaveMetadata writes the current snapshot to the metadata file of the
// working copy.
func (m *Module) SaveMetadata() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repo == nil {
		return m.wrap("save metadata", m.current, scm.ErrRepositoryNotInitialized)
	}
	s, ok := m.snapshots[m.current]
	if !ok {
		s = DefaultSnapshot()
	}
	data, err := EncodeMetadata(m.id, s)
	if err != nil {
		return m.wrap("save metadata", m.current, err)
	}
	return m.wrap("save metadata", m.current, m.repo.WriteFile(MetadataFile, data))
}

// Relocate moves the working copy to newPath. Submodules are left in
// place; their parent repository moves them.
func (m *Module) Relocate(newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repo == nil {
		return m.wrap("relocate", m.current, scm.ErrRepositoryNotInitialized)
	}
	if m.repo.IsSubmodule() || m.repo.WorkingCopyPath() == newPath {
		return nil
	}
	m.logger.Debug("relocating module", "module", m.nameLocked(), "from", m.repo.WorkingCopyPath(), "to", newPath)
	return m.wrap("relocate", m.current, m.repo.MoveTo(newPath))
}

// PublishChanges stages every change, commits it with message and pushes
// the current branch. A failed push keeps the local commit.
func (m *Module) PublishChanges(ctx context.Context, message string) error {
	m.mu.Lock()
	events, err := m.publishChangesLocked(ctx, message)
	m.mu.Unlock()
	m.publish(ctx, events)
	return err
}

func (m *Module) publishChangesLocked(ctx context.Context, message string) ([]pendingEvent, error) {
	if m.repo == nil {
		return nil, m.wrap("publish", m.current, scm.ErrRepositoryNotInitialized)
	}
	if err := m.repo.StageAll(); err != nil {
		return nil, m.wrap("publish", m.current, err)
	}
	if err := m.repo.Commit(message); err != nil {
		return m.refreshFilesLocked(), m.wrap("publish", m.current, err)
	}
	if err := m.repo.Push(ctx); err != nil {
		return m.refreshFilesLocked(), m.wrap("publish", m.current, err)
	}
	m.logger.Info("published module changes", "module", m.nameLocked(), "version", m.current.String())
	return m.refreshFilesLocked(), nil
}

// PublishVersion tags the current commit as v and pushes the tag. The
// floating line of v is created first when it does not exist yet. Only
// exact versions can be published.
func (m *Module) PublishVersion(ctx context.Context, v version.BranchVersion) error {
	m.mu.Lock()
	events, err := m.publishVersionLocked(ctx, v)
	m.mu.Unlock()
	m.publish(ctx, events)
	return err
}

func (m *Module) publishVersionLocked(ctx context.Context, v version.BranchVersion) ([]pendingEvent, error) {
	if m.repo == nil {
		return nil, m.wrap("release", v, scm.ErrRepositoryNotInitialized)
	}
	if !v.IsExact() {
		return nil, m.wrap("release", v, &version.MalformedVersionError{Value: v.String(), Reason: "only exact versions can be released"})
	}
	if slices.Contains(m.versions, v) {
		return nil, m.wrap("release", v, ErrVersionExists)
	}

	line := v.FloatingVersion()
	exists, err := m.repo.ContainsBranch(line.String())
	if err != nil {
		return nil, m.wrap("release", v, err)
	}
	if !exists {
		if err := m.repo.CreateBranch(line.String()); err != nil {
			return nil, m.wrap("release", v, err)
		}
		if err := m.repo.PushRef(ctx, line.String()); err != nil {
			return nil, m.wrap("release", v, err)
		}
	}
	m.addVersion(line)

	if err := m.repo.AddTag(v.String()); err != nil {
		return []pendingEvent{m.versionsEventLocked()}, m.wrap("release", v, err)
	}
	if err := m.repo.PushRef(ctx, v.String()); err != nil {
		return []pendingEvent{m.versionsEventLocked()}, m.wrap("release", v, err)
	}
	m.addVersion(v)
	version.SortDescending(m.versions)
	m.logger.Info("published module version", "module", m.nameLocked(), "version", v.String())
	return []pendingEvent{m.versionsEventLocked()}, nil
}

// CreateBaseBranches makes sure master exists once the repository has a
// first commit.
func (m *Module) CreateBaseBranches() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repo == nil {
		return m.wrap("create base branches", m.current, scm.ErrRepositoryNotInitialized)
	}
	commit, err := m.repo.CurrentCommit()
	if err != nil {
		return m.wrap("create base branches", m.current, err)
	}
	if commit == "" {
		return nil
	}
	exists, err := m.repo.ContainsBranch(version.Master)
	if err != nil {
		return m.wrap("create base branches", m.current, err)
	}
	if !exists {
		if err := m.repo.CreateBranch(version.Master); err != nil {
			return m.wrap("create base branches", m.current, err)
		}
	}
	m.addVersion(master)
	return nil
}

// Close releases the repository handle. The module becomes detached.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repo == nil {
		return nil
	}
	err := m.repo.Close()
	m.repo = nil
	return err
}
