// SPDX-License-Identifier: MPL-2.0

package module

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/moduni/moduni/pkg/scm"
	"github.com/moduni/moduni/pkg/scm/scmtest"
	"github.com/moduni/moduni/pkg/version"
)

type recorder struct {
	mu     sync.Mutex
	events []cloudevents.Event
}

func (r *recorder) NotifyObservers(_ context.Context, event cloudevents.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type())
	}
	return out
}

func versionStrings(vs []version.BranchVersion) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

func mustMetadata(t *testing.T, id uuid.UUID, s *Snapshot) string {
	t.Helper()
	data, err := EncodeMetadata(id, s)
	if err != nil {
		t.Fatalf("EncodeMetadata() error: %v", err)
	}
	return string(data)
}

// releasedRemote returns a remote with master, tags v1.0.0 and v1.1.0 and
// the floating branch v1.0.x, plus a working copy cloned from it.
func releasedRemote(t *testing.T, id uuid.UUID) (*scmtest.Repository, *scmtest.Repository) {
	t.Helper()

	net := scmtest.NewNetwork()
	remote := net.NewRemote("core")
	remote.Seed(map[string]string{
		MetadataFile: mustMetadata(t, id, &Snapshot{Name: "Core", Description: "v1.0", MaturityLevel: 2, Path: "Modules/Core"}),
		"src/a.txt":  "one",
	})
	remote.SeedTag("v1.0.0")
	remote.SeedBranch("v1.0.x")
	remote.Seed(map[string]string{
		MetadataFile: mustMetadata(t, id, &Snapshot{Name: "Core", Description: "v1.1", MaturityLevel: 3, Path: "Modules/Core"}),
	})
	remote.SeedTag("v1.1.0")

	local, err := remote.CloneTo(context.Background(), "/work/core")
	if err != nil {
		t.Fatalf("CloneTo() error: %v", err)
	}
	return remote, local.(*scmtest.Repository)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	_, local := releasedRemote(t, id)

	m, err := Open(local)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if m.ID() != id {
		t.Errorf("ID() = %s, want %s", m.ID(), id)
	}
	if m.Name() != "Core" {
		t.Errorf("Name() = %q, want %q", m.Name(), "Core")
	}
	if got := m.CurrentVersion().String(); got != "master" {
		t.Errorf("CurrentVersion() = %q, want master", got)
	}
	want := []string{"master", "v1.1.x", "v1.1.0", "v1.0.x", "v1.0.0"}
	if got := versionStrings(m.Versions()); !slices.Equal(got, want) {
		t.Errorf("Versions() = %v, want %v", got, want)
	}
}

func TestOpenDetachedHeadUsesNearestTag(t *testing.T) {
	t.Parallel()

	_, local := releasedRemote(t, uuid.New())
	if err := local.Checkout("v1.0.0"); err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}

	m, err := Open(local)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if got := m.CurrentVersion().String(); got != "v1.0.0" {
		t.Errorf("CurrentVersion() = %q, want v1.0.0", got)
	}
	if got := m.Snapshot().Description; got != "v1.0" {
		t.Errorf("Snapshot().Description = %q, want v1.0", got)
	}
}

func TestOpenEmptyRepository(t *testing.T) {
	t.Parallel()

	m, err := Open(scmtest.NewWorkingCopy("empty", "/work/empty"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if m.ID() == uuid.Nil {
		t.Error("ID() should be assigned")
	}
	if got := versionStrings(m.Versions()); !slices.Equal(got, []string{"master"}) {
		t.Errorf("Versions() = %v, want [master]", got)
	}
	if m.Snapshot().MaturityLevel != MinMaturityLevel {
		t.Errorf("Snapshot().MaturityLevel = %d, want %d", m.Snapshot().MaturityLevel, MinMaturityLevel)
	}
}

func TestCheckoutUnknownVersion(t *testing.T) {
	t.Parallel()

	_, local := releasedRemote(t, uuid.New())
	m, err := Open(local)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	callsBefore := len(local.Calls())

	err = m.Checkout(context.Background(), version.MustParse("nonexistent-branch"))
	if !errors.Is(err, ErrUnknownVersion) {
		t.Fatalf("Checkout() error = %v, want ErrUnknownVersion", err)
	}
	var vErr *VersionError
	if !errors.As(err, &vErr) || vErr.Module != "Core" {
		t.Errorf("Checkout() error = %v, want *VersionError naming the module", err)
	}
	if got := m.CurrentVersion().String(); got != "master" {
		t.Errorf("CurrentVersion() = %q, want master", got)
	}
	if len(local.Calls()) != callsBefore {
		t.Errorf("repository touched by rejected checkout: %v", local.Calls()[callsBefore:])
	}
}

func TestCheckoutExactVersionCachesSnapshot(t *testing.T) {
	t.Parallel()

	_, local := releasedRemote(t, uuid.New())
	rec := &recorder{}
	m, err := Open(local, WithNotifier(rec))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	ctx := context.Background()
	target := version.MustParse("v1.0.0")

	if err := m.Checkout(ctx, target); err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}
	if m.CurrentVersion() != target {
		t.Errorf("CurrentVersion() = %q, want %q", m.CurrentVersion(), target)
	}
	if got := m.Snapshot().Description; got != "v1.0" {
		t.Errorf("Snapshot().Description = %q, want v1.0", got)
	}
	if got := rec.types(); !slices.Equal(got, []string{EventTypeFilesUpdated}) {
		t.Errorf("events = %v, want one files updated event", got)
	}

	reads := local.CountCalls("FileContentAt")
	if err := m.Checkout(ctx, target); err != nil {
		t.Fatalf("second Checkout() error: %v", err)
	}
	if got := local.CountCalls("FileContentAt"); got != reads {
		t.Errorf("second checkout re-read metadata: %d reads, want %d", got, reads)
	}
	if got := local.CountCalls("FetchAll"); got != 0 {
		t.Errorf("checkout fetched %d times, want 0", got)
	}
}

func TestCheckoutFloatingLineFromRemote(t *testing.T) {
	t.Parallel()

	_, local := releasedRemote(t, uuid.New())
	m, err := Open(local)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	if err := m.Checkout(context.Background(), version.MustParse("v1.0.x")); err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}
	branches, _ := local.LocalBranches()
	if !slices.Contains(branches, "v1.0.x") {
		t.Errorf("LocalBranches() = %v, want v1.0.x created", branches)
	}
	if branch, _ := local.CurrentBranch(); branch != "v1.0.x" {
		t.Errorf("CurrentBranch() = %q, want v1.0.x", branch)
	}
	if got := m.Snapshot().Description; got != "v1.0" {
		t.Errorf("Snapshot().Description = %q, want v1.0", got)
	}
}

func TestCheckoutMissingRemoteRef(t *testing.T) {
	t.Parallel()

	_, local := releasedRemote(t, uuid.New())
	m, err := Open(local)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	err = m.Checkout(context.Background(), version.MustParse("v1.1.x"))
	if !errors.Is(err, scm.ErrNoSuchRemoteRef) {
		t.Fatalf("Checkout() error = %v, want ErrNoSuchRemoteRef", err)
	}
	if got := m.CurrentVersion().String(); got != "master" {
		t.Errorf("CurrentVersion() = %q, want master", got)
	}
}

func TestCheckoutConflict(t *testing.T) {
	t.Parallel()

	_, local := releasedRemote(t, uuid.New())
	m, err := Open(local)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := local.WriteFile("src/a.txt", []byte("local edit")); err != nil {
		t.Fatal(err)
	}

	err = m.Checkout(context.Background(), version.MustParse("v1.0.0"))
	if !errors.Is(err, scm.ErrCheckoutConflict) {
		t.Fatalf("Checkout() error = %v, want ErrCheckoutConflict", err)
	}
	if state, _ := m.State(); state != StateDirty {
		t.Errorf("State() = %s, want dirty", state)
	}
}

func TestPublishChanges(t *testing.T) {
	t.Parallel()

	remote, local := releasedRemote(t, uuid.New())
	m, err := Open(local)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	ctx := context.Background()

	if err := m.PublishChanges(ctx, "nothing"); !errors.Is(err, scm.ErrEmptyCommit) {
		t.Errorf("PublishChanges() on clean tree error = %v, want ErrEmptyCommit", err)
	}

	if err := local.WriteFile("src/b.txt", []byte("two")); err != nil {
		t.Fatal(err)
	}
	before := remote.CommitCount()
	if err := m.PublishChanges(ctx, "feat: add b"); err != nil {
		t.Fatalf("PublishChanges() error: %v", err)
	}
	if remote.CommitCount() != before+1 {
		t.Errorf("remote commits = %d, want %d", remote.CommitCount(), before+1)
	}
	if state, _ := m.State(); state != StateClean {
		t.Errorf("State() = %s, want clean", state)
	}
}

func TestPublishChangesKeepsCommitWhenPushFails(t *testing.T) {
	t.Parallel()

	remote, local := releasedRemote(t, uuid.New())
	m, err := Open(local)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := local.WriteFile("src/b.txt", []byte("two")); err != nil {
		t.Fatal(err)
	}
	pushErr := errors.New("network unreachable")
	local.FailOn("Push", pushErr)
	before, remoteBefore := local.CommitCount(), remote.CommitCount()

	if err := m.PublishChanges(context.Background(), "feat: add b"); !errors.Is(err, pushErr) {
		t.Fatalf("PublishChanges() error = %v, want push failure", err)
	}
	if local.CommitCount() != before+1 {
		t.Errorf("local commits = %d, want %d", local.CommitCount(), before+1)
	}
	if remote.CommitCount() != remoteBefore {
		t.Errorf("remote commits = %d, want %d", remote.CommitCount(), remoteBefore)
	}
}

func TestCreateAndPublishVersions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	net := scmtest.NewNetwork()
	remote := net.NewRemote("core")
	clone, err := remote.CloneTo(ctx, "/work/core")
	if err != nil {
		t.Fatalf("CloneTo() error: %v", err)
	}

	rec := &recorder{}
	m := Create(clone, &Snapshot{Name: "Core", MaturityLevel: 4, Path: "Modules/Core"}, WithNotifier(rec))
	if got := versionStrings(m.Versions()); !slices.Equal(got, []string{"master"}) {
		t.Fatalf("Versions() = %v, want [master]", got)
	}
	if err := m.SaveMetadata(); err != nil {
		t.Fatalf("SaveMetadata() error: %v", err)
	}
	if err := m.PublishChanges(ctx, "feat(Global): initial commit of the module"); err != nil {
		t.Fatalf("PublishChanges() error: %v", err)
	}
	if err := m.PublishVersion(ctx, version.MustParse("v1.0.0")); err != nil {
		t.Fatalf("PublishVersion(v1.0.0) error: %v", err)
	}
	if err := m.CreateBaseBranches(); err != nil {
		t.Fatalf("CreateBaseBranches() error: %v", err)
	}
	if got, want := versionStrings(m.Versions()), []string{"master", "v1.0.x", "v1.0.0"}; !slices.Equal(got, want) {
		t.Errorf("Versions() = %v, want %v", got, want)
	}

	if err := m.PublishVersion(ctx, version.MustParse("v1.1.0")); err != nil {
		t.Fatalf("PublishVersion(v1.1.0) error: %v", err)
	}
	want := []string{"master", "v1.1.x", "v1.1.0", "v1.0.x", "v1.0.0"}
	if got := versionStrings(m.Versions()); !slices.Equal(got, want) {
		t.Errorf("Versions() = %v, want %v", got, want)
	}
	if got := remote.Tags(); !slices.Equal(got, []string{"v1.0.0", "v1.1.0"}) {
		t.Errorf("remote tags = %v, want [v1.0.0 v1.1.0]", got)
	}
	if !slices.Contains(rec.types(), EventTypeVersionsUpdated) {
		t.Errorf("events = %v, want a versions updated event", rec.types())
	}

	if err := m.PublishVersion(ctx, version.MustParse("v2.0.0")); err != nil {
		t.Fatalf("PublishVersion(v2.0.0) error: %v", err)
	}
	latest, ok := m.LatestRelease()
	if !ok || latest.String() != "v2.0.0" {
		t.Errorf("LatestRelease() = %q, want v2.0.0", latest)
	}
	numeric := slices.DeleteFunc(m.Versions(), version.BranchVersion.IsNamedBranch)
	if got := numeric[0].String(); got != "v2.0.x" {
		t.Errorf("newest numeric version = %q, want v2.0.x", got)
	}
}

func TestPublishVersionRejects(t *testing.T) {
	t.Parallel()

	_, local := releasedRemote(t, uuid.New())
	m, err := Open(local)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	ctx := context.Background()

	if err := m.PublishVersion(ctx, version.MustParse("v1.2.x")); !errors.Is(err, version.ErrMalformedVersion) {
		t.Errorf("PublishVersion(v1.2.x) error = %v, want ErrMalformedVersion", err)
	}
	if err := m.PublishVersion(ctx, version.MustParse("v1.1.0")); !errors.Is(err, ErrVersionExists) {
		t.Errorf("PublishVersion(v1.1.0) error = %v, want ErrVersionExists", err)
	}
}

func TestRelocate(t *testing.T) {
	t.Parallel()

	t.Run("detached", func(t *testing.T) {
		t.Parallel()

		m := New(nil)
		if err := m.Relocate("/elsewhere"); !errors.Is(err, scm.ErrRepositoryNotInitialized) {
			t.Errorf("Relocate() error = %v, want ErrRepositoryNotInitialized", err)
		}
	})

	t.Run("working copy moves", func(t *testing.T) {
		t.Parallel()

		_, local := releasedRemote(t, uuid.New())
		m, err := Open(local)
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Relocate("/work/moved"); err != nil {
			t.Fatalf("Relocate() error: %v", err)
		}
		if got := local.WorkingCopyPath(); got != "/work/moved" {
			t.Errorf("WorkingCopyPath() = %q, want /work/moved", got)
		}
	})

	t.Run("submodule stays", func(t *testing.T) {
		t.Parallel()

		net := scmtest.NewNetwork()
		remote := net.NewRemote("core")
		remote.Seed(map[string]string{"a": "b"})
		parent, err := net.NewRemote("project").CloneTo(context.Background(), "/work/project")
		if err != nil {
			t.Fatal(err)
		}
		sub, err := parent.AddSubmodule(context.Background(), "mem://core", "Modules/Core")
		if err != nil {
			t.Fatalf("AddSubmodule() error: %v", err)
		}
		m, err := Open(sub)
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Relocate("/work/elsewhere"); err != nil {
			t.Fatalf("Relocate() error: %v", err)
		}
		if got := sub.WorkingCopyPath(); got != "/work/project/Modules/Core" {
			t.Errorf("WorkingCopyPath() = %q, want unchanged", got)
		}
	})
}

func TestCloseDetaches(t *testing.T) {
	t.Parallel()

	_, local := releasedRemote(t, uuid.New())
	m, err := Open(local)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if state, _ := m.State(); state != StateDetached {
		t.Errorf("State() = %s, want detached", state)
	}
	if err := m.Checkout(context.Background(), version.MustParse("v1.0.0")); !errors.Is(err, scm.ErrRepositoryNotInitialized) {
		t.Errorf("Checkout() after Close error = %v, want ErrRepositoryNotInitialized", err)
	}
}

func TestFetchMergesNewVersions(t *testing.T) {
	t.Parallel()

	remote, local := releasedRemote(t, uuid.New())
	m, err := Open(local)
	if err != nil {
		t.Fatal(err)
	}
	remote.Seed(map[string]string{"src/c.txt": "three"})
	remote.SeedTag("v1.2.0")

	if err := m.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if !m.HasVersion(version.MustParse("v1.2.0")) || !m.HasVersion(version.MustParse("v1.2.x")) {
		t.Errorf("Versions() = %v, want v1.2.0 and v1.2.x", versionStrings(m.Versions()))
	}
}
