// SPDX-License-Identifier: MPL-2.0

package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/moduni/moduni/pkg/scm"
)

// DefaultSignature is used for commits when no signature is configured.
var DefaultSignature = Signature{Name: "moduni", Email: "moduni@localhost"}

type (
	// Signature identifies the author of the commits a Repository makes.
	Signature struct {
		Name  string
		Email string
	}

	// Option configures a Repository.
	Option func(*Repository)

	// Repository is a go-git backed scm.Repository.
	//
	// A Repository is either a working copy, a bare repository on disk, or
	// an in-memory bare handle on a remote URL (see OpenRemote). Methods
	// are safe for concurrent use.
	Repository struct {
		mu   sync.Mutex
		repo *git.Repository

		name string
		// location is the working copy path, the bare directory, or the
		// remote URL of an in-memory handle.
		location  string
		bare      bool
		inMemory  bool
		submodule bool

		auth      AuthFunc
		signature Signature
		logger    *slog.Logger
	}
)

var _ scm.Repository = (*Repository)(nil)

// WithAuth sets the credential lookup. Defaults to DefaultAuth("").
func WithAuth(auth AuthFunc) Option {
	return func(r *Repository) { r.auth = auth }
}

// WithSignature sets the commit author.
func WithSignature(name, email string) Option {
	return func(r *Repository) {
		if name != "" {
			r.signature.Name = name
		}
		if email != "" {
			r.signature.Email = email
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

func newRepository(g *git.Repository, location string, opts []Option) *Repository {
	r := &Repository{
		repo:      g,
		location:  location,
		name:      repoName(location),
		auth:      DefaultAuth(""),
		signature: DefaultSignature,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// options replays the configuration of r onto a derived repository.
func (r *Repository) options() []Option {
	return []Option{WithAuth(r.auth), WithSignature(r.signature.Name, r.signature.Email), WithLogger(r.logger)}
}

func repoName(location string) string {
	base := path.Base(filepath.ToSlash(strings.TrimRight(location, "/")))
	return strings.TrimSuffix(base, ".git")
}

// Open opens the repository at dir. dir may be a working copy, a
// submodule working copy whose .git is a link file, or a bare directory.
func Open(dir string, opts ...Option) (*Repository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &scm.PathError{Op: "open", Path: dir, Err: err}
	}
	g, err := git.PlainOpen(abs)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, &scm.PathError{Op: "open", Path: abs, Err: scm.ErrRepositoryNotInitialized}
		}
		return nil, &scm.PathError{Op: "open", Path: abs, Err: err}
	}

	r := newRepository(g, abs, opts)
	if _, err := g.Worktree(); errors.Is(err, git.ErrIsBareRepository) {
		r.bare = true
	}
	if fi, err := os.Lstat(filepath.Join(abs, git.GitDirName)); err == nil && fi.Mode().IsRegular() {
		r.submodule = true
	}
	return r, nil
}

// Init creates an empty repository at dir, bare or with a working copy.
func Init(dir string, bare bool, opts ...Option) (*Repository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &scm.PathError{Op: "init", Path: dir, Err: err}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, &scm.PathError{Op: "init", Path: abs, Err: err}
	}
	g, err := git.PlainInit(abs, bare)
	if err != nil {
		return nil, &scm.PathError{Op: "init", Path: abs, Err: err}
	}
	r := newRepository(g, abs, opts)
	r.bare = bare
	return r, nil
}

// OpenRemote returns a bare in-memory mirror of the repository at url.
// It is what a remote module is read through before any working copy
// exists.
func OpenRemote(ctx context.Context, url string, opts ...Option) (*Repository, error) {
	r := newRepository(nil, url, opts)
	r.bare, r.inMemory = true, true

	g, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
		URL:    url,
		Auth:   r.auth(url),
		Mirror: true,
	})
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		g, err = git.Init(memory.NewStorage(), nil)
		if err == nil {
			_, err = g.CreateRemote(&config.RemoteConfig{Name: scm.RemoteName, URLs: []string{url}})
		}
	}
	if err != nil {
		return nil, &scm.RefError{Op: "open remote", Repository: r.name, Ref: url, Err: err}
	}
	r.repo = g
	return r, nil
}

// handle returns the go-git repository or ErrRepositoryNotInitialized
// once the handle is closed. Callers hold r.mu.
func (r *Repository) handle() (*git.Repository, error) {
	if r.repo == nil {
		return nil, scm.ErrRepositoryNotInitialized
	}
	return r.repo, nil
}

func (r *Repository) refErr(op, ref string, err error) error {
	if err == nil {
		return nil
	}
	return &scm.RefError{Op: op, Repository: r.name, Ref: ref, Err: mapErr(err)}
}

// mapErr folds go-git failures into the scm taxonomy while keeping the
// original cause reachable.
func mapErr(err error) error {
	switch {
	case errors.Is(err, git.ErrUnstagedChanges):
		return fmt.Errorf("%w: %w", scm.ErrCheckoutConflict, err)
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		return fmt.Errorf("%w: %w", scm.ErrUnknownReference, err)
	case errors.Is(err, git.ErrEmptyCommit):
		return fmt.Errorf("%w: %w", scm.ErrEmptyCommit, err)
	case errors.Is(err, git.ErrRemoteNotFound):
		return fmt.Errorf("%w: %w", scm.ErrNoRemote, err)
	default:
		return err
	}
}

// Name implements scm.Repository.
func (r *Repository) Name() string { return r.name }

// WorkingCopyPath implements scm.Repository.
func (r *Repository) WorkingCopyPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// IsBare implements scm.Repository.
func (r *Repository) IsBare() bool { return r.bare }

// IsSubmodule implements scm.Repository.
func (r *Repository) IsSubmodule() bool { return r.submodule }

// MoveTo implements scm.Repository. The destination must not exist or be
// an empty directory. Submodules are moved by their parent instead.
func (r *Repository) MoveTo(newPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.handle(); err != nil {
		return err
	}
	if r.submodule {
		return nil
	}
	if r.inMemory {
		return &scm.PathError{Op: "move", Path: r.location, Err: scm.ErrInvalidPath}
	}
	dst, err := filepath.Abs(newPath)
	if err != nil {
		return &scm.PathError{Op: "move", Path: newPath, Err: err}
	}
	if err := ensureFreeDir(dst); err != nil {
		return &scm.PathError{Op: "move", Path: dst, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &scm.PathError{Op: "move", Path: dst, Err: err}
	}
	// An empty destination directory would make Rename fail on some
	// platforms.
	_ = os.Remove(dst)
	if err := os.Rename(r.location, dst); err != nil {
		return &scm.PathError{Op: "move", Path: dst, Err: err}
	}

	// Absorbed submodule links are relative and moved along with the
	// tree, so reopening is all that is left.
	g, err := git.PlainOpen(dst)
	if err != nil {
		return &scm.PathError{Op: "move", Path: dst, Err: err}
	}
	r.logger.Debug("moved repository", "from", r.location, "to", dst)
	r.repo, r.location = g, dst
	return nil
}

// ensureFreeDir fails when dir exists and holds anything.
func ensureFreeDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: destination is not empty", scm.ErrInvalidPath)
	}
	return nil
}

// Close implements scm.Repository.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repo = nil
	return nil
}
