// SPDX-License-Identifier: MPL-2.0

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// DefaultTimeout bounds a single provisioning call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

type (
	// Remote is a repository hosted by a manager.
	Remote struct {
		// Name is the repository name without any ".git" suffix.
		Name string
		// URL is what git clones from.
		URL string
	}

	// Manager provisions remote repositories.
	Manager interface {
		Name() string
		Color() string
		Kind() Kind
		CreateRepository(ctx context.Context, name string) (Remote, error)
		DeleteRepository(ctx context.Context, name string) error
		ListRepositories(ctx context.Context) ([]Remote, error)
	}

	// Option configures manager construction.
	Option func(*options)

	options struct {
		logger     *slog.Logger
		timeout    time.Duration
		httpClient *http.Client
	}
)

var slugPattern = regexp.MustCompile(`[^a-z0-9._-]+`)

// WithLogger sets the logger used by the manager.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTimeout bounds each provisioning call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client of HTTP based managers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New builds the manager described by settings.
func New(settings Settings, opts ...Option) (Manager, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	switch settings.Kind {
	case KindFileSystem:
		return newFileSystem(*settings.FileSystem, o), nil
	case KindBitbucket:
		return newBitbucket(*settings.Bitbucket, o), nil
	case KindSSH:
		return newSSH(*settings.SSH, o)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(settings.Kind))
	}
}

// NewAll builds one manager per settings entry, stopping at the first error.
func NewAll(settings []Settings, opts ...Option) ([]Manager, error) {
	managers := make([]Manager, 0, len(settings))
	for i, s := range settings {
		m, err := New(s, opts...)
		if err != nil {
			return nil, fmt.Errorf("repository manager #%d: %w", i+1, err)
		}
		managers = append(managers, m)
	}
	return managers, nil
}

// Slugify lowercases name and replaces runs of unsupported characters with '-'.
func Slugify(name string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}

func validateName(name string) error {
	if Slugify(name) == "" {
		return fmt.Errorf("%w: empty repository name", ErrInvalidSettings)
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
