// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/moduni/moduni/internal/config"
	"github.com/moduni/moduni/internal/events"
	"github.com/moduni/moduni/internal/issue"
	"github.com/moduni/moduni/internal/registry"
	"github.com/moduni/moduni/pkg/gitrepo"
	"github.com/moduni/moduni/pkg/provider"
	"github.com/moduni/moduni/pkg/scm"
)

type (
	// App wires CLI services and shared dependencies. All Cobra command
	// handlers receive an App reference and reach the registry through it.
	App struct {
		Config    ConfigProvider
		Workspace WorkspaceFactory
		flags     rootFlags
		stdout    io.Writer
		stderr    io.Writer
		// outMu keeps blocks written from watcher goroutines whole.
		outMu sync.Mutex
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config    ConfigProvider
		Workspace WorkspaceFactory
		Stdout    io.Writer
		Stderr    io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// WorkspaceRequest carries what a WorkspaceFactory needs to build a
	// registry for one invocation.
	WorkspaceRequest struct {
		Config *config.Config
		// ProjectPath is the resolved project directory. It may not be a
		// git repository, in which case modules are standalone clones.
		ProjectPath string
		Logger      *slog.Logger
		// Notifier receives module and registry events.
		Notifier *events.Bus
	}

	// WorkspaceFactory builds the registry a command operates on. The
	// caller closes the returned registry.
	WorkspaceFactory func(ctx context.Context, req WorkspaceRequest) (*registry.Registry, error)

	rootFlags struct {
		configPath  string
		projectPath string
		verbose     bool
	}

	// workspace is one loaded registry plus the state used to build it.
	workspace struct {
		*registry.Registry
		cfg    *config.Config
		bus    *events.Bus
		logger *slog.Logger
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Workspace == nil {
		deps.Workspace = openWorkspace
	}
	return &App{
		Config:    deps.Config,
		Workspace: deps.Workspace,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
	}
}

// loadConfig reads the configuration named by --config and installs the
// logger it asks for.
func (a *App) loadConfig(ctx context.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configPath})
	if err != nil {
		var ae *issue.ActionableError
		if !errors.As(err, &ae) {
			err = issue.Wrap(err, "load configuration",
				issue.OnResource(a.flags.configPath),
				issue.Suggest("Run 'moduni config init' to write a default configuration"),
				issue.LinkIssue(issue.ConfigLoadFailedId),
			)
		}
		return nil, nil, newServiceError(err, issue.ConfigLoadFailedId, "")
	}
	level := cfg.LogLevel.SlogLevel()
	if a.flags.verbose || cfg.UI.Verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(a.stderr, level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// workspace loads the configuration and builds the registry for the
// current invocation.
func (a *App) workspace(ctx context.Context) (*workspace, error) {
	cfg, logger, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	projectPath, err := a.projectPath(cfg)
	if err != nil {
		return nil, err
	}
	bus := events.NewBus(logger)
	reg, err := a.Workspace(ctx, WorkspaceRequest{
		Config:      cfg,
		ProjectPath: projectPath,
		Logger:      logger,
		Notifier:    bus,
	})
	if err != nil {
		return nil, err
	}
	return &workspace{Registry: reg, cfg: cfg, bus: bus, logger: logger}, nil
}

// Close releases the module handles and the project repository.
func (w *workspace) Close() error {
	err := w.Registry.Close()
	if p := w.Project(); p != nil {
		err = errors.Join(err, p.Close())
	}
	return err
}

// projectPath resolves --project, then the project_path config key, then
// the working directory.
func (a *App) projectPath(cfg *config.Config) (string, error) {
	p := a.flags.projectPath
	if p == "" {
		p = cfg.ProjectPath
	}
	if p == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve project path: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve project path: %w", err)
	}
	return abs, nil
}

// openWorkspace is the production WorkspaceFactory: go-git repositories,
// the configured repository managers and a discovered project.
func openWorkspace(ctx context.Context, req WorkspaceRequest) (*registry.Registry, error) {
	cfg := req.Config
	settings, err := cfg.ManagerSettings()
	if err != nil {
		return nil, err
	}
	managers, err := provider.NewAll(settings,
		provider.WithTimeout(cfg.ProvisioningTimeout),
		provider.WithLogger(req.Logger),
	)
	if err != nil {
		return nil, err
	}

	gitOpts := []gitrepo.Option{
		gitrepo.WithAuth(gitrepo.DefaultAuth("")),
		gitrepo.WithSignature(cfg.Developer.Name, cfg.Developer.Email),
		gitrepo.WithLogger(req.Logger),
	}
	opts := []registry.Option{
		registry.WithManagers(managers...),
		registry.WithGit(gitOpts...),
		registry.WithNotifier(req.Notifier),
		registry.WithLogger(req.Logger),
	}

	project, err := gitrepo.Open(req.ProjectPath, gitOpts...)
	switch {
	case err == nil:
		opts = append(opts, registry.WithProject(project))
	case errors.Is(err, scm.ErrRepositoryNotInitialized):
		req.Logger.Debug("no project repository, modules are standalone", "path", req.ProjectPath)
	default:
		return nil, err
	}

	reg := registry.New(req.ProjectPath, opts...)
	if err := reg.Discover(ctx); err != nil {
		var batchErr *registry.BatchError
		if !errors.As(err, &batchErr) {
			_ = reg.Close()
			if project != nil {
				_ = project.Close()
			}
			return nil, err
		}
		// Unreadable modules are left out; the rest stay usable.
		req.Logger.Warn("some modules could not be opened", "error", err)
	}
	return reg, nil
}
