// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for moduni.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/moduni/moduni/internal/issue"
	"github.com/moduni/moduni/internal/registry"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// newRootCommand builds the command tree around app.
func newRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "moduni",
		Short: "Version and synchronize the modules of a project",
		Long: TitleStyle.Render("moduni") + SubtitleStyle.Render(" - module versioning and synchronization") + `

moduni keeps a set of independently versioned modules, each in its own
git repository, checked out inside a host project. Modules are released
as semantic version tags with floating vX.Y.x branches, and can declare
version constraints on each other.

` + SubtitleStyle.Render("Examples:") + `
  moduni module list                 List the modules of the project
  moduni module list --remote        List the modules on every repository manager
  moduni module import core@v1.2.0   Add a module at a version
  moduni module release core --bump minor
  moduni config init                 Write a default configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is $HOME/.config/moduni/config.cue)")
	rootCmd.PersistentFlags().StringVarP(&app.flags.projectPath, "project", "C", "", "project directory (default is project_path or the working directory)")

	rootCmd.AddCommand(newModuleCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the production App and runs the command tree.
// This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(exitFailure)
	}
}

// run adapts a handler to cobra's RunE. Failures get their issue catalog
// entry rendered on stderr and are turned into an ExitError.
func (a *App) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err == nil {
			return nil
		}
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}

		fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, a.flags.verbose))
		renderServiceError(a.stderr, asServiceError(err))

		code := exitFailure
		var batchErr *registry.BatchError
		if errors.As(err, &batchErr) {
			code = exitPartial
		}
		return &ExitError{Code: code, Err: err}
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
