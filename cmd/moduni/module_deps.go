// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/moduni/moduni/internal/events"
	"github.com/moduni/moduni/internal/issue"
	"github.com/moduni/moduni/pkg/module"
)

// defaultWatchDebounce coalesces editor save bursts into one refresh.
const defaultWatchDebounce = 300 * time.Millisecond

func newModuleDepsCommand(app *App) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "deps [module]",
		Short: "Show the dependencies of modules and whether they are met",
		Long: `Show the dependencies of modules and whether they are met.

Every dependency is evaluated against the version its target is currently
checked out at. Nothing is upgraded. Without arguments every module is
shown, each after the modules it depends on. With --check the command
fails when a dependency is missing or unmet.`,
		Args: cobra.MaximumNArgs(1),
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			return showDependencies(cmd.Context(), app, args, check)
		}),
	}
	cmd.Flags().BoolVar(&check, "check", false, "exit non-zero when a dependency is not satisfied")
	return cmd
}

func showDependencies(ctx context.Context, app *App, keys []string, check bool) error {
	ws, err := app.workspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	var mods []*module.Module
	if len(keys) == 1 {
		m, err := ws.Find(keys[0])
		if err != nil {
			return err
		}
		mods = []*module.Module{m}
	} else if mods, err = ws.DependencyOrder(); err != nil {
		ws.logger.Warn("modules depend on each other, showing them by name", "error", err)
		mods = ws.Modules()
	}

	var unmet, total int
	for _, m := range mods {
		statuses := ws.CheckDependencies(m)
		if len(keys) == 0 {
			fmt.Fprintln(app.stdout, TitleStyle.Render(m.Name())+" "+CmdStyle.Render(m.CurrentVersion().String()))
		}
		if len(statuses) == 0 {
			fmt.Fprintln(app.stdout, SubtitleStyle.Render("No dependencies."))
			continue
		}
		for _, st := range statuses {
			fmt.Fprintln(app.stdout, formatDependency(st))
		}
		unmet += len(module.Unsatisfied(statuses))
		total += len(statuses)
	}

	if !check || unmet == 0 {
		return nil
	}
	err = fmt.Errorf("%d of %d dependencies not satisfied", unmet, total)
	if len(mods) == 1 {
		err = fmt.Errorf("%s: %w", mods[0].Name(), err)
	}
	renderServiceError(app.stderr, newServiceError(err, issue.DependenciesNotSatisfiedId, ""))
	return &ExitError{Code: exitUnsatisfied, Err: err}
}

func formatDependency(st module.DependencyStatus) string {
	constraint := CmdStyle.Render(st.Dependency.String())
	if !st.Found {
		return fmt.Sprintf("%s %s %s %s", ErrorStyle.Render("✗"), VerboseStyle.Render(st.Dependency.ModuleID.String()),
			constraint, ErrorStyle.Render("missing"))
	}
	mark := SuccessStyle.Render("✓")
	if !st.Satisfied {
		mark = ErrorStyle.Render("✗")
	}
	return fmt.Sprintf("%s %s %s %s", mark, TitleStyle.Render(st.Name), constraint,
		SubtitleStyle.Render("(at "+st.Current.String()+")"))
}

func newModuleStatusCommand(app *App) *cobra.Command {
	var (
		watchFiles bool
		debounce   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status [module]...",
		Short: "Show the changed files of modules",
		Long: `Show the changed files of modules.

Without arguments every module of the project is shown. With --watch the
command keeps running and prints the file list again whenever a working
copy changes.`,
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			return moduleStatus(cmd.Context(), app, args, watchFiles, debounce)
		}),
	}
	cmd.Flags().BoolVarP(&watchFiles, "watch", "w", false, "keep watching the working copies")
	cmd.Flags().DurationVar(&debounce, "debounce", defaultWatchDebounce, "quiet period before a change is reported")
	return cmd
}

func moduleStatus(ctx context.Context, app *App, keys []string, watchFiles bool, debounce time.Duration) error {
	ws, err := app.workspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	mods := ws.Modules()
	if len(keys) > 0 {
		mods = mods[:0:0]
		for _, key := range keys {
			m, err := ws.Find(key)
			if err != nil {
				return err
			}
			mods = append(mods, m)
		}
	}

	for _, m := range mods {
		m.RefreshFiles(ctx)
		printStatus(app, m.Name(), m.CurrentVersion().String(), fileNames(m))
	}
	if !watchFiles {
		return nil
	}

	observer := events.NewFunctionalObserver("cli-status", func(_ context.Context, event cloudevents.Event) error {
		var payload module.FilesUpdated
		if err := event.DataAs(&payload); err != nil {
			return err
		}
		printStatus(app, payload.Name, payload.Version, payload.Files)
		return nil
	})
	if err := ws.bus.RegisterObserver(observer, module.EventTypeFilesUpdated); err != nil {
		return err
	}
	defer func() { _ = ws.bus.UnregisterObserver(observer) }()

	fmt.Fprintln(app.stdout, SubtitleStyle.Render("Watching for changes, press Ctrl+C to stop."))
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range mods {
		g.Go(func() error { return m.Watch(gctx, debounce) })
	}
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func fileNames(m *module.Module) []string {
	files := m.Files()
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.String())
	}
	return out
}

// printStatus writes the status block of one module in a single write,
// so blocks from concurrent watchers never interleave.
func printStatus(app *App, name, version string, files []string) {
	var b strings.Builder
	header := TitleStyle.Render(name) + " " + CmdStyle.Render(version)
	if len(files) == 0 {
		b.WriteString(header + " " + SuccessStyle.Render("clean") + "\n")
	} else {
		b.WriteString(header + "\n")
		for _, f := range files {
			b.WriteString("  " + WarningStyle.Render(f) + "\n")
		}
	}
	app.outMu.Lock()
	defer app.outMu.Unlock()
	_, _ = io.WriteString(app.stdout, b.String())
}
