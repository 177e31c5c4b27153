// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moduni/moduni/internal/registry"
	"github.com/moduni/moduni/pkg/module"
	"github.com/moduni/moduni/pkg/version"
)

func newModuleCheckoutCommand(app *App) *cobra.Command {
	var fetch bool
	cmd := &cobra.Command{
		Use:   "checkout <module> <version>",
		Short: "Switch a module to another version",
		Args:  cobra.ExactArgs(2),
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			v, err := version.Parse(args[1])
			if err != nil {
				return err
			}
			return checkoutModule(cmd.Context(), app, args[0], v, fetch)
		}),
	}
	cmd.Flags().BoolVar(&fetch, "fetch", false, "fetch the remote before resolving the version")
	return cmd
}

func checkoutModule(ctx context.Context, app *App, key string, v version.BranchVersion, fetch bool) error {
	ws, err := app.workspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	m, err := ws.Find(key)
	if err != nil {
		return err
	}
	if fetch || !m.HasVersion(v) {
		if err := m.Fetch(ctx); err != nil {
			return err
		}
	}
	if err := m.Checkout(ctx, v); err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "%s %s is now at %s\n", SuccessStyle.Render("✓"), TitleStyle.Render(m.Name()), CmdStyle.Render(v.String()))
	return nil
}

func newModuleVersionsCommand(app *App) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "versions <module>",
		Short: "List the known versions of a module, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			return listVersions(cmd.Context(), app, args[0], remote)
		}),
	}
	cmd.Flags().BoolVarP(&remote, "remote", "r", false, "read the versions from the repository manager")
	return cmd
}

func listVersions(ctx context.Context, app *App, key string, remote bool) error {
	ws, err := app.workspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	var m *module.Module
	if remote {
		if err := ws.Refresh(ctx); err != nil {
			ws.logger.Warn("some repository managers could not be listed", "error", err)
		}
		rm, err := ws.FindRemote(key)
		if err != nil {
			return err
		}
		m = rm.Module
	} else if m, err = ws.Find(key); err != nil {
		return err
	}

	versions := m.Versions()
	current := m.CurrentVersion()
	latest, hasLatest := m.LatestRelease()
	for _, v := range versions {
		line := "  " + CmdStyle.Render(v.String())
		if v == current {
			line = SuccessStyle.Render("* ") + SuccessStyle.Render(v.String())
		}
		if hasLatest && v == latest {
			line += " " + SubtitleStyle.Render("(latest)")
		}
		fmt.Fprintln(app.stdout, line)
	}
	return nil
}

func newModulePublishCommand(app *App) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "publish <module>",
		Short: "Commit and push every change of a module",
		Args:  cobra.ExactArgs(1),
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			return publishModule(cmd.Context(), app, args[0], message)
		}),
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func publishModule(ctx context.Context, app *App, key, message string) error {
	ws, err := app.workspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	m, err := ws.Find(key)
	if err != nil {
		return err
	}
	if err := ws.PublishChanges(ctx, m, message); err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "%s Published %s\n", SuccessStyle.Render("✓"), TitleStyle.Render(m.Name()))
	return nil
}

func newModuleReleaseCommand(app *App) *cobra.Command {
	var bump string
	cmd := &cobra.Command{
		Use:   "release <module> [version]",
		Short: "Release the current commit of a module as a version",
		Long: `Release the current commit of a module as a version.

The version is either given explicitly or derived from the latest release
with --bump major|minor|patch. The tag and its floating vX.Y.x line are
pushed to the remote.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			explicit := ""
			if len(args) == 2 {
				explicit = args[1]
			}
			if (explicit == "") == (bump == "") {
				return fmt.Errorf("%w: give either a version or --bump", registry.ErrInvalidVersion)
			}
			return releaseModule(cmd.Context(), app, args[0], explicit, bump)
		}),
	}
	cmd.Flags().StringVar(&bump, "bump", "", "derive the version from the latest release (major, minor, patch)")
	return cmd
}

func releaseModule(ctx context.Context, app *App, key, explicit, bump string) error {
	ws, err := app.workspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	m, err := ws.Find(key)
	if err != nil {
		return err
	}
	var v version.BranchVersion
	if explicit != "" {
		v, err = version.Parse(explicit)
	} else {
		v, err = registry.NextVersion(m, bump)
	}
	if err != nil {
		return err
	}
	if err := ws.PublishVersion(ctx, m, v); err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "%s Released %s %s\n", SuccessStyle.Render("✓"), TitleStyle.Render(m.Name()), CmdStyle.Render(v.String()))
	return nil
}
