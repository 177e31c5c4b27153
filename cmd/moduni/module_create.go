// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moduni/moduni/internal/registry"
	"github.com/moduni/moduni/pkg/module"
	"github.com/moduni/moduni/pkg/provider"
	"github.com/moduni/moduni/pkg/version"
)

// errNoManager is returned when a module has to be provisioned but no
// repository manager matches.
var errNoManager = errors.New("no repository manager")

// snapshotFlags are the metadata flags shared by create and modify.
type snapshotFlags struct {
	name        string
	description string
	path        string
	maturity    int
	tags        []string
}

func (f *snapshotFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "module name")
	cmd.Flags().StringVar(&f.description, "description", "", "module description")
	cmd.Flags().StringVar(&f.path, "path", "", "working copy path, relative to the project")
	cmd.Flags().IntVar(&f.maturity, "maturity", module.MinMaturityLevel, "maturity level (1-9)")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tag as name or name=#color (repeatable)")
}

// apply copies the flags the user set onto s.
func (f *snapshotFlags) apply(cmd *cobra.Command, s *module.Snapshot) {
	flags := cmd.Flags()
	if flags.Changed("name") {
		s.Name = f.name
	}
	if flags.Changed("description") {
		s.Description = f.description
	}
	if flags.Changed("path") {
		s.Path = f.path
	}
	if flags.Changed("maturity") {
		s.SetMaturityLevel(f.maturity)
	}
	if flags.Changed("tag") {
		s.Tags = parseTags(f.tags)
	}
}

func parseTags(raw []string) []module.Tag {
	tags := make([]module.Tag, 0, len(raw))
	for _, r := range raw {
		name, color, _ := strings.Cut(r, "=")
		if name = strings.TrimSpace(name); name != "" {
			tags = append(tags, module.Tag{Name: name, Color: strings.TrimSpace(color)})
		}
	}
	return tags
}

func newModuleCreateCommand(app *App) *cobra.Command {
	var (
		flags   snapshotFlags
		manager string
		start   string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a module on a repository manager and check it out",
		Long: `Create a module on a repository manager and check it out.

The module repository is provisioned on the manager, seeded with the
metadata file, released at the start version with its floating line, and
checked out on master. Inside a project it becomes a staged submodule.`,
		Args: cobra.NoArgs,
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			s := module.DefaultSnapshot()
			flags.apply(cmd, s)
			if s.Path == "" {
				s.Path = path.Join("modules", provider.Slugify(s.Name))
			}
			v, err := version.Parse(start)
			if err != nil {
				return err
			}
			return createModule(cmd.Context(), app, manager, s, v)
		}),
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&manager, "manager", "", "repository manager to host the module (default: the only one configured)")
	cmd.Flags().StringVar(&start, "version", "v0.1.0", "first released version")
	return cmd
}

func createModule(ctx context.Context, app *App, managerName string, s *module.Snapshot, start version.BranchVersion) error {
	ws, err := app.workspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	mgr, err := pickManager(ws.Managers(), managerName)
	if err != nil {
		return err
	}
	m, err := ws.Create(ctx, mgr, s, start)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "%s Created %s %s on %s at %s\n",
		SuccessStyle.Render("✓"), TitleStyle.Render(m.Name()), CmdStyle.Render(start.String()),
		managerStyle(mgr.Color()).Render(mgr.Name()), VerboseStyle.Render(s.Path))
	return nil
}

// pickManager selects a manager by name. An empty name is accepted when
// exactly one manager is configured.
func pickManager(managers []provider.Manager, name string) (provider.Manager, error) {
	if name == "" {
		switch len(managers) {
		case 0:
			return nil, fmt.Errorf("%w configured, add one under repository_managers", errNoManager)
		case 1:
			return managers[0], nil
		default:
			return nil, fmt.Errorf("%w selected, pass --manager with one of: %s", errNoManager, managerNames(managers))
		}
	}
	for _, m := range managers {
		if strings.EqualFold(m.Name(), name) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w named %q, configured: %s", errNoManager, name, managerNames(managers))
}

func managerNames(managers []provider.Manager) string {
	names := make([]string, 0, len(managers))
	for _, m := range managers {
		names = append(names, m.Name())
	}
	return strings.Join(names, ", ")
}

func newModuleImportCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <module[@version]>...",
		Short: "Import remote modules into the project",
		Long: `Import remote modules into the project.

Each module is checked out at the given version, or at master when none
is given. Modules already present are switched to the version and moved
when their recorded path changed. All imports end up in one project
commit.`,
		Args: cobra.MinimumNArgs(1),
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			return importModules(cmd.Context(), app, args)
		}),
	}
}

func importModules(ctx context.Context, app *App, refs []string) error {
	ws, err := app.workspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.Refresh(ctx); err != nil {
		ws.logger.Warn("some repository managers could not be listed", "error", err)
	}

	remotes := make([]*module.Module, 0, len(refs))
	for _, ref := range refs {
		name, v, err := parseModuleRef(ref)
		if err != nil {
			return err
		}
		rm, err := ws.FindRemote(name)
		if err != nil {
			return err
		}
		if v.IsZero() {
			v = version.NewBranch(version.Master)
		}
		if err := rm.Module.Checkout(ctx, v); err != nil {
			return err
		}
		remotes = append(remotes, rm.Module)
	}

	err = ws.Import(ctx, remotes)
	for _, rm := range remotes {
		if m, ok := ws.Lookup(rm.ID()); ok && m.CurrentVersion() == rm.CurrentVersion() {
			fmt.Fprintf(app.stdout, "%s %s %s\n", SuccessStyle.Render("✓"), TitleStyle.Render(m.Name()), CmdStyle.Render(m.CurrentVersion().String()))
		}
	}
	return err
}

func newModuleModifyCommand(app *App) *cobra.Command {
	var flags snapshotFlags
	cmd := &cobra.Command{
		Use:   "modify <module>",
		Short: "Change the metadata of a module checked out on master",
		Long: `Change the metadata of a module checked out on master.

The metadata file is rewritten and published. A changed path moves the
working copy. The project records the change in one commit.`,
		Args: cobra.ExactArgs(1),
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			return modifyModule(cmd, app, args[0], &flags)
		}),
	}
	flags.register(cmd)
	return cmd
}

func modifyModule(cmd *cobra.Command, app *App, key string, flags *snapshotFlags) error {
	ctx := cmd.Context()
	ws, err := app.workspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	m, err := ws.Find(key)
	if err != nil {
		return err
	}
	s := m.Snapshot()
	flags.apply(cmd, s)
	if m, err = ws.Modify(ctx, m, s); err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "%s Modified %s\n", SuccessStyle.Render("✓"), TitleStyle.Render(m.Name()))
	return nil
}

func newModuleDeleteCommand(app *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <module>...",
		Short: "Remove modules from the project",
		Long: `Remove modules from the project.

The module repositories stay on their managers. Modules with uncommitted
changes are kept unless --force is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			return deleteModules(cmd.Context(), app, args, force)
		}),
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "discard uncommitted changes")
	return cmd
}

func deleteModules(ctx context.Context, app *App, keys []string, force bool) error {
	ws, err := app.workspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	mods := make([]*module.Module, 0, len(keys))
	for _, key := range keys {
		m, err := ws.Find(key)
		if err != nil {
			return err
		}
		mods = append(mods, m)
	}

	err = ws.Delete(ctx, mods, force)
	for _, m := range mods {
		if _, findErr := ws.Find(m.ID().String()); errors.Is(findErr, registry.ErrModuleNotFound) {
			fmt.Fprintf(app.stdout, "%s Deleted %s\n", SuccessStyle.Render("✓"), TitleStyle.Render(m.Name()))
		}
	}
	return err
}
