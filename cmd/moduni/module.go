// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/moduni/moduni/internal/registry"
	"github.com/moduni/moduni/pkg/module"
	"github.com/moduni/moduni/pkg/version"
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// errUnknownOutput is returned for an --output value outside the
// supported formats.
var errUnknownOutput = errors.New("unknown output format")

// moduleListing is one row of `moduni module list`.
type moduleListing struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Path        string `json:"path" yaml:"path"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Maturity    int    `json:"maturity" yaml:"maturity"`
	State       string `json:"state,omitempty" yaml:"state,omitempty"`
	Manager     string `json:"manager,omitempty" yaml:"manager,omitempty"`
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`

	managerColor string
}

// newModuleCommand creates the `moduni module` command tree.
func newModuleCommand(app *App) *cobra.Command {
	moduleCmd := &cobra.Command{
		Use:     "module",
		Aliases: []string{"mod", "m"},
		Short:   "Manage the modules of a project",
		Long: `Manage the modules of a project.

Modules are addressed by ID, name or path. Versions are exact
releases (v1.2.3), floating lines (v1.2.x) or branch names (master).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	moduleCmd.AddCommand(
		newModuleListCommand(app),
		newModuleCreateCommand(app),
		newModuleImportCommand(app),
		newModuleModifyCommand(app),
		newModuleDeleteCommand(app),
		newModuleCheckoutCommand(app),
		newModuleVersionsCommand(app),
		newModulePublishCommand(app),
		newModuleReleaseCommand(app),
		newModuleDepsCommand(app),
		newModuleStatusCommand(app),
	)

	return moduleCmd
}

func newModuleListCommand(app *App) *cobra.Command {
	var (
		remote bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List local or remote modules",
		Args:  cobra.NoArgs,
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			return listModules(cmd.Context(), app, remote, output)
		}),
	}
	cmd.Flags().BoolVarP(&remote, "remote", "r", false, "list the modules hosted on the repository managers")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format (text, json, yaml)")
	return cmd
}

func listModules(ctx context.Context, app *App, remote bool, output string) error {
	switch output {
	case outputText, outputJSON, outputYAML:
	default:
		return fmt.Errorf("%w: %q (valid: text, json, yaml)", errUnknownOutput, output)
	}

	ws, err := app.workspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	var (
		rows       []moduleListing
		refreshErr error
	)
	if remote {
		refreshErr = ws.Refresh(ctx)
		for _, rm := range ws.Remotes() {
			row := listingOf(rm.Module)
			row.Manager = rm.Manager.Name()
			row.managerColor = rm.Manager.Color()
			row.URL = rm.Remote.URL
			rows = append(rows, row)
		}
	} else {
		for _, m := range ws.Modules() {
			row := listingOf(m)
			if state, err := m.State(); err == nil {
				row.State = state.String()
			}
			rows = append(rows, row)
		}
	}

	if err := writeListing(app.stdout, rows, output); err != nil {
		return err
	}
	return refreshErr
}

func listingOf(m *module.Module) moduleListing {
	s := m.Snapshot()
	return moduleListing{
		ID:          m.ID().String(),
		Name:        s.Name,
		Version:     m.CurrentVersion().String(),
		Path:        s.Path,
		Description: s.Description,
		Maturity:    s.MaturityLevel,
	}
}

func writeListing(w io.Writer, rows []moduleListing, output string) error {
	switch output {
	case outputJSON:
		if rows == nil {
			rows = []moduleListing{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("No modules found."))
		return nil
	}
	for _, row := range rows {
		line := nameColumnStyle.Render(row.Name) + versionColumnStyle.Render(row.Version) + " " + VerboseStyle.Render(row.Path)
		switch {
		case row.Manager != "":
			line += " " + managerStyle(row.managerColor).Render("["+row.Manager+"]")
		case row.State != "":
			line += " " + stateStyle(row.State).Render(row.State)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func stateStyle(state string) lipgloss.Style {
	switch state {
	case module.StateDirty.String():
		return WarningStyle
	case module.StateClean.String():
		return SuccessStyle
	default:
		return SubtitleStyle
	}
}

// parseModuleRef splits "name@version". The version is zero when absent.
func parseModuleRef(ref string) (string, version.BranchVersion, error) {
	name, raw, found := strings.Cut(ref, "@")
	if name == "" {
		return "", version.BranchVersion{}, fmt.Errorf("%w: %q", registry.ErrModuleNotFound, ref)
	}
	if !found {
		return name, version.BranchVersion{}, nil
	}
	v, err := version.Parse(raw)
	if err != nil {
		return "", version.BranchVersion{}, err
	}
	return name, v, nil
}
