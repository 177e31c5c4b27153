// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/moduni/moduni/internal/config"
)

// configKeys lists the keys accepted by `moduni config set`.
var configKeys = []string{
	"developer.name",
	"developer.email",
	"project_path",
	"log_level",
	"provisioning_timeout",
	"ui.color_scheme",
	"ui.verbose",
}

// newConfigCommand creates the `moduni config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage moduni configuration",
		Long: `Manage moduni configuration.

Configuration is stored in:
  - Linux: ~/.config/moduni/config.cue
  - macOS: ~/Library/Application Support/moduni/config.cue
  - Windows: %APPDATA%\moduni\config.cue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			return initConfig(app)
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			return showConfigPath(app)
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			return setConfigValue(cmd.Context(), app, args[0], args[1])
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output raw configuration as CUE",
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		}),
	})

	return cfgCmd
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.flags.configPath}
}

func showConfig(ctx context.Context, app *App) error {
	cfg, _, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	cfgPath, pathErr := config.FilePath(app.loadOptions())
	if pathErr == nil && fileExistsCheck(cfgPath) {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), cfgPath)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s:\n", keyStyle.Render("developer"))
	fmt.Fprintf(w, "  name: %s\n", valueStyle.Render(orNone(cfg.Developer.Name)))
	fmt.Fprintf(w, "  email: %s\n", valueStyle.Render(orNone(cfg.Developer.Email)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("project_path"), valueStyle.Render(orNone(cfg.ProjectPath)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("log_level"), valueStyle.Render(cfg.LogLevel.String()))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("provisioning_timeout"), valueStyle.Render(cfg.ProvisioningTimeout.String()))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("repository_managers"))
	if len(cfg.RepositoryManagers) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, m := range cfg.RepositoryManagers {
		name := m.Name
		if name == "" {
			name = m.Kind
		}
		fmt.Fprintf(w, "  - %s (%s) %s\n", managerStyle(m.Color).Render(name), m.Kind, VerboseStyle.Render(managerLocation(m)))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(w, "  color_scheme: %s\n", valueStyle.Render(cfg.UI.ColorScheme.String()))
	fmt.Fprintf(w, "  verbose: %s\n", valueStyle.Render(strconv.FormatBool(cfg.UI.Verbose)))

	return nil
}

// managerLocation is the one-line address of a manager entry.
func managerLocation(m config.ManagerConfig) string {
	switch {
	case m.Folder != "":
		return m.Folder
	case m.Host != "" && m.Port != 0:
		return fmt.Sprintf("%s:%d", m.Host, m.Port)
	default:
		return m.Host
	}
}

func orNone(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func initConfig(app *App) error {
	cfgPath, created, err := config.CreateDefaultConfig(app.loadOptions())
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	if !created {
		fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), cfgPath)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), cfgPath)
	return nil
}

func showConfigPath(app *App) error {
	cfgPath, err := config.FilePath(app.loadOptions())
	if err != nil {
		return err
	}
	fmt.Fprintln(app.stdout, cfgPath)
	return nil
}

func setConfigValue(ctx context.Context, app *App, key, value string) error {
	cfg, _, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}

	switch key {
	case "developer.name":
		cfg.Developer.Name = value
	case "developer.email":
		cfg.Developer.Email = value
	case "project_path":
		cfg.ProjectPath = value
	case "log_level":
		level := config.LogLevel(value)
		if ok, errs := level.IsValid(); !ok {
			return errs[0]
		}
		cfg.LogLevel = level
	case "provisioning_timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: %q", config.ErrInvalidTimeout, value)
		}
		cfg.ProvisioningTimeout = d
	case "ui.color_scheme":
		scheme := config.ColorScheme(value)
		if ok, errs := scheme.IsValid(); !ok {
			return errs[0]
		}
		cfg.UI.ColorScheme = scheme
	case "ui.verbose":
		cfg.UI.Verbose = value == "true" || value == "1"
	default:
		return fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(configKeys, ", "))
	}

	cfgPath, err := config.FilePath(app.loadOptions())
	if err != nil {
		return err
	}
	if err := config.Save(cfg, cfgPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(app.stdout, "%s Set %s = %s\n", SuccessStyle.Render("✓"), key, value)
	return nil
}

// fileExistsCheck checks if a file exists and is not a directory.
func fileExistsCheck(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
