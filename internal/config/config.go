// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/moduni/moduni/internal/issue"
	"github.com/moduni/moduni/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "moduni"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes every environment override, e.g. MODUNI_LOG_LEVEL.
	EnvPrefix = "MODUNI"
)

//go:embed config_schema.cue
var configSchemaSrc []byte

var configSchema = cueutil.MustCompile(configSchemaSrc, "#Config")

// ConfigDir returns the moduni configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// FilePath returns the config file that Load reads for opts. The file may not exist.
func FilePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		return opts.ConfigFilePath, nil
	}
	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("developer.name", defaults.Developer.Name)
	v.SetDefault("developer.email", defaults.Developer.Email)
	v.SetDefault("project_path", defaults.ProjectPath)
	v.SetDefault("log_level", string(defaults.LogLevel))
	v.SetDefault("provisioning_timeout", defaults.ProvisioningTimeout.String())
	v.SetDefault("ui.color_scheme", string(defaults.UI.ColorScheme))
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadWithOptions performs option-driven config loading.
// Precedence: environment, then the CUE file, then defaults.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()
	resolvedPath := ""

	// An explicit --config path must exist; the default location is optional.
	path, err := FilePath(opts)
	if err != nil {
		return nil, "", err
	}
	switch {
	case fileExists(path):
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.Wrap(err, "load configuration",
				issue.OnResource(path),
				issue.Suggest(
					"Check that the file contains valid CUE syntax",
					"Verify the configuration values match the expected schema",
					"Use 'moduni config show' to see the effective configuration",
				),
				issue.LinkIssue(issue.ConfigLoadFailedId),
			)
		}
		resolvedPath = path
	case opts.ConfigFilePath != "":
		return nil, "", issue.Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath), "load configuration",
			issue.OnResource(opts.ConfigFilePath),
			issue.Suggest(
				"Verify the file path is correct",
				"Run 'moduni config init' to create a default configuration",
			),
			issue.LinkIssue(issue.ConfigLoadFailedId),
		)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.Wrap(flattenFieldErrors(errs), "validate configuration",
			issue.OnResource(resolvedPath),
			issue.Suggest(
				"Fix the fields listed above",
				"Check MODUNI_* environment variables for stale overrides",
			),
			issue.LinkIssue(issue.ConfigLoadFailedId),
		)
	}

	return &cfg, resolvedPath, nil
}

// flattenFieldErrors joins the field errors of an InvalidConfigError so
// every problem shows in one message while errors.Is still reaches the sentinel.
func flattenFieldErrors(errs []error) error {
	var invalid *InvalidConfigError
	if len(errs) == 1 && errors.As(errs[0], &invalid) && len(invalid.FieldErrors) > 1 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(invalid.FieldErrors...))
	}
	return errors.Join(errs...)
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper validates a CUE config file against #Config and merges
// it into v. Fields may stay open since viper supplies the defaults.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	values, err := cueutil.Decode[map[string]any](configSchema, data,
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
	)
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(*values); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default config file unless one already
// exists. It returns the path of the file and whether it was created.
func CreateDefaultConfig(opts LoadOptions) (string, bool, error) {
	cfgPath, err := FilePath(opts)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, false, nil
	}
	if err := Save(DefaultConfig(), cfgPath); err != nil {
		return "", false, err
	}
	return cfgPath, true, nil
}

// Save writes cfg to path as CUE.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// Moduni Configuration File\n\n")

	if cfg.Developer.Name != "" || cfg.Developer.Email != "" {
		sb.WriteString("developer: {\n")
		if cfg.Developer.Name != "" {
			fmt.Fprintf(&sb, "\tname:  %q\n", cfg.Developer.Name)
		}
		if cfg.Developer.Email != "" {
			fmt.Fprintf(&sb, "\temail: %q\n", cfg.Developer.Email)
		}
		sb.WriteString("}\n\n")
	}

	fmt.Fprintf(&sb, "project_path: %q\n", cfg.ProjectPath)
	fmt.Fprintf(&sb, "log_level: %q\n", cfg.LogLevel)
	fmt.Fprintf(&sb, "provisioning_timeout: %q\n", cfg.ProvisioningTimeout.String())

	sb.WriteString("\nrepository_managers: [")
	if len(cfg.RepositoryManagers) == 0 {
		sb.WriteString("]\n")
	} else {
		sb.WriteString("\n")
		for _, m := range cfg.RepositoryManagers {
			writeManager(&sb, m)
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

func writeManager(sb *strings.Builder, m ManagerConfig) {
	sb.WriteString("\t{\n")
	str := func(key, value string) {
		if value != "" {
			fmt.Fprintf(sb, "\t\t%s: %q\n", key, value)
		}
	}
	str("kind", m.Kind)
	str("name", m.Name)
	str("color", m.Color)
	str("folder", m.Folder)
	str("scheme", m.Scheme)
	str("host", m.Host)
	if m.Port != 0 {
		fmt.Fprintf(sb, "\t\tport: %d\n", m.Port)
	}
	str("username", m.Username)
	str("password", m.Password)
	str("project_key", m.ProjectKey)
	str("key_file", m.KeyFile)
	str("known_hosts_file", m.KnownHostsFile)
	if m.InsecureIgnoreHostKey {
		sb.WriteString("\t\tinsecure_ignore_host_key: true\n")
	}
	str("root_path", m.RootPath)
	sb.WriteString("\t},\n")
}
