// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/moduni/moduni/pkg/provider"
)

const (
	// LogLevelDebug logs everything including git and HTTP traffic.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs workflow progress.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs recoverable problems only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs failures only.
	LogLevelError LogLevel = "error"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultProvisioningTimeout bounds each repository manager call.
	DefaultProvisioningTimeout = 30 * time.Second
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidTimeout is returned for a non-positive provisioning timeout.
	ErrInvalidTimeout = errors.New("invalid provisioning timeout")
	// ErrInvalidManager is the sentinel error wrapped by InvalidManagerError.
	ErrInvalidManager = errors.New("invalid repository manager")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level of emitted log records.
	LogLevel string

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidManagerError reports the manager entry that could not be converted.
	InvalidManagerError struct {
		Index int
		Err   error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Developer signs the commits created by moduni.
		Developer DeveloperConfig `json:"developer" yaml:"developer" mapstructure:"developer"`
		// ProjectPath is the working copy of the project repository.
		ProjectPath string `json:"project_path" yaml:"project_path" mapstructure:"project_path"`
		// LogLevel sets the minimum log level.
		LogLevel LogLevel `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
		// ProvisioningTimeout bounds every repository manager call.
		ProvisioningTimeout time.Duration `json:"provisioning_timeout" yaml:"provisioning_timeout" mapstructure:"provisioning_timeout"`
		// RepositoryManagers lists where module repositories are hosted.
		RepositoryManagers []ManagerConfig `json:"repository_managers" yaml:"repository_managers" mapstructure:"repository_managers"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" yaml:"ui" mapstructure:"ui"`
	}

	// DeveloperConfig identifies the commit author.
	DeveloperConfig struct {
		Name  string `json:"name" yaml:"name" mapstructure:"name"`
		Email string `json:"email" yaml:"email" mapstructure:"email"`
	}

	// ManagerConfig is the flat file representation of a repository
	// manager. Kind decides which fields apply.
	ManagerConfig struct {
		Kind                  string `json:"kind" yaml:"kind" mapstructure:"kind"`
		Name                  string `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
		Color                 string `json:"color,omitempty" yaml:"color,omitempty" mapstructure:"color"`
		Folder                string `json:"folder,omitempty" yaml:"folder,omitempty" mapstructure:"folder"`
		Scheme                string `json:"scheme,omitempty" yaml:"scheme,omitempty" mapstructure:"scheme"`
		Host                  string `json:"host,omitempty" yaml:"host,omitempty" mapstructure:"host"`
		Port                  int    `json:"port,omitempty" yaml:"port,omitempty" mapstructure:"port"`
		Username              string `json:"username,omitempty" yaml:"username,omitempty" mapstructure:"username"`
		Password              string `json:"-" yaml:"-" mapstructure:"password"`
		ProjectKey            string `json:"project_key,omitempty" yaml:"project_key,omitempty" mapstructure:"project_key"`
		KeyFile               string `json:"key_file,omitempty" yaml:"key_file,omitempty" mapstructure:"key_file"`
		KnownHostsFile        string `json:"known_hosts_file,omitempty" yaml:"known_hosts_file,omitempty" mapstructure:"known_hosts_file"`
		InsecureIgnoreHostKey bool   `json:"insecure_ignore_host_key,omitempty" yaml:"insecure_ignore_host_key,omitempty" mapstructure:"insecure_ignore_host_key"`
		RootPath              string `json:"root_path,omitempty" yaml:"root_path,omitempty" mapstructure:"root_path"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" yaml:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables verbose output
		Verbose bool `json:"verbose" yaml:"verbose" mapstructure:"verbose"`
	}
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels,
// and a list of validation errors if it is not.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// SlogLevel maps the level onto log/slog. Unknown values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// Error implements the error interface for InvalidManagerError.
func (e *InvalidManagerError) Error() string {
	return fmt.Sprintf("repository_managers[%d]: %v", e.Index, e.Err)
}

// Unwrap returns both the sentinel and the cause.
func (e *InvalidManagerError) Unwrap() []error { return []error{ErrInvalidManager, e.Err} }

// Settings converts the entry into provider settings.
func (m ManagerConfig) Settings() (provider.Settings, error) {
	kind, err := provider.ParseKind(m.Kind)
	if err != nil {
		return provider.Settings{}, err
	}
	switch kind {
	case provider.KindFileSystem:
		return provider.NewFileSystemSettings(provider.FileSystemSettings{
			Name:   m.Name,
			Color:  m.Color,
			Folder: m.Folder,
		}), nil
	case provider.KindBitbucket:
		return provider.NewBitbucketSettings(provider.BitbucketSettings{
			Name:       m.Name,
			Color:      m.Color,
			Scheme:     m.Scheme,
			Host:       m.Host,
			Port:       m.Port,
			Username:   m.Username,
			Password:   m.Password,
			ProjectKey: m.ProjectKey,
		}), nil
	case provider.KindSSH:
		return provider.NewSSHSettings(provider.SSHSettings{
			Name:                  m.Name,
			Color:                 m.Color,
			Host:                  m.Host,
			Port:                  m.Port,
			Username:              m.Username,
			Password:              m.Password,
			KeyFile:               m.KeyFile,
			KnownHostsFile:        m.KnownHostsFile,
			InsecureIgnoreHostKey: m.InsecureIgnoreHostKey,
			RootPath:              m.RootPath,
		}), nil
	default:
		return provider.Settings{}, fmt.Errorf("%w: %s", provider.ErrUnknownKind, kind)
	}
}

// ManagerSettings converts every configured manager, failing on the first
// entry that cannot be converted or does not validate.
func (c Config) ManagerSettings() ([]provider.Settings, error) {
	settings := make([]provider.Settings, 0, len(c.RepositoryManagers))
	for i, m := range c.RepositoryManagers {
		s, err := m.Settings()
		if err == nil {
			err = s.Validate()
		}
		if err != nil {
			return nil, &InvalidManagerError{Index: i, Err: err}
		}
		settings = append(settings, s)
	}
	return settings, nil
}

// IsValid returns whether the UIConfig has valid fields.
func (c UIConfig) IsValid() (bool, []error) {
	return c.ColorScheme.IsValid()
}

// IsValid returns whether the Config has valid fields.
// Every invalid field is reported, including each invalid repository manager.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.LogLevel.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.ProvisioningTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidTimeout, c.ProvisioningTimeout))
	}
	if strings.TrimSpace(c.ProjectPath) == "" {
		errs = append(errs, errors.New("project_path must not be empty"))
	}
	for i, m := range c.RepositoryManagers {
		s, err := m.Settings()
		if err == nil {
			err = s.Validate()
		}
		if err != nil {
			errs = append(errs, &InvalidManagerError{Index: i, Err: err})
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return fmt.Sprintf("invalid config: %v", e.FieldErrors[0])
	}
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ProjectPath:         ".",
		LogLevel:            LogLevelInfo,
		ProvisioningTimeout: DefaultProvisioningTimeout,
		RepositoryManagers:  []ManagerConfig{},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
	}
}
