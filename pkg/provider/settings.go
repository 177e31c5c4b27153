// SPDX-License-Identifier: MPL-2.0

package provider

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Bitbucket defaults used when a field is left empty.
const (
	DefaultBitbucketName       = "Bit Bucket"
	DefaultBitbucketHost       = "localhost.local"
	DefaultBitbucketPort       = 443
	DefaultBitbucketUsername   = "Anonymous"
	DefaultBitbucketProjectKey = "PJKEY"
	DefaultBitbucketScheme     = "https"
	DefaultSSHPort             = 22
	DefaultColor               = "#FFFFFF"
)

type (
	// Settings configures exactly one repository manager. Kind selects
	// which of the variant fields is meaningful.
	Settings struct {
		Kind       Kind                `json:"kind" mapstructure:"kind"`
		FileSystem *FileSystemSettings `json:"filesystem,omitempty" mapstructure:"filesystem"`
		Bitbucket  *BitbucketSettings  `json:"bitbucket,omitempty" mapstructure:"bitbucket"`
		SSH        *SSHSettings        `json:"ssh,omitempty" mapstructure:"ssh"`
	}

	// FileSystemSettings configures a folder of bare repositories.
	FileSystemSettings struct {
		Name   string `json:"name" mapstructure:"name"`
		Color  string `json:"color" mapstructure:"color"`
		Folder string `json:"folder" mapstructure:"folder"`
	}

	// BitbucketSettings configures a Bitbucket Server project.
	BitbucketSettings struct {
		Name       string `json:"name" mapstructure:"name"`
		Color      string `json:"color" mapstructure:"color"`
		Scheme     string `json:"scheme" mapstructure:"scheme"`
		Host       string `json:"host" mapstructure:"host"`
		Port       int    `json:"port" mapstructure:"port"`
		Username   string `json:"username" mapstructure:"username"`
		Password   string `json:"password,omitempty" mapstructure:"password"`
		ProjectKey string `json:"project_key" mapstructure:"project_key"`
	}

	// SSHSettings configures a directory of bare repositories on an SSH host.
	SSHSettings struct {
		Name           string `json:"name" mapstructure:"name"`
		Color          string `json:"color" mapstructure:"color"`
		Host           string `json:"host" mapstructure:"host"`
		Port           int    `json:"port" mapstructure:"port"`
		Username       string `json:"username" mapstructure:"username"`
		Password       string `json:"password,omitempty" mapstructure:"password"`
		KeyFile        string `json:"key_file,omitempty" mapstructure:"key_file"`
		KnownHostsFile string `json:"known_hosts_file,omitempty" mapstructure:"known_hosts_file"`
		// InsecureIgnoreHostKey disables host key verification.
		InsecureIgnoreHostKey bool   `json:"insecure_ignore_host_key,omitempty" mapstructure:"insecure_ignore_host_key"`
		RootPath              string `json:"root_path" mapstructure:"root_path"`
	}
)

// NewFileSystemSettings wraps a filesystem configuration.
func NewFileSystemSettings(s FileSystemSettings) Settings {
	return Settings{Kind: KindFileSystem, FileSystem: &s}
}

// NewBitbucketSettings wraps a Bitbucket configuration.
func NewBitbucketSettings(s BitbucketSettings) Settings {
	return Settings{Kind: KindBitbucket, Bitbucket: &s}
}

// NewSSHSettings wraps an SSH configuration.
func NewSSHSettings(s SSHSettings) Settings {
	return Settings{Kind: KindSSH, SSH: &s}
}

// Name returns the display name of the configured manager.
func (s Settings) Name() string {
	switch s.Kind {
	case KindFileSystem:
		if s.FileSystem != nil {
			return s.FileSystem.Name
		}
	case KindBitbucket:
		if s.Bitbucket != nil {
			return s.Bitbucket.withDefaults().Name
		}
	case KindSSH:
		if s.SSH != nil {
			return s.SSH.Name
		}
	}
	return ""
}

// Validate checks that the variant matching Kind is present and usable.
// Every problem is reported, joined into one error.
func (s Settings) Validate() error {
	var errs []error
	switch s.Kind {
	case KindFileSystem:
		if s.FileSystem == nil {
			return fmt.Errorf("%w: missing filesystem section", ErrInvalidSettings)
		}
		if strings.TrimSpace(s.FileSystem.Name) == "" {
			errs = append(errs, errors.New("name is required"))
		}
		if strings.TrimSpace(s.FileSystem.Folder) == "" {
			errs = append(errs, errors.New("folder is required"))
		} else if !filepath.IsAbs(s.FileSystem.Folder) {
			errs = append(errs, fmt.Errorf("folder %q must be absolute", s.FileSystem.Folder))
		}
	case KindBitbucket:
		if s.Bitbucket == nil {
			return fmt.Errorf("%w: missing bitbucket section", ErrInvalidSettings)
		}
		b := s.Bitbucket.withDefaults()
		if b.Scheme != "http" && b.Scheme != "https" {
			errs = append(errs, fmt.Errorf("scheme %q must be http or https", b.Scheme))
		}
		if b.Port <= 0 || b.Port > 65535 {
			errs = append(errs, fmt.Errorf("port %d out of range", b.Port))
		}
	case KindSSH:
		if s.SSH == nil {
			return fmt.Errorf("%w: missing ssh section", ErrInvalidSettings)
		}
		sh := s.SSH.withDefaults()
		if strings.TrimSpace(sh.Name) == "" {
			errs = append(errs, errors.New("name is required"))
		}
		if sh.Host == "" {
			errs = append(errs, errors.New("host is required"))
		}
		if sh.Username == "" {
			errs = append(errs, errors.New("username is required"))
		}
		if sh.Port <= 0 || sh.Port > 65535 {
			errs = append(errs, fmt.Errorf("port %d out of range", sh.Port))
		}
		if sh.RootPath == "" || !strings.HasPrefix(sh.RootPath, "/") {
			errs = append(errs, fmt.Errorf("root_path %q must be absolute", sh.RootPath))
		}
		if sh.Password == "" && sh.KeyFile == "" {
			errs = append(errs, errors.New("password or key_file is required"))
		}
		if sh.KnownHostsFile == "" && !sh.InsecureIgnoreHostKey {
			errs = append(errs, errors.New("known_hosts_file is required unless insecure_ignore_host_key is set"))
		}
	default:
		return fmt.Errorf("%w: %w: %d", ErrInvalidSettings, ErrUnknownKind, int(s.Kind))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s %q: %w", ErrInvalidSettings, s.Kind, s.Name(), errors.Join(errs...))
	}
	return nil
}

func (b BitbucketSettings) withDefaults() BitbucketSettings {
	if b.Name == "" {
		b.Name = DefaultBitbucketName
	}
	if b.Color == "" {
		b.Color = DefaultColor
	}
	if b.Scheme == "" {
		b.Scheme = DefaultBitbucketScheme
	}
	if b.Host == "" {
		b.Host = DefaultBitbucketHost
	}
	if b.Port == 0 {
		b.Port = DefaultBitbucketPort
	}
	if b.Username == "" {
		b.Username = DefaultBitbucketUsername
	}
	if b.ProjectKey == "" {
		b.ProjectKey = DefaultBitbucketProjectKey
	}
	return b
}

func (s SSHSettings) withDefaults() SSHSettings {
	if s.Color == "" {
		s.Color = DefaultColor
	}
	if s.Port == 0 {
		s.Port = DefaultSSHPort
	}
	return s
}
