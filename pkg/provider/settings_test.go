// SPDX-License-Identifier: MPL-2.0

package provider

import (
	"errors"
	"strings"
	"testing"
)

func TestParseKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"filesystem", KindFileSystem, false},
		{"FS", KindFileSystem, false},
		{" bitbucket ", KindBitbucket, false},
		{"ssh", KindSSH, false},
		{"github", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownKind) {
					t.Fatalf("ParseKind(%q) error = %v, want ErrUnknownKind", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ParseKind(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestKindText(t *testing.T) {
	t.Parallel()

	for _, k := range Kinds() {
		text, err := k.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error = %v", k, err)
		}
		var back Kind
		if err := back.UnmarshalText(text); err != nil || back != k {
			t.Fatalf("UnmarshalText(%q) = %v, %v; want %v", text, back, err, k)
		}
	}
	if _, err := Kind(42).MarshalText(); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("MarshalText(42) error = %v, want ErrUnknownKind", err)
	}
}

func TestSettingsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings Settings
		wantErr  string
	}{
		{
			name:     "filesystem ok",
			settings: NewFileSystemSettings(FileSystemSettings{Name: "Local", Folder: "/srv/git"}),
		},
		{
			name:     "filesystem relative folder",
			settings: NewFileSystemSettings(FileSystemSettings{Name: "Local", Folder: "git"}),
			wantErr:  "must be absolute",
		},
		{
			name:     "filesystem missing section",
			settings: Settings{Kind: KindFileSystem},
			wantErr:  "missing filesystem section",
		},
		{
			name:     "bitbucket defaults",
			settings: NewBitbucketSettings(BitbucketSettings{}),
		},
		{
			name:     "bitbucket bad scheme",
			settings: NewBitbucketSettings(BitbucketSettings{Scheme: "ftp"}),
			wantErr:  "scheme",
		},
		{
			name: "ssh ok",
			settings: NewSSHSettings(SSHSettings{
				Name: "Build box", Host: "git.local", Username: "git", Password: "secret",
				RootPath: "/srv/git", InsecureIgnoreHostKey: true,
			}),
		},
		{
			name:     "ssh reports every problem",
			settings: NewSSHSettings(SSHSettings{Name: "Build box"}),
			wantErr:  "host is required",
		},
		{
			name:     "unknown kind",
			settings: Settings{Kind: Kind(9)},
			wantErr:  "unknown repository manager kind",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.settings.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidSettings) {
				t.Fatalf("Validate() error = %v, want ErrInvalidSettings", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSSHSettingsValidateJoinsErrors(t *testing.T) {
	t.Parallel()

	err := NewSSHSettings(SSHSettings{Name: "Build box"}).Validate()
	for _, want := range []string{"host is required", "username is required", "root_path", "password or key_file", "known_hosts_file"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestSettingsName(t *testing.T) {
	t.Parallel()

	if got := NewBitbucketSettings(BitbucketSettings{}).Name(); got != DefaultBitbucketName {
		t.Errorf("Name() = %q, want %q", got, DefaultBitbucketName)
	}
	if got := (Settings{Kind: KindSSH}).Name(); got != "" {
		t.Errorf("Name() = %q, want empty", got)
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Core":              "core",
		"  Player Controls": "player-controls",
		"UI/Menus!!":        "ui-menus",
		"already-ok_1.2":    "already-ok_1.2",
		"***":               "",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewAll(t *testing.T) {
	t.Parallel()

	managers, err := NewAll([]Settings{
		NewFileSystemSettings(FileSystemSettings{Name: "Local", Folder: t.TempDir()}),
		NewBitbucketSettings(BitbucketSettings{Name: "Server"}),
	})
	if err != nil {
		t.Fatalf("NewAll() error = %v", err)
	}
	if len(managers) != 2 || managers[0].Kind() != KindFileSystem || managers[1].Kind() != KindBitbucket {
		t.Fatalf("NewAll() = %v", managers)
	}

	_, err = NewAll([]Settings{{Kind: KindSSH}})
	if !errors.Is(err, ErrInvalidSettings) || !strings.Contains(err.Error(), "#1") {
		t.Fatalf("NewAll() error = %v, want indexed ErrInvalidSettings", err)
	}
}
