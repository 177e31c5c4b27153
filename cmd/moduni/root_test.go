// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/moduni/moduni/internal/issue"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2026-03-01T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2026-03-01T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

func TestRootCommandTree(t *testing.T) {
	t.Parallel()

	root := newRootCommand(NewApp(Dependencies{}))
	for _, path := range [][]string{
		{"module", "list"},
		{"module", "create"},
		{"module", "import"},
		{"module", "modify"},
		{"module", "delete"},
		{"module", "checkout"},
		{"module", "versions"},
		{"module", "publish"},
		{"module", "release"},
		{"module", "deps"},
		{"module", "status"},
		{"config", "show"},
		{"config", "init"},
		{"config", "path"},
		{"config", "set"},
		{"config", "dump"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not registered (err: %v)", path, err)
		}
	}
	for _, flag := range []string{"verbose", "config", "project"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	cause := errors.New("file not found")
	ae := issue.Wrap(cause, "load configuration",
		issue.OnResource("/tmp/config.cue"),
		issue.Suggest("Run 'moduni config init'"),
	)

	tests := []struct {
		name    string
		err     error
		verbose bool
		want    []string
	}{
		{"plain error", cause, false, []string{"file not found"}},
		{"actionable error", ae, false, []string{"load configuration", "Run 'moduni config init'"}},
		{"verbose chain", ae, true, []string{"caused by:", "  file not found"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := formatErrorForDisplay(tt.err, tt.verbose)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("formatErrorForDisplay() = %q, missing %q", got, want)
				}
			}
		})
	}
}
