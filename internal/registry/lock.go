// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// LockFile is the name of the lock file at the project root.
const LockFile = "moduni.lock"

type (
	// Lock records the modules of a project and the version each one is
	// checked out at.
	Lock struct {
		Modules []LockedModule `toml:"module"`
	}

	// LockedModule is one entry of a Lock.
	LockedModule struct {
		ID      string `toml:"id"`
		Name    string `toml:"name"`
		Path    string `toml:"path"`
		Version string `toml:"version"`
		Remote  string `toml:"remote,omitempty"`
	}
)

// Encode renders the lock as TOML, entries sorted by path.
func (l *Lock) Encode() ([]byte, error) {
	sorted := Lock{Modules: slices.Clone(l.Modules)}
	slices.SortFunc(sorted.Modules, func(a, b LockedModule) int {
		return strings.Compare(a.Path, b.Path)
	})
	data, err := toml.Marshal(sorted)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", LockFile, err)
	}
	return data, nil
}

// DecodeLock parses a lock file.
func DecodeLock(data []byte) (*Lock, error) {
	var l Lock
	if err := toml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode %s: %w", LockFile, err)
	}
	return &l, nil
}

// Find returns the entry with the given module ID.
func (l *Lock) Find(id string) (LockedModule, bool) {
	for _, m := range l.Modules {
		if m.ID == id {
			return m, true
		}
	}
	return LockedModule{}, false
}
