// SPDX-License-Identifier: MPL-2.0

package provider

import (
	"fmt"
	"strings"
)

// Manager kinds.
const (
	// KindFileSystem stores bare repositories in a local folder.
	KindFileSystem Kind = iota + 1
	// KindBitbucket provisions repositories through the Bitbucket Server REST API.
	KindBitbucket
	// KindSSH provisions bare repositories on an SSH host.
	KindSSH
)

// Kind identifies the variant of a repository manager.
type Kind int

// Kinds lists every manager kind.
func Kinds() []Kind { return []Kind{KindFileSystem, KindBitbucket, KindSSH} }

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFileSystem:
		return "filesystem"
	case KindBitbucket:
		return "bitbucket"
	case KindSSH:
		return "ssh"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses a configuration name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "filesystem", "fs":
		return KindFileSystem, nil
	case "bitbucket":
		return KindBitbucket, nil
	case "ssh":
		return KindSSH, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < KindFileSystem || k > KindSSH {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
