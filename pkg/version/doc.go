// SPDX-License-Identifier: MPL-2.0

// Package version implements the module version identifier.
//
// A module is addressed through three kinds of references that share one
// ordering:
//
//	v1.4.2      exact version, an immutable tag
//	v1.4.x      branch version, the floating line of the 1.4 minor release
//	master      named branch, any other branch reference
//
// Exact versions compare with semantic-version rules. A floating line sorts
// after every exact version of its own line, and named branches sort after
// all numeric identifiers, with master and development last. Other named
// branches share a single bucket and compare equal to each other.
package version
