// SPDX-License-Identifier: MPL-2.0

// Package gitrepo implements scm.Repository on top of go-git.
//
// Working copies, bare repositories on disk and in-memory handles on
// remote URLs share one type. Submodules are cloned with their git
// directory absorbed into the parent's .git/modules, the same layout the
// git CLI produces.
package gitrepo
