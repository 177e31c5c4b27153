// SPDX-License-Identifier: MPL-2.0

// Package scm defines the source-control collaborator consumed by modules
// and the registry: the Repository interface, its error taxonomy, and the
// working copy status model. Package gitrepo provides the go-git backed
// implementation and package scmtest an in-memory fake.
package scm
