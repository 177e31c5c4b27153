// SPDX-License-Identifier: MPL-2.0

// Package module implements the per-module versioning state machine.
//
// A Module binds an scm.Repository and tracks which version is checked
// out, which versions exist, and the Snapshot (name, description,
// maturity, tags, dependencies) recorded at every version visited so far.
// Snapshots are persisted in the MetadataFile at the root of the
// repository, so each version carries its own metadata.
//
// Transitions:
//
//	Checkout        switch the working copy to a known version
//	PublishChanges  stage, commit and push the current branch
//	PublishVersion  tag a release and open its floating line
//	Relocate        move the working copy
//
// Module emits CloudEvents through an optional Notifier when its files or
// versions change. Dependencies reference other modules by ID and are
// resolved through a Lookup at the point of use.
package module
