// SPDX-License-Identifier: MPL-2.0

// Package registry coordinates the modules of a project. It pairs the
// local working copies with the remote repositories listed by every
// configured repository manager, and drives the create, import, modify,
// delete and publish workflows.
//
// When a project repository is bound, modules live in it as submodules and
// every workflow that changes the set of modules ends with one aggregating
// commit in the project, together with the moduni.lock file that records
// which version of which module is checked out where.
package registry
