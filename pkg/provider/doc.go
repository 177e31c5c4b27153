// SPDX-License-Identifier: MPL-2.0

// Package provider provisions the remote repositories that back modules.
//
// A repository manager is one of a closed set of kinds: a local folder of
// bare repositories, a Bitbucket Server project, or a directory on an SSH
// host. Settings carries the configuration of exactly one kind and New
// builds the matching Manager.
package provider
