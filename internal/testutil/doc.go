// SPDX-License-Identifier: MPL-2.0

// Package testutil provides small helpers shared by the tests of every
// package: environment and home directory overrides, directory setup,
// handle cleanup, and a limit on concurrently running containers.
package testutil
