// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/moduni/config.cue (or the XDG equivalent on Linux,
// ~/Library/Application Support/moduni/config.cue on macOS, %APPDATA%\moduni\config.cue
// on Windows), validated against an embedded CUE schema (config_schema.cue) and overridden
// by MODUNI_* environment variables. The resulting Config is passed explicitly to the
// repository managers and the module registry; there is no package-level instance.
package config
