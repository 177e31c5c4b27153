// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against embedded schemas.
//
// Module metadata files and the moduni configuration file are both checked
// this way:
//
//	//go:embed metadata_schema.cue
//	var schemaSrc []byte
//
//	var schema = cueutil.MustCompile(schemaSrc, "#Metadata")
//
//	doc, err := cueutil.Decode[metadataFile](schema, data, cueutil.WithFilename(".moduni.cue"))
//
// Failures carry the path of every offending value. Encode goes the other
// way and renders a Go value as a formatted CUE document.
package cueutil
