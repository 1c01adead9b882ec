// SPDX-License-Identifier: MPL-2.0

// Package cueutil compiles CUE documents against an embedded schema and
// decodes them into Go structs. Both the kilnfile and the application config
// are loaded through it:
//
//	//go:embed kilnfile_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[File](
//	    schemaBytes,
//	    data,
//	    "#Kilnfile",
//	    cueutil.WithFilename("kilnfile.cue"),
//	)
//
// Errors carry the file name and a JSON-style path to the offending field.
package cueutil
