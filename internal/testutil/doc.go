// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Besides the file helpers (MustMkdirAll, MustWriteFile, MustChdir) it can
// write and read jar archives (WriteJar, ReadJar) and publish artifacts into
// a Maven-layout repository on disk (PublishArtifact, FileURL).
package testutil
