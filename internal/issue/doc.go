// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing error reporting for kiln: actionable
// errors carrying the failed operation and remediation hints, and a catalog of
// Markdown guides rendered with glamour for the failures users hit most.
package issue
