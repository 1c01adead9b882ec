// SPDX-License-Identifier: MPL-2.0

// Package compose implements the configuration-composition engine behind kiln.
//
// A build definition is expressed as typed keys and fragments. A Fragment is one
// set/add/modify operation against a key; an Archetype is a named, immutable list
// of fragments; a Configuration is a named context carrying its own fragments; a
// Layering ties archetypes, project fragments and per-context overrides together.
//
// Evaluation is a pure fold: every call to Layering.Evaluate starts from the seed
// Config and applies fragments in declaration order, producing a new immutable
// Config. Contexts never share intermediate state, so evaluating "testing" cannot
// change what "compile" sees.
package compose
