// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

// Package conformance verifies that a plugin host honors the invocation
// contract: per-type round-trips, null preservation, deterministic
// results, pure type resolution, the error taxonomy, and concurrent
// invocation safety.
//
// [Library] returns a reference plugin library exercising every boundary
// feature; [RunAll] executes the full check suite against a registry and
// location. The colext-conformance command wires the two together,
// either against the built-in library or against a compiled shared
// object exporting the same symbols.
package conformance
