// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

// Package abi defines the boundary-stable types exchanged between a host
// engine and an independently compiled plugin.
//
// The shapes follow the Arrow C Data Interface: a column crosses the
// boundary as a descriptor pair, one [Schema] describing the logical type
// and one [Array] describing lengths and raw buffers. Logical types are
// identified by the C Data Interface format string vocabulary ("l" for
// int64, "u" for utf8, "+l" for list, and so on), so every array's buffer
// layout is fully determined by its schema.
//
// The package is intentionally tiny and imports only the standard library:
// it is the one package a plugin must share with its host, and its types
// must stay layout-stable across releases.
package abi

// Schema describes the logical type of one column crossing the boundary.
// Equality is by Format plus Children; Name and Nullable carry field-level
// information and do not participate in type identity.
type Schema struct {
	// Format is the Arrow C Data Interface format string, e.g. "l" for
	// int64, "g" for float64, "u" for utf8, "+l" for list.
	Format string
	// Name is the field name, empty for anonymous columns.
	Name string
	// Nullable reports whether the column may contain nulls.
	Nullable bool
	// Children holds nested type parameters: one entry for lists and
	// large lists, empty for flat types.
	Children []*Schema
}

// TypeEqual reports whether two schemas describe the same logical type,
// comparing format tags and nested type parameters, ignoring names.
func TypeEqual(a, b *Schema) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Format != b.Format || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !TypeEqual(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// Array is the data half of the descriptor pair. Buffer count and widths
// are dictated by the logical type in the companion Schema.
type Array struct {
	// Length is the logical number of values.
	Length int64
	// NullCount is the number of null values, 0 when Buffers[0] is nil.
	NullCount int64
	// Offset is the element offset into the buffers.
	Offset int64
	// Buffers holds the raw data buffers. Slot 0 is the validity bitmap;
	// a nil slot 0 means the column contains no nulls.
	Buffers [][]byte
	// Children holds child arrays for nested types (list values).
	Children []*Array
	// Release frees resources owned by the producer. A nil Release marks
	// a borrowed array: the producer guarantees the buffers stay valid
	// for the duration of the call and the consumer must not free them.
	// Never invoke this field directly; use [ReleaseArray] so the
	// at-most-once discipline holds.
	Release func(*Array)
}

// Released reports whether the array has been released or was only ever
// borrowed. Mirrors ArrowArrayIsReleased from the C helpers.
func (a *Array) Released() bool { return a == nil || a.Release == nil }

// ReleaseArray invokes the array's release callback at most once. The
// callback slot is cleared before the call, so re-entrant or repeated
// releases are no-ops by construction.
func ReleaseArray(a *Array) {
	if a == nil || a.Release == nil {
		return
	}
	release := a.Release
	a.Release = nil
	release(a)
}

// MoveArray transfers ownership of src into dst and marks src released.
// After the move only dst may be released. Mirrors ArrowArrayMove.
func MoveArray(src, dst *Array) {
	*dst = *src
	src.Release = nil
	src.Buffers = nil
	src.Children = nil
	src.Length = 0
}

// Series is the descriptor pair for one complete column: logical type plus
// data. This is the unit passed into and out of plugin functions.
type Series struct {
	Schema *Schema
	Array  *Array
}
