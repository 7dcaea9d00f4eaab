// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package ffi

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/colext/colext/abi"
)

// ExportSeries converts a native array into a boundary descriptor pair.
// Buffer contents are referenced, never copied.
//
// With transfer false the export is a borrow: no release callback is
// installed and the caller must keep arr valid for the duration of the
// call. With transfer true the export owns a reference to arr and carries
// a release callback that drops it; the callback fires exactly once, on
// the first ReleaseArray, regardless of how many times release is
// attempted.
func ExportSeries(arr arrow.Array, name string, transfer bool) (abi.Series, error) {
	schema, err := ExportField(arrow.Field{Name: name, Type: arr.DataType(), Nullable: true})
	if err != nil {
		return abi.Series{}, err
	}
	// Validate buffer layout on the way out so the importer never sees a
	// malformed descriptor.
	if _, _, err := bufferCount(arr.DataType()); err != nil {
		return abi.Series{}, err
	}

	out := exportData(arr.Data())
	if transfer {
		arr.Retain()
		out.Release = func(*abi.Array) { arr.Release() }
	}
	return abi.Series{Schema: schema, Array: out}, nil
}

// exportData builds the array descriptor tree for one level of array data.
func exportData(data arrow.ArrayData) *abi.Array {
	out := &abi.Array{
		Length:    int64(data.Len()),
		NullCount: int64(data.NullN()),
		Offset:    int64(data.Offset()),
	}

	bufs := data.Buffers()
	out.Buffers = make([][]byte, len(bufs))
	for i, b := range bufs {
		if b != nil {
			out.Buffers[i] = b.Bytes()
		}
	}

	if children := data.Children(); len(children) > 0 {
		out.Children = make([]*abi.Array, len(children))
		for i, c := range children {
			out.Children[i] = exportData(c)
		}
	}
	return out
}
