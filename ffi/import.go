// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package ffi

import (
	"fmt"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/colext/colext/abi"
)

// ImportSeries reconstructs a native array from a boundary descriptor pair
// without copying buffer contents.
//
// If the series carries a release callback, ownership moves to the
// imported array: the source descriptor is marked released immediately
// and the callback fires once, when the imported array data is garbage
// collected. A borrowed series (nil callback) is imported as a plain view;
// the producer keeps ownership.
func ImportSeries(s abi.Series) (arrow.Array, error) {
	field, err := ImportField(s.Schema)
	if err != nil {
		return nil, err
	}

	data, err := importData(field.Type, s.Array)
	if err != nil {
		return nil, err
	}

	if !s.Array.Released() {
		// Move the descriptor into an importer-owned copy so the producer
		// side can no longer release it, then tie the single release to
		// the lifetime of the imported data.
		owned := &abi.Array{}
		abi.MoveArray(s.Array, owned)
		runtime.SetFinalizer(data, func(arrow.ArrayData) {
			abi.ReleaseArray(owned)
		})
	}

	arr := array.MakeFromData(data)
	data.Release()
	return arr, nil
}

// importData validates the descriptor against the type's buffer layout and
// builds array data referencing the descriptor's buffers.
func importData(dt arrow.DataType, a *abi.Array) (arrow.ArrayData, error) {
	wantBufs, wantChildren, err := bufferCount(dt)
	if err != nil {
		return nil, err
	}
	if len(a.Buffers) != wantBufs {
		return nil, fmt.Errorf("importing %s: expected %d buffers, got %d", dt, wantBufs, len(a.Buffers))
	}
	if len(a.Children) != wantChildren {
		return nil, fmt.Errorf("importing %s: expected %d children, got %d", dt, wantChildren, len(a.Children))
	}
	if a.NullCount > 0 && a.Buffers[0] == nil {
		return nil, fmt.Errorf("importing %s: null count %d but no validity bitmap", dt, a.NullCount)
	}

	bufs := make([]*memory.Buffer, len(a.Buffers))
	for i, b := range a.Buffers {
		if b != nil {
			bufs[i] = memory.NewBufferBytes(b)
		}
	}

	var childData []arrow.ArrayData
	if wantChildren > 0 {
		var elem arrow.Field
		switch lt := dt.(type) {
		case *arrow.ListType:
			elem = lt.ElemField()
		case *arrow.LargeListType:
			elem = lt.ElemField()
		}
		child, err := importData(elem.Type, a.Children[0])
		if err != nil {
			return nil, err
		}
		defer child.Release()
		childData = []arrow.ArrayData{child}
	}

	return array.NewData(dt, int(a.Length), bufs, childData, int(a.NullCount), int(a.Offset)), nil
}
