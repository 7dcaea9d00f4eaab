// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

// Package benchmark provides fixtures for measuring invocation overhead:
// column generators of configurable size and a small library of kernels
// with known cost profiles.
package benchmark

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/colext/colext"
	"github.com/colext/colext/expr"
)

// Int64Column generates a sequential int64 column of n rows.
func Int64Column(n int) arrow.Array {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.Reserve(n)
	for i := range n {
		b.Append(int64(i))
	}
	return b.NewArray()
}

// Float64Column generates a float64 column of n rows.
func Float64Column(n int) arrow.Array {
	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.Reserve(n)
	for i := range n {
		b.Append(float64(i) * 0.5)
	}
	return b.NewArray()
}

// StringColumn generates a string column of n rows with short values.
func StringColumn(n int) arrow.Array {
	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	for i := range n {
		b.Append(fmt.Sprintf("row-%d", i))
	}
	return b.NewArray()
}

// Library returns kernels with known cost profiles: Noop measures pure
// boundary overhead, Negate a cheap per-row kernel, Sqrt a moderately
// priced one.
func Library() colext.SymbolMap {
	return colext.SymbolMap{
		"Noop":        noop,
		"NoopField":   expr.FixedField(arrow.PrimitiveTypes.Int64),
		"Negate":      negate,
		"NegateField": expr.FixedField(arrow.PrimitiveTypes.Int64),
		"Sqrt":        sqrtKernel,
		"SqrtField":   expr.FixedField(arrow.PrimitiveTypes.Float64),
	}
}

var noop = expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
	inputs[0].Retain()
	return inputs[0], nil
})

var negate = expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
	in := inputs[0].(*array.Int64)
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.Reserve(in.Len())
	for i := range in.Len() {
		b.Append(-in.Value(i))
	}
	return b.NewArray(), nil
})

var sqrtKernel = expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
	in := inputs[0].(*array.Float64)
	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.Reserve(in.Len())
	for i := range in.Len() {
		b.Append(math.Sqrt(in.Value(i)))
	}
	return b.NewArray(), nil
})
