// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/colext/colext"
	"github.com/colext/colext/expr"
)

// RepeatOptions configures the Repeat reference function.
type RepeatOptions struct {
	Times int64 `kwargs:"times,required"`
}

// Library returns the reference symbol set. A shared-object build of the
// conformance plugin exports the same symbols under the same names.
func Library() colext.SymbolMap {
	return colext.SymbolMap{
		"Echo":        echo,
		"EchoField":   echoField,
		"Count":       count,
		"CountField":  expr.FixedField(arrow.PrimitiveTypes.Int64),
		"Fail":        fail,
		"FailField":   expr.FixedField(arrow.PrimitiveTypes.Int64),
		"Panic":       panicFn,
		"PanicField":  expr.FixedField(arrow.PrimitiveTypes.Int64),
		"Repeat":      repeat,
		"RepeatField": repeatField,
	}
}

// echo returns its single input unchanged, whatever the type.
var echo = expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
	inputs[0].Retain()
	return inputs[0], nil
})

// echoField resolves to the input field itself.
var echoField = expr.Field(func(inputs []arrow.Field) (arrow.Field, error) {
	if len(inputs) != 1 {
		return arrow.Field{}, fmt.Errorf("echo takes one input, got %d", len(inputs))
	}
	return inputs[0], nil
})

// count reduces any column to its length, a scalar result.
var count = expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.Append(int64(inputs[0].Len()))
	return b.NewArray(), nil
})

// fail always raises a domain error.
var fail = expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
	return nil, errors.New("deliberate failure")
})

// panicFn always panics, for fault-containment checks.
var panicFn = expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
	panic("deliberate panic")
})

// repeat emits each string input value Times times, concatenated.
var repeat = expr.New(func(inputs []arrow.Array, opts RepeatOptions) (arrow.Array, error) {
	in, ok := inputs[0].(*array.String)
	if !ok {
		return nil, fmt.Errorf("repeat expects a string column, got %s", inputs[0].DataType())
	}
	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	for i := range in.Len() {
		if in.IsNull(i) {
			b.AppendNull()
			continue
		}
		out := ""
		for range opts.Times {
			out += in.Value(i)
		}
		b.Append(out)
	}
	return b.NewArray(), nil
})

var repeatField = expr.FieldWithKwargs(func(inputs []arrow.Field, opts RepeatOptions) (arrow.Field, error) {
	if opts.Times < 0 {
		return arrow.Field{}, fmt.Errorf("times must be non-negative, got %d", opts.Times)
	}
	return arrow.Field{Name: inputs[0].Name, Type: arrow.BinaryTypes.String, Nullable: true}, nil
})
