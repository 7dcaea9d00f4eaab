// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

// Package expr builds the exported symbols a plugin library needs:
// computation functions over Arrow arrays and the companion
// type-resolution functions. Authors write plain Go against arrow.Array
// and arrow.Field; the wrappers here handle descriptor import and
// export, option decoding, panic containment and error classification.
//
// A minimal plugin:
//
//	type options struct {
//		Capitalize bool `kwargs:"capitalize"`
//	}
//
//	var PigLatin = expr.New(func(inputs []arrow.Array, opts options) (arrow.Array, error) {
//		...
//	})
//
//	var PigLatinField = expr.FixedField(arrow.BinaryTypes.String)
package expr

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/colext/colext/abi"
	"github.com/colext/colext/ffi"
	"github.com/colext/colext/kwargs"
)

// New wraps a computation function taking decoded options of type K into
// the exported calling convention. Inputs arrive as zero-copy views over
// caller-owned memory and must not be retained past the call; the
// returned array is handed off to the caller.
func New[K any](fn func(inputs []arrow.Array, opts K) (arrow.Array, error)) abi.ExprFunc {
	return func(inputs []abi.Series, blob []byte) (res abi.Result) {
		defer recoverResult(&res)

		var opts K
		if err := kwargs.Decode(blob, &opts); err != nil {
			return abi.ErrResult(abi.CodeMissingOption, err.Error())
		}
		return run(inputs, func(arrs []arrow.Array) (arrow.Array, error) {
			return fn(arrs, opts)
		})
	}
}

// NewNoKwargs wraps a computation function that takes no options. Any
// options the caller does send are ignored.
func NewNoKwargs(fn func(inputs []arrow.Array) (arrow.Array, error)) abi.ExprFunc {
	return func(inputs []abi.Series, blob []byte) (res abi.Result) {
		defer recoverResult(&res)
		return run(inputs, fn)
	}
}

func run(inputs []abi.Series, fn func([]arrow.Array) (arrow.Array, error)) abi.Result {
	arrs := make([]arrow.Array, len(inputs))
	for i, s := range inputs {
		arr, err := ffi.ImportSeries(s)
		if err != nil {
			releaseAll(arrs[:i])
			return abi.ErrResult(abi.CodeUnsupportedType,
				fmt.Sprintf("importing input %d: %v", i, err))
		}
		arrs[i] = arr
	}

	out, err := fn(arrs)
	if err != nil {
		releaseAll(arrs)
		return abi.ErrResult(errorCode(err), err.Error())
	}

	series, err := ffi.ExportSeries(out, "", true)
	out.Release()
	releaseAll(arrs)
	if err != nil {
		return abi.ErrResult(errorCode(err), err.Error())
	}
	return abi.Result{Code: abi.CodeOK, Series: series}
}

// FixedField resolves every input schema to the same output type.
func FixedField(dt arrow.DataType) abi.FieldFunc {
	return Field(func(inputs []arrow.Field) (arrow.Field, error) {
		name := ""
		if len(inputs) > 0 {
			name = inputs[0].Name
		}
		return arrow.Field{Name: name, Type: dt, Nullable: true}, nil
	})
}

// Field wraps a type-resolution function into the exported calling
// convention. The function sees only input fields, never data, and must
// be pure: the same input fields always yield the same outcome.
func Field(fn func(inputs []arrow.Field) (arrow.Field, error)) abi.FieldFunc {
	return FieldWithKwargs(func(inputs []arrow.Field, _ struct{}) (arrow.Field, error) {
		return fn(inputs)
	})
}

// FieldWithKwargs is Field for resolvers whose outcome depends on the
// option set, which is decoded into K before the resolver runs.
func FieldWithKwargs[K any](fn func(inputs []arrow.Field, opts K) (arrow.Field, error)) abi.FieldFunc {
	return func(inputs []*abi.Schema, blob []byte) (res abi.FieldResult) {
		defer recoverFieldResult(&res)

		var opts K
		if err := kwargs.Decode(blob, &opts); err != nil {
			return abi.ErrFieldResult(abi.CodeMissingOption, err.Error())
		}

		fields := make([]arrow.Field, len(inputs))
		for i, s := range inputs {
			f, err := ffi.ImportField(s)
			if err != nil {
				return abi.ErrFieldResult(abi.CodeUnsupportedType,
					fmt.Sprintf("importing input field %d: %v", i, err))
			}
			fields[i] = f
		}

		out, err := fn(fields, opts)
		if err != nil {
			return abi.ErrFieldResult(errorCode(err), err.Error())
		}
		schema, err := ffi.ExportField(out)
		if err != nil {
			return abi.ErrFieldResult(abi.CodeUnsupportedType, err.Error())
		}
		return abi.FieldResult{Code: abi.CodeOK, Field: schema}
	}
}

// MatchingFloatField resolves to Float32 when the first input is
// Float32, Float64 otherwise. The usual shape for numeric kernels that
// preserve input precision.
func MatchingFloatField() abi.FieldFunc {
	return Field(func(inputs []arrow.Field) (arrow.Field, error) {
		if len(inputs) == 0 {
			return arrow.Field{}, errors.New("no input fields")
		}
		dt := arrow.DataType(arrow.PrimitiveTypes.Float64)
		if inputs[0].Type.ID() == arrow.FLOAT32 {
			dt = arrow.PrimitiveTypes.Float32
		}
		return arrow.Field{Name: inputs[0].Name, Type: dt, Nullable: true}, nil
	})
}

func releaseAll(arrs []arrow.Array) {
	for _, arr := range arrs {
		if arr != nil {
			arr.Release()
		}
	}
}

// errorCode classifies an author-returned error for the wire.
func errorCode(err error) abi.Code {
	var unsupported *ffi.UnsupportedTypeError
	if errors.As(err, &unsupported) {
		return abi.CodeUnsupportedType
	}
	var missing *kwargs.MissingFieldError
	var format *kwargs.FormatError
	if errors.As(err, &missing) || errors.As(err, &format) {
		return abi.CodeMissingOption
	}
	return abi.CodeCompute
}

func recoverResult(res *abi.Result) {
	if r := recover(); r != nil {
		*res = abi.ErrResult(abi.CodePluginFault, fmt.Sprintf("panic: %v", r))
	}
}

func recoverFieldResult(res *abi.FieldResult) {
	if r := recover(); r != nil {
		*res = abi.ErrFieldResult(abi.CodePluginFault, fmt.Sprintf("panic: %v", r))
	}
}
