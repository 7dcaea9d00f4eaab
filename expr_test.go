// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package colext_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colext/colext"
	"github.com/colext/colext/expr"
)

type pigLatinOptions struct {
	Capitalize bool `kwargs:"capitalize"`
}

func pigLatinLibrary() colext.SymbolMap {
	fn := expr.New(func(inputs []arrow.Array, opts pigLatinOptions) (arrow.Array, error) {
		words, ok := inputs[0].(*array.String)
		if !ok {
			return nil, fmt.Errorf("expected a string column, got %s", inputs[0].DataType())
		}
		b := array.NewStringBuilder(memory.DefaultAllocator)
		defer b.Release()
		for i := range words.Len() {
			if words.IsNull(i) {
				b.AppendNull()
				continue
			}
			w := words.Value(i)
			if len(w) > 0 {
				w = w[1:] + w[:1] + "ay"
			}
			b.Append(w)
		}
		return b.NewArray(), nil
	})
	return colext.SymbolMap{
		"PigLatin":      fn,
		"PigLatinField": expr.FixedField(arrow.BinaryTypes.String),
	}
}

func stringArray(t *testing.T, vals []string, valid []bool) arrow.Array {
	t.Helper()
	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(vals, valid)
	return b.NewArray()
}

func int64Array(t *testing.T, vals []int64) arrow.Array {
	t.Helper()
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(vals, nil)
	return b.NewArray()
}

func TestInvokePigLatin(t *testing.T) {
	reg := colext.NewRegistry()
	reg.RegisterLibrary("piglatin", pigLatinLibrary())

	e, err := reg.Bind("piglatin", "PigLatin", colext.BindOptions{Arity: 1})
	require.NoError(t, err)

	field, err := e.ResolveField([]arrow.Field{
		{Name: "words", Type: arrow.BinaryTypes.String, Nullable: true},
	})
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, field.Type))

	words := stringArray(t, []string{"cat", "dog"}, nil)
	defer words.Release()

	out, err := e.Invoke(context.Background(), []arrow.Array{words})
	require.NoError(t, err)
	defer out.Release()

	got := out.(*array.String)
	assert.Equal(t, "atcay", got.Value(0))
	assert.Equal(t, "ogday", got.Value(1))
}

func TestInvokePreservesNulls(t *testing.T) {
	reg := colext.NewRegistry()
	reg.RegisterLibrary("piglatin", pigLatinLibrary())

	e, err := reg.Bind("piglatin", "PigLatin", colext.BindOptions{Arity: 1})
	require.NoError(t, err)

	words := stringArray(t, []string{"cat", "", "dog"}, []bool{true, false, true})
	defer words.Release()

	out, err := e.Invoke(context.Background(), []arrow.Array{words})
	require.NoError(t, err)
	defer out.Release()

	got := out.(*array.String)
	assert.Equal(t, 3, got.Len())
	assert.True(t, got.IsNull(1))
	assert.Equal(t, "ogday", got.Value(2))
}

func TestResolveWithoutData(t *testing.T) {
	// Type resolution must not require any array data.
	calls := int64(0)
	reg := colext.NewRegistry()
	reg.RegisterLibrary("math", colext.SymbolMap{
		"Ratio": expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
			atomic.AddInt64(&calls, 1)
			return nil, errors.New("should not run")
		}),
		"RatioField": expr.Field(func(inputs []arrow.Field) (arrow.Field, error) {
			for _, f := range inputs {
				if f.Type.ID() != arrow.INT64 {
					return arrow.Field{}, fmt.Errorf("expected int64 inputs, got %s", f.Type)
				}
			}
			return arrow.Field{Name: "ratio", Type: arrow.PrimitiveTypes.Float64, Nullable: true}, nil
		}),
	})

	e, err := reg.Bind("math", "Ratio", colext.BindOptions{Arity: 2})
	require.NoError(t, err)

	dt, err := e.ResolveType([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int64},
		{Name: "b", Type: arrow.PrimitiveTypes.Int64},
	})
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Float64, dt))
	assert.Zero(t, atomic.LoadInt64(&calls), "resolution must not invoke the computation")
}

func TestResolveMemoized(t *testing.T) {
	resolverCalls := int64(0)
	reg := colext.NewRegistry()
	reg.RegisterLibrary("lib", colext.SymbolMap{
		"Echo": expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
			inputs[0].Retain()
			return inputs[0], nil
		}),
		"EchoField": expr.Field(func(inputs []arrow.Field) (arrow.Field, error) {
			atomic.AddInt64(&resolverCalls, 1)
			if inputs[0].Type.ID() == arrow.STRING {
				return arrow.Field{}, errors.New("strings not supported")
			}
			return inputs[0], nil
		}),
	})

	e, err := reg.Bind("lib", "Echo", colext.BindOptions{Arity: 1})
	require.NoError(t, err)

	intField := []arrow.Field{{Name: "x", Type: arrow.PrimitiveTypes.Int64}}
	strField := []arrow.Field{{Name: "x", Type: arrow.BinaryTypes.String}}

	for range 5 {
		_, err := e.ResolveField(intField)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, atomic.LoadInt64(&resolverCalls))

	// Failures are just as pure as successes and cache the same way.
	for range 5 {
		_, err := e.ResolveField(strField)
		require.Error(t, err)
		assert.True(t, errors.Is(err, &colext.Error{Kind: colext.KindSchema}))
	}
	assert.EqualValues(t, 2, atomic.LoadInt64(&resolverCalls))
}

func TestFixedOutputTypeSkipsResolver(t *testing.T) {
	reg := colext.NewRegistry()
	// No resolver symbol registered at all.
	reg.RegisterLibrary("lib", colext.SymbolMap{
		"Ones": expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
			b := array.NewInt64Builder(memory.DefaultAllocator)
			defer b.Release()
			for range inputs[0].Len() {
				b.Append(1)
			}
			return b.NewArray(), nil
		}),
	})

	e, err := reg.Bind("lib", "Ones", colext.BindOptions{
		Arity:      1,
		OutputType: arrow.PrimitiveTypes.Int64,
	})
	require.NoError(t, err)

	field, err := e.ResolveField([]arrow.Field{{Name: "x", Type: arrow.BinaryTypes.String}})
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, field.Type))
}

func TestBindMissingResolverIsSchemaError(t *testing.T) {
	reg := colext.NewRegistry()
	reg.RegisterLibrary("lib", colext.SymbolMap{
		"NoResolver": expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
			return nil, nil
		}),
	})

	_, err := reg.Bind("lib", "NoResolver", colext.BindOptions{Arity: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, &colext.Error{Kind: colext.KindSchema}))
}

func TestArityError(t *testing.T) {
	reg := colext.NewRegistry()
	reg.RegisterLibrary("piglatin", pigLatinLibrary())

	e, err := reg.Bind("piglatin", "PigLatin", colext.BindOptions{Arity: 1})
	require.NoError(t, err)

	a := stringArray(t, []string{"x"}, nil)
	defer a.Release()

	_, err = e.Invoke(context.Background(), []arrow.Array{a, a})
	require.Error(t, err)
	assert.True(t, errors.Is(err, &colext.Error{Kind: colext.KindArity}))

	_, err = e.ResolveField([]arrow.Field{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, &colext.Error{Kind: colext.KindArity}))
}

func TestPanicBecomesPluginFault(t *testing.T) {
	reg := colext.NewRegistry()
	reg.RegisterLibrary("faulty", colext.SymbolMap{
		"Boom": expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
			panic("kernel bug")
		}),
		"BoomField": expr.FixedField(arrow.PrimitiveTypes.Int64),
	})

	e, err := reg.Bind("faulty", "Boom", colext.BindOptions{Arity: 1})
	require.NoError(t, err)

	a := int64Array(t, []int64{1})
	defer a.Release()

	_, err = e.Invoke(context.Background(), []arrow.Array{a})
	require.Error(t, err)
	assert.True(t, errors.Is(err, &colext.Error{Kind: colext.KindPluginFault}))
	assert.Contains(t, err.Error(), "kernel bug")

	// The process survives and the expression stays usable for the next
	// (equally doomed) call.
	_, err = e.Invoke(context.Background(), []arrow.Array{a})
	assert.True(t, errors.Is(err, &colext.Error{Kind: colext.KindPluginFault}))
}

func TestComputeError(t *testing.T) {
	reg := colext.NewRegistry()
	reg.RegisterLibrary("strict", colext.SymbolMap{
		"Positive": expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
			return nil, errors.New("negative value in column")
		}),
		"PositiveField": expr.FixedField(arrow.PrimitiveTypes.Int64),
	})

	e, err := reg.Bind("strict", "Positive", colext.BindOptions{Arity: 1})
	require.NoError(t, err)

	a := int64Array(t, []int64{-1})
	defer a.Release()

	_, err = e.Invoke(context.Background(), []arrow.Array{a})
	require.Error(t, err)
	assert.True(t, errors.Is(err, &colext.Error{Kind: colext.KindCompute}))
	assert.Contains(t, err.Error(), "negative value")
	assert.True(t, errors.Is(err, colext.ErrPlugin), "any kinded error matches the sentinel")
}

func TestOptionsErrorBeforeAnyBatch(t *testing.T) {
	type opts struct {
		Upper bool `kwargs:"upper,required"`
	}
	reg := colext.NewRegistry()
	reg.RegisterLibrary("lib", colext.SymbolMap{
		"Cased": expr.New(func(inputs []arrow.Array, o opts) (arrow.Array, error) {
			inputs[0].Retain()
			return inputs[0], nil
		}),
		"CasedField": expr.FieldWithKwargs(func(inputs []arrow.Field, o opts) (arrow.Field, error) {
			return inputs[0], nil
		}),
	})

	// Bound without the required option: the failure surfaces during
	// resolution, before any data is touched.
	e, err := reg.Bind("lib", "Cased", colext.BindOptions{Arity: 1})
	require.NoError(t, err)

	_, err = e.ResolveField([]arrow.Field{{Name: "x", Type: arrow.BinaryTypes.String}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, &colext.Error{Kind: colext.KindOptions}))
}

func TestUnencodableKwargsFailsBind(t *testing.T) {
	reg := colext.NewRegistry()
	reg.RegisterLibrary("piglatin", pigLatinLibrary())

	_, err := reg.Bind("piglatin", "PigLatin", colext.BindOptions{
		Arity:  1,
		Kwargs: map[string]any{"ch": make(chan int)},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, &colext.Error{Kind: colext.KindOptions}))
}

func TestScalarResultAllowed(t *testing.T) {
	reg := colext.NewRegistry()
	reg.RegisterLibrary("agg", colext.SymbolMap{
		"Sum": expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
			in := inputs[0].(*array.Int64)
			var sum int64
			for i := range in.Len() {
				sum += in.Value(i)
			}
			b := array.NewInt64Builder(memory.DefaultAllocator)
			defer b.Release()
			b.Append(sum)
			return b.NewArray(), nil
		}),
		"SumField": expr.FixedField(arrow.PrimitiveTypes.Int64),
	})

	e, err := reg.Bind("agg", "Sum", colext.BindOptions{Arity: 1})
	require.NoError(t, err)

	a := int64Array(t, []int64{1, 2, 3, 4})
	defer a.Release()

	out, err := e.Invoke(context.Background(), []arrow.Array{a})
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, 1, out.Len())
	assert.Equal(t, int64(10), out.(*array.Int64).Value(0))
}

func TestWrongResultLengthIsComputeError(t *testing.T) {
	reg := colext.NewRegistry()
	reg.RegisterLibrary("bad", colext.SymbolMap{
		"Truncate": expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
			b := array.NewInt64Builder(memory.DefaultAllocator)
			defer b.Release()
			b.AppendValues([]int64{1, 2}, nil)
			return b.NewArray(), nil
		}),
		"TruncateField": expr.FixedField(arrow.PrimitiveTypes.Int64),
	})

	e, err := reg.Bind("bad", "Truncate", colext.BindOptions{Arity: 1})
	require.NoError(t, err)

	a := int64Array(t, []int64{1, 2, 3, 4})
	defer a.Release()

	_, err = e.Invoke(context.Background(), []arrow.Array{a})
	require.Error(t, err)
	assert.True(t, errors.Is(err, &colext.Error{Kind: colext.KindCompute}))
}

func TestInvokeAllConcurrent(t *testing.T) {
	reg := colext.NewRegistry()
	reg.RegisterLibrary("piglatin", pigLatinLibrary())

	e, err := reg.Bind("piglatin", "PigLatin", colext.BindOptions{Arity: 1})
	require.NoError(t, err)

	const n = 16
	batches := make([][]arrow.Array, n)
	for i := range batches {
		a := stringArray(t, []string{fmt.Sprintf("word%d", i), "cat"}, nil)
		defer a.Release()
		batches[i] = []arrow.Array{a}
	}

	results, err := e.InvokeAll(context.Background(), batches, 4)
	require.NoError(t, err)
	require.Len(t, results, n)
	for i, out := range results {
		got := out.(*array.String)
		assert.Equal(t, fmt.Sprintf("ord%dway", i), got.Value(0))
		assert.Equal(t, "atcay", got.Value(1))
		out.Release()
	}
}

func TestInvokeAllStopsOnError(t *testing.T) {
	reg := colext.NewRegistry()
	reg.RegisterLibrary("flaky", colext.SymbolMap{
		"FailOdd": expr.NewNoKwargs(func(inputs []arrow.Array) (arrow.Array, error) {
			in := inputs[0].(*array.Int64)
			if in.Value(0)%2 == 1 {
				return nil, errors.New("odd batch")
			}
			inputs[0].Retain()
			return inputs[0], nil
		}),
		"FailOddField": expr.FixedField(arrow.PrimitiveTypes.Int64),
	})

	e, err := reg.Bind("flaky", "FailOdd", colext.BindOptions{Arity: 1})
	require.NoError(t, err)

	batches := make([][]arrow.Array, 8)
	for i := range batches {
		a := int64Array(t, []int64{int64(i)})
		defer a.Release()
		batches[i] = []arrow.Array{a}
	}

	_, err = e.InvokeAll(context.Background(), batches, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, colext.ErrPlugin))
}

func TestLoadUnknownLocation(t *testing.T) {
	reg := colext.NewRegistry()
	_, err := reg.Load("/nonexistent/plugin.so")
	assert.Error(t, err)
}

func TestRegistryFunctions(t *testing.T) {
	reg := colext.NewRegistry()
	reg.RegisterLibrary("piglatin", pigLatinLibrary())

	_, err := reg.Bind("piglatin", "PigLatin", colext.BindOptions{Arity: 1})
	require.NoError(t, err)
	_, err = reg.Bind("piglatin", "PigLatin", colext.BindOptions{
		Arity:      1,
		OutputType: arrow.BinaryTypes.String,
	})
	require.NoError(t, err)

	fns := reg.Functions()
	require.Len(t, fns, 2)
	assert.Equal(t, "PigLatin", fns[0].Symbol)
	assert.Equal(t, "piglatin", fns[0].Location)
	// One bound with a computed output, one with a fixed output.
	outputs := []string{fns[0].FixedOutput, fns[1].FixedOutput}
	assert.Contains(t, outputs, "")
	assert.Contains(t, outputs, "utf8")
}

type recordingHook struct {
	starts atomic.Int64
	ends   atomic.Int64
	failed atomic.Int64
	rows   atomic.Int64
}

func (h *recordingHook) OnInvokeStart(ctx context.Context, info colext.InvokeInfo) (context.Context, colext.HookToken) {
	h.starts.Add(1)
	return ctx, info.InvocationID
}

func (h *recordingHook) OnInvokeEnd(ctx context.Context, token colext.HookToken, info colext.InvokeInfo, stats *colext.CallStatistics, err error) {
	h.ends.Add(1)
	if err != nil {
		h.failed.Add(1)
	}
	if stats != nil {
		h.rows.Add(stats.InputRows)
	}
	if _, ok := token.(string); !ok {
		panic("token did not round-trip")
	}
}

func TestInvokeHook(t *testing.T) {
	hook := &recordingHook{}
	reg := colext.NewRegistry(colext.WithInvokeHook(hook))
	reg.RegisterLibrary("piglatin", pigLatinLibrary())

	e, err := reg.Bind("piglatin", "PigLatin", colext.BindOptions{Arity: 1})
	require.NoError(t, err)

	words := stringArray(t, []string{"cat", "dog", "bee"}, nil)
	defer words.Release()

	out, err := e.Invoke(context.Background(), []arrow.Array{words})
	require.NoError(t, err)
	out.Release()

	// A non-string input makes the kernel fail inside the hooked region.
	nums := int64Array(t, []int64{1, 2})
	defer nums.Release()
	_, err = e.Invoke(context.Background(), []arrow.Array{nums})
	require.Error(t, err)

	assert.EqualValues(t, 2, hook.starts.Load())
	assert.EqualValues(t, 2, hook.ends.Load())
	assert.EqualValues(t, 1, hook.failed.Load())
	assert.EqualValues(t, 5, hook.rows.Load())
}

func TestCancelledContext(t *testing.T) {
	reg := colext.NewRegistry()
	reg.RegisterLibrary("piglatin", pigLatinLibrary())

	e, err := reg.Bind("piglatin", "PigLatin", colext.BindOptions{Arity: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := stringArray(t, []string{"cat"}, nil)
	defer a.Release()

	_, err = e.Invoke(ctx, []arrow.Array{a})
	assert.ErrorIs(t, err, context.Canceled)
}
