// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package colext

import (
	"context"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/colext/colext/abi"
	"github.com/colext/colext/ffi"
)

// Expr is a plugin function instantiated with a frozen option set. It is
// immutable after Bind and safe for concurrent invocation.
type Expr struct {
	registry *Registry
	location string
	symbol   string

	fn      abi.ExprFunc
	fieldFn abi.FieldFunc
	fixed   arrow.DataType
	arity   int
	blob    []byte

	resolved *lru.Cache[string, resolveEntry]
}

// Location returns the library location this expression was bound from.
func (e *Expr) Location() string { return e.location }

// Symbol returns the plugin function symbol name.
func (e *Expr) Symbol() string { return e.symbol }

// Invoke runs the plugin function over one batch of input arrays and
// returns the result array. Inputs are lent to the plugin for the
// duration of the call and remain owned by the caller; the returned
// array is owned by the caller and must be released.
//
// The result must either match the input row count or be a length-one
// array (a scalar result); anything else is a ComputationError. A panic
// inside the plugin surfaces as an InternalPluginFault.
func (e *Expr) Invoke(ctx context.Context, inputs []arrow.Array) (arrow.Array, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.arity != 0 && len(inputs) != e.arity {
		return nil, errorf(KindArity, "%q expects %d inputs, got %d", e.symbol, e.arity, len(inputs))
	}

	info := InvokeInfo{
		Location:     e.location,
		Symbol:       e.symbol,
		InvocationID: uuid.NewString(),
	}
	stats := &CallStatistics{}
	hook := e.registry.invokeHook()
	var token HookToken
	if hook != nil {
		ctx, token = hook.OnInvokeStart(ctx, info)
	}

	out, err := e.invoke(inputs, stats)
	if hook != nil {
		hook.OnInvokeEnd(ctx, token, info, stats, err)
	}
	if err != nil {
		e.registry.logger.LogAttrs(ctx, slog.LevelDebug, "plugin invocation failed",
			slog.String("location", e.location),
			slog.String("symbol", e.symbol),
			slog.String("invocation_id", info.InvocationID),
			slog.String("error", err.Error()))
		return nil, err
	}
	return out, nil
}

func (e *Expr) invoke(inputs []arrow.Array, stats *CallStatistics) (arrow.Array, error) {
	series := make([]abi.Series, len(inputs))
	for i, in := range inputs {
		s, err := ffi.ExportSeries(in, "", false)
		if err != nil {
			return nil, errorf(KindSchema, "exporting input %d for %q: %v", i, e.symbol, err)
		}
		series[i] = s
		stats.RecordInput(int64(in.Len()), arrayBufferSize(in))
	}

	res, err := e.call(series)
	if err != nil {
		return nil, err
	}
	if res.Code != abi.CodeOK {
		return nil, errorFromCode(res.Code, res.Message)
	}
	if res.Series.Array == nil || res.Series.Schema == nil {
		return nil, errorf(KindPluginFault, "%q reported success without a result", e.symbol)
	}

	out, err := ffi.ImportSeries(res.Series)
	if err != nil {
		abi.ReleaseArray(res.Series.Array)
		return nil, errorf(KindPluginFault, "importing result of %q: %v", e.symbol, err)
	}

	if len(inputs) > 0 {
		rows := inputs[0].Len()
		if got := out.Len(); got != rows && got != 1 {
			out.Release()
			return nil, errorf(KindCompute,
				"%q returned %d rows for a %d-row batch", e.symbol, got, rows)
		}
	}
	stats.RecordOutput(int64(out.Len()), arrayBufferSize(out))
	return out, nil
}

// call shields the host from plugin panics.
func (e *Expr) call(series []abi.Series) (res abi.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errorf(KindPluginFault, "plugin %q symbol %q panicked: %v", e.location, e.symbol, r)
		}
	}()
	res = e.fn(series, e.blob)
	return res, nil
}

// InvokeAll runs the expression over several batches concurrently and
// returns the results in batch order. At most parallelism invocations
// run at once; zero or negative means unbounded. The first error cancels
// the remaining work and releases any results already produced.
func (e *Expr) InvokeAll(ctx context.Context, batches [][]arrow.Array, parallelism int) ([]arrow.Array, error) {
	results := make([]arrow.Array, len(batches))

	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, batch := range batches {
		g.Go(func() error {
			out, err := e.Invoke(ctx, batch)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, out := range results {
			if out != nil {
				out.Release()
			}
		}
		return nil, err
	}
	return results, nil
}
