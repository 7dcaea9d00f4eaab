// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/colext/colext"
)

// Check is one verifiable property of the invocation contract.
type Check struct {
	Name string
	Run  func(reg *colext.Registry, location string) error
}

// Checks returns the full suite in execution order.
func Checks() []Check {
	return []Check{
		{"round_trip_int64", checkRoundTripInt64},
		{"round_trip_string_nulls", checkRoundTripStringNulls},
		{"round_trip_list", checkRoundTripList},
		{"determinism", checkDeterminism},
		{"resolution_pure", checkResolutionPure},
		{"resolution_no_data", checkResolutionNoData},
		{"scalar_result", checkScalarResult},
		{"compute_error", checkComputeError},
		{"panic_contained", checkPanicContained},
		{"arity_enforced", checkArityEnforced},
		{"missing_option", checkMissingOption},
		{"options_applied", checkOptionsApplied},
		{"concurrent_invocation", checkConcurrentInvocation},
	}
}

// RunAll executes every check and returns the failures keyed by name.
func RunAll(reg *colext.Registry, location string) map[string]error {
	failures := make(map[string]error)
	for _, c := range Checks() {
		if err := c.Run(reg, location); err != nil {
			failures[c.Name] = err
		}
	}
	return failures
}

func bindEcho(reg *colext.Registry, location string) (*colext.Expr, error) {
	return reg.Bind(location, "Echo", colext.BindOptions{Arity: 1})
}

func int64Column(vals []int64, valid []bool) arrow.Array {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(vals, valid)
	return b.NewArray()
}

func stringColumn(vals []string, valid []bool) arrow.Array {
	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(vals, valid)
	return b.NewArray()
}

func checkRoundTripInt64(reg *colext.Registry, location string) error {
	e, err := bindEcho(reg, location)
	if err != nil {
		return err
	}
	in := int64Column([]int64{1, -5, 1 << 40}, nil)
	defer in.Release()

	out, err := e.Invoke(context.Background(), []arrow.Array{in})
	if err != nil {
		return err
	}
	defer out.Release()

	if !array.Equal(in, out) {
		return fmt.Errorf("echoed column differs: in=%v out=%v", in, out)
	}
	return nil
}

func checkRoundTripStringNulls(reg *colext.Registry, location string) error {
	e, err := bindEcho(reg, location)
	if err != nil {
		return err
	}
	in := stringColumn([]string{"alpha", "", "gamma"}, []bool{true, false, true})
	defer in.Release()

	out, err := e.Invoke(context.Background(), []arrow.Array{in})
	if err != nil {
		return err
	}
	defer out.Release()

	if out.NullN() != 1 || !out.IsNull(1) {
		return fmt.Errorf("null slot lost: %v", out)
	}
	if !array.Equal(in, out) {
		return fmt.Errorf("echoed column differs: in=%v out=%v", in, out)
	}
	return nil
}

func checkRoundTripList(reg *colext.Registry, location string) error {
	e, err := bindEcho(reg, location)
	if err != nil {
		return err
	}

	b := array.NewListBuilder(memory.DefaultAllocator, arrow.PrimitiveTypes.Int64)
	defer b.Release()
	vb := b.ValueBuilder().(*array.Int64Builder)
	b.Append(true)
	vb.AppendValues([]int64{1, 2, 3}, nil)
	b.AppendNull()
	b.Append(true)
	in := b.NewArray()
	defer in.Release()

	out, err := e.Invoke(context.Background(), []arrow.Array{in})
	if err != nil {
		return err
	}
	defer out.Release()

	if !array.Equal(in, out) {
		return fmt.Errorf("echoed list differs: in=%v out=%v", in, out)
	}
	return nil
}

// checkDeterminism invokes the same function on the same batch twice and
// compares the serialized results byte for byte.
func checkDeterminism(reg *colext.Registry, location string) error {
	e, err := bindEcho(reg, location)
	if err != nil {
		return err
	}
	in := stringColumn([]string{"cat", "dog"}, nil)
	defer in.Release()

	var wires [2][]byte
	for i := range wires {
		out, err := e.Invoke(context.Background(), []arrow.Array{in})
		if err != nil {
			return err
		}
		wire, err := colext.WrapSeries(out, "out")
		out.Release()
		if err != nil {
			return err
		}
		wires[i] = wire
	}
	if !bytes.Equal(wires[0], wires[1]) {
		return errors.New("identical invocations produced different bytes")
	}
	return nil
}

func checkResolutionPure(reg *colext.Registry, location string) error {
	e, err := bindEcho(reg, location)
	if err != nil {
		return err
	}
	fields := []arrow.Field{{Name: "x", Type: arrow.PrimitiveTypes.Float64, Nullable: true}}

	first, err := e.ResolveField(fields)
	if err != nil {
		return err
	}
	for range 3 {
		again, err := e.ResolveField(fields)
		if err != nil {
			return err
		}
		if !arrow.TypeEqual(first.Type, again.Type) || first.Name != again.Name {
			return fmt.Errorf("resolution drifted: %v then %v", first, again)
		}
	}
	return nil
}

func checkResolutionNoData(reg *colext.Registry, location string) error {
	e, err := bindEcho(reg, location)
	if err != nil {
		return err
	}
	// Resolving a type the computation would choke on must still work:
	// resolution sees only schemas.
	dt, err := e.ResolveType([]arrow.Field{{Name: "x", Type: arrow.FixedWidthTypes.Date32}})
	if err != nil {
		return err
	}
	if !arrow.TypeEqual(dt, arrow.FixedWidthTypes.Date32) {
		return fmt.Errorf("expected date32, got %s", dt)
	}
	return nil
}

func checkScalarResult(reg *colext.Registry, location string) error {
	e, err := reg.Bind(location, "Count", colext.BindOptions{Arity: 1})
	if err != nil {
		return err
	}
	in := int64Column([]int64{1, 2, 3, 4, 5}, nil)
	defer in.Release()

	out, err := e.Invoke(context.Background(), []arrow.Array{in})
	if err != nil {
		return err
	}
	defer out.Release()

	if out.Len() != 1 {
		return fmt.Errorf("expected scalar result, got %d rows", out.Len())
	}
	if got := out.(*array.Int64).Value(0); got != 5 {
		return fmt.Errorf("expected count 5, got %d", got)
	}
	return nil
}

func checkComputeError(reg *colext.Registry, location string) error {
	e, err := reg.Bind(location, "Fail", colext.BindOptions{Arity: 1})
	if err != nil {
		return err
	}
	in := int64Column([]int64{1}, nil)
	defer in.Release()

	_, err = e.Invoke(context.Background(), []arrow.Array{in})
	if !errors.Is(err, &colext.Error{Kind: colext.KindCompute}) {
		return fmt.Errorf("expected ComputationError, got %v", err)
	}
	return nil
}

func checkPanicContained(reg *colext.Registry, location string) error {
	e, err := reg.Bind(location, "Panic", colext.BindOptions{Arity: 1})
	if err != nil {
		return err
	}
	in := int64Column([]int64{1}, nil)
	defer in.Release()

	for range 2 {
		_, err = e.Invoke(context.Background(), []arrow.Array{in})
		if !errors.Is(err, &colext.Error{Kind: colext.KindPluginFault}) {
			return fmt.Errorf("expected InternalPluginFault, got %v", err)
		}
	}
	return nil
}

func checkArityEnforced(reg *colext.Registry, location string) error {
	e, err := bindEcho(reg, location)
	if err != nil {
		return err
	}
	in := int64Column([]int64{1}, nil)
	defer in.Release()

	_, err = e.Invoke(context.Background(), []arrow.Array{in, in})
	if !errors.Is(err, &colext.Error{Kind: colext.KindArity}) {
		return fmt.Errorf("expected ArityError, got %v", err)
	}
	return nil
}

func checkMissingOption(reg *colext.Registry, location string) error {
	// Repeat requires the "times" option; binding without it must fail
	// during resolution, before any batch.
	e, err := reg.Bind(location, "Repeat", colext.BindOptions{Arity: 1})
	if err != nil {
		return err
	}
	_, err = e.ResolveField([]arrow.Field{{Name: "s", Type: arrow.BinaryTypes.String}})
	if !errors.Is(err, &colext.Error{Kind: colext.KindOptions}) {
		return fmt.Errorf("expected OptionsError, got %v", err)
	}
	return nil
}

func checkOptionsApplied(reg *colext.Registry, location string) error {
	e, err := reg.Bind(location, "Repeat", colext.BindOptions{
		Arity:  1,
		Kwargs: RepeatOptions{Times: 3},
	})
	if err != nil {
		return err
	}
	in := stringColumn([]string{"ab"}, nil)
	defer in.Release()

	out, err := e.Invoke(context.Background(), []arrow.Array{in})
	if err != nil {
		return err
	}
	defer out.Release()

	if got := out.(*array.String).Value(0); got != "ababab" {
		return fmt.Errorf("expected %q, got %q", "ababab", got)
	}
	return nil
}

func checkConcurrentInvocation(reg *colext.Registry, location string) error {
	e, err := bindEcho(reg, location)
	if err != nil {
		return err
	}

	const n = 16
	batches := make([][]arrow.Array, n)
	for i := range batches {
		col := int64Column([]int64{int64(i), int64(i) * 2}, nil)
		defer col.Release()
		batches[i] = []arrow.Array{col}
	}

	results, err := e.InvokeAll(context.Background(), batches, 4)
	if err != nil {
		return err
	}
	for i, out := range results {
		if got := out.(*array.Int64).Value(0); got != int64(i) {
			out.Release()
			return fmt.Errorf("batch %d result out of order: got %d", i, got)
		}
		out.Release()
	}
	return nil
}
