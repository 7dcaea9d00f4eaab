// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

// Package colext is the host side of a columnar plugin-invocation
// protocol: it loads compiled plugin libraries, binds their functions
// into reusable expressions, and runs them over Apache Arrow arrays with
// zero-copy handoff in both directions.
//
// A plugin exports two symbols per function under a fixed naming
// convention: the computation function itself, and a type-resolution
// function under the same name with a "Field" suffix. Both operate on
// ABI-level descriptors (see the abi package) so that plugins built
// separately from the host still interoperate. Plugin authors build the
// exported symbols with the expr package rather than implementing the
// convention by hand.
//
// # Binding and invocation
//
//	reg := colext.NewRegistry()
//	e, err := reg.Bind("./pig_latin.so", "PigLatin", colext.BindOptions{
//		Arity:  1,
//		Kwargs: pigLatinOptions{Capitalize: true},
//	})
//	...
//	out, err := e.Invoke(ctx, []arrow.Array{words})
//
// [Registry.Bind] resolves symbols and serializes the option set once;
// the resulting [Expr] is immutable and safe for concurrent invocation.
// Output types are either fixed at bind time via
// [BindOptions.OutputType] or computed per input schema by the plugin's
// type-resolution function, with results memoized per schema.
//
// # Error taxonomy
//
// Every failure crossing the plugin boundary carries a [Kind]:
// SchemaError, OptionsError, ArityError, InternalPluginFault or
// ComputationError. Plugin panics never propagate; they surface as
// InternalPluginFault. Match categories with errors.Is against
// [ErrPlugin] or a kinded [Error] value.
//
// # Memory contract
//
// Input arrays are lent to the plugin for the duration of a call and
// stay owned by the caller. Result arrays arrive with a release
// callback, are moved into host ownership on import, and follow the
// usual Arrow Retain/Release discipline from there. Release callbacks
// fire at most once regardless of error paths.
//
// # In-process libraries
//
// [Registry.RegisterLibrary] installs a [SymbolMap] under a location
// name so the same bind-and-invoke path works without a shared object,
// for tests and compiled-in extensions.
package colext
