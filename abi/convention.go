// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package abi

// Code is the discriminant carried in every boundary result. CodeOK marks
// success; every other value is an error category understood identically
// by host and plugin.
type Code uint8

const (
	// CodeOK marks a successful invocation carrying a series.
	CodeOK Code = iota
	// CodeUnsupportedType reports a format tag unknown to the importer.
	CodeUnsupportedType
	// CodeMissingOption reports a required kwargs field absent from the blob.
	CodeMissingOption
	// CodeArity reports a mismatched input count.
	CodeArity
	// CodePluginFault reports an abnormal termination contained inside the
	// plugin (a recovered panic).
	CodePluginFault
	// CodeCompute reports a domain failure the plugin chose to surface.
	CodeCompute
)

// String returns the stable name of the code.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeUnsupportedType:
		return "unsupported_type"
	case CodeMissingOption:
		return "missing_option"
	case CodeArity:
		return "arity"
	case CodePluginFault:
		return "plugin_fault"
	case CodeCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// Result is the tagged return value of a computation symbol. Exactly one
// arm is populated: Series when Code is CodeOK, Message otherwise. A
// result is never partially valid.
type Result struct {
	Code    Code
	Series  Series
	Message string
}

// FieldResult is the tagged return value of a type-resolution symbol.
type FieldResult struct {
	Code    Code
	Field   *Schema
	Message string
}

// ExprFunc is the fixed calling convention for a computation symbol: a
// slice of descriptor pairs plus the serialized kwargs blob in, one tagged
// result out. Implementations must be safe for concurrent calls.
type ExprFunc func(inputs []Series, kwargs []byte) Result

// FieldFunc is the fixed calling convention for a type-resolution symbol.
// It consumes only the input schema and the kwargs blob, never data, and
// must be deterministic for a given (schema, kwargs) pair.
type FieldFunc func(fields []*Schema, kwargs []byte) FieldResult

// FieldSymbolSuffix relates a computation symbol to its type-resolution
// symbol: the resolver for symbol "Foo" is exported as "FooField".
const FieldSymbolSuffix = "Field"

// FieldSymbol returns the resolver symbol name for a computation symbol.
func FieldSymbol(symbol string) string { return symbol + FieldSymbolSuffix }

// ErrResult builds an error result, leaving the series arm empty.
func ErrResult(code Code, msg string) Result {
	return Result{Code: code, Message: msg}
}

// ErrFieldResult builds an error field result.
func ErrFieldResult(code Code, msg string) FieldResult {
	return FieldResult{Code: code, Message: msg}
}
