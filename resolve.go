// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package colext

import (
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/colext/colext/abi"
	"github.com/colext/colext/ffi"
)

// resolveEntry memoizes one type-resolution outcome, success or failure.
// Resolution is required to be pure, so a failed resolution for a schema
// is cached as firmly as a successful one.
type resolveEntry struct {
	field arrow.Field
	err   error
}

// ResolveField computes the output field the expression produces for the
// given input fields, without touching any data. Results are memoized
// per input schema. When the expression was bound with a fixed output
// type, the resolver symbol is never consulted.
func (e *Expr) ResolveField(inputs []arrow.Field) (arrow.Field, error) {
	if e.arity != 0 && len(inputs) != e.arity {
		return arrow.Field{}, errorf(KindArity,
			"%q expects %d inputs, got %d", e.symbol, e.arity, len(inputs))
	}
	if e.fixed != nil {
		return arrow.Field{Name: e.symbol, Type: e.fixed, Nullable: true}, nil
	}

	key, schemas, err := fingerprintFields(inputs)
	if err != nil {
		return arrow.Field{}, errorf(KindSchema, "resolving %q: %v", e.symbol, err)
	}
	if entry, ok := e.resolved.Get(key); ok {
		return entry.field, entry.err
	}

	entry := e.resolveField(schemas)
	e.resolved.Add(key, entry)
	return entry.field, entry.err
}

// ResolveType is ResolveField reduced to the logical type.
func (e *Expr) ResolveType(inputs []arrow.Field) (arrow.DataType, error) {
	field, err := e.ResolveField(inputs)
	if err != nil {
		return nil, err
	}
	return field.Type, nil
}

func (e *Expr) resolveField(schemas []*abi.Schema) resolveEntry {
	res, err := e.callResolver(schemas)
	if err != nil {
		return resolveEntry{err: err}
	}
	if res.Code != abi.CodeOK {
		return resolveEntry{err: errorFromResolverCode(res.Code, res.Message)}
	}
	if res.Field == nil {
		return resolveEntry{err: errorf(KindPluginFault,
			"%q resolver reported success without a field", e.symbol)}
	}
	field, err := ffi.ImportField(res.Field)
	if err != nil {
		return resolveEntry{err: errorf(KindPluginFault,
			"importing resolved field of %q: %v", e.symbol, err)}
	}
	return resolveEntry{field: field}
}

func (e *Expr) callResolver(schemas []*abi.Schema) (res abi.FieldResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errorf(KindPluginFault, "plugin %q resolver for %q panicked: %v", e.location, e.symbol, r)
		}
	}()
	res = e.fieldFn(schemas, e.blob)
	return res, nil
}

// fingerprintFields exports the input fields and derives a cache key
// from the exported descriptors. Two field lists with the same names,
// formats and nullability always produce the same key.
func fingerprintFields(inputs []arrow.Field) (string, []*abi.Schema, error) {
	schemas := make([]*abi.Schema, len(inputs))
	var sb strings.Builder
	for i, f := range inputs {
		s, err := ffi.ExportField(f)
		if err != nil {
			return "", nil, err
		}
		schemas[i] = s
		fingerprintSchema(&sb, s)
	}
	return sb.String(), schemas, nil
}

func fingerprintSchema(sb *strings.Builder, s *abi.Schema) {
	sb.WriteString(s.Format)
	sb.WriteByte(':')
	sb.WriteString(s.Name)
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatBool(s.Nullable))
	if len(s.Children) > 0 {
		sb.WriteByte('<')
		for _, c := range s.Children {
			fingerprintSchema(sb, c)
			sb.WriteByte(',')
		}
		sb.WriteByte('>')
	}
	sb.WriteByte(';')
}
