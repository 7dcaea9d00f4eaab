// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

// Package ffi converts between arrow-go arrays and the boundary descriptor
// pairs defined in package abi. Export installs the ownership handshake
// (borrow or transfer with a release callback); import reconstructs a
// native array without copying buffer contents.
package ffi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/colext/colext/abi"
)

// UnsupportedTypeError reports a logical type that cannot cross the
// boundary: either an arrow type with no format tag, or a format tag
// unknown to this importer version. It is a hard failure, never a
// silent coercion.
type UnsupportedTypeError struct {
	Format   string         // set on import failures
	DataType arrow.DataType // set on export failures
}

func (e *UnsupportedTypeError) Error() string {
	if e.DataType != nil {
		return fmt.Sprintf("unsupported type: no boundary format for %s", e.DataType)
	}
	return fmt.Sprintf("unsupported type: unknown format %q", e.Format)
}

// formatToSimpleType maps parameter-free format strings to arrow types.
var formatToSimpleType = map[string]arrow.DataType{
	"b":   arrow.FixedWidthTypes.Boolean,
	"c":   arrow.PrimitiveTypes.Int8,
	"C":   arrow.PrimitiveTypes.Uint8,
	"s":   arrow.PrimitiveTypes.Int16,
	"S":   arrow.PrimitiveTypes.Uint16,
	"i":   arrow.PrimitiveTypes.Int32,
	"I":   arrow.PrimitiveTypes.Uint32,
	"l":   arrow.PrimitiveTypes.Int64,
	"L":   arrow.PrimitiveTypes.Uint64,
	"f":   arrow.PrimitiveTypes.Float32,
	"g":   arrow.PrimitiveTypes.Float64,
	"u":   arrow.BinaryTypes.String,
	"U":   arrow.BinaryTypes.LargeString,
	"z":   arrow.BinaryTypes.Binary,
	"Z":   arrow.BinaryTypes.LargeBinary,
	"tdD": arrow.FixedWidthTypes.Date32,
	"tdm": arrow.FixedWidthTypes.Date64,
}

// simpleTypeToFormat is the inverse of formatToSimpleType, keyed by type ID.
var simpleTypeToFormat = map[arrow.Type]string{
	arrow.BOOL:         "b",
	arrow.INT8:         "c",
	arrow.UINT8:        "C",
	arrow.INT16:        "s",
	arrow.UINT16:       "S",
	arrow.INT32:        "i",
	arrow.UINT32:       "I",
	arrow.INT64:        "l",
	arrow.UINT64:       "L",
	arrow.FLOAT32:      "f",
	arrow.FLOAT64:      "g",
	arrow.STRING:       "u",
	arrow.LARGE_STRING: "U",
	arrow.BINARY:       "z",
	arrow.LARGE_BINARY: "Z",
	arrow.DATE32:       "tdD",
	arrow.DATE64:       "tdm",
}

// ExportField converts an arrow field into a boundary schema descriptor.
func ExportField(f arrow.Field) (*abi.Schema, error) {
	out := &abi.Schema{Name: f.Name, Nullable: f.Nullable}

	if format, ok := simpleTypeToFormat[f.Type.ID()]; ok {
		out.Format = format
		return out, nil
	}

	switch dt := f.Type.(type) {
	case *arrow.FixedSizeBinaryType:
		out.Format = "w:" + strconv.Itoa(dt.ByteWidth)
		return out, nil
	case *arrow.ListType:
		out.Format = "+l"
		child, err := ExportField(dt.ElemField())
		if err != nil {
			return nil, err
		}
		out.Children = []*abi.Schema{child}
		return out, nil
	case *arrow.LargeListType:
		out.Format = "+L"
		child, err := ExportField(dt.ElemField())
		if err != nil {
			return nil, err
		}
		out.Children = []*abi.Schema{child}
		return out, nil
	default:
		return nil, &UnsupportedTypeError{DataType: f.Type}
	}
}

// ImportField converts a boundary schema descriptor back into an arrow
// field. A format tag unknown to this version is an UnsupportedTypeError.
func ImportField(s *abi.Schema) (arrow.Field, error) {
	ret := arrow.Field{Name: s.Name, Nullable: s.Nullable}

	if dt, ok := formatToSimpleType[s.Format]; ok {
		ret.Type = dt
		return ret, nil
	}

	if width, ok := strings.CutPrefix(s.Format, "w:"); ok {
		byteWidth, err := strconv.Atoi(width)
		if err != nil {
			return ret, fmt.Errorf("invalid fixed-size binary format %q: %w", s.Format, err)
		}
		ret.Type = &arrow.FixedSizeBinaryType{ByteWidth: byteWidth}
		return ret, nil
	}

	switch s.Format {
	case "+l", "+L":
		if len(s.Children) != 1 {
			return ret, fmt.Errorf("list format %q requires 1 child schema, got %d", s.Format, len(s.Children))
		}
		child, err := ImportField(s.Children[0])
		if err != nil {
			return ret, err
		}
		if s.Format == "+l" {
			ret.Type = arrow.ListOfField(child)
		} else {
			ret.Type = arrow.LargeListOfField(child)
		}
		return ret, nil
	}

	return ret, &UnsupportedTypeError{Format: s.Format}
}

// bufferCount returns the expected number of top-level buffers for a type
// and the number of child arrays.
func bufferCount(dt arrow.DataType) (buffers, children int, err error) {
	switch dt.ID() {
	case arrow.BOOL, arrow.INT8, arrow.UINT8, arrow.INT16, arrow.UINT16,
		arrow.INT32, arrow.UINT32, arrow.INT64, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64, arrow.DATE32, arrow.DATE64,
		arrow.FIXED_SIZE_BINARY:
		return 2, 0, nil
	case arrow.STRING, arrow.LARGE_STRING, arrow.BINARY, arrow.LARGE_BINARY:
		return 3, 0, nil
	case arrow.LIST, arrow.LARGE_LIST:
		return 2, 1, nil
	default:
		return 0, 0, &UnsupportedTypeError{DataType: dt}
	}
}
