// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package colext

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// WrapSeries serializes a single named array into an Arrow IPC stream,
// the portable envelope for handing column data across process
// boundaries. The array is not consumed.
func WrapSeries(arr arrow.Array, name string) ([]byte, error) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: name, Type: arr.DataType(), Nullable: true},
	}, nil)
	rec := array.NewRecord(schema, []arrow.Array{arr}, int64(arr.Len()))
	defer rec.Release()
	return writeIPC(schema, []arrow.Record{rec})
}

// UnwrapSeries reads an IPC stream produced by WrapSeries back into a
// single array and its field name. Multi-batch streams are concatenated.
// The caller owns the returned array.
func UnwrapSeries(data []byte) (arrow.Array, string, error) {
	recs, schema, err := readIPC(data)
	if err != nil {
		return nil, "", err
	}
	defer releaseRecords(recs)

	if schema.NumFields() != 1 {
		return nil, "", fmt.Errorf("expected a single-column stream, got %d columns", schema.NumFields())
	}
	cols := make([]arrow.Array, len(recs))
	for i, rec := range recs {
		cols[i] = rec.Column(0)
	}
	out, err := array.Concatenate(cols, memory.DefaultAllocator)
	if err != nil {
		return nil, "", err
	}
	return out, schema.Field(0).Name, nil
}

// WrapTable serializes a record batch into an Arrow IPC stream.
func WrapTable(rec arrow.Record) ([]byte, error) {
	return writeIPC(rec.Schema(), []arrow.Record{rec})
}

// UnwrapTable reads an IPC stream back into record batches. The caller
// owns the returned records.
func UnwrapTable(data []byte) ([]arrow.Record, error) {
	recs, _, err := readIPC(data)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func writeIPC(schema *arrow.Schema, recs []arrow.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readIPC(data []byte) ([]arrow.Record, *arrow.Schema, error) {
	reader, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("reading IPC stream: %w", err)
	}
	defer reader.Release()

	var recs []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := reader.Err(); err != nil {
		releaseRecords(recs)
		return nil, nil, err
	}
	if len(recs) == 0 {
		return nil, nil, fmt.Errorf("empty IPC stream")
	}
	return recs, reader.Schema(), nil
}

func releaseRecords(recs []arrow.Record) {
	for _, rec := range recs {
		rec.Release()
	}
}
