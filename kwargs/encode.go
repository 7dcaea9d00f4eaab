// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package kwargs

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes a set of named options into a kwargs blob. v may be a
// struct with `kwargs` tags, a map with string keys, or nil for an empty
// option set. Values are limited to booleans, integers, floats, strings,
// byte slices, and nested maps/slices/structs of the same; anything else
// is an error.
//
// Encoding the same value twice yields byte-identical blobs.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if v == nil {
		if err := enc.EncodeMapLen(0); err != nil {
			return nil, err
		}
		return seal(buf.Bytes()), nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("kwargs: cannot encode nil %s", rv.Type())
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct, reflect.Map:
	default:
		return nil, fmt.Errorf("kwargs: top-level value must be a struct or map, got %s", rv.Kind())
	}

	if err := encodeValue(enc, rv); err != nil {
		return nil, err
	}
	return seal(buf.Bytes()), nil
}

// encodeValue writes one value in deterministic order.
func encodeValue(enc *msgpack.Encoder, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Bool:
		return enc.EncodeBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return enc.EncodeInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return enc.EncodeUint(rv.Uint())
	case reflect.Float32:
		return enc.EncodeFloat32(float32(rv.Float()))
	case reflect.Float64:
		return enc.EncodeFloat64(rv.Float())
	case reflect.String:
		return enc.EncodeString(rv.String())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return enc.EncodeBytes(rv.Bytes())
		}
		if err := enc.EncodeArrayLen(rv.Len()); err != nil {
			return err
		}
		for i := 0; i < rv.Len(); i++ {
			if err := encodeValue(enc, rv.Index(i)); err != nil {
				return fmt.Errorf("element [%d]: %w", i, err)
			}
		}
		return nil
	case reflect.Map:
		return encodeMap(enc, rv)
	case reflect.Struct:
		return encodeStruct(enc, rv)
	case reflect.Interface, reflect.Ptr:
		if rv.IsNil() {
			return enc.EncodeNil()
		}
		return encodeValue(enc, rv.Elem())
	default:
		return fmt.Errorf("unsupported kwargs value kind: %s", rv.Kind())
	}
}

// encodeMap writes a map with keys in sorted order so the output is
// independent of Go map iteration order.
func encodeMap(enc *msgpack.Encoder, rv reflect.Value) error {
	if rv.Type().Key().Kind() != reflect.String {
		return fmt.Errorf("kwargs map keys must be strings, got %s", rv.Type().Key())
	}

	keys := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		keys = append(keys, iter.Key().String())
	}
	sort.Strings(keys)

	if err := enc.EncodeMapLen(len(keys)); err != nil {
		return err
	}
	for _, k := range keys {
		if err := enc.EncodeString(k); err != nil {
			return err
		}
		if err := encodeValue(enc, rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
	}
	return nil
}

// encodeStruct writes tagged fields in declaration order.
func encodeStruct(enc *msgpack.Encoder, rv reflect.Value) error {
	rt := rv.Type()

	type taggedField struct {
		name string
		idx  int
	}
	var fields []taggedField
	for i := range rt.NumField() {
		info := parseTag(rt.Field(i).Tag.Get("kwargs"))
		if info.Skip {
			continue
		}
		fields = append(fields, taggedField{name: info.Name, idx: i})
	}

	if err := enc.EncodeMapLen(len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := enc.EncodeString(f.name); err != nil {
			return err
		}
		if err := encodeValue(enc, rv.Field(f.idx)); err != nil {
			return fmt.Errorf("field %q: %w", f.name, err)
		}
	}
	return nil
}
