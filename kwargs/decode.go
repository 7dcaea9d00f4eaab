// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package kwargs

import (
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// Decode deserializes a kwargs blob into a statically shaped options
// struct. target must be a pointer to a struct with `kwargs` tags. Blob
// fields with no matching tag are ignored; a tagged field marked required
// that is absent from the blob yields a *MissingFieldError.
func Decode(blob []byte, target any) error {
	m, err := DecodeMap(blob)
	if err != nil {
		return err
	}

	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("kwargs: decode target must be a non-nil struct pointer, got %T", target)
	}
	return populateStruct(rv.Elem(), m)
}

// DecodeMap deserializes a kwargs blob into a dynamic map. Useful when the
// option shape is not known at compile time.
func DecodeMap(blob []byte) (map[string]any, error) {
	body, err := payload(blob)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := msgpack.Unmarshal(body, &m); err != nil {
		return nil, &FormatError{Reason: "payload: " + err.Error()}
	}
	return m, nil
}

func populateStruct(rv reflect.Value, m map[string]any) error {
	rt := rv.Type()
	for i := range rt.NumField() {
		f := rt.Field(i)
		info := parseTag(f.Tag.Get("kwargs"))
		if info.Skip {
			continue
		}

		val, ok := m[info.Name]
		if !ok || val == nil {
			if info.Required {
				return &MissingFieldError{Field: info.Name}
			}
			continue
		}
		if err := setField(rv.Field(i), val); err != nil {
			return fmt.Errorf("option %q: %w", info.Name, err)
		}
	}
	return nil
}

// setField assigns a decoded payload value to a struct field, coercing
// between the numeric widths MessagePack collapses to.
func setField(field reflect.Value, val any) error {
	ft := field.Type()

	if ft.Kind() == reflect.Ptr {
		ptr := reflect.New(ft.Elem())
		if err := setField(ptr.Elem(), val); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}

	switch ft.Kind() {
	case reflect.Bool:
		b, ok := val.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", val)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(val)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt64(val)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("negative value %d for unsigned option", n)
		}
		field.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(val)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.String:
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
		field.SetString(s)
	case reflect.Slice:
		if ft.Elem().Kind() == reflect.Uint8 {
			switch v := val.(type) {
			case []byte:
				field.SetBytes(v)
			case string:
				field.SetBytes([]byte(v))
			default:
				return fmt.Errorf("expected bytes, got %T", val)
			}
			return nil
		}
		items, ok := val.([]any)
		if !ok {
			return fmt.Errorf("expected sequence, got %T", val)
		}
		slice := reflect.MakeSlice(ft, len(items), len(items))
		for i, item := range items {
			if err := setField(slice.Index(i), item); err != nil {
				return fmt.Errorf("element [%d]: %w", i, err)
			}
		}
		field.Set(slice)
	case reflect.Map:
		if ft.Key().Kind() != reflect.String {
			return fmt.Errorf("kwargs map keys must be strings, got %s", ft.Key())
		}
		nested, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("expected mapping, got %T", val)
		}
		out := reflect.MakeMapWithSize(ft, len(nested))
		for k, v := range nested {
			elem := reflect.New(ft.Elem()).Elem()
			if err := setField(elem, v); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(ft.Key()), elem)
		}
		field.Set(out)
	case reflect.Struct:
		nested, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("expected mapping, got %T", val)
		}
		return populateStruct(field, nested)
	default:
		return fmt.Errorf("unsupported option field kind: %s", ft.Kind())
	}
	return nil
}

func toInt64(v any) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case uint64:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
}
