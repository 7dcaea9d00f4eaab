// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package kwargs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pigOptions struct {
	Capitalize bool   `kwargs:"capitalize,required"`
	Suffix     string `kwargs:"suffix"`
	Repeat     int    `kwargs:"repeat"`
	ignored    string
}

func TestEncodeDecodeStruct(t *testing.T) {
	blob, err := Encode(pigOptions{Capitalize: true, Suffix: "ay", Repeat: 2})
	require.NoError(t, err)

	var got pigOptions
	require.NoError(t, Decode(blob, &got))
	assert.True(t, got.Capitalize)
	assert.Equal(t, "ay", got.Suffix)
	assert.Equal(t, 2, got.Repeat)
	assert.Empty(t, got.ignored)
}

func TestEncodeNilIsEmptyOptionSet(t *testing.T) {
	blob, err := Encode(nil)
	require.NoError(t, err)

	m, err := DecodeMap(blob)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestEncodeDeterministic(t *testing.T) {
	// Map iteration order varies between runs; blob bytes must not.
	opts := map[string]any{
		"zeta":  1,
		"alpha": "x",
		"mid":   true,
		"nested": map[string]any{
			"b": 2,
			"a": 1,
		},
	}
	first, err := Encode(opts)
	require.NoError(t, err)
	for range 20 {
		again, err := Encode(opts)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDecodeMissingRequired(t *testing.T) {
	blob, err := Encode(map[string]any{"suffix": "ay"})
	require.NoError(t, err)

	var got pigOptions
	err = Decode(blob, &got)
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "capitalize", missing.Field)
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	blob, err := Encode(map[string]any{
		"capitalize":   false,
		"some_future":  "value",
		"other_future": 42,
	})
	require.NoError(t, err)

	var got pigOptions
	require.NoError(t, Decode(blob, &got))
	assert.False(t, got.Capitalize)
}

func TestDecodeNested(t *testing.T) {
	type inner struct {
		Threshold float64 `kwargs:"threshold"`
	}
	type outer struct {
		Name   string         `kwargs:"name,required"`
		Limits inner          `kwargs:"limits"`
		Tags   []string       `kwargs:"tags"`
		Extra  map[string]int `kwargs:"extra"`
		Max    *int           `kwargs:"max"`
	}

	blob, err := Encode(map[string]any{
		"name":   "dist",
		"limits": map[string]any{"threshold": 0.5},
		"tags":   []string{"a", "b"},
		"extra":  map[string]int{"k": 3},
		"max":    9,
	})
	require.NoError(t, err)

	var got outer
	require.NoError(t, Decode(blob, &got))
	assert.Equal(t, "dist", got.Name)
	assert.Equal(t, 0.5, got.Limits.Threshold)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	assert.Equal(t, map[string]int{"k": 3}, got.Extra)
	require.NotNil(t, got.Max)
	assert.Equal(t, 9, *got.Max)
}

func TestNumericCoercion(t *testing.T) {
	type opts struct {
		Count  uint32  `kwargs:"count"`
		Ratio  float32 `kwargs:"ratio"`
		Offset int8    `kwargs:"offset"`
	}
	blob, err := Encode(map[string]any{
		"count":  7,
		"ratio":  1, // integer on the wire, float in the struct
		"offset": -3,
	})
	require.NoError(t, err)

	var got opts
	require.NoError(t, Decode(blob, &got))
	assert.Equal(t, uint32(7), got.Count)
	assert.Equal(t, float32(1), got.Ratio)
	assert.Equal(t, int8(-3), got.Offset)
}

func TestLargePayloadCompresses(t *testing.T) {
	big := map[string]any{
		"text": strings.Repeat("the quick brown fox ", 200),
	}
	blob, err := Encode(big)
	require.NoError(t, err)
	assert.Equal(t, byte(codecZstd), blob[3])
	assert.Less(t, len(blob), 4000, "repetitive payload should compress")

	m, err := DecodeMap(blob)
	require.NoError(t, err)
	assert.Equal(t, big["text"], m["text"])
}

func TestSmallPayloadStaysRaw(t *testing.T) {
	blob, err := Encode(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, byte(codecRaw), blob[3])
}

func TestMalformedBlobs(t *testing.T) {
	valid, err := Encode(map[string]any{"a": 1})
	require.NoError(t, err)

	badMagic := append([]byte{}, valid...)
	badMagic[0] = 'X'

	badVersion := append([]byte{}, valid...)
	badVersion[2] = 99

	badCodec := append([]byte{}, valid...)
	badCodec[3] = 7

	tests := []struct {
		name string
		blob []byte
	}{
		{"empty", nil},
		{"truncated header", []byte{magic0, magic1}},
		{"bad magic", badMagic},
		{"unknown version", badVersion},
		{"unknown codec", badCodec},
		{"garbage payload", []byte{magic0, magic1, Version, codecRaw, 0xc1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMap(tt.blob)
			var format *FormatError
			assert.ErrorAs(t, err, &format)
		})
	}
}

func TestEncodeRejectsNonMapTopLevel(t *testing.T) {
	_, err := Encode(42)
	assert.Error(t, err)
	_, err = Encode("options")
	assert.Error(t, err)
}
