// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseArrayAtMostOnce(t *testing.T) {
	releases := 0
	arr := &Array{
		Length:  3,
		Buffers: [][]byte{nil, {1, 2, 3}},
	}
	arr.Release = func(*Array) { releases++ }

	require.False(t, arr.Released())
	ReleaseArray(arr)
	assert.Equal(t, 1, releases)
	assert.True(t, arr.Released())

	// Second release is a no-op, not a double-free.
	ReleaseArray(arr)
	assert.Equal(t, 1, releases)
}

func TestReleaseArrayReentrant(t *testing.T) {
	// A release callback that itself triggers a release must not recurse.
	releases := 0
	arr := &Array{}
	arr.Release = func(a *Array) {
		releases++
		ReleaseArray(a)
	}
	ReleaseArray(arr)
	assert.Equal(t, 1, releases)
}

func TestMoveArray(t *testing.T) {
	released := false
	src := &Array{
		Length:    4,
		NullCount: 1,
		Buffers:   [][]byte{{0b1011}, {1, 2, 3, 4}},
		Release:   func(*Array) { released = true },
	}

	var dst Array
	MoveArray(src, &dst)

	assert.True(t, src.Released(), "source must be marked released after move")
	assert.False(t, released, "move must not invoke the release callback")
	assert.EqualValues(t, 4, dst.Length)
	assert.EqualValues(t, 1, dst.NullCount)
	require.NotNil(t, dst.Release)

	ReleaseArray(&dst)
	assert.True(t, released, "ownership travels with the moved descriptor")
}

func TestTypeEqual(t *testing.T) {
	list := func(child string) *Schema {
		return &Schema{Format: "+l", Children: []*Schema{{Format: child, Name: "item"}}}
	}

	tests := []struct {
		name string
		a, b *Schema
		want bool
	}{
		{"same primitive", &Schema{Format: "l"}, &Schema{Format: "l"}, true},
		{"different primitive", &Schema{Format: "l"}, &Schema{Format: "g"}, false},
		{"name ignored", &Schema{Format: "u", Name: "a"}, &Schema{Format: "u", Name: "b"}, true},
		{"nested equal", list("l"), list("l"), true},
		{"nested differs", list("l"), list("g"), false},
		{"child count differs", list("l"), &Schema{Format: "+l"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeEqual(tt.a, tt.b))
		})
	}
}

func TestFieldSymbol(t *testing.T) {
	assert.Equal(t, "PigLatinField", FieldSymbol("PigLatin"))
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "ok", CodeOK.String())
	assert.NotEqual(t, CodeCompute.String(), CodePluginFault.String())
}
