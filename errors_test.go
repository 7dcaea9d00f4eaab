// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package colext

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/colext/colext/abi"
)

func TestErrorIs(t *testing.T) {
	err := errorf(KindCompute, "division by zero")

	assert.True(t, errors.Is(err, ErrPlugin), "zero-kind sentinel matches any kind")
	assert.True(t, errors.Is(err, &Error{Kind: KindCompute}))
	assert.False(t, errors.Is(err, &Error{Kind: KindSchema}))

	wrapped := fmt.Errorf("invoking: %w", err)
	assert.True(t, errors.Is(wrapped, ErrPlugin))
	assert.True(t, errors.Is(wrapped, &Error{Kind: KindCompute}))
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindSchema, "SchemaError"},
		{KindOptions, "OptionsError"},
		{KindArity, "ArityError"},
		{KindPluginFault, "InternalPluginFault"},
		{KindCompute, "ComputationError"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestErrorFromCode(t *testing.T) {
	tests := []struct {
		code abi.Code
		want Kind
	}{
		{abi.CodeUnsupportedType, KindSchema},
		{abi.CodeMissingOption, KindOptions},
		{abi.CodeArity, KindArity},
		{abi.CodePluginFault, KindPluginFault},
		{abi.CodeCompute, KindCompute},
	}
	for _, tt := range tests {
		err := errorFromCode(tt.code, "msg")
		assert.Equal(t, tt.want, err.Kind, "code %s", tt.code)
		assert.Contains(t, err.Error(), "msg")
	}
}

func TestResolverComputeBecomesSchema(t *testing.T) {
	// A resolver reporting a compute condition is a schema problem from
	// the caller's point of view: no data was ever involved.
	err := errorFromResolverCode(abi.CodeCompute, "bad input type")
	assert.Equal(t, KindSchema, err.Kind)

	err = errorFromResolverCode(abi.CodeMissingOption, "no suffix")
	assert.Equal(t, KindOptions, err.Kind)
}
