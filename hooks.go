// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package colext

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// InvokeHook provides observability callpoints around plugin invocation.
// Implementations must be safe for concurrent use: the host may invoke the
// same expression from many worker goroutines at once.
type InvokeHook interface {
	OnInvokeStart(ctx context.Context, info InvokeInfo) (context.Context, HookToken)
	OnInvokeEnd(ctx context.Context, token HookToken, info InvokeInfo, stats *CallStatistics, err error)
}

// HookToken is an opaque value returned by OnInvokeStart and passed back
// to OnInvokeEnd. Only meaningful to the InvokeHook that created it.
type HookToken interface{}

// InvokeInfo carries invocation metadata passed to hooks.
type InvokeInfo struct {
	Location     string // plugin library location
	Symbol       string // computation symbol name
	InvocationID string // unique identifier for this invocation
}

// CallStatistics holds per-invocation I/O counters.
type CallStatistics struct {
	InputArrays int64
	InputRows   int64
	InputBytes  int64
	OutputRows  int64
	OutputBytes int64
}

// RecordInput records one input array.
func (s *CallStatistics) RecordInput(numRows, bufferBytes int64) {
	s.InputArrays++
	s.InputRows += numRows
	s.InputBytes += bufferBytes
}

// RecordOutput records the result array.
func (s *CallStatistics) RecordOutput(numRows, bufferBytes int64) {
	s.OutputRows += numRows
	s.OutputBytes += bufferBytes
}

// arrayBufferSize returns the total buffer size in bytes of one array,
// including child arrays.
func arrayBufferSize(arr arrow.Array) int64 {
	return dataBufferSize(arr.Data())
}

func dataBufferSize(data arrow.ArrayData) int64 {
	var total int64
	for _, buf := range data.Buffers() {
		if buf != nil {
			total += int64(buf.Len())
		}
	}
	for _, child := range data.Children() {
		total += dataBufferSize(child)
	}
	return total
}
