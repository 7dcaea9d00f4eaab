// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

// Package kwargs serializes keyword arguments into the self-describing,
// versioned binary blob that crosses the plugin boundary.
//
// A blob is a four-byte header followed by a MessagePack payload:
//
//	[0x4B 0x57] [version] [codec] payload...
//
// codec 0 is a raw payload; codec 1 is a zstd frame, used when it makes
// payloads of at least compressThreshold bytes smaller. Encoding is
// deterministic: struct fields serialize in declaration order and map keys
// are sorted, so identical source options always produce byte-identical
// blobs regardless of Go map iteration order.
//
// Option structs declare their wire shape with `kwargs` struct tags:
//
//	type Opts struct {
//	    Capitalize bool   `kwargs:"capitalize,required"`
//	    Suffix     string `kwargs:"suffix"`
//	}
//
// Unknown fields in a blob are ignored on decode (forward compatibility);
// a missing required field is a hard failure.
package kwargs

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const (
	magic0 = 0x4B // 'K'
	magic1 = 0x57 // 'W'

	// Version is the current blob format version.
	Version = 1

	codecRaw  = 0
	codecZstd = 1

	headerLen = 4

	// compressThreshold is the minimum payload size considered for a zstd
	// frame. Below it the frame overhead dominates.
	compressThreshold = 512
)

// Encoder concurrency is pinned to one so EncodeAll output is a pure
// function of the payload bytes.
var (
	zstdEncoder, _ = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// FormatError reports a blob whose header or payload cannot be understood.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "malformed kwargs blob: " + e.Reason
}

// MissingFieldError reports a required option absent from the blob.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required option %q", e.Field)
}

// tagInfo holds parsed information from a `kwargs` struct tag.
type tagInfo struct {
	Name     string
	Required bool
	Skip     bool
}

// parseTag parses a kwargs struct tag like "name" or "name,required".
func parseTag(tag string) tagInfo {
	if tag == "" || tag == "-" {
		return tagInfo{Skip: true}
	}
	parts := strings.Split(tag, ",")
	info := tagInfo{Name: parts[0]}
	for _, part := range parts[1:] {
		if part == "required" {
			info.Required = true
		}
	}
	return info
}

// seal prepends the blob header, compressing the payload when that pays off.
func seal(payload []byte) []byte {
	codec := byte(codecRaw)
	body := payload
	if len(payload) >= compressThreshold {
		compressed := zstdEncoder.EncodeAll(payload, make([]byte, 0, len(payload)/2))
		if len(compressed) < len(payload) {
			codec = codecZstd
			body = compressed
		}
	}
	out := make([]byte, 0, headerLen+len(body))
	out = append(out, magic0, magic1, Version, codec)
	return append(out, body...)
}

// payload validates the header and returns the decompressed payload.
func payload(blob []byte) ([]byte, error) {
	if len(blob) < headerLen {
		return nil, &FormatError{Reason: "blob shorter than header"}
	}
	if blob[0] != magic0 || blob[1] != magic1 {
		return nil, &FormatError{Reason: "bad magic"}
	}
	if blob[2] != Version {
		return nil, &FormatError{Reason: fmt.Sprintf("unsupported version %d", blob[2])}
	}
	body := blob[headerLen:]
	switch blob[3] {
	case codecRaw:
		return body, nil
	case codecZstd:
		out, err := zstdDecoder.DecodeAll(body, nil)
		if err != nil {
			return nil, &FormatError{Reason: "zstd payload: " + err.Error()}
		}
		return out, nil
	default:
		return nil, &FormatError{Reason: fmt.Sprintf("unknown codec %d", blob[3])}
	}
}
