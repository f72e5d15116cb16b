// SPDX-License-Identifier: MIT
package miniaudio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestDecodeFloat32(t *testing.T) {
	t.Parallel()
	want := []float32{0, 1, -1, 0.5, -0.25}
	raw := make([]byte, 4*len(want)+3) // Trailing partial sample is ignored.
	for i, v := range want {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}

	got := decodeFloat32(nil, raw)
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}

	// A smaller callback reuses the buffer.
	again := decodeFloat32(got, raw[:8])
	if len(again) != 2 || &again[0] != &got[0] {
		t.Error("buffer not reused for a smaller callback")
	}
}

func TestEncodeID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  []byte
		want string
	}{
		{[]byte{0xde, 0xad, 0, 0}, "dead"},
		{[]byte{0, 0, 0}, ""},
		{[]byte{1, 0, 2, 0}, "010002"},
	}
	for _, tt := range tests {
		if got := encodeID(tt.raw); got != tt.want {
			t.Errorf("encodeID(%v) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
