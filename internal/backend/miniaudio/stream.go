// SPDX-License-Identifier: MIT
package miniaudio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"spexia/internal/audio"
)

// stream is a running miniaudio capture device.
type stream struct {
	name    string
	onData  audio.DataFunc
	onError audio.ErrorFunc

	device  *malgo.Device
	closing atomic.Bool
	samples []float32
}

// process is the miniaudio data callback. Capture data arrives as
// little-endian float32.
func (s *stream) process(_, in []byte, _ uint32) {
	s.samples = decodeFloat32(s.samples, in)
	s.onData(s.samples)
}

// stopped runs when the device stops. Unless we asked for it, the device went
// away.
func (s *stream) stopped() {
	if s.closing.Load() {
		return
	}
	s.onError(fmt.Errorf("%q stopped: %w", s.name, audio.ErrDeviceUnavailable))
}

// Close stops and releases the device.
func (s *stream) Close() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	err := s.device.Stop()
	s.device.Uninit()
	if err != nil {
		return fmt.Errorf("failed to stop %q: %w", s.name, err)
	}
	return nil
}

// decodeFloat32 converts little-endian float32 bytes into dst, growing it
// only when the callback size increases.
func decodeFloat32(dst []float32, in []byte) []float32 {
	n := len(in) / 4
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(in[4*i:]))
	}
	return dst
}
