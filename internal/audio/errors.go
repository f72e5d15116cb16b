// SPDX-License-Identifier: MIT
package audio

import "errors"

// Configuration errors, fatal when the first stream is started.
var (
	ErrNoDevice     = errors.New("no audio device found")
	ErrNoConfig     = errors.New("no usable stream configuration")
	ErrChannelCount = errors.New("stream must have exactly 2 channels")
)

// ErrDeviceUnavailable is reported through the stream error callback when
// the device disappears.
var ErrDeviceUnavailable = errors.New("audio device is no longer available")

// ErrUnsupportedDirection is returned by hosts that cannot capture the
// requested direction.
var ErrUnsupportedDirection = errors.New("direction not supported by this backend")
