// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"strings"
)

// Direction selects which default endpoint the host resolves. Output means
// capturing what the output device plays (loopback).
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// ParseDirection converts "input" or "output" (case-insensitive) to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "input", "in", "":
		return Input, nil
	case "output", "out", "loopback":
		return Output, nil
	default:
		return Input, fmt.Errorf("unknown audio direction %q", s)
	}
}

// SampleFormat is the sample encoding negotiated with the device.
type SampleFormat int

const (
	FormatFloat32 SampleFormat = iota
	FormatInt16
	FormatInt32
)

func (f SampleFormat) String() string {
	switch f {
	case FormatFloat32:
		return "f32"
	case FormatInt16:
		return "s16"
	case FormatInt32:
		return "s32"
	default:
		return "unknown"
	}
}

// Device represents a capturable audio endpoint as reported by a host backend.
type Device struct {
	ID                string // Stable backend identifier, empty when the backend has none.
	Name              string // Display name.
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefaultInput    bool
	IsDefaultOutput   bool
}

// Kind describes the device as "Input", "Output", "Input/Output" or "".
func (d Device) Kind() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return ""
	}
}

// StreamConfig is the configuration a stream is opened with.
type StreamConfig struct {
	SampleRate      float64
	Channels        int
	Format          SampleFormat
	FramesPerBuffer int // 0 lets the backend choose.
}

func (c StreamConfig) String() string {
	return fmt.Sprintf("%.0f Hz, %d ch, %s", c.SampleRate, c.Channels, c.Format)
}

// DataFunc receives interleaved samples from the capture callback. The slice
// is only valid for the duration of the call.
type DataFunc func(interleaved []float32)

// ErrorFunc receives asynchronous stream errors. Device loss is reported as an
// error wrapping ErrDeviceUnavailable.
type ErrorFunc func(err error)

// Stream is a running capture stream. Close halts further callbacks and
// returns once in-flight callbacks have completed.
type Stream interface {
	Close() error
}

// Host is the audio subsystem a backend exposes.
type Host interface {
	// Name identifies the backend in logs.
	Name() string

	// Devices enumerates every endpoint the backend knows about.
	Devices() ([]Device, error)

	// DefaultDevice returns the current default endpoint for dir, or nil
	// with a nil error when there is none.
	DefaultDevice(dir Direction) (*Device, error)

	// DefaultConfig returns the device's default stream configuration for
	// dir, or nil with a nil error when none can be negotiated.
	DefaultConfig(dev Device, dir Direction) (*StreamConfig, error)

	// OpenStream builds and starts a capture stream.
	OpenStream(dev Device, cfg StreamConfig, dir Direction, onData DataFunc, onError ErrorFunc) (Stream, error)

	// Close releases the backend.
	Close() error
}

// Refresher is implemented by hosts that cache the device list and need an
// explicit re-enumeration to see hot-swapped devices. It is only called while
// no stream is open.
type Refresher interface {
	Refresh() error
}
