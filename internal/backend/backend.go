// SPDX-License-Identifier: MIT
// Package backend opens the audio host selected by configuration.
package backend

import (
	"fmt"
	"time"

	"spexia/internal/audio"
	"spexia/internal/backend/miniaudio"
	"spexia/internal/backend/portaudio"
)

// Names of the supported backends.
const (
	PortAudio = "portaudio"
	Malgo     = "malgo"
)

// Options carries the settings a backend may use.
type Options struct {
	StallTimeout time.Duration
	LowLatency   bool
}

// Open initializes the named backend. The caller must Close the host.
func Open(name string, opts Options) (audio.Host, error) {
	switch name {
	case Malgo, "miniaudio", "":
		return miniaudio.New()
	case PortAudio:
		return portaudio.New(portaudio.Options{
			StallTimeout: opts.StallTimeout,
			LowLatency:   opts.LowLatency,
		})
	default:
		return nil, fmt.Errorf("unknown audio backend %q", name)
	}
}
