// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"sync"

	applog "spexia/internal/log"
)

// Channels is the only channel count a stream may be opened with.
const Channels = 2

// Sink receives the interleaved samples delivered by the capture callback.
// Write runs on the audio thread and must not retain samples after it returns.
type Sink interface {
	Write(samples []float32)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(samples []float32)

func (f SinkFunc) Write(samples []float32) { f(samples) }

// lifecycle is the state shared between one stream's error callback and the
// main loop. Each opened stream gets its own, so callbacks from a torn-down
// stream cannot mark its replacement as lost.
type lifecycle struct {
	mu   sync.Mutex
	lost bool
}

func (l *lifecycle) markLost() {
	l.mu.Lock()
	l.lost = true
	l.mu.Unlock()
}

func (l *lifecycle) deviceLost() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lost
}

// StreamerOptions overrides parts of the negotiated stream configuration.
type StreamerOptions struct {
	FramesPerBuffer int // 0 keeps the device default.
}

// Streamer owns the single live capture stream and routes its buffers into
// a Sink.
type Streamer struct {
	sink Sink
	opts StreamerOptions

	mu     sync.Mutex
	stream Stream
	device Device
	config StreamConfig
	state  *lifecycle
}

// Start resolves a device through the selector and opens a capture stream on
// it. A missing device, a missing configuration or a channel count other than
// two is returned as an error.
func Start(sel *Selector, sink Sink, opts StreamerOptions) (*Streamer, error) {
	s := &Streamer{
		sink:  sink,
		opts:  opts,
		state: &lifecycle{},
	}
	if err := s.start(sel); err != nil {
		return nil, err
	}
	return s, nil
}

// Rebuild closes the current stream and starts a new one on the device the
// selector now resolves. The sink and anything it has buffered are kept. On
// failure the streamer is left without a stream and reports the device as
// lost so the caller retries.
func (s *Streamer) Rebuild(sel *Selector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			applog.Warnf("Streamer: failed to close stream on %q: %v", s.device.Name, err)
		}
		s.stream = nil
	}

	if r, ok := sel.Host().(Refresher); ok {
		if err := r.Refresh(); err != nil {
			s.state = lostState()
			return fmt.Errorf("failed to refresh %s devices: %w", sel.Host().Name(), err)
		}
	}

	if err := s.openLocked(sel); err != nil {
		s.state = lostState()
		return err
	}
	return nil
}

func (s *Streamer) start(sel *Selector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(sel)
}

// openLocked opens a stream and installs a fresh lifecycle state for it.
// s.mu must be held.
func (s *Streamer) openLocked(sel *Selector) error {
	dev, cfg := sel.Resolve()
	if dev == nil {
		return ErrNoDevice
	}
	if cfg == nil {
		return fmt.Errorf("%w for %q", ErrNoConfig, dev.Name)
	}
	if cfg.Channels != Channels {
		return fmt.Errorf("%w: %q has %d", ErrChannelCount, dev.Name, cfg.Channels)
	}

	config := *cfg
	if s.opts.FramesPerBuffer > 0 {
		config.FramesPerBuffer = s.opts.FramesPerBuffer
	}

	state := &lifecycle{}
	name := dev.Name
	onError := func(err error) {
		applog.Errorf("Streamer: stream error on %q: %v", name, err)
		if errors.Is(err, ErrDeviceUnavailable) {
			state.markLost()
		}
	}

	stream, err := sel.Host().OpenStream(*dev, config, sel.Direction(), s.sink.Write, onError)
	if err != nil {
		return fmt.Errorf("failed to open stream on %q: %w", dev.Name, err)
	}

	s.stream = stream
	s.device = *dev
	s.config = config
	s.state = state

	applog.Infof("Streamer: capturing %s from %q (%s)", sel.Direction(), dev.Name, config)
	return nil
}

// DeviceLost reports whether the current stream's device has gone away. The
// flag is only cleared by a successful Rebuild.
func (s *Streamer) DeviceLost() bool {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	return state.deviceLost()
}

// Device returns the device the current stream was opened on.
func (s *Streamer) Device() Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Config returns the configuration the current stream was opened with.
func (s *Streamer) Config() StreamConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Close stops the stream. No callbacks run after Close returns.
func (s *Streamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	if err != nil {
		return fmt.Errorf("failed to close stream on %q: %w", s.device.Name, err)
	}
	return nil
}

func lostState() *lifecycle {
	return &lifecycle{lost: true}
}
