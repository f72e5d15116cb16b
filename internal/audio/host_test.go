// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"sync"
	"time"
)

// fakeHost is an in-memory Host whose default device can be swapped by tests.
type fakeHost struct {
	mu        sync.Mutex
	devices   []Device
	defaults  map[Direction]*Device
	configs   map[string]*StreamConfig
	openErr   error
	queries   int
	refreshes int
	streams   []*fakeStream
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		defaults: make(map[Direction]*Device),
		configs:  make(map[string]*StreamConfig),
	}
}

func stereoConfig() *StreamConfig {
	return &StreamConfig{SampleRate: 48000, Channels: 2, Format: FormatFloat32}
}

// setDefault makes a device with the given name the default input and gives
// it a stereo configuration. An empty name removes the default.
func (h *fakeHost) setDefault(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if name == "" {
		delete(h.defaults, Input)
		return
	}
	dev := &Device{Name: name, MaxInputChannels: 2, DefaultSampleRate: 48000, IsDefaultInput: true}
	h.defaults[Input] = dev
	if _, ok := h.configs[name]; !ok {
		h.configs[name] = stereoConfig()
	}
}

func (h *fakeHost) setDefaultDevice(dev Device) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defaults[Input] = &dev
	if _, ok := h.configs[dev.Name]; !ok {
		h.configs[dev.Name] = stereoConfig()
	}
}

func (h *fakeHost) setConfig(name string, cfg *StreamConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.configs[name] = cfg
}

func (h *fakeHost) lastStream() *fakeStream {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.streams) == 0 {
		return nil
	}
	return h.streams[len(h.streams)-1]
}

func (h *fakeHost) Name() string { return "fake" }

func (h *fakeHost) Devices() ([]Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Device(nil), h.devices...), nil
}

func (h *fakeHost) DefaultDevice(dir Direction) (*Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queries++
	dev, ok := h.defaults[dir]
	if !ok {
		return nil, nil
	}
	d := *dev
	return &d, nil
}

func (h *fakeHost) DefaultConfig(dev Device, _ Direction) (*StreamConfig, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cfg, ok := h.configs[dev.Name]
	if !ok || cfg == nil {
		return nil, nil
	}
	c := *cfg
	return &c, nil
}

func (h *fakeHost) OpenStream(dev Device, cfg StreamConfig, dir Direction, onData DataFunc, onError ErrorFunc) (Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.openErr != nil {
		return nil, h.openErr
	}
	s := &fakeStream{device: dev, config: cfg, dir: dir, onData: onData, onError: onError}
	h.streams = append(h.streams, s)
	return s, nil
}

func (h *fakeHost) Refresh() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refreshes++
	return nil
}

func (h *fakeHost) Close() error { return nil }

type fakeStream struct {
	device  Device
	config  StreamConfig
	dir     Direction
	onData  DataFunc
	onError ErrorFunc

	mu     sync.Mutex
	closed bool
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("already closed")
	}
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
