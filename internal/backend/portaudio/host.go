// SPDX-License-Identifier: MIT
/*
Package portaudio implements audio.Host on top of PortAudio.

PortAudio reports no asynchronous stream errors, so each stream runs a
watchdog that reports audio.ErrDeviceUnavailable when the capture callback
stops arriving. PortAudio also snapshots the device list when it is
initialized; Refresh re-initializes it so hot-swapped devices become visible.
*/
package portaudio

import (
	"fmt"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"spexia/internal/audio"
)

// DefaultStallTimeout is how long a stream may go without a callback before
// its device is considered lost.
const DefaultStallTimeout = 2 * time.Second

// Options configures the PortAudio host.
type Options struct {
	StallTimeout time.Duration
	LowLatency   bool // Use the device's low input latency instead of the high one.
}

// Host is a PortAudio-backed audio.Host. Output (loopback) capture is not
// supported.
type Host struct {
	opts Options

	mu      sync.Mutex
	streams int
}

// New initializes PortAudio. Close must be called to terminate it.
func New(opts Options) (*Host, error) {
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = DefaultStallTimeout
	}
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &Host{opts: opts}, nil
}

func (h *Host) Name() string { return "portaudio" }

// Devices returns every device PortAudio enumerated at the last
// initialization.
func (h *Host) Devices() ([]audio.Device, error) {
	infos, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list PortAudio devices: %w", err)
	}
	in, out := defaults()

	devices := make([]audio.Device, 0, len(infos))
	for _, info := range infos {
		d := toDevice(info)
		d.IsDefaultInput = info == in
		d.IsDefaultOutput = info == out
		devices = append(devices, d)
	}
	return devices, nil
}

// DefaultDevice returns the default input device of the default host API.
func (h *Host) DefaultDevice(dir audio.Direction) (*audio.Device, error) {
	if dir != audio.Input {
		return nil, fmt.Errorf("portaudio %s capture: %w", dir, audio.ErrUnsupportedDirection)
	}
	in, _ := defaults()
	if in == nil {
		return nil, nil
	}
	d := toDevice(in)
	d.IsDefaultInput = true
	return &d, nil
}

// DefaultConfig returns the device's default sample rate with at most two
// channels, so multi-channel interfaces open their first stereo pair.
func (h *Host) DefaultConfig(dev audio.Device, dir audio.Direction) (*audio.StreamConfig, error) {
	if dir != audio.Input {
		return nil, fmt.Errorf("portaudio %s capture: %w", dir, audio.ErrUnsupportedDirection)
	}
	if dev.MaxInputChannels <= 0 || dev.DefaultSampleRate <= 0 {
		return nil, nil
	}
	return &audio.StreamConfig{
		SampleRate: dev.DefaultSampleRate,
		Channels:   min(dev.MaxInputChannels, audio.Channels),
		Format:     audio.FormatFloat32,
	}, nil
}

// OpenStream opens and starts a float32 input stream on dev.
func (h *Host) OpenStream(dev audio.Device, cfg audio.StreamConfig, dir audio.Direction, onData audio.DataFunc, onError audio.ErrorFunc) (audio.Stream, error) {
	if dir != audio.Input {
		return nil, fmt.Errorf("portaudio %s capture: %w", dir, audio.ErrUnsupportedDirection)
	}

	info, err := lookup(dev)
	if err != nil {
		return nil, err
	}

	latency := info.DefaultHighInputLatency
	if h.opts.LowLatency {
		latency = info.DefaultLowInputLatency
	}

	params := pa.StreamParameters{
		Input: pa.StreamDeviceParameters{
			Device:   info,
			Channels: cfg.Channels,
			Latency:  latency,
		},
		Output: pa.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.FramesPerBuffer,
	}
	if cfg.FramesPerBuffer <= 0 {
		params.FramesPerBuffer = pa.FramesPerBufferUnspecified
	}

	s := newStream(dev.Name, h.opts.StallTimeout, onData, onError)
	stream, err := pa.OpenStream(params, s.process)
	if err != nil {
		return nil, fmt.Errorf("failed to open PortAudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start PortAudio stream: %w", err)
	}
	s.stream = stream
	s.watch()

	h.mu.Lock()
	h.streams++
	h.mu.Unlock()
	s.onClose = func() {
		h.mu.Lock()
		h.streams--
		h.mu.Unlock()
	}
	return s, nil
}

// Refresh terminates and re-initializes PortAudio so the device list is
// enumerated again. It fails while streams are open.
func (h *Host) Refresh() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streams > 0 {
		return fmt.Errorf("cannot refresh PortAudio with %d open streams", h.streams)
	}
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	if err := pa.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Close terminates PortAudio.
func (h *Host) Close() error {
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

func defaults() (in, out *pa.DeviceInfo) {
	api, err := pa.DefaultHostApi()
	if err != nil || api == nil {
		return nil, nil
	}
	return api.DefaultInputDevice, api.DefaultOutputDevice
}

// lookup finds the PortAudio device matching dev's ID in the current list.
func lookup(dev audio.Device) (*pa.DeviceInfo, error) {
	infos, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list PortAudio devices: %w", err)
	}
	for _, info := range infos {
		if deviceID(info) == dev.ID {
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", audio.ErrDeviceUnavailable, dev.Name)
}

func toDevice(info *pa.DeviceInfo) audio.Device {
	return audio.Device{
		ID:                deviceID(info),
		Name:              info.Name,
		MaxInputChannels:  info.MaxInputChannels,
		MaxOutputChannels: info.MaxOutputChannels,
		DefaultSampleRate: info.DefaultSampleRate,
	}
}

// deviceID qualifies the name with the host API. PortAudio indices shift
// when devices come and go, so they cannot serve as identifiers.
func deviceID(info *pa.DeviceInfo) string {
	if info.HostApi == nil {
		return info.Name
	}
	return info.HostApi.Name + "/" + info.Name
}
