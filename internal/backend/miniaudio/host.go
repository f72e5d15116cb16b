// SPDX-License-Identifier: MIT
/*
Package miniaudio implements audio.Host on top of miniaudio through malgo.

Unlike PortAudio, miniaudio tells us when a device stops underneath a running
stream, and it supports loopback capture of the default output on WASAPI.
*/
package miniaudio

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"spexia/internal/audio"
	applog "spexia/internal/log"
)

// Host is a miniaudio-backed audio.Host.
type Host struct {
	ctx *malgo.AllocatedContext

	mu  sync.Mutex
	ids map[string]malgo.DeviceID
}

// New initializes a miniaudio context with the platform's default backends.
func New() (*Host, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		applog.Debugf("miniaudio: %s", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio: %w", err)
	}
	return &Host{ctx: ctx, ids: make(map[string]malgo.DeviceID)}, nil
}

func (h *Host) Name() string { return "miniaudio" }

// Devices lists capture and playback devices. A device that appears in both
// lists is reported once.
func (h *Host) Devices() ([]audio.Device, error) {
	captures, err := h.enumerate(malgo.Capture)
	if err != nil {
		return nil, err
	}
	playbacks, err := h.enumerate(malgo.Playback)
	if err != nil {
		return nil, err
	}

	devices := make([]audio.Device, 0, len(captures)+len(playbacks))
	index := make(map[string]int)
	for _, info := range captures {
		d := h.toDevice(info, audio.Input)
		index[d.ID] = len(devices)
		devices = append(devices, d)
	}
	for _, info := range playbacks {
		d := h.toDevice(info, audio.Output)
		if i, ok := index[d.ID]; ok {
			devices[i].MaxOutputChannels = d.MaxOutputChannels
			devices[i].IsDefaultOutput = d.IsDefaultOutput
			continue
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// DefaultDevice returns the default capture device, or the default playback
// device for loopback capture.
func (h *Host) DefaultDevice(dir audio.Direction) (*audio.Device, error) {
	infos, err := h.enumerate(deviceType(dir))
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.IsDefault != 0 {
			d := h.toDevice(info, dir)
			return &d, nil
		}
	}
	return nil, nil
}

// DefaultConfig returns the device's first native format. Loopback always
// captures in the playback device's format.
func (h *Host) DefaultConfig(dev audio.Device, dir audio.Direction) (*audio.StreamConfig, error) {
	id, ok := h.lookup(dev)
	if !ok {
		return nil, nil
	}
	info, err := h.ctx.DeviceInfo(deviceType(dir), id, malgo.Shared)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", dev.Name, err)
	}
	return nativeConfig(info), nil
}

// OpenStream initializes and starts a float32 capture device.
func (h *Host) OpenStream(dev audio.Device, cfg audio.StreamConfig, dir audio.Direction, onData audio.DataFunc, onError audio.ErrorFunc) (audio.Stream, error) {
	id, ok := h.lookup(dev)
	if !ok {
		return nil, fmt.Errorf("%w: %q", audio.ErrDeviceUnavailable, dev.Name)
	}

	kind := malgo.Capture
	if dir == audio.Output {
		kind = malgo.Loopback
	}

	config := malgo.DefaultDeviceConfig(kind)
	config.Capture.Format = malgo.FormatF32
	config.Capture.Channels = uint32(cfg.Channels)
	config.Capture.DeviceID = id.Pointer()
	config.SampleRate = uint32(cfg.SampleRate)
	if cfg.FramesPerBuffer > 0 {
		config.PeriodSizeInFrames = uint32(cfg.FramesPerBuffer)
	}

	s := &stream{name: dev.Name, onData: onData, onError: onError}
	device, err := malgo.InitDevice(h.ctx.Context, config, malgo.DeviceCallbacks{
		Data: s.process,
		Stop: s.stopped,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %q: %w", dev.Name, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("failed to start %q: %w", dev.Name, err)
	}
	s.device = device
	return s, nil
}

// Close releases the miniaudio context.
func (h *Host) Close() error {
	if err := h.ctx.Uninit(); err != nil {
		return fmt.Errorf("failed to uninitialize miniaudio: %w", err)
	}
	h.ctx.Free()
	return nil
}

func (h *Host) enumerate(kind malgo.DeviceType) ([]malgo.DeviceInfo, error) {
	infos, err := h.ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list miniaudio devices: %w", err)
	}
	return infos, nil
}

// toDevice converts info and remembers its ID for later lookups.
func (h *Host) toDevice(info malgo.DeviceInfo, dir audio.Direction) audio.Device {
	id := encodeID(info.ID[:])

	h.mu.Lock()
	h.ids[id] = info.ID
	h.mu.Unlock()

	d := audio.Device{ID: id, Name: info.Name()}
	if cfg := nativeConfig(info); cfg != nil {
		d.DefaultSampleRate = cfg.SampleRate
		if dir == audio.Input {
			d.MaxInputChannels = cfg.Channels
		} else {
			d.MaxOutputChannels = cfg.Channels
		}
	}
	if dir == audio.Input {
		d.IsDefaultInput = info.IsDefault != 0
	} else {
		d.IsDefaultOutput = info.IsDefault != 0
	}
	return d
}

func (h *Host) lookup(dev audio.Device) (malgo.DeviceID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.ids[dev.ID]
	return id, ok
}

func deviceType(dir audio.Direction) malgo.DeviceType {
	if dir == audio.Output {
		return malgo.Playback
	}
	return malgo.Capture
}

// nativeConfig picks the first native format. miniaudio uses zero for "any",
// which maps to stereo at 48 kHz.
func nativeConfig(info malgo.DeviceInfo) *audio.StreamConfig {
	if info.FormatCount == 0 {
		return nil
	}
	f := info.Formats[0]
	cfg := &audio.StreamConfig{
		SampleRate: float64(f.SampleRate),
		Channels:   int(f.Channels),
		Format:     audio.FormatFloat32,
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels == 0 {
		cfg.Channels = audio.Channels
	}
	return cfg
}

// encodeID hex-encodes a backend device ID without its zero padding.
func encodeID(raw []byte) string {
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	return hex.EncodeToString(raw[:end])
}
