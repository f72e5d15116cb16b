// SPDX-License-Identifier: MIT
package audio

import (
	"testing"
	"time"
)

func newTestSelector(t *testing.T, host *fakeHost, mode IdentityMode) (*Selector, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	sel := NewSelector(host, SelectorOptions{
		Direction: Input,
		Identity:  mode,
		Now:       clock.Now,
	})
	return sel, clock
}

func TestResolve(t *testing.T) {
	t.Parallel()
	host := newFakeHost()
	sel, _ := newTestSelector(t, host, IdentityName)

	if dev, cfg := sel.Resolve(); dev != nil || cfg != nil {
		t.Errorf("Resolve() with no device = (%v, %v), want (nil, nil)", dev, cfg)
	}

	host.setDefault("Mic")
	host.setConfig("Mic", nil)
	dev, cfg := sel.Resolve()
	if dev == nil || dev.Name != "Mic" || cfg != nil {
		t.Errorf("Resolve() without config = (%v, %v), want (Mic, nil)", dev, cfg)
	}

	host.setConfig("Mic", stereoConfig())
	if dev, cfg = sel.Resolve(); dev == nil || cfg == nil || cfg.Channels != 2 {
		t.Errorf("Resolve() = (%v, %v), want Mic with stereo config", dev, cfg)
	}
}

func TestPollChangedForced(t *testing.T) {
	t.Parallel()
	host := newFakeHost()
	host.setDefault("A")
	sel, _ := newTestSelector(t, host, IdentityName)

	if sel.PollChanged(true) {
		t.Error("PollChanged(true) with unchanged device = true")
	}

	host.setDefault("B")
	if !sel.PollChanged(true) {
		t.Error("PollChanged(true) after A -> B = false")
	}
	if sel.Current() != "B" {
		t.Errorf("Current() = %q, want B", sel.Current())
	}
	if sel.PollChanged(true) {
		t.Error("second PollChanged(true) on B = true")
	}
}

func TestPollChangedTransitions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		from, to string
		want     bool
	}{
		{"None to None", "", "", false},
		{"None to Some", "", "A", true},
		{"Some to None", "A", "", true},
		{"Some to same", "A", "A", false},
		{"Some to other", "A", "B", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			host := newFakeHost()
			host.setDefault(tt.from)
			sel, _ := newTestSelector(t, host, IdentityName)

			host.setDefault(tt.to)
			if got := sel.PollChanged(true); got != tt.want {
				t.Errorf("PollChanged(true) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPollChangedRateLimit(t *testing.T) {
	t.Parallel()
	host := newFakeHost()
	host.setDefault("A")
	sel, clock := newTestSelector(t, host, IdentityName)
	host.setDefault("B")

	clock.Advance(500 * time.Millisecond)
	if sel.PollChanged(false) {
		t.Error("PollChanged(false) inside the interval = true")
	}
	if sel.Checks() != 0 {
		t.Errorf("Checks() = %d, want 0 inside the interval", sel.Checks())
	}

	clock.Advance(500 * time.Millisecond)
	if !sel.PollChanged(false) {
		t.Error("PollChanged(false) after the interval = false")
	}

	clock.Advance(999 * time.Millisecond)
	sel.PollChanged(false)
	if sel.Checks() != 1 {
		t.Errorf("Checks() = %d, want 1 for two calls within a second", sel.Checks())
	}
}

func TestPollChangedClockSkew(t *testing.T) {
	t.Parallel()
	host := newFakeHost()
	host.setDefault("A")
	sel, clock := newTestSelector(t, host, IdentityName)
	host.setDefault("B")

	clock.Advance(-time.Minute)
	if sel.PollChanged(false) {
		t.Error("PollChanged(false) with clock skew = true")
	}
	if sel.Checks() != 0 {
		t.Errorf("Checks() = %d, want 0 after skew", sel.Checks())
	}

	// The timestamp was reset to the skewed time, so a regular interval
	// from there is enough for the next check.
	clock.Advance(time.Second)
	if !sel.PollChanged(false) {
		t.Error("PollChanged after recovering from skew = false")
	}
}

func TestPollChangedForcedIgnoresClockSkew(t *testing.T) {
	t.Parallel()
	host := newFakeHost()
	host.setDefault("A")
	sel, clock := newTestSelector(t, host, IdentityName)
	host.setDefault("B")

	clock.Advance(-time.Minute)
	if !sel.PollChanged(true) {
		t.Error("PollChanged(true) with clock skew = false, want the change to be reported")
	}
	if sel.Checks() != 1 {
		t.Errorf("Checks() = %d, want 1", sel.Checks())
	}
	if sel.Current() != "B" {
		t.Errorf("Current() = %q, want %q", sel.Current(), "B")
	}
}

func TestIdentityModes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		mode IdentityMode
		want bool
	}{
		{IdentityName, false},
		{IdentityID, true},
	}

	for _, tt := range tests {
		host := newFakeHost()
		host.setDefaultDevice(Device{ID: "usb-1", Name: "USB Audio", MaxInputChannels: 2})
		sel, _ := newTestSelector(t, host, tt.mode)

		host.setDefaultDevice(Device{ID: "usb-2", Name: "USB Audio", MaxInputChannels: 2})
		if got := sel.PollChanged(true); got != tt.want {
			t.Errorf("mode %d: PollChanged(true) for same name, new ID = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestIdentityIDFallsBackToName(t *testing.T) {
	t.Parallel()
	host := newFakeHost()
	host.setDefault("A")
	sel, _ := newTestSelector(t, host, IdentityID)

	if sel.Current() != "A" {
		t.Errorf("Current() = %q, want name fallback A", sel.Current())
	}
	host.setDefault("B")
	if !sel.PollChanged(true) {
		t.Error("PollChanged(true) A -> B by name fallback = false")
	}
}

func TestParseIdentityMode(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]IdentityMode{"": IdentityName, "name": IdentityName, "id": IdentityID} {
		got, err := ParseIdentityMode(in)
		if err != nil || got != want {
			t.Errorf("ParseIdentityMode(%q) = (%d, %v), want %d", in, got, err, want)
		}
	}
	if _, err := ParseIdentityMode("serial"); err == nil {
		t.Error("ParseIdentityMode(serial) succeeded")
	}
}
