// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"testing"
	"time"
)

func newSupervised(t *testing.T, device string) (*fakeHost, *fakeClock, *Streamer, *Supervisor) {
	t.Helper()
	host := newFakeHost()
	host.setDefault(device)
	sel, clock := newTestSelector(t, host, IdentityName)
	st, err := Start(sel, SinkFunc(func([]float32) {}), StreamerOptions{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return host, clock, st, NewSupervisor(sel, st, time.Second)
}

func TestSupervisorIdle(t *testing.T) {
	t.Parallel()
	host, clock, _, sup := newSupervised(t, "A")

	for range 5 {
		clock.Advance(300 * time.Millisecond)
		if rebuilt, err := sup.Step(); rebuilt || err != nil {
			t.Fatalf("Step() = (%v, %v) with nothing changed", rebuilt, err)
		}
	}
	if len(host.streams) != 1 {
		t.Errorf("%d streams opened, want 1", len(host.streams))
	}
}

func TestSupervisorDeviceChange(t *testing.T) {
	t.Parallel()
	host, clock, st, sup := newSupervised(t, "A")

	host.setDefault("B")
	if rebuilt, _ := sup.Step(); rebuilt {
		t.Fatal("rebuilt before the poll interval elapsed")
	}

	clock.Advance(time.Second)
	rebuilt, err := sup.Step()
	if !rebuilt || err != nil {
		t.Fatalf("Step() = (%v, %v), want rebuild", rebuilt, err)
	}
	if st.Device().Name != "B" {
		t.Errorf("Device() = %q, want B", st.Device().Name)
	}
}

func TestSupervisorDeviceLostForcesPoll(t *testing.T) {
	t.Parallel()
	host, _, st, sup := newSupervised(t, "A")

	host.setDefault("B")
	host.lastStream().onError(ErrDeviceUnavailable)

	// No time has passed; the lost flag forces the poll.
	rebuilt, err := sup.Step()
	if !rebuilt || err != nil {
		t.Fatalf("Step() = (%v, %v), want rebuild", rebuilt, err)
	}
	if st.DeviceLost() {
		t.Error("DeviceLost() still set after rebuild")
	}
}

func TestSupervisorDeviceLostSameIdentity(t *testing.T) {
	t.Parallel()
	host, _, st, sup := newSupervised(t, "A")

	host.lastStream().onError(ErrDeviceUnavailable)
	if rebuilt, err := sup.Step(); !rebuilt || err != nil {
		t.Fatalf("Step() = (%v, %v), want rebuild on the same device", rebuilt, err)
	}
	if st.DeviceLost() || len(host.streams) != 2 {
		t.Errorf("lost=%v streams=%d after rebuild", st.DeviceLost(), len(host.streams))
	}
}

func TestSupervisorRetriesFailedRebuild(t *testing.T) {
	t.Parallel()
	host, clock, st, sup := newSupervised(t, "A")

	host.setDefault("")
	host.lastStream().onError(ErrDeviceUnavailable)

	if _, err := sup.Step(); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("Step() error = %v, want ErrNoDevice", err)
	}
	if !st.DeviceLost() {
		t.Fatal("DeviceLost() = false after failed rebuild")
	}

	// Within the retry delay nothing is attempted.
	clock.Advance(500 * time.Millisecond)
	if rebuilt, err := sup.Step(); rebuilt || err != nil {
		t.Fatalf("Step() inside retry delay = (%v, %v)", rebuilt, err)
	}

	host.setDefault("C")
	clock.Advance(500 * time.Millisecond)
	rebuilt, err := sup.Step()
	if !rebuilt || err != nil {
		t.Fatalf("Step() after retry delay = (%v, %v), want rebuild", rebuilt, err)
	}
	if st.Device().Name != "C" || st.DeviceLost() {
		t.Errorf("device=%q lost=%v after recovery", st.Device().Name, st.DeviceLost())
	}
	if sup.Rebuilds() != 1 {
		t.Errorf("Rebuilds() = %d, want 1", sup.Rebuilds())
	}
}

// staleHost serves the default device it saw at the last Refresh, the way
// PortAudio serves the device list from its last initialization.
type staleHost struct {
	*fakeHost
	snapshot *Device
}

func newStaleHost(inner *fakeHost) *staleHost {
	h := &staleHost{fakeHost: inner}
	h.snapshot, _ = inner.DefaultDevice(Input)
	return h
}

func (h *staleHost) DefaultDevice(Direction) (*Device, error) {
	if h.snapshot == nil {
		return nil, nil
	}
	d := *h.snapshot
	return &d, nil
}

func (h *staleHost) Refresh() error {
	if err := h.fakeHost.Refresh(); err != nil {
		return err
	}
	h.snapshot, _ = h.fakeHost.DefaultDevice(Input)
	return nil
}

func TestSupervisorStaleHostSwitchesOnDeviceLoss(t *testing.T) {
	t.Parallel()
	inner := newFakeHost()
	inner.setDefault("A")
	host := newStaleHost(inner)
	clock := newFakeClock()
	sel := NewSelector(host, SelectorOptions{Direction: Input, Now: clock.Now})
	st, err := Start(sel, SinkFunc(func([]float32) {}), StreamerOptions{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	sup := NewSupervisor(sel, st, time.Second)

	// The new default is invisible until the host re-enumerates.
	inner.setDefault("B")
	clock.Advance(time.Second)
	if rebuilt, err := sup.Step(); rebuilt || err != nil {
		t.Fatalf("Step() with a stale host = (%v, %v), want no rebuild", rebuilt, err)
	}
	if sel.Checks() != 1 {
		t.Errorf("Checks() = %d, want 1", sel.Checks())
	}

	inner.lastStream().onError(ErrDeviceUnavailable)
	rebuilt, err := sup.Step()
	if !rebuilt || err != nil {
		t.Fatalf("Step() after device loss = (%v, %v), want rebuild", rebuilt, err)
	}
	if st.Device().Name != "B" || inner.refreshes != 1 {
		t.Errorf("device=%q refreshes=%d, want B after one refresh", st.Device().Name, inner.refreshes)
	}
	if sel.Current() != "B" {
		t.Errorf("Current() = %q, want the rebuilt device B", sel.Current())
	}

	// The device opened by the rebuild is already recorded, so the next
	// poll does not report it as a change.
	clock.Advance(time.Second)
	if rebuilt, err := sup.Step(); rebuilt || err != nil {
		t.Fatalf("Step() after rebuild = (%v, %v), want no second rebuild", rebuilt, err)
	}
	if len(inner.streams) != 2 {
		t.Errorf("%d streams opened, want 2", len(inner.streams))
	}
}
