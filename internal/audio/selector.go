// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"time"

	applog "spexia/internal/log"
)

// DefaultPollInterval is the minimum time between unforced device checks.
const DefaultPollInterval = time.Second

// IdentityMode selects the key used to detect that the default device changed.
type IdentityMode int

const (
	// IdentityName compares display names.
	IdentityName IdentityMode = iota
	// IdentityID compares backend identifiers, falling back to the name
	// for devices that report none.
	IdentityID
)

// ParseIdentityMode converts "name" or "id" to an IdentityMode.
func ParseIdentityMode(s string) (IdentityMode, error) {
	switch s {
	case "name", "":
		return IdentityName, nil
	case "id":
		return IdentityID, nil
	default:
		return IdentityName, fmt.Errorf("unknown device identity mode %q", s)
	}
}

// identity is the comparison key for a resolved device. The zero value
// means no device.
type identity struct {
	key     string
	present bool
}

func (id identity) String() string {
	if !id.present {
		return "<none>"
	}
	return id.key
}

// SelectorOptions configures a Selector.
type SelectorOptions struct {
	Direction    Direction
	Identity     IdentityMode
	PollInterval time.Duration    // Defaults to DefaultPollInterval.
	Now          func() time.Time // Defaults to time.Now.
}

// Selector resolves the current default device of a host and detects when
// that resolution changes. It is not safe for concurrent use; the main loop
// owns it.
type Selector struct {
	host     Host
	dir      Direction
	mode     IdentityMode
	interval time.Duration
	now      func() time.Time

	current  identity
	lastPoll time.Time
	checks   int
}

// NewSelector creates a selector and records the identity of the device that
// is currently the default.
func NewSelector(host Host, opts SelectorOptions) *Selector {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Selector{
		host:     host,
		dir:      opts.Direction,
		mode:     opts.Identity,
		interval: opts.PollInterval,
		now:      opts.Now,
	}
	dev, _ := s.Resolve()
	s.current = s.identityOf(dev)
	s.lastPoll = s.now()

	applog.Infof("Selector: %s %s device is %s", host.Name(), s.dir, s.current)
	return s
}

// Host returns the host the selector resolves against.
func (s *Selector) Host() Host { return s.host }

// Direction returns the configured capture direction.
func (s *Selector) Direction() Direction { return s.dir }

// Resolve queries the host for the default device and its default stream
// configuration. It returns (nil, nil) when there is no device and
// (dev, nil) when the device has no usable configuration. Host errors are
// logged and treated as absence.
func (s *Selector) Resolve() (*Device, *StreamConfig) {
	dev, err := s.host.DefaultDevice(s.dir)
	if err != nil {
		applog.Warnf("Selector: failed to query default %s device: %v", s.dir, err)
		return nil, nil
	}
	if dev == nil {
		return nil, nil
	}

	cfg, err := s.host.DefaultConfig(*dev, s.dir)
	if err != nil {
		applog.Warnf("Selector: failed to query config for %q: %v", dev.Name, err)
		return dev, nil
	}
	return dev, cfg
}

// PollChanged reports whether the default device identity differs from the
// one recorded by the previous check. Unless force is set, checks are rate
// limited to one per poll interval and calls in between return false without
// touching the host. An unforced call that sees the clock go backwards resets
// the poll timestamp and returns false.
func (s *Selector) PollChanged(force bool) bool {
	now := s.now()
	if !force {
		elapsed := now.Sub(s.lastPoll)
		if elapsed < 0 {
			applog.Warnf("Selector: clock went backwards by %s, skipping device poll", -elapsed)
			s.lastPoll = now
			return false
		}
		if elapsed < s.interval {
			return false
		}
	}

	s.lastPoll = now
	s.checks++

	dev, _ := s.Resolve()
	next := s.identityOf(dev)
	if next == s.current {
		return false
	}

	applog.Infof("Selector: default %s device changed from %s to %s", s.dir, s.current, next)
	s.current = next
	return true
}

// observe records dev as the current identity without querying the host.
func (s *Selector) observe(dev Device) {
	next := s.identityOf(&dev)
	if next != s.current {
		applog.Debugf("Selector: recording %s device %s opened by rebuild", s.dir, next)
		s.current = next
	}
}

// Current returns the recorded device identity, or "<none>".
func (s *Selector) Current() string {
	return s.current.String()
}

// Checks returns how many times PollChanged actually queried the host.
func (s *Selector) Checks() int {
	return s.checks
}

func (s *Selector) identityOf(dev *Device) identity {
	if dev == nil {
		return identity{}
	}
	if s.mode == IdentityID && dev.ID != "" {
		return identity{key: dev.ID, present: true}
	}
	return identity{key: dev.Name, present: true}
}
