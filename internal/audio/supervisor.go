// SPDX-License-Identifier: MIT
package audio

import (
	"time"

	applog "spexia/internal/log"
)

// Supervisor ties the selector and streamer together for the main loop. Each
// Step polls for a default device change, forcing the poll when the stream
// reported its device lost, and rebuilds the stream when needed.
type Supervisor struct {
	selector *Selector
	streamer *Streamer
	retry    time.Duration
	now      func() time.Time

	retryAt  time.Time
	rebuilds int
	failures int
}

// NewSupervisor creates a supervisor. Failed rebuilds are retried no sooner
// than retry later; zero means DefaultPollInterval.
func NewSupervisor(sel *Selector, st *Streamer, retry time.Duration) *Supervisor {
	if retry <= 0 {
		retry = DefaultPollInterval
	}
	return &Supervisor{
		selector: sel,
		streamer: st,
		retry:    retry,
		now:      sel.now,
	}
}

// Step runs one supervision cycle and reports whether the stream was rebuilt.
// A rebuild error is returned for logging; it is never fatal and the next
// attempt happens once the retry delay has passed.
func (s *Supervisor) Step() (bool, error) {
	lost := s.streamer.DeviceLost()
	retryDue := !s.now().Before(s.retryAt)
	force := lost && retryDue

	changed := s.selector.PollChanged(force)
	if !changed && !force {
		return false, nil
	}

	if err := s.streamer.Rebuild(s.selector); err != nil {
		s.failures++
		s.retryAt = s.now().Add(s.retry)
		applog.Warnf("Supervisor: rebuild failed (attempt %d), retrying in %s: %v", s.failures, s.retry, err)
		return false, err
	}

	dev := s.streamer.Device()
	s.selector.observe(dev)
	s.rebuilds++
	s.failures = 0
	s.retryAt = time.Time{}
	applog.Infof("Supervisor: stream rebuilt on %q", dev.Name)
	return true, nil
}

// Rebuilds returns the number of successful rebuilds.
func (s *Supervisor) Rebuilds() int { return s.rebuilds }
