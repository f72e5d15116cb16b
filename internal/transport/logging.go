// SPDX-License-Identifier: MIT
package transport

import (
	"time"

	"spexia/internal/dsp"
	applog "spexia/internal/log"
)

// LoggingTransport implements Publisher by logging a one-line digest of
// each frame at debug level.
type LoggingTransport struct {
	bins  int
	count uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport(bins int) *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{bins: bins}
}

// Publish logs the loudest output bin and peak level of each channel.
func (lt *LoggingTransport) Publish(frame dsp.Frame) error {
	lt.count++
	if applog.GetLevel() > applog.LevelDebug {
		return nil
	}
	s := Summarize(frame, lt.bins, time.Now())
	l, r := s.Channels[0], s.Channels[1]
	applog.Debugf("LOG_TRANSPORT: frame %d  L peak %.3f bin %d  R peak %.3f bin %d",
		s.Seq, l.Peak, loudest(l.Magnitudes), r.Peak, loudest(r.Magnitudes))
	return nil
}

// Count returns the number of frames published.
func (lt *LoggingTransport) Count() uint64 { return lt.count }

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LOG_TRANSPORT: Close called after %d frames.", lt.count)
	return nil
}

func loudest(mags []float32) int {
	best := 0
	for i, m := range mags {
		if m > mags[best] {
			best = i
		}
	}
	return best
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Publisher = (*LoggingTransport)(nil)
