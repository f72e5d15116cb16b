// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"math"
	"testing"
	"time"

	"spexia/internal/dsp"
)

// testFrame builds a 16-point frame. The left channel has |X[k]| = k and a
// phase derivative of k/10; the right channel is silent.
func testFrame(seq uint64) dsp.Frame {
	const size = 16
	f := dsp.Frame{Seq: seq}
	for ch := range dsp.Channels {
		f.Spectrum[ch] = make([]complex128, size)
		f.TimeSamples[ch] = make([]float64, size)
		f.PhaseDerivative[ch] = make([]float64, size/2)
	}
	for k := range size / 2 {
		f.Spectrum[0][k] = complex(float64(k), 0)
		f.PhaseDerivative[0][k] = float64(k) / 10
	}
	f.TimeSamples[0][3] = 0.5
	f.TimeSamples[0][7] = -0.8
	return f
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	now := time.Unix(0, 1234)
	s := Summarize(testFrame(7), 4, now)

	if s.Seq != 7 || s.Timestamp != 1234 || s.WindowSize != 16 || len(s.Channels) != 2 {
		t.Fatalf("header = %+v", s)
	}

	left := s.Channels[0]
	for b := range 4 {
		wantMag := math.Log10(float64(2*b + 1))
		if math.Abs(float64(left.Magnitudes[b])-wantMag) > 1e-6 {
			t.Errorf("left mag[%d] = %v, want %v", b, left.Magnitudes[b], wantMag)
		}
		wantPhase := float64(4*b+1) * 0.05
		if math.Abs(float64(left.Phase[b])-wantPhase) > 1e-6 {
			t.Errorf("left phase[%d] = %v, want %v", b, left.Phase[b], wantPhase)
		}
	}
	if math.Abs(float64(left.Peak)-0.8) > 1e-6 {
		t.Errorf("left peak = %v, want 0.8", left.Peak)
	}

	right := s.Channels[1]
	for b, m := range right.Magnitudes {
		if m != -9 {
			t.Errorf("silent mag[%d] = %v, want floor -9", b, m)
		}
	}
	if right.Peak != 0 {
		t.Errorf("silent peak = %v", right.Peak)
	}
}

func TestSummarizeClampsBins(t *testing.T) {
	t.Parallel()
	tests := []struct {
		bins, want int
	}{
		{0, 1},
		{-3, 1},
		{8, 8},
		{100, 8},
	}
	for _, tt := range tests {
		s := Summarize(testFrame(1), tt.bins, time.Now())
		if got := len(s.Channels[0].Magnitudes); got != tt.want {
			t.Errorf("Summarize(bins=%d) gave %d bins, want %d", tt.bins, got, tt.want)
		}
	}
}

func TestSummarizeEmptyFrame(t *testing.T) {
	t.Parallel()
	s := Summarize(dsp.Frame{Seq: 3}, 8, time.Now())
	if s.WindowSize != 0 || len(s.Channels) != 2 || s.Channels[0].Magnitudes != nil {
		t.Errorf("empty frame summary = %+v", s)
	}
}

type stubPublisher struct {
	published []uint64
	err       error
	closed    bool
}

func (s *stubPublisher) Publish(f dsp.Frame) error {
	s.published = append(s.published, f.Seq)
	return s.err
}

func (s *stubPublisher) Close() error {
	s.closed = true
	return s.err
}

func TestFanout(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	a, b := &stubPublisher{}, &stubPublisher{err: boom}
	f := Fanout{a, b}

	if err := f.Publish(testFrame(1)); !errors.Is(err, boom) {
		t.Errorf("Publish error = %v, want boom", err)
	}
	if err := f.Publish(testFrame(2)); !errors.Is(err, boom) {
		t.Errorf("Publish error = %v, want boom", err)
	}
	if len(a.published) != 2 || len(b.published) != 2 {
		t.Errorf("published a=%v b=%v, want both frames on both", a.published, b.published)
	}

	if err := f.Close(); !errors.Is(err, boom) {
		t.Errorf("Close error = %v, want boom", err)
	}
	if !a.closed || !b.closed {
		t.Error("not every publisher was closed")
	}
}

func TestLoggingTransport(t *testing.T) {
	t.Parallel()
	lt := NewLoggingTransport(4)
	for i := range 3 {
		if err := lt.Publish(testFrame(uint64(i))); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if lt.Count() != 3 {
		t.Errorf("Count() = %d, want 3", lt.Count())
	}
	if err := lt.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestLoudest(t *testing.T) {
	t.Parallel()
	if got := loudest([]float32{-9, -2, 1.5, 0.2}); got != 2 {
		t.Errorf("loudest = %d, want 2", got)
	}
	if got := loudest(nil); got != 0 {
		t.Errorf("loudest(nil) = %d, want 0", got)
	}
}
