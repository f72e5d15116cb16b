// SPDX-License-Identifier: MIT
package portaudio

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"spexia/internal/audio"
	applog "spexia/internal/log"
)

// stream wraps a running PortAudio stream and its stall watchdog.
type stream struct {
	name    string
	timeout time.Duration
	onData  audio.DataFunc
	onError audio.ErrorFunc
	onClose func()

	stream   *pa.Stream
	last     atomic.Int64 // UnixNano of the most recent callback.
	done     chan struct{}
	wg       sync.WaitGroup
	closeErr error
	once     sync.Once
}

func newStream(name string, timeout time.Duration, onData audio.DataFunc, onError audio.ErrorFunc) *stream {
	s := &stream{
		name:    name,
		timeout: timeout,
		onData:  onData,
		onError: onError,
		done:    make(chan struct{}),
	}
	s.last.Store(time.Now().UnixNano())
	return s
}

// process is the PortAudio callback. It runs on the PortAudio thread.
func (s *stream) process(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	s.last.Store(time.Now().UnixNano())
	s.onData(in)
}

// watch reports the device as lost once callbacks stop for longer than the
// stall timeout. It reports at most once per stream.
func (s *stream) watch() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.timeout / 4)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case now := <-ticker.C:
				idle := now.Sub(time.Unix(0, s.last.Load()))
				if idle < s.timeout {
					continue
				}
				applog.Debugf("PortAudio: no callback from %q for %s", s.name, idle)
				s.onError(fmt.Errorf("no audio from %q for %s: %w", s.name, idle.Round(time.Millisecond), audio.ErrDeviceUnavailable))
				return
			}
		}
	}()
}

// Close stops and closes the PortAudio stream and joins the watchdog.
func (s *stream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()

		if err := s.stream.Stop(); err != nil {
			s.closeErr = fmt.Errorf("failed to stop PortAudio stream: %w", err)
		}
		if err := s.stream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("failed to close PortAudio stream: %w", err)
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
	return s.closeErr
}
