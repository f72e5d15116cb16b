// SPDX-License-Identifier: MIT
/*
Package app wires capture, analysis and publishing together.

Thread model:
  - The backend's audio thread only copies samples into the pipeline.
  - The pipeline worker runs the analyzer.
  - The consumer loop drains frames at the configured refresh rate, publishes
    them and supervises the capture device.
*/
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"spexia/internal/audio"
	"spexia/internal/config"
	"spexia/internal/dsp"
	applog "spexia/internal/log"
	"spexia/internal/transport"
	"spexia/internal/transport/udp"
)

// App is a running capture-to-publish session.
type App struct {
	cfg *config.Config

	analyzer   *dsp.Analyzer
	pipeline   *audio.Pipeline
	selector   *audio.Selector
	streamer   *audio.Streamer
	supervisor *audio.Supervisor

	publisher transport.Publisher
	ws        *transport.WebSocketTransport

	published uint64
}

// Options carries collaborators that are normally built from configuration.
type Options struct {
	Publisher transport.Publisher // Overrides the configured transports.
	Now       func() time.Time
}

// New builds the analyzer and starts capturing on host's default device.
// Configuration errors from the first stream start are returned.
func New(cfg *config.Config, host audio.Host, opts Options) (*App, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	dir, err := audio.ParseDirection(cfg.Audio.Direction)
	if err != nil {
		return nil, err
	}
	identity, err := audio.ParseIdentityMode(cfg.Audio.Identity)
	if err != nil {
		return nil, err
	}

	analyzer, err := dsp.NewAnalyzer(cfg.AnalyzerConfig())
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		analyzer:  analyzer,
		pipeline:  audio.NewPipeline(analyzer, cfg.Analysis.HandoffDepth),
		publisher: opts.Publisher,
	}

	if a.publisher == nil {
		if err := a.buildPublishers(); err != nil {
			return nil, err
		}
	}

	a.selector = audio.NewSelector(host, audio.SelectorOptions{
		Direction:    dir,
		Identity:     identity,
		PollInterval: cfg.Audio.PollInterval,
		Now:          opts.Now,
	})
	a.streamer, err = audio.Start(a.selector, a.pipeline, audio.StreamerOptions{
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	})
	if err != nil {
		a.publisher.Close()
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}
	a.supervisor = audio.NewSupervisor(a.selector, a.streamer, cfg.Audio.PollInterval)
	return a, nil
}

// buildPublishers creates the transports enabled in configuration.
func (a *App) buildPublishers() error {
	tc := a.cfg.Transport
	var fanout transport.Fanout

	if tc.WebSocketEnabled {
		codec, err := transport.NewCodec(tc.Codec)
		if err != nil {
			return err
		}
		a.ws = transport.NewWebSocketTransport(tc.WebSocketAddress, codec, a.cfg.Output.Bins)
		fanout = append(fanout, a.ws)
	}
	if tc.UDPEnabled {
		sender, err := udp.NewUDPSender(tc.UDPTargetAddress)
		if err != nil {
			fanout.Close()
			return err
		}
		pub, err := udp.NewUDPPublisher(sender, a.cfg.Output.Bins)
		if err != nil {
			sender.Close()
			fanout.Close()
			return err
		}
		fanout = append(fanout, pub)
	}
	if tc.LogFrames {
		fanout = append(fanout, transport.NewLoggingTransport(a.cfg.Output.Bins))
	}

	a.publisher = fanout
	return nil
}

// Run processes audio until ctx is cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	// The worker outlives ctx so buffers delivered until the stream is
	// closed are still analyzed; shutdown stops it.
	a.pipeline.Start(context.WithoutCancel(ctx))

	g, ctx := errgroup.WithContext(ctx)

	if a.ws != nil {
		g.Go(a.ws.ListenAndServe)
	}

	loopDone := make(chan struct{})
	g.Go(func() error {
		defer close(loopDone)
		ticker := time.NewTicker(a.cfg.FrameInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				a.Tick()
			}
		}
	})

	// Shutdown starts once ctx is done, from a signal or a failed server,
	// and after the consumer loop has stopped touching the stream.
	<-ctx.Done()
	<-loopDone
	shutdownErr := a.shutdown()
	return errors.Join(g.Wait(), shutdownErr)
}

// Tick runs one consumer iteration: publish every queued frame, then let the
// supervisor poll the device. It never blocks on audio.
func (a *App) Tick() {
	a.Drain()
	if _, err := a.supervisor.Step(); err != nil {
		applog.Debugf("App: %v", err)
	}
}

// Drain takes every queued frame in order and publishes it. It returns the
// number of frames taken.
func (a *App) Drain() int {
	n := 0
	for {
		frame, ok := a.analyzer.Take()
		if !ok {
			break
		}
		n++
		if err := a.publisher.Publish(frame); err != nil {
			applog.Debugf("App: publish frame %d: %v", frame.Seq, err)
		}
		a.published++
	}
	return n
}

// shutdown stops capture before analysis so no callback writes into a
// stopped pipeline, then publishes what was left.
func (a *App) shutdown() error {
	applog.Infof("App: Shutting down")

	var errs []error
	if err := a.streamer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.pipeline.Stop(); err != nil {
		errs = append(errs, err)
	}
	a.Drain()
	if err := a.publisher.Close(); err != nil {
		errs = append(errs, err)
	}

	applog.Infof("App: %d frames published, %d capture buffers dropped, %d frames dropped",
		a.published, a.pipeline.Dropped(), a.analyzer.Dropped())
	return errors.Join(errs...)
}

// Stats is a snapshot of the session counters.
type Stats struct {
	Published       uint64
	BuffersReceived uint64
	BuffersDropped  uint64
	FramesDropped   uint64
	Rebuilds        int
	Device          string
}

// Stats returns the current counters. Call it from the consumer goroutine.
func (a *App) Stats() Stats {
	return Stats{
		Published:       a.published,
		BuffersReceived: a.pipeline.Received(),
		BuffersDropped:  a.pipeline.Dropped(),
		FramesDropped:   a.analyzer.Dropped(),
		Rebuilds:        a.supervisor.Rebuilds(),
		Device:          a.streamer.Device().Name,
	}
}
