// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	applog "spexia/internal/log"
)

// DefaultHandoffDepth is the number of capture buffers that may wait for the
// analysis worker before new ones are dropped.
const DefaultHandoffDepth = 64

// Appender consumes interleaved samples. *dsp.Analyzer implements it.
type Appender interface {
	Append(interleaved []float32) int
}

// Pipeline moves capture buffers off the audio thread. Write copies the
// samples into a bounded channel without blocking; a worker goroutine feeds
// them to the Appender.
type Pipeline struct {
	dst     Appender
	handoff chan *[]float32
	pool    sync.Pool

	received atomic.Uint64
	dropped  atomic.Uint64
	frames   atomic.Uint64

	mu     sync.Mutex
	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewPipeline creates a pipeline with room for depth pending buffers.
func NewPipeline(dst Appender, depth int) *Pipeline {
	if depth <= 0 {
		depth = DefaultHandoffDepth
	}
	return &Pipeline{
		dst:     dst,
		handoff: make(chan *[]float32, depth),
	}
}

// Write implements Sink. It never blocks: when the worker has fallen behind
// by a full channel the buffer is dropped and counted.
func (p *Pipeline) Write(samples []float32) {
	if len(samples) == 0 {
		return
	}
	p.received.Add(1)

	buf := p.get(len(samples))
	copy(*buf, samples)

	select {
	case p.handoff <- buf:
	default:
		p.pool.Put(buf)
		if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
			applog.Warnf("Pipeline: analysis behind capture, %d buffers dropped", n)
		}
	}
}

// Start launches the worker. It stops when ctx is cancelled or Stop is called.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.group != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.group, ctx = errgroup.WithContext(ctx)
	p.group.Go(func() error {
		return p.run(ctx)
	})
}

// Stop cancels the worker and waits for it to finish the buffers already
// queued.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	group, cancel := p.group, p.cancel
	p.group, p.cancel = nil, nil
	p.mu.Unlock()

	if group == nil {
		return nil
	}
	cancel()
	return group.Wait()
}

func (p *Pipeline) run(ctx context.Context) error {
	applog.Debugf("Pipeline: worker started (depth %d)", cap(p.handoff))
	for {
		select {
		case buf := <-p.handoff:
			p.consume(buf)
		case <-ctx.Done():
			for {
				select {
				case buf := <-p.handoff:
					p.consume(buf)
				default:
					applog.Debugf("Pipeline: worker stopped")
					return nil
				}
			}
		}
	}
}

func (p *Pipeline) consume(buf *[]float32) {
	if n := p.dst.Append(*buf); n > 0 {
		p.frames.Add(uint64(n))
	}
	p.pool.Put(buf)
}

func (p *Pipeline) get(n int) *[]float32 {
	if v, ok := p.pool.Get().(*[]float32); ok && cap(*v) >= n {
		*v = (*v)[:n]
		return v
	}
	buf := make([]float32, n)
	return &buf
}

// Received returns the number of non-empty buffers passed to Write.
func (p *Pipeline) Received() uint64 { return p.received.Load() }

// Dropped returns the number of buffers discarded because the channel was full.
func (p *Pipeline) Dropped() uint64 { return p.dropped.Load() }

// Frames returns the number of frames the worker has produced.
func (p *Pipeline) Frames() uint64 { return p.frames.Load() }
