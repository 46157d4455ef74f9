// Package pipeline hands completed visual frames from the capture side
// to a sink writer without tearing or stalling the source.
//
// Two single-slot channels gate a pair of visual-frame buffers. The
// producer renders only into the buffer index it received over
// bufferFree; the consumer hands the opposite index back as soon as it
// claims a frame, so a slow sink write can never expose a half-written
// buffer.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultStallTimeout bounds how long the producer waits for the sink
// to free a buffer before tearing the source down.
const DefaultStallTimeout = 2 * time.Second

// Source is the capture side. Open establishes the bus session, Close
// releases it; both are driven by the pipeline so a stalled sink does
// not keep the bus clocked.
type Source interface {
	Open() error
	CaptureFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// Renderer converts one raw frame into a visual frame buffer.
type Renderer interface {
	Render(raw []byte, dst []byte)
}

// Sink accepts one visual frame per call. A write error is fatal to the
// whole pipeline.
type Sink interface {
	Write(frame []byte) error
}

// Stats are cumulative pipeline counters.
type Stats struct {
	Frames uint64
	Stalls uint64
}

// Pipeline couples one Source, one Renderer and one Sink.
type Pipeline struct {
	source Source
	render Renderer
	sink   Sink

	bufs       [2][]byte
	frameReady chan int
	bufferFree chan int

	stallTimeout time.Duration
	rawTap       func(raw []byte)

	frames atomic.Uint64
	stalls atomic.Uint64
}

// Option adjusts a Pipeline.
type Option func(*Pipeline)

// WithStallTimeout overrides the bounded wait for the sink.
func WithStallTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.stallTimeout = d
		}
	}
}

// WithRawTap registers a callback invoked with every assembled raw
// frame before rendering. The tap runs on the capture goroutine and
// must not block; the buffer is only valid for the duration of the
// call.
func WithRawTap(tap func(raw []byte)) Option {
	return func(p *Pipeline) { p.rawTap = tap }
}

// New creates a Pipeline with two visualBytes-sized handoff buffers.
func New(source Source, render Renderer, sink Sink, visualBytes int, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:       source,
		render:       render,
		sink:         sink,
		frameReady:   make(chan int, 1),
		bufferFree:   make(chan int, 1),
		stallTimeout: DefaultStallTimeout,
	}
	p.bufs[0] = make([]byte, visualBytes)
	p.bufs[1] = make([]byte, visualBytes)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run drives the capture loop until ctx is cancelled or a fatal error
// occurs. Bus and sink errors are fatal; a sink that stops consuming is
// not: the source is torn down and rebuilt once the sink recovers.
func (p *Pipeline) Run(ctx context.Context) error {
	sinkErr := make(chan error, 1)
	go p.consume(ctx, sinkErr)

	p.bufferFree <- 0
	for {
		// Re-arm: wait for the sink to hand a buffer back before
		// opening the bus.
		var idx int
		select {
		case <-ctx.Done():
			return nil
		case err := <-sinkErr:
			return err
		case idx = <-p.bufferFree:
		}

		if err := p.source.Open(); err != nil {
			return fmt.Errorf("open source: %w", err)
		}
		err := p.produce(ctx, &idx, sinkErr)
		if cerr := p.source.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		// Sink stalled; loop back and wait for it to come alive.
	}
}

// produce captures and renders frames until the sink stalls (returns
// nil) or something fatal happens.
func (p *Pipeline) produce(ctx context.Context, idx *int, sinkErr chan error) error {
	for {
		raw, err := p.source.CaptureFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if p.rawTap != nil {
			p.rawTap(raw)
		}
		p.render.Render(raw, p.bufs[*idx])

		select {
		case <-ctx.Done():
			return nil
		case err := <-sinkErr:
			return err
		case p.frameReady <- *idx:
		}
		p.frames.Add(1)

		timer := time.NewTimer(p.stallTimeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case err := <-sinkErr:
			timer.Stop()
			return err
		case *idx = <-p.bufferFree:
			timer.Stop()
		case <-timer.C:
			p.stalls.Add(1)
			return nil
		}
	}
}

// consume is the sink-writer side: claim a frame, free the other
// buffer, write.
func (p *Pipeline) consume(ctx context.Context, sinkErr chan error) {
	for {
		var idx int
		select {
		case <-ctx.Done():
			return
		case idx = <-p.frameReady:
		}

		select {
		case <-ctx.Done():
			return
		case p.bufferFree <- 1 - idx:
		}

		if err := p.sink.Write(p.bufs[idx]); err != nil {
			sinkErr <- fmt.Errorf("sink write: %w", err)
			return
		}
	}
}

// Stats returns a snapshot of the cumulative counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames: p.frames.Load(),
		Stalls: p.stalls.Load(),
	}
}
