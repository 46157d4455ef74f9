// Package framesync reassembles the sensor's packet stream into whole
// raw frames, recovering locally from loss of packet alignment.
package framesync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bijoymg2023/RESOFLY/internal/lepton"
)

const (
	// DefaultResyncThreshold is how many consecutive misaligned bursts
	// are retried before the SPI session is bounced.
	DefaultResyncThreshold = 750
	// DefaultRetryDelay is the pause between re-reads while the stream
	// is misaligned.
	DefaultRetryDelay = time.Millisecond
)

// Session is the bus access the synchronizer needs. *spibus.Session
// implements it; tests use a scripted replacement.
type Session interface {
	// ReadSegment reads packetCount packets of packetSize bytes in one
	// chip-select transaction.
	ReadSegment(packetCount, packetSize int) ([]byte, error)
	// Reopen bounces the link to recover a jammed byte stream.
	Reopen() error
}

// Stats are cumulative synchronizer counters, safe to read from other
// goroutines.
type Stats struct {
	Frames   uint64
	Resyncs  uint64
	Reopens  uint64
	Restarts uint64
}

// Synchronizer drives a Session and yields complete raw frames. Bus
// errors propagate to the caller; framing desync never does.
type Synchronizer struct {
	session    Session
	variant    lepton.Variant
	threshold  int
	retryDelay time.Duration

	frame []byte

	frames   atomic.Uint64
	resyncs  atomic.Uint64
	reopens  atomic.Uint64
	restarts atomic.Uint64
}

// Option adjusts a Synchronizer.
type Option func(*Synchronizer)

// WithResyncThreshold overrides the consecutive-failure count that
// triggers a session reopen.
func WithResyncThreshold(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.threshold = n
		}
	}
}

// WithRetryDelay overrides the pause between misaligned re-reads.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d >= 0 {
			s.retryDelay = d
		}
	}
}

// New creates a Synchronizer for one sensor variant over an open
// session.
func New(session Session, variant lepton.Variant, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		session:    session,
		variant:    variant,
		threshold:  DefaultResyncThreshold,
		retryDelay: DefaultRetryDelay,
		frame:      make([]byte, variant.FrameBytes()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CaptureFrame blocks until all segments of one frame have been read in
// order. The returned buffer is owned by the Synchronizer and is
// overwritten by the next capture.
//
// Multi-segment sensors tag the designated header packet with a segment
// identifier 1..K. Acceptance is strictly in order: an untagged burst
// (identifier 0) is re-read, a burst tagged 1 restarts collection at
// slot one, and any other out-of-order identifier discards the frame in
// progress and starts over.
func (s *Synchronizer) CaptureFrame(ctx context.Context) ([]byte, error) {
	segBytes := s.variant.SegmentBytes()
	slot := 0
	for slot < s.variant.Segments {
		seg, err := s.readAligned(ctx)
		if err != nil {
			return nil, err
		}
		if s.variant.Segments > 1 {
			switch id := lepton.SegmentID(seg); {
			case id == 0:
				// Sensor idling between frames; not a desync.
				continue
			case id == slot+1:
				// Expected slot.
			case id == 1:
				s.restarts.Add(1)
				slot = 0
			default:
				s.restarts.Add(1)
				slot = 0
				continue
			}
		}
		copy(s.frame[slot*segBytes:], seg)
		slot++
	}
	s.frames.Add(1)
	return s.frame, nil
}

// readAligned bursts segments until one starts at packet zero. Each
// misaligned burst is retried after a short delay; once threshold
// consecutive bursts have failed the session is reopened and the
// counter starts over.
func (s *Synchronizer) readAligned(ctx context.Context) ([]byte, error) {
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seg, err := s.session.ReadSegment(lepton.PacketsPerSegment, lepton.PacketSize)
		if err != nil {
			return nil, fmt.Errorf("segment read: %w", err)
		}
		first := seg[:lepton.PacketSize]
		if !lepton.IsDiscard(first) && lepton.PacketNumber(first) == 0 {
			return seg, nil
		}

		s.resyncs.Add(1)
		failures++
		if failures >= s.threshold {
			s.reopens.Add(1)
			if err := s.session.Reopen(); err != nil {
				return nil, fmt.Errorf("resync reopen: %w", err)
			}
			failures = 0
			continue
		}
		time.Sleep(s.retryDelay)
	}
}

// Stats returns a snapshot of the cumulative counters.
func (s *Synchronizer) Stats() Stats {
	return Stats{
		Frames:   s.frames.Load(),
		Resyncs:  s.resyncs.Load(),
		Reopens:  s.reopens.Load(),
		Restarts: s.restarts.Load(),
	}
}
