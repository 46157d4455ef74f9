// Package capture binds a bus session and a frame synchronizer into
// the source driven by the handoff pipeline.
package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/bijoymg2023/RESOFLY/internal/framesync"
	"github.com/bijoymg2023/RESOFLY/internal/lepton"
)

// Session extends the synchronizer's bus view with teardown. Both
// *spibus.Session and the simulator satisfy it.
type Session interface {
	framesync.Session
	Close() error
}

// Dial opens a fresh bus session. The pipeline calls it at stream
// start and again after every sink stall.
type Dial func() (Session, error)

// Source implements pipeline.Source over a dialed bus session. Open,
// CaptureFrame and Close run on the capture goroutine; Stats may be
// called from anywhere.
type Source struct {
	dial    Dial
	variant lepton.Variant
	opts    []framesync.Option

	mu      sync.Mutex
	session Session
	sync    *framesync.Synchronizer
	// Counters from sessions already torn down, so stats stay
	// cumulative across stall episodes.
	base framesync.Stats
}

// New creates a Source. The session is not opened until Open.
func New(dial Dial, variant lepton.Variant, opts ...framesync.Option) *Source {
	return &Source{dial: dial, variant: variant, opts: opts}
}

// Open dials the bus and arms a synchronizer on it.
func (s *Source) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return fmt.Errorf("capture source already open")
	}
	session, err := s.dial()
	if err != nil {
		return err
	}
	s.session = session
	s.sync = framesync.New(session, s.variant, s.opts...)
	return nil
}

// CaptureFrame yields the next complete raw frame.
func (s *Source) CaptureFrame(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	sync := s.sync
	s.mu.Unlock()
	if sync == nil {
		return nil, fmt.Errorf("capture source is closed")
	}
	return sync.CaptureFrame(ctx)
}

// Close releases the session and banks its counters.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	stats := s.sync.Stats()
	s.base.Frames += stats.Frames
	s.base.Resyncs += stats.Resyncs
	s.base.Reopens += stats.Reopens
	s.base.Restarts += stats.Restarts
	err := s.session.Close()
	s.session = nil
	s.sync = nil
	return err
}

// Stats returns cumulative synchronizer counters across all sessions.
func (s *Source) Stats() framesync.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.base
	if s.sync != nil {
		cur := s.sync.Stats()
		stats.Frames += cur.Frames
		stats.Resyncs += cur.Resyncs
		stats.Reopens += cur.Reopens
		stats.Restarts += cur.Restarts
	}
	return stats
}
