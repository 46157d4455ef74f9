package framesync

import (
	"context"
	"errors"
	"testing"

	"github.com/bijoymg2023/RESOFLY/internal/lepton"
)

// scriptedSession replays a fixed sequence of segment bursts.
type scriptedSession struct {
	bursts  [][]byte
	next    int
	reads   int
	reopens int
	readErr error
}

func (s *scriptedSession) ReadSegment(packetCount, packetSize int) ([]byte, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	s.reads++
	if s.next >= len(s.bursts) {
		// Keep replaying the last burst once the script runs out.
		return s.bursts[len(s.bursts)-1], nil
	}
	burst := s.bursts[s.next]
	s.next++
	return burst, nil
}

func (s *scriptedSession) Reopen() error {
	s.reopens++
	return nil
}

// segment builds one burst with sequential packet numbers starting at
// firstPacket, tagged with segID in the designated header packet, and a
// marker byte in the first payload word for placement checks.
func segment(firstPacket, segID int, marker byte) []byte {
	seg := make([]byte, lepton.PacketsPerSegment*lepton.PacketSize)
	for p := 0; p < lepton.PacketsPerSegment; p++ {
		seg[p*lepton.PacketSize+1] = byte(firstPacket + p)
	}
	seg[lepton.SegmentIDPacket*lepton.PacketSize] = byte(segID << 4)
	seg[lepton.HeaderWords*2] = marker
	return seg
}

func discardSegment() []byte {
	seg := segment(0, 0, 0)
	seg[0] = 0x0F
	return seg
}

func TestCaptureAcceptsAlignedSegmentsFirstAttempt(t *testing.T) {
	session := &scriptedSession{bursts: [][]byte{
		segment(0, 1, 'a'),
		segment(0, 2, 'b'),
		segment(0, 3, 'c'),
		segment(0, 4, 'd'),
	}}
	sync := New(session, lepton.Lepton3, WithRetryDelay(0))

	frame, err := sync.CaptureFrame(context.Background())
	if err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}
	if session.reads != 4 {
		t.Fatalf("expected 4 bursts, read %d", session.reads)
	}
	segBytes := lepton.Lepton3.SegmentBytes()
	for i, want := range []byte{'a', 'b', 'c', 'd'} {
		if got := frame[i*segBytes+lepton.HeaderWords*2]; got != want {
			t.Fatalf("segment slot %d: marker %q want %q", i, got, want)
		}
	}
	stats := sync.Stats()
	if stats.Resyncs != 0 || stats.Reopens != 0 || stats.Restarts != 0 {
		t.Fatalf("unexpected recovery counters: %+v", stats)
	}
	if stats.Frames != 1 {
		t.Fatalf("frames: %d", stats.Frames)
	}
}

func TestCaptureSingleSegmentVariant(t *testing.T) {
	session := &scriptedSession{bursts: [][]byte{segment(0, 0, 'x')}}
	sync := New(session, lepton.Lepton2, WithRetryDelay(0))

	frame, err := sync.CaptureFrame(context.Background())
	if err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}
	if len(frame) != lepton.Lepton2.FrameBytes() {
		t.Fatalf("frame size: %d", len(frame))
	}
	if session.reads != 1 {
		t.Fatalf("expected a single burst, read %d", session.reads)
	}
}

func TestDesyncRetriesThenReopensOnce(t *testing.T) {
	const threshold = 5
	bursts := make([][]byte, 0, threshold+1)
	for i := 0; i < threshold; i++ {
		bursts = append(bursts, segment(7, 0, 0))
	}
	bursts = append(bursts, segment(0, 0, 'z'))
	session := &scriptedSession{bursts: bursts}
	sync := New(session, lepton.Lepton2, WithRetryDelay(0), WithResyncThreshold(threshold))

	if _, err := sync.CaptureFrame(context.Background()); err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}
	if session.reopens != 1 {
		t.Fatalf("reopens: got %d want 1", session.reopens)
	}
	stats := sync.Stats()
	if stats.Resyncs != threshold {
		t.Fatalf("resyncs: got %d want %d", stats.Resyncs, threshold)
	}
}

func TestDiscardPacketCountsAsDesync(t *testing.T) {
	session := &scriptedSession{bursts: [][]byte{
		discardSegment(),
		segment(0, 0, 'x'),
	}}
	sync := New(session, lepton.Lepton2, WithRetryDelay(0))

	if _, err := sync.CaptureFrame(context.Background()); err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}
	if got := sync.Stats().Resyncs; got != 1 {
		t.Fatalf("resyncs: got %d want 1", got)
	}
}

func TestOutOfOrderSegmentRestartsFrame(t *testing.T) {
	session := &scriptedSession{bursts: [][]byte{
		segment(0, 1, 'a'),
		segment(0, 2, 'b'),
		segment(0, 4, 'X'), // out of order, frame discarded
		segment(0, 1, 'a'),
		segment(0, 2, 'b'),
		segment(0, 3, 'c'),
		segment(0, 4, 'd'),
	}}
	sync := New(session, lepton.Lepton3, WithRetryDelay(0))

	frame, err := sync.CaptureFrame(context.Background())
	if err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}
	if session.reads != 7 {
		t.Fatalf("reads: got %d want 7", session.reads)
	}
	if got := sync.Stats().Restarts; got != 1 {
		t.Fatalf("restarts: got %d want 1", got)
	}
	segBytes := lepton.Lepton3.SegmentBytes()
	for i, want := range []byte{'a', 'b', 'c', 'd'} {
		if got := frame[i*segBytes+lepton.HeaderWords*2]; got != want {
			t.Fatalf("segment slot %d: marker %q want %q", i, got, want)
		}
	}
}

func TestRepeatedFirstSegmentRestartsInPlace(t *testing.T) {
	session := &scriptedSession{bursts: [][]byte{
		segment(0, 1, 'a'),
		segment(0, 2, 'b'),
		segment(0, 1, 'A'), // frame restarted, burst kept as new slot one
		segment(0, 2, 'B'),
		segment(0, 3, 'C'),
		segment(0, 4, 'D'),
	}}
	sync := New(session, lepton.Lepton3, WithRetryDelay(0))

	frame, err := sync.CaptureFrame(context.Background())
	if err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}
	if session.reads != 6 {
		t.Fatalf("reads: got %d want 6", session.reads)
	}
	segBytes := lepton.Lepton3.SegmentBytes()
	for i, want := range []byte{'A', 'B', 'C', 'D'} {
		if got := frame[i*segBytes+lepton.HeaderWords*2]; got != want {
			t.Fatalf("segment slot %d: marker %q want %q", i, got, want)
		}
	}
}

func TestUntaggedSegmentIsReread(t *testing.T) {
	session := &scriptedSession{bursts: [][]byte{
		segment(0, 0, '-'), // idle frame, no identifier yet
		segment(0, 1, 'a'),
		segment(0, 2, 'b'),
		segment(0, 3, 'c'),
		segment(0, 4, 'd'),
	}}
	sync := New(session, lepton.Lepton3, WithRetryDelay(0))

	if _, err := sync.CaptureFrame(context.Background()); err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}
	if session.reads != 5 {
		t.Fatalf("reads: got %d want 5", session.reads)
	}
	stats := sync.Stats()
	if stats.Resyncs != 0 || stats.Restarts != 0 {
		t.Fatalf("idle segment must not count as recovery: %+v", stats)
	}
}

func TestBusErrorPropagates(t *testing.T) {
	busErr := errors.New("spi transfer failed")
	session := &scriptedSession{bursts: [][]byte{segment(0, 0, 0)}, readErr: busErr}
	sync := New(session, lepton.Lepton2, WithRetryDelay(0))

	if _, err := sync.CaptureFrame(context.Background()); !errors.Is(err, busErr) {
		t.Fatalf("expected bus error, got %v", err)
	}
}

func TestCaptureStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	session := &scriptedSession{bursts: [][]byte{segment(0, 0, 0)}}
	sync := New(session, lepton.Lepton2, WithRetryDelay(0))

	if _, err := sync.CaptureFrame(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
