// Package simulator is a synthetic sensor bus: it speaks the same
// segment-burst protocol as the SPI link and renders a moving hot spot,
// so the whole pipeline can run without hardware.
package simulator

import (
	"encoding/binary"
	"math"
	"math/rand"
	"time"

	"github.com/bijoymg2023/RESOFLY/internal/lepton"
)

// DefaultFrameRate approximates the sensor's nominal output rate.
const DefaultFrameRate = 9.0

// Session implements capture.Session with generated data.
type Session struct {
	variant  lepton.Variant
	interval time.Duration

	seg     int
	frame   int
	samples []uint16

	desyncEvery int
	reads       int
	reopens     int
	closed      bool
}

// Option adjusts a Session.
type Option func(*Session)

// WithDesyncEvery makes every nth burst start misaligned, for
// exercising the synchronizer's recovery path.
func WithDesyncEvery(n int) Option {
	return func(s *Session) { s.desyncEvery = n }
}

// New creates a paced synthetic session for one sensor variant.
func New(variant lepton.Variant, frameRate float64, opts ...Option) *Session {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	s := &Session{
		variant:  variant,
		interval: time.Duration(float64(time.Second) / (frameRate * float64(variant.Segments))),
		samples:  make([]uint16, variant.Pixels()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadSegment emits the next segment burst of the current frame,
// paced to the configured frame rate.
func (s *Session) ReadSegment(packetCount, packetSize int) ([]byte, error) {
	time.Sleep(s.interval)
	s.reads++

	if s.seg == 0 {
		s.generateFrame()
	}

	burst := make([]byte, packetCount*packetSize)
	for p := 0; p < packetCount; p++ {
		packet := burst[p*packetSize : (p+1)*packetSize]
		packet[1] = byte(p)
		base := (s.seg*packetCount + p) * lepton.PixelWordsPerPacket
		for i := 0; i < lepton.PixelWordsPerPacket; i++ {
			sample := uint16(0)
			if base+i < len(s.samples) {
				sample = s.samples[base+i]
			}
			binary.BigEndian.PutUint16(packet[(lepton.HeaderWords+i)*2:], sample)
		}
	}
	if s.variant.Segments > 1 {
		burst[lepton.SegmentIDPacket*packetSize] = byte((s.seg + 1) << 4)
	}

	if s.desyncEvery > 0 && s.reads%s.desyncEvery == 0 {
		// Shift the stream so the first packet is not packet zero.
		burst[1] = 1
	} else {
		s.seg++
		if s.seg == s.variant.Segments {
			s.seg = 0
			s.frame++
		}
	}

	return burst, nil
}

// generateFrame renders a warm Gaussian spot circling the field of
// view over a cooler noisy background.
func (s *Session) generateFrame() {
	w := float64(s.variant.Width)
	h := float64(s.variant.Height)
	theta := 2 * math.Pi * float64(s.frame) / 90
	cx := w/2 + 0.3*w*math.Cos(theta)
	cy := h/2 + 0.3*h*math.Sin(theta)
	sigma := w / 8

	for i := range s.samples {
		x := float64(i % s.variant.Width)
		y := float64(i / s.variant.Width)
		dx := x - cx
		dy := y - cy
		spot := 8000 * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
		noise := rand.Float64() * 200
		s.samples[i] = uint16(30000 + spot + noise)
	}
}

// Reopen restarts the synthetic stream at a segment boundary.
func (s *Session) Reopen() error {
	s.reopens++
	s.seg = 0
	return nil
}

// Close marks the session closed.
func (s *Session) Close() error {
	s.closed = true
	return nil
}

// Reopens reports how many times the synchronizer bounced the session.
func (s *Session) Reopens() int {
	return s.reopens
}
