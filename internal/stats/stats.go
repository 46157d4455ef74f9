// Package stats keeps lightweight pixel statistics for the status
// endpoint and the periodic log line.
package stats

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/bijoymg2023/RESOFLY/internal/lepton"
)

// FrameStats are raw sensor counts for one frame, header words
// excluded.
type FrameStats struct {
	Min  uint16  `json:"min"`
	Max  uint16  `json:"max"`
	Mean float64 `json:"mean"`
}

// Measure scans a raw frame buffer. The buffer layout is the packed
// packet stream, so every packet's header words are skipped.
func Measure(raw []byte) FrameStats {
	var s FrameStats
	s.Min = 0xFFFF
	var sum uint64
	var count uint64
	words := len(raw) / 2
	for i := 0; i < words; i++ {
		if i%lepton.PacketWords < lepton.HeaderWords {
			continue
		}
		v := binary.BigEndian.Uint16(raw[2*i:])
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += uint64(v)
		count++
	}
	if count == 0 {
		s.Min = 0
		return s
	}
	s.Mean = float64(sum) / float64(count)
	return s
}

// fpsWindow is how long frame counts accumulate before the rate is
// recomputed.
const fpsWindow = 5 * time.Second

// Tracker accumulates per-frame statistics. Observe is called from
// the capture goroutine; Snapshot from HTTP handlers.
type Tracker struct {
	mu           sync.Mutex
	frames       uint64
	last         FrameStats
	lastAt       time.Time
	windowStart  time.Time
	windowFrames uint64
	fps          float64
}

func NewTracker() *Tracker {
	return &Tracker{windowStart: time.Now()}
}

func (t *Tracker) Observe(raw []byte) {
	s := Measure(raw)
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames++
	t.last = s
	t.lastAt = now
	t.windowFrames++
	if elapsed := now.Sub(t.windowStart); elapsed >= fpsWindow {
		t.fps = float64(t.windowFrames) / elapsed.Seconds()
		t.windowStart = now
		t.windowFrames = 0
	}
}

// Frames reports the total number of frames observed.
func (t *Tracker) Frames() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

// FPS reports the rate measured over the last completed window.
func (t *Tracker) FPS() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fps
}

// Snapshot returns the tracker state for the status endpoint.
func (t *Tracker) Snapshot() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	payload := map[string]any{
		"frames_total": t.frames,
		"fps":          t.fps,
		"pixel_min":    t.last.Min,
		"pixel_max":    t.last.Max,
		"pixel_mean":   t.last.Mean,
	}
	if !t.lastAt.IsZero() {
		payload["last_frame"] = t.lastAt.Format(time.RFC3339)
	}
	return payload
}
