// Package colorize turns an assembled raw frame into a packed RGB
// buffer using adaptive min/max scaling and a fixed palette.
package colorize

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bijoymg2023/RESOFLY/internal/lepton"
)

// AutoRange disables the manual bound on that side of the scaling
// range.
const AutoRange = -1

// Colorizer is a pure transform; it keeps no per-frame state beyond the
// configured scaling range.
type Colorizer struct {
	variant  lepton.Variant
	palette  *Palette
	rangeMin int
	rangeMax int
}

// Option adjusts a Colorizer.
type Option func(*Colorizer)

// WithRangeMin pins the lower scaling bound instead of measuring it
// per frame. Pass AutoRange to keep automatic scaling.
func WithRangeMin(v int) Option {
	return func(c *Colorizer) { c.rangeMin = v }
}

// WithRangeMax pins the upper scaling bound.
func WithRangeMax(v int) Option {
	return func(c *Colorizer) { c.rangeMax = v }
}

// New creates a Colorizer for one sensor variant.
func New(variant lepton.Variant, palette *Palette, opts ...Option) *Colorizer {
	c := &Colorizer{
		variant:  variant,
		palette:  palette,
		rangeMin: AutoRange,
		rangeMax: AutoRange,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Render converts one complete raw frame into dst. raw must be a full
// frame and dst a full visual buffer; anything else is a bug in the
// caller.
func (c *Colorizer) Render(raw []byte, dst []byte) {
	if len(raw) != c.variant.FrameBytes() {
		panic(fmt.Sprintf("colorize: raw frame is %d bytes, want %d", len(raw), c.variant.FrameBytes()))
	}
	if len(dst) != c.variant.VisualBytes() {
		panic(fmt.Sprintf("colorize: visual buffer is %d bytes, want %d", len(dst), c.variant.VisualBytes()))
	}

	minVal, maxVal := c.bounds(raw)
	diff := maxVal - minVal
	if diff < 1 {
		diff = 1
	}
	scale := 255.0 / float64(diff)

	words := len(raw) / 2
	out := 0
	for i := 0; i < words; i++ {
		if i%lepton.PacketWords < lepton.HeaderWords {
			continue
		}
		v := int(binary.BigEndian.Uint16(raw[i*2:]))
		level := int(math.Round(float64(v-minVal) * scale))
		if level < 0 {
			level = 0
		} else if level > 255 {
			level = 255
		}
		rgb := c.palette.Table[level]
		dst[out] = rgb[0]
		dst[out+1] = rgb[1]
		dst[out+2] = rgb[2]
		out += 3
	}
}

// bounds returns the scaling range for one frame: the measured pixel
// extremes unless a manual override pins either side.
func (c *Colorizer) bounds(raw []byte) (int, int) {
	minVal, maxVal := c.rangeMin, c.rangeMax
	if minVal != AutoRange && maxVal != AutoRange {
		return minVal, maxVal
	}

	measuredMin, measuredMax := math.MaxUint16, 0
	words := len(raw) / 2
	for i := 0; i < words; i++ {
		if i%lepton.PacketWords < lepton.HeaderWords {
			continue
		}
		v := int(binary.BigEndian.Uint16(raw[i*2:]))
		if v < measuredMin {
			measuredMin = v
		}
		if v > measuredMax {
			measuredMax = v
		}
	}
	if minVal == AutoRange {
		minVal = measuredMin
	}
	if maxVal == AutoRange {
		maxVal = measuredMax
	}
	return minVal, maxVal
}
