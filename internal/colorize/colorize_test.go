package colorize

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/bijoymg2023/RESOFLY/internal/lepton"
)

// rawFrame builds a frame whose pixel words cycle through samples in
// raster order. Header words are filled with a marker value that must
// never influence the output.
func rawFrame(variant lepton.Variant, samples []uint16) []byte {
	raw := make([]byte, variant.FrameBytes())
	next := 0
	for i := 0; i < len(raw)/2; i++ {
		word := raw[i*2:]
		if i%lepton.PacketWords < lepton.HeaderWords {
			binary.BigEndian.PutUint16(word, 0xFFFF)
			continue
		}
		binary.BigEndian.PutUint16(word, samples[next%len(samples)])
		next++
	}
	return raw
}

func TestRenderFlatFrame(t *testing.T) {
	variant := lepton.Lepton2
	c := New(variant, Grayscale)
	raw := rawFrame(variant, []uint16{3000})
	dst := make([]byte, variant.VisualBytes())

	c.Render(raw, dst)

	want := Grayscale.Table[0]
	for i := 0; i < len(dst); i += 3 {
		if dst[i] != want[0] || dst[i+1] != want[1] || dst[i+2] != want[2] {
			t.Fatalf("pixel %d: got %v want %v", i/3, dst[i:i+3], want)
		}
	}
}

func TestRenderScalesEndpoints(t *testing.T) {
	variant := lepton.Lepton2
	c := New(variant, Grayscale)
	raw := rawFrame(variant, []uint16{100, 5000, 2550})
	dst := make([]byte, variant.VisualBytes())

	c.Render(raw, dst)

	// Samples repeat in groups of three, so the first three pixels
	// carry 100, 5000 and 2550.
	if dst[0] != Grayscale.Table[0][0] {
		t.Fatalf("min sample level: got %d want 0", dst[0])
	}
	if dst[3] != Grayscale.Table[255][0] {
		t.Fatalf("max sample level: got %d want 255", dst[3])
	}
	// (2550-100)*255/4900 = 127.5, allow rounding either way.
	mid := int(dst[6])
	if mid < 127 || mid > 128 {
		t.Fatalf("mid sample level: got %d want 127..128", mid)
	}
}

func TestRenderManualRangeClamps(t *testing.T) {
	variant := lepton.Lepton2
	c := New(variant, Grayscale, WithRangeMin(1000), WithRangeMax(2000))
	raw := rawFrame(variant, []uint16{500, 3000, 1500})
	dst := make([]byte, variant.VisualBytes())

	c.Render(raw, dst)

	if dst[0] != 0 {
		t.Fatalf("below-range sample: got %d want 0", dst[0])
	}
	if dst[3] != 255 {
		t.Fatalf("above-range sample: got %d want 255", dst[3])
	}
	if got := int(dst[6]); got < 127 || got > 128 {
		t.Fatalf("mid sample: got %d want 127..128", got)
	}
}

func TestRenderIgnoresHeaderWords(t *testing.T) {
	variant := lepton.Lepton2
	c := New(variant, Grayscale)
	// All pixel samples equal while header words carry 0xFFFF. If the
	// header words leaked into the min/max scan, the flat frame would
	// no longer collapse to level zero.
	raw := rawFrame(variant, []uint16{1234})
	dst := make([]byte, variant.VisualBytes())

	c.Render(raw, dst)

	if !bytes.Equal(dst[:3], []byte{0, 0, 0}) {
		t.Fatalf("header words leaked into scaling range: %v", dst[:3])
	}
}

func TestPaletteByName(t *testing.T) {
	for _, name := range []string{"ironblack", "rainbow", "grayscale"} {
		p, err := PaletteByName(name)
		if err != nil {
			t.Fatalf("PaletteByName(%q): %v", name, err)
		}
		if p.Name != name {
			t.Fatalf("palette name: got %q want %q", p.Name, name)
		}
	}
	if _, err := PaletteByName("plasma"); err == nil {
		t.Fatalf("expected error for unknown colormap")
	}
}

func TestRenderPanicsOnShortFrame(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on short frame")
		}
	}()
	variant := lepton.Lepton2
	c := New(variant, Grayscale)
	c.Render(make([]byte, 10), make([]byte, variant.VisualBytes()))
}
