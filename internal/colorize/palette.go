package colorize

import (
	"fmt"
	"sort"
)

// Palette maps an 8-bit level to an RGB triplet.
type Palette struct {
	Name  string
	Table [256][3]byte
}

type stop struct {
	pos     int
	r, g, b byte
}

// newPalette expands compact gradient stops into the full 256-entry
// lookup table.
func newPalette(name string, stops []stop) *Palette {
	sort.Slice(stops, func(i, j int) bool { return stops[i].pos < stops[j].pos })
	p := &Palette{Name: name}
	for i := 0; i < len(stops)-1; i++ {
		a, b := stops[i], stops[i+1]
		span := b.pos - a.pos
		if span <= 0 {
			continue
		}
		for j := 0; j <= span; j++ {
			t := float64(j) / float64(span)
			p.Table[a.pos+j] = [3]byte{
				lerp(a.r, b.r, t),
				lerp(a.g, b.g, t),
				lerp(a.b, b.b, t),
			}
		}
	}
	return p
}

func lerp(a, b byte, t float64) byte {
	return byte(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

var (
	// Ironblack is the default thermal palette: black through purple
	// and orange to white.
	Ironblack = newPalette("ironblack", []stop{
		{pos: 0, r: 255, g: 255, b: 255},
		{pos: 32, r: 180, g: 180, b: 200},
		{pos: 64, r: 15, g: 10, b: 80},
		{pos: 96, r: 90, g: 10, b: 130},
		{pos: 128, r: 160, g: 30, b: 105},
		{pos: 160, r: 215, g: 70, b: 35},
		{pos: 192, r: 245, g: 130, b: 10},
		{pos: 224, r: 255, g: 200, b: 60},
		{pos: 255, r: 255, g: 255, b: 255},
	})

	// Rainbow runs blue through green and yellow to red.
	Rainbow = newPalette("rainbow", []stop{
		{pos: 0, r: 1, g: 3, b: 74},
		{pos: 42, r: 0, g: 60, b: 255},
		{pos: 84, r: 0, g: 200, b: 200},
		{pos: 126, r: 0, g: 255, b: 60},
		{pos: 168, r: 255, g: 255, b: 0},
		{pos: 210, r: 255, g: 100, b: 0},
		{pos: 255, r: 255, g: 0, b: 0},
	})

	// Grayscale is the identity ramp.
	Grayscale = newPalette("grayscale", []stop{
		{pos: 0, r: 0, g: 0, b: 0},
		{pos: 255, r: 255, g: 255, b: 255},
	})
)

// PaletteByName resolves the -cm flag value.
func PaletteByName(name string) (*Palette, error) {
	switch name {
	case "ironblack":
		return Ironblack, nil
	case "rainbow":
		return Rainbow, nil
	case "grayscale":
		return Grayscale, nil
	default:
		return nil, fmt.Errorf("unknown colormap %q (want ironblack, rainbow or grayscale)", name)
	}
}
