// Package imaging provides the luminance grid representation the detection
// engine operates on, plus decoding and noise-reduction primitives.
package imaging

// Grid is a fixed-size rectangular array of luminance samples, row-major.
// Width and Height are always positive and len(Pix) == Width*Height.
type Grid struct {
	Width  int
	Height int
	Pix    []float32
}

// NewGrid allocates a zeroed grid of the given dimensions.
func NewGrid(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

// At returns the sample at (x, y). No bounds checking beyond the slice's own.
func (g *Grid) At(x, y int) float32 {
	return g.Pix[y*g.Width+x]
}

// Set writes the sample at (x, y).
func (g *Grid) Set(x, y int, v float32) {
	g.Pix[y*g.Width+x] = v
}

// SameShape reports whether both dimensions match exactly.
func (g *Grid) SameShape(other *Grid) bool {
	return other != nil && g.Width == other.Width && g.Height == other.Height
}

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	out := NewGrid(g.Width, g.Height)
	copy(out.Pix, g.Pix)
	return out
}
