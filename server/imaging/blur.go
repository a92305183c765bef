package imaging

import "math"

// GaussianBlur applies a separable Gaussian blur with a 1D kernel of the
// given size, sigma = size/4. Boundaries use edge replication, so a
// uniform image stays exactly uniform (the normalized kernel sums to 1 and
// every tap reads the same value). Sizes <= 1 return an unmodified copy.
func GaussianBlur(g *Grid, size int) *Grid {
	if size <= 1 {
		return g.Clone()
	}

	kernel := gaussianKernel(size)
	half := size / 2

	// Horizontal pass.
	tmp := NewGrid(g.Width, g.Height)
	for y := 0; y < g.Height; y++ {
		row := g.Pix[y*g.Width : (y+1)*g.Width]
		for x := 0; x < g.Width; x++ {
			var sum float64
			for k, w := range kernel {
				sx := clampIndex(x+k-half, g.Width)
				sum += w * float64(row[sx])
			}
			tmp.Pix[y*g.Width+x] = float32(sum)
		}
	}

	// Vertical pass.
	out := NewGrid(g.Width, g.Height)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			var sum float64
			for k, w := range kernel {
				sy := clampIndex(y+k-half, g.Height)
				sum += w * float64(tmp.Pix[sy*g.Width+x])
			}
			out.Pix[y*g.Width+x] = float32(sum)
		}
	}

	return out
}

// gaussianKernel builds a normalized 1D kernel of the given length centered
// at zero, weights exp(-x^2 / (2*sigma^2)) with sigma = size/4.
func gaussianKernel(size int) []float64 {
	sigma := float64(size) / 4.0
	half := size / 2

	kernel := make([]float64, size)
	var total float64
	for i := range kernel {
		x := float64(i - half)
		kernel[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		total += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= total
	}
	return kernel
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
