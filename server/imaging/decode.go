package imaging

import (
	"bytes"
	"fmt"
	"image"

	// Raster formats accepted from clients.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ErrEmptyInput is returned when the frame buffer has no bytes at all.
var ErrEmptyInput = fmt.Errorf("empty image buffer")

// DecodeLuminance decodes an encoded raster image into a single-channel
// luminance grid using BT.601 luma weights, samples in the 0-255 range.
// It is the engine's only collaborator: any malformed, empty, or
// zero-sized input comes back as an error, never a panic.
func DecodeLuminance(data []byte) (*Grid, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("decode image: %s image has empty bounds %dx%d", format, width, height)
	}

	grid := NewGrid(width, height)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// Weighted grayscale conversion; RGBA returns 16-bit samples,
			// /257 maps 0xffff back to 255 exactly.
			grid.Pix[i] = float32(0.299*float64(r)+0.587*float64(g)+0.114*float64(b)) / 257.0
			i++
		}
	}

	return grid, nil
}
