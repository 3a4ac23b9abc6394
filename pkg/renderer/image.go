package renderer

import "github.com/df07/go-grrt/pkg/core"

// Image is the assembled result of a render: Size x Size pixel results in
// row-major order.
type Image struct {
	Size   int
	Pixels []core.PixelResult
}

// NewImage allocates an empty image.
func NewImage(size int) *Image {
	return &Image{Size: size, Pixels: make([]core.PixelResult, size*size)}
}

// At returns the result of pixel (row, col).
func (im *Image) At(row, col int) core.PixelResult {
	return im.Pixels[row*im.Size+col]
}

// Values returns the observable of every pixel in row-major order.
func (im *Image) Values() []float64 {
	v := make([]float64, len(im.Pixels))
	for i, p := range im.Pixels {
		v[i] = p.Value
	}
	return v
}
