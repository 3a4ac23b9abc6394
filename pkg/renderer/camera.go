package renderer

import "github.com/df07/go-grrt/pkg/core"

// Camera maps image pixels to impact parameters (alpha, beta) on the
// observer's image plane, in units of GM/c^2.
type Camera struct {
	Size      int     // pixels per side
	HalfWidth float64 // half the side of the image plane
}

// NewCamera creates a square camera of size pixels covering
// [-halfWidth, halfWidth] on both axes.
func NewCamera(size int, halfWidth float64) *Camera {
	return &Camera{Size: size, HalfWidth: halfWidth}
}

// PixelSize returns the side of one pixel on the image plane.
func (c *Camera) PixelSize() float64 {
	return 2 * c.HalfWidth / float64(c.Size)
}

// Task returns the pixel task at (row, col). Pixel centres are sampled, so
// pixel (row, col) and (Size-1-row, Size-1-col) are mirror images through
// the image centre.
func (c *Camera) Task(row, col int) core.PixelTask {
	d := c.PixelSize()
	half := float64(c.Size) / 2
	return core.PixelTask{
		Row:   row,
		Col:   col,
		Index: row*c.Size + col,
		Alpha: (float64(col) + 0.5 - half) * d,
		Beta:  (float64(row) + 0.5 - half) * d,
	}
}
