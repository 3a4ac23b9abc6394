package renderer

import (
	"image"

	"github.com/df07/go-grrt/pkg/device"
)

// Batch is one launch of the compute grid over a window of the image
type Batch struct {
	ID     int
	Origin image.Point     // image pixel of compute unit (0, 0)
	Bounds image.Rectangle // pixels written, clipped to the image
}

// Plan partitions a square image into sequential batches of one grid launch each
type Plan struct {
	Size     int
	Grid     device.Grid
	BatchesX int
	BatchesY int
	Batches  []Batch
}

// NewPlan creates the batches covering a size x size image with grid g
func NewPlan(size int, g device.Grid) Plan {
	w, h := g.Width(), g.Height()

	// Calculate number of batches in each dimension
	nx := (size + w - 1) / w // Ceiling division
	ny := (size + h - 1) / h

	plan := Plan{Size: size, Grid: g, BatchesX: nx, BatchesY: ny}
	id := 0
	for by := 0; by < ny; by++ {
		for bx := 0; bx < nx; bx++ {
			x0 := bx * w
			y0 := by * h
			x1 := min(x0+w, size) // Don't exceed image bounds
			y1 := min(y0+h, size)

			plan.Batches = append(plan.Batches, Batch{
				ID:     id,
				Origin: image.Pt(x0, y0),
				Bounds: image.Rect(x0, y0, x1, y1),
			})
			id++
		}
	}
	return plan
}

// Pixel maps compute unit (x, y) of batch b to its image pixel and reports
// whether the unit lies inside the image.
func (p Plan) Pixel(b Batch, x, y int) (row, col int, ok bool) {
	col, row = b.Origin.X+x, b.Origin.Y+y
	return row, col, col < p.Size && row < p.Size
}
