package renderer

import (
	"context"
	"fmt"
	"time"

	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/device"
	"github.com/df07/go-grrt/pkg/integrator"
)

// BatchEvent reports a finished batch
type BatchEvent struct {
	Batch   Batch
	Number  int // 1-based
	Total   int
	Elapsed time.Duration
	Image   *Image // partially assembled; read-only for the callback
}

// Percent returns the share of batches finished.
func (e BatchEvent) Percent() int {
	return e.Number * 100 / e.Total
}

// Orchestrator renders an image by launching the compute grid once per batch
type Orchestrator struct {
	integrator integrator.Integrator
	camera     *Camera
	plan       Plan
	device     device.Accelerator
}

// NewOrchestrator creates an orchestrator tracing every pixel of camera with
// in, launched on dev with grid shape g.
func NewOrchestrator(in integrator.Integrator, camera *Camera, g device.Grid, dev device.Accelerator) *Orchestrator {
	return &Orchestrator{
		integrator: in,
		camera:     camera,
		plan:       NewPlan(camera.Size, g),
		device:     dev,
	}
}

// Plan returns the batch plan.
func (o *Orchestrator) Plan() Plan { return o.plan }

// Render traces every pixel and returns the complete image. Batches run one
// after another through a single device buffer; the buffer is released on
// every exit path. On any error no image is returned.
func (o *Orchestrator) Render(ctx context.Context, onBatch func(BatchEvent)) (*Image, RenderStats, error) {
	log := core.Logger()
	g := o.plan.Grid
	size := o.plan.Size

	buf, err := o.device.Alloc(g.Units())
	if err != nil {
		return nil, RenderStats{}, fmt.Errorf("allocate batch buffer: %w", err)
	}
	defer buf.Free()
	slots := buf.Slots()

	log.Debug("render started", "size", size, "grid", g.String(), "batches", len(o.plan.Batches), "device", o.device.Name())

	img := NewImage(size)
	written := 0
	start := time.Now()
	for i, b := range o.plan.Batches {
		// Check if client cancelled before starting this batch
		if err := ctx.Err(); err != nil {
			log.Info("render cancelled", "batch", i+1)
			return nil, RenderStats{}, err
		}

		batchStart := time.Now()
		err := o.device.Launch(ctx, g, func(x, y int) {
			row, col, ok := o.plan.Pixel(b, x, y)
			if !ok {
				return
			}
			slots[y*g.Width()+x] = o.integrator.Trace(o.camera.Task(row, col))
		})
		if err != nil {
			return nil, RenderStats{}, fmt.Errorf("batch %d: %w", b.ID, err)
		}

		// Copy the batch out row by row at its offset in the image.
		w := b.Bounds.Dx()
		for row := b.Bounds.Min.Y; row < b.Bounds.Max.Y; row++ {
			src := (row - b.Origin.Y) * g.Width()
			dst := row*size + b.Bounds.Min.X
			written += copy(img.Pixels[dst:dst+w], slots[src:src+w])
		}

		event := BatchEvent{
			Batch:   b,
			Number:  i + 1,
			Total:   len(o.plan.Batches),
			Elapsed: time.Since(batchStart),
			Image:   img,
		}
		log.Info("batch finished", "batch", event.Number, "of", event.Total, "progress", fmt.Sprintf("finish %d %%", event.Percent()))
		log.Debug("batch timing", "batch", event.Number, "elapsed", event.Elapsed)
		if onBatch != nil {
			onBatch(event)
		}
	}

	if written != size*size {
		return nil, RenderStats{}, fmt.Errorf("assembled %d of %d pixels", written, size*size)
	}

	stats := ComputeStats(img)
	stats.Batches = len(o.plan.Batches)
	stats.Duration = time.Since(start)
	if stats.StepLimited > 0 {
		log.Warn("rays exceeded the step budget", "pixels", stats.StepLimited)
	}
	if stats.Diverged > 0 {
		log.Warn("rays diverged", "pixels", stats.Diverged)
	}
	return img, stats, nil
}
