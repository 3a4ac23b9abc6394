package renderer

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/device"
	"github.com/df07/go-grrt/pkg/emission"
	"github.com/df07/go-grrt/pkg/geodesic"
	"github.com/df07/go-grrt/pkg/integrator"
	"github.com/df07/go-grrt/pkg/kerr"
)

// countingIntegrator records how often each pixel is traced.
type countingIntegrator struct {
	counts []atomic.Int32
}

func (c *countingIntegrator) Trace(task core.PixelTask) core.PixelResult {
	c.counts[task.Index].Add(1)
	return core.PixelResult{Alpha: task.Alpha, Beta: task.Beta, Value: float64(task.Index), Status: core.StatusEscaped}
}

// panickingIntegrator fails on one pixel.
type panickingIntegrator struct{ index int }

func (p panickingIntegrator) Trace(task core.PixelTask) core.PixelResult {
	if task.Index == p.index {
		panic("diverging pixel")
	}
	return core.PixelResult{}
}

func newCPU(t *testing.T, memory int64) *device.CPU {
	t.Helper()
	dev := device.NewCPU(4, memory)
	if err := dev.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(dev.Close)
	return dev
}

func TestRenderExactlyOnce(t *testing.T) {
	tests := []struct {
		name string
		size int
		grid device.Grid
	}{
		{"513 with 500-pixel batches", 513, device.Grid{BlockX: 100, BlockY: 1, GridX: 5, GridY: 1}},
		{"513 with Odyssey grid", 513, device.Grid{BlockX: 100, BlockY: 1, GridX: 1, GridY: 50}},
		{"Tiny grid", 7, device.Grid{BlockX: 2, BlockY: 3, GridX: 2, GridY: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &countingIntegrator{counts: make([]atomic.Int32, tt.size*tt.size)}
			o := NewOrchestrator(counter, NewCamera(tt.size, 20), tt.grid, newCPU(t, 0))

			events := 0
			img, stats, err := o.Render(context.Background(), func(e BatchEvent) {
				events++
				if e.Number != events || e.Total != len(o.Plan().Batches) {
					t.Errorf("Expected event %d of %d, got %d of %d", events, len(o.Plan().Batches), e.Number, e.Total)
				}
			})
			if err != nil {
				t.Fatalf("Expected render to succeed, got %v", err)
			}
			if events != len(o.Plan().Batches) {
				t.Errorf("Expected %d batch events, got %d", len(o.Plan().Batches), events)
			}
			if stats.TotalPixels != tt.size*tt.size || stats.Escaped != tt.size*tt.size {
				t.Errorf("Expected stats over %d pixels, got %+v", tt.size*tt.size, stats)
			}

			for i := range counter.counts {
				if n := counter.counts[i].Load(); n != 1 {
					t.Fatalf("Expected pixel %d traced once, traced %d times", i, n)
				}
				if img.Pixels[i].Value != float64(i) {
					t.Fatalf("Expected pixel %d at its row-major slot, found pixel %v", i, img.Pixels[i].Value)
				}
			}
		})
	}
}

func TestRenderResourceExhausted(t *testing.T) {
	dev := newCPU(t, device.SlotSize*10)
	grid := device.Grid{BlockX: 100, BlockY: 1, GridX: 1, GridY: 50}
	o := NewOrchestrator(&countingIntegrator{counts: make([]atomic.Int32, 64)}, NewCamera(8, 20), grid, dev)

	img, _, err := o.Render(context.Background(), nil)
	if !errors.Is(err, device.ErrResourceExhausted) {
		t.Errorf("Expected ErrResourceExhausted, got %v", err)
	}
	if img != nil {
		t.Errorf("Expected no partial image")
	}
}

func TestRenderReleasesBufferOnFailure(t *testing.T) {
	dev := newCPU(t, 0)
	grid := device.Grid{BlockX: 4, BlockY: 1, GridX: 1, GridY: 4}
	o := NewOrchestrator(panickingIntegrator{index: 40}, NewCamera(8, 20), grid, dev)

	img, _, err := o.Render(context.Background(), nil)
	if err == nil || img != nil {
		t.Fatalf("Expected a failed batch to abort the render, got err=%v", err)
	}
	if dev.Used() != 0 {
		t.Errorf("Expected the device buffer to be released, %d bytes in use", dev.Used())
	}
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	grid := device.Grid{BlockX: 8, BlockY: 1, GridX: 1, GridY: 1}
	counter := &countingIntegrator{counts: make([]atomic.Int32, 64)}
	o := NewOrchestrator(counter, NewCamera(8, 20), grid, newCPU(t, 0))

	_, _, err := o.Render(ctx, func(e BatchEvent) {
		if e.Number == 2 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func redshiftPipeline(spin, inclination float64) *integrator.Pipeline {
	m := kerr.Metric{A: spin}
	return &integrator.Pipeline{
		Metric:         m,
		Observer:       kerr.Observer{Distance: 1000, Inclination: inclination},
		Emitter:        emission.NewThinDisk(m, 20),
		Geodesic:       geodesic.DefaultConfig(),
		NewAccumulator: integrator.NewRedshiftAccumulator,
	}
}

func TestRenderEdgeOnSchwarzschildSymmetry(t *testing.T) {
	const size = 32
	grid := device.Grid{BlockX: 16, BlockY: 1, GridX: 1, GridY: 8}
	o := NewOrchestrator(redshiftPipeline(0, 90), NewCamera(size, 24), grid, newCPU(t, 0))

	img, stats, err := o.Render(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Emitting == 0 {
		t.Fatalf("Expected the disk to be visible edge-on")
	}

	maskMismatch := 0
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			p := img.At(row, col)

			// The emitting region is point-symmetric about the image centre.
			q := img.At(size-1-row, size-1-col)
			if (p.Value != 0) != (q.Value != 0) {
				maskMismatch++
			}

			// Reflection through the equatorial plane maps beta to -beta and
			// keeps the redshift; Doppler boosting breaks alpha -> -alpha.
			m := img.At(size-1-row, col)
			if p.Value != 0 && m.Value != 0 && math.Abs(p.Value-m.Value) > 1e-6 {
				t.Errorf("Pixel (%d,%d): redshift %v differs from its mirror %v", row, col, p.Value, m.Value)
			}
			if p.Value < 0 {
				t.Errorf("Pixel (%d,%d): negative redshift %v", row, col, p.Value)
			}
		}
	}
	if maskMismatch > 2 {
		t.Errorf("Expected a point-symmetric emission mask, %d pixels differ", maskMismatch)
	}
}

func TestCentreRayCaptured(t *testing.T) {
	for _, inclination := range []float64{0, 30, 60, 90, 180} {
		for _, inner := range []float64{2.5, 6, 10} {
			p := redshiftPipeline(0, inclination)
			p.Emitter = &emission.ThinDisk{Metric: p.Metric, Inner: inner, Outer: 20}

			res := p.Trace(core.PixelTask{})
			if res.Status != core.StatusCaptured || res.Flags.Has(core.FlagOpaque) {
				t.Errorf("Inclination %v, inner %v: expected horizon capture, got %s flags %b",
					inclination, inner, res.Status, res.Flags)
			}
			if res.Value != 0 {
				t.Errorf("Inclination %v, inner %v: expected no emission, got %v", inclination, inner, res.Value)
			}
		}
	}
}
