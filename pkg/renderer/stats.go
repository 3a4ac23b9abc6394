package renderer

import (
	"time"

	"github.com/df07/go-grrt/pkg/core"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RenderStats contains statistics about the rendering process
type RenderStats struct {
	TotalPixels int           // Total number of pixels rendered
	Batches     int           // Number of grid launches
	Duration    time.Duration // Wall time of the batch loop

	Captured    int // Rays that fell into the horizon or ended in an emitter
	Escaped     int // Rays that left through the escape radius
	StepLimited int // Rays that exhausted their step budget
	Diverged    int // Rays terminated by numerical divergence
	Emitting    int // Pixels with a non-zero observable

	TotalSteps   int     // Accepted integration steps over all rays
	AverageSteps float64 // Average steps per ray
	MaxSteps     int     // Most steps used by any ray

	Mean   float64 // Mean observable over emitting pixels
	StdDev float64 // Standard deviation of the observable over emitting pixels
	Min    float64 // Smallest non-zero observable
	Max    float64 // Largest observable
	Total  float64 // Sum of the observable (total luminosity for intensity maps)
}

// ComputeStats calculates statistics from an assembled image
func ComputeStats(img *Image) RenderStats {
	stats := RenderStats{TotalPixels: len(img.Pixels)}

	emitting := make([]float64, 0, len(img.Pixels))
	for _, p := range img.Pixels {
		switch p.Status {
		case core.StatusCaptured:
			stats.Captured++
		case core.StatusEscaped:
			stats.Escaped++
		case core.StatusStepLimitExceeded:
			stats.StepLimited++
		}
		if p.Flags.Has(core.FlagDiverged) {
			stats.Diverged++
		}
		stats.TotalSteps += p.Steps
		stats.MaxSteps = max(stats.MaxSteps, p.Steps)
		if p.Value != 0 {
			emitting = append(emitting, p.Value)
		}
	}

	if stats.TotalPixels > 0 {
		stats.AverageSteps = float64(stats.TotalSteps) / float64(stats.TotalPixels)
	}
	stats.Emitting = len(emitting)
	if len(emitting) > 0 {
		stats.Mean, stats.StdDev = stat.MeanStdDev(emitting, nil)
		stats.Min = floats.Min(emitting)
		stats.Max = floats.Max(emitting)
		stats.Total = floats.Sum(emitting)
	}
	if len(emitting) < 2 {
		stats.StdDev = 0
	}
	return stats
}
