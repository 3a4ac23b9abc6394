package integrator

import (
	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/geodesic"
)

// PathPoint is one accepted geodesic state with its Cartesian position.
type PathPoint struct {
	Lambda float64   `json:"lambda"`
	State  core.State `json:"state"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Z      float64   `json:"z"`
}

// SampleRecord is one sample handed to the accumulator and what the emitter
// returned for it.
type SampleRecord struct {
	Sample   core.Sample   `json:"sample"`
	Emission core.Emission `json:"emission"`
	Done     bool          `json:"done"`
}

// Inspection is the full trace of one pixel.
type Inspection struct {
	Result    core.PixelResult `json:"result"`
	Constants core.Constants   `json:"constants"`
	Context   geodesic.Context `json:"context"`
	Path      []PathPoint      `json:"path"`
	Samples   []SampleRecord   `json:"samples"`
	Truncated bool             `json:"truncated"` // path thinned to maxPoints
}

type recordingAccumulator struct {
	core.Accumulator
	samples *[]SampleRecord
}

func (r recordingAccumulator) Add(s core.Sample, e core.Emission) bool {
	done := r.Accumulator.Add(s, e)
	*r.samples = append(*r.samples, SampleRecord{Sample: s, Emission: e, Done: done})
	return done
}

// Inspect traces one pixel and records its path and samples. At most
// maxPoints path points are kept (evenly thinned, always including the
// last); maxPoints <= 0 keeps all of them.
func (p *Pipeline) Inspect(task core.PixelTask, maxPoints int) Inspection {
	var in Inspection
	traced := *p
	traced.NewAccumulator = func(t core.PixelTask) core.Accumulator {
		return recordingAccumulator{Accumulator: p.NewAccumulator(t), samples: &in.Samples}
	}

	var all []PathPoint
	res, ctx := traced.TraceObserved(task, func(s core.State, c *geodesic.Context) {
		pos := core.Cartesian(s, p.Metric.A)
		all = append(all, PathPoint{Lambda: c.Lambda, State: s, X: pos.X, Y: pos.Y, Z: pos.Z})
	})

	in.Result = res
	in.Context = ctx
	_, in.Constants = p.Observer.Launch(p.Metric, task.Alpha, task.Beta)
	in.Path = all
	if maxPoints > 0 && len(all) > maxPoints {
		maxPoints = max(maxPoints, 2)
		in.Truncated = true
		in.Path = make([]PathPoint, 0, maxPoints)
		stride := float64(len(all)-1) / float64(maxPoints-1)
		for i := 0; i < maxPoints; i++ {
			in.Path = append(in.Path, all[int(float64(i)*stride+0.5)])
		}
	}
	return in
}
