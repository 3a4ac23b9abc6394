package integrator

import (
	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/geodesic"
	"github.com/df07/go-grrt/pkg/kerr"
)

// Pipeline traces one pixel from the image plane to its observable: launch
// from the observer, integrate the geodesic, evaluate the emitter at each
// sample and feed the accumulator.
type Pipeline struct {
	Metric         kerr.Metric
	Observer       kerr.Observer
	Emitter        core.Emitter
	Geodesic       geodesic.Config
	NewAccumulator core.AccumulatorFactory
}

// Trace implements Integrator.
func (p *Pipeline) Trace(task core.PixelTask) core.PixelResult {
	res, _ := p.TraceObserved(task, nil)
	return res
}

// TraceObserved traces a pixel and reports every accepted geodesic state to obs.
func (p *Pipeline) TraceObserved(task core.PixelTask, obs geodesic.StepObserver) (core.PixelResult, geodesic.Context) {
	s0, c := p.Observer.Launch(p.Metric, task.Alpha, task.Beta)
	tracer := geodesic.Tracer{
		Metric:   p.Metric,
		Config:   p.Geodesic,
		Region:   p.Emitter.Region(),
		Observer: obs,
	}
	acc := p.NewAccumulator(task)

	ctx := tracer.Trace(s0, c, p.Observer.Planar(c), func(s core.Sample) bool {
		return acc.Add(s, p.Emitter.Evaluate(s, c))
	})
	return core.PixelResult{
		Alpha:  task.Alpha,
		Beta:   task.Beta,
		Value:  acc.Value(),
		Status: ctx.Status,
		Flags:  ctx.Flags,
		Steps:  ctx.Steps,
	}, ctx
}
