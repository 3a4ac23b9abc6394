package scene

import (
	"fmt"

	"github.com/df07/go-grrt/pkg/config"
	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/device"
	"github.com/df07/go-grrt/pkg/emission"
	"github.com/df07/go-grrt/pkg/geodesic"
	"github.com/df07/go-grrt/pkg/integrator"
	"github.com/df07/go-grrt/pkg/kerr"
	"github.com/df07/go-grrt/pkg/renderer"
)

// Scene contains all the elements needed for rendering one run
type Scene struct {
	Run      config.Run
	Metric   kerr.Metric
	Observer kerr.Observer
	Camera   *renderer.Camera
	Emitter  core.Emitter
	Pipeline *integrator.Pipeline
}

// New validates run and wires its emitter and accumulator. The emitter is
// chosen once here; nothing downstream branches on the scenario.
func New(run config.Run) (*Scene, error) {
	if err := run.Validate(); err != nil {
		return nil, err
	}

	m := kerr.Metric{A: run.Spin}
	s := &Scene{
		Run:      run,
		Metric:   m,
		Observer: kerr.Observer{Distance: run.Distance, Inclination: run.Inclination},
		Camera:   renderer.NewCamera(run.Resolution, run.HalfWidth),
	}

	gc := geodesic.DefaultConfig()
	gc.Tolerance = run.Integrator.Tolerance
	gc.MaxSteps = run.Integrator.MaxSteps
	gc.EscapeRadius = run.Distance

	var newAcc core.AccumulatorFactory
	switch run.Scenario {
	case config.Redshift:
		s.Emitter = &emission.ThinDisk{Metric: m, Inner: run.DiskInner(), Outer: run.Disk.Outer}
		newAcc = integrator.NewRedshiftAccumulator
	case config.Synchrotron:
		sh := run.Shell
		s.Emitter = &emission.Shell{
			Metric:      m,
			Inner:       run.ShellInner(),
			Outer:       sh.Outer,
			Density:     emission.Profile(sh.Density),
			Temperature: emission.Profile(sh.Temperature),
			Field:       emission.Profile(sh.Field),
			Frequency:   run.Frequency,
		}
		rg := emission.GravitationalRadius(run.Source.Mass)
		scale := integrator.LuminosityScale(run.Frequency, run.Source.Distance*emission.Parsec, rg, s.Camera.PixelSize())
		maxTau := sh.MaxOpticalDepth
		if maxTau == 0 {
			maxTau = integrator.DefaultMaxOpticalDepth
		}
		newAcc = integrator.IntensityFactory(rg, maxTau, scale)
	default:
		return nil, fmt.Errorf("unknown scenario %q", run.Scenario)
	}

	s.Pipeline = &integrator.Pipeline{
		Metric:         m,
		Observer:       s.Observer,
		Emitter:        s.Emitter,
		Geodesic:       gc,
		NewAccumulator: newAcc,
	}
	return s, nil
}

// Orchestrator returns a batch orchestrator for the scene on dev.
func (s *Scene) Orchestrator(dev device.Accelerator) *renderer.Orchestrator {
	return renderer.NewOrchestrator(s.Pipeline, s.Camera, s.Run.Grid.Device(), dev)
}

// Observable names the per-pixel value: "redshift" or "luminosity".
func (s *Scene) Observable() string {
	if s.Run.Scenario == config.Synchrotron {
		return "luminosity"
	}
	return "redshift"
}
