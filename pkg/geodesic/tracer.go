package geodesic

import (
	"math"

	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/kerr"
)

// Tracer integrates photon geodesics backward from the observer and reports
// where they meet an emission region.
type Tracer struct {
	Metric   kerr.Metric
	Config   Config
	Region   core.Region  // nil traces bare geodesics
	Observer StepObserver // optional
}

// NewTracer creates a tracer with the default configuration.
func NewTracer(m kerr.Metric, region core.Region) *Tracer {
	return &Tracer{Metric: m, Config: DefaultConfig(), Region: region}
}

// Visit consumes a sample and reports whether the ray is finished.
type Visit func(s core.Sample) (done bool)

// Trace integrates the photon launched with state s0 and constants c until it
// terminates. Samples along the path are passed to visit as they are found;
// when visit reports done the ray ends inside the emitter (Captured with
// FlagOpaque).
func (tr *Tracer) Trace(s0 core.State, c core.Constants, planar bool, visit Visit) Context {
	cfg := tr.Config
	m := tr.Metric
	rh := m.Horizon()
	capture := rh * (1 + cfg.HorizonMargin)
	escape := math.Max(cfg.EscapeRadius, s0.R)
	qScale := math.Max(math.Abs(c.Q), 1)

	ctx := Context{Step: cfg.InitialStep, Status: core.StatusActive}
	if planar {
		ctx.Flags |= core.FlagPlanar
	}

	y := toVec(s0)
	sgnR := sign(s0.Pr, 1)
	sgnTh := sign(s0.Ptheta, 1)
	if tr.Observer != nil {
		tr.Observer(s0, &ctx)
	}

	for {
		if ctx.Steps >= cfg.MaxSteps {
			ctx.Status = core.StatusStepLimitExceeded
			ctx.Flags |= core.FlagStepLimit
			return ctx
		}

		h := tr.clampStep(ctx.Step, y[0], rh)
		var (
			next     vec
			errNorm  float64
			drift    float64
			turnedR  bool
			turnedTh bool
			accepted bool
		)
		for !accepted {
			next, errNorm = rkf45(m, y, c, planar, h, cfg.Tolerance)
			if errNorm > 1 {
				if h <= cfg.MinStep {
					return tr.diverged(ctx)
				}
				ctx.Rejected++
				h = math.Max(nextStep(h, errNorm), cfg.MinStep)
				continue
			}

			drift = tr.drift(next, c, planar, qScale)
			var ok bool
			next, turnedR, turnedTh, ok = tr.project(next, c, planar, h, sgnR, sgnTh)
			if !ok {
				ctx.Rejected++
				h = math.Max(h/2, cfg.MinStep)
				continue
			}
			accepted = true
		}

		prev := y
		y = next
		ctx.Steps++
		ctx.Lambda += h
		ctx.Step = nextStep(h, errNorm)
		ctx.Status = core.StatusActive

		if turnedR {
			sgnR = -sgnR
			ctx.RadialTurns++
		}
		if turnedTh {
			sgnTh = -sgnTh
			ctx.PolarTurns++
		}
		if turnedR || turnedTh {
			ctx.Status = core.StatusTurningPoint
			ctx.Step = h * cfg.TurnStepFactor
		}

		if !y.finite() {
			return tr.diverged(ctx)
		}
		ctx.MaxDrift = math.Max(ctx.MaxDrift, drift)
		if drift > cfg.DriftTolerance {
			return tr.diverged(ctx)
		}
		if tr.Observer != nil {
			tr.Observer(y.state(), &ctx)
		}

		if visit != nil && tr.Region != nil {
			if tr.sample(prev.state(), y.state(), ctx.Lambda-h, h, planar, visit) {
				ctx.Status = core.StatusCaptured
				ctx.Flags |= core.FlagOpaque
				return ctx
			}
		}

		switch {
		case y[0] < capture:
			ctx.Status = core.StatusCaptured
			return ctx
		case y[0] > escape && y[4] < 0:
			// p_r < 0 moves outward when integrating backward.
			ctx.Status = core.StatusEscaped
			return ctx
		}
	}
}

// clampStep bounds h by the distance to the horizon and the radius.
func (tr *Tracer) clampStep(h, r, rh float64) float64 {
	cfg := tr.Config
	h = math.Min(h, cfg.RadialStepFraction*r)
	if gap := r - rh; gap > 0 {
		h = math.Min(h, cfg.HorizonStepFactor*gap)
	}
	return math.Max(h, cfg.MinStep)
}

// drift measures how far an unprojected step has left the constants of
// motion: the Carter residual p_theta^2 - Theta(theta) relative to Q, and the
// null residual Delta^2 p_r^2 - R(r) relative to the terms of R.
func (tr *Tracer) drift(y vec, c core.Constants, planar bool, qScale float64) float64 {
	m := tr.Metric
	var d float64
	if !planar {
		d = math.Abs(m.Carter(y.state(), c)-c.Q) / qScale
	}
	if delta := m.Delta(y[0]); delta > 0 {
		a := m.A
		p := c.E*(y[0]*y[0]+a*a) - a*c.L
		l := c.L - a*c.E
		scale := math.Max(math.Max(p*p, delta*(l*l+c.Q)), 1)
		res := math.Abs(delta*delta*y[4]*y[4] - m.RadialPotential(y[0], c))
		d = math.Max(d, res/scale)
	}
	return d
}

// project replaces the momentum magnitudes of y with the values fixed by the
// conserved constants, keeping the integrated signs. A negative potential
// means the step overshot a turning point: the step is rejected unless it is
// already at the minimum size, in which case the momentum is set to zero and
// its sign flipped.
func (tr *Tracer) project(y vec, c core.Constants, planar bool, h, sgnR, sgnTh float64) (vec, bool, bool, bool) {
	m := tr.Metric
	atMin := h <= tr.Config.MinStep
	var turnedR, turnedTh bool

	delta := m.Delta(y[0])
	if delta > 0 {
		R := m.RadialPotential(y[0], c)
		s := sign(y[4], sgnR)
		switch {
		case R >= 0:
			y[4] = s * math.Sqrt(R) / delta
			turnedR = s != sgnR
		case atMin:
			y[4] = 0
			turnedR = true
		default:
			return y, false, false, false
		}
	}

	if !planar {
		th := m.PolarPotential(y[1], c)
		s := sign(y[5], sgnTh)
		switch {
		case th >= 0:
			y[5] = s * math.Sqrt(th)
			turnedTh = s != sgnTh
		case atMin:
			y[5] = 0
			turnedTh = true
		default:
			return y, false, false, false
		}
	}
	return y, turnedR, turnedTh, true
}

// sample hands the region samples of segment prev -> cur to visit.
// lambda is the affine parameter at prev and h the segment length.
func (tr *Tracer) sample(prev, cur core.State, lambda, h float64, planar bool, visit Visit) bool {
	region := tr.Region

	f, crossed := region.Crossing(prev, cur)
	if crossed && !planar {
		s := core.Sample{State: prev.Lerp(cur, f), Lambda: lambda + f*h, Kind: core.SampleSurface}
		if visit(s) {
			return true
		}
	}

	inPrev, inCur := region.Contains(prev), region.Contains(cur)
	lo, hi := 0.0, 1.0
	switch {
	case inPrev && inCur:
	case inPrev && crossed:
		hi = f
	case inCur && crossed:
		lo = f
	default:
		return false
	}
	if hi <= lo {
		return false
	}
	mid := (lo + hi) / 2
	s := core.Sample{
		State:   prev.Lerp(cur, mid),
		Lambda:  lambda + mid*h,
		DLambda: (hi - lo) * h,
		Kind:    core.SampleVolume,
	}
	return visit(s)
}

func (tr *Tracer) diverged(ctx Context) Context {
	ctx.Status = core.StatusCaptured
	ctx.Flags |= core.FlagDiverged
	return ctx
}

// sign returns the sign of x, or fallback when x is zero.
func sign(x, fallback float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return fallback
}
