package geodesic

import "github.com/df07/go-grrt/pkg/core"

// Config controls step-size selection and termination.
type Config struct {
	Tolerance          float64 // local error tolerance of an RKF45 step
	InitialStep        float64 // first trial step, affine units
	MinStep            float64 // below this a step counts as underflow
	RadialStepFraction float64 // h <= fraction * r
	HorizonStepFactor  float64 // h <= factor * (r - r_h)
	TurnStepFactor     float64 // step shrink applied after a turning point
	MaxSteps           int     // accepted-step budget per ray
	HorizonMargin      float64 // capture when r < r_h (1 + margin)
	EscapeRadius       float64 // escape beyond max(EscapeRadius, starting r)
	DriftTolerance     float64 // relative drift of a raw step treated as divergence
}

// DefaultConfig returns the settings used for image rendering.
func DefaultConfig() Config {
	return Config{
		Tolerance:          1e-10,
		InitialStep:        1,
		MinStep:            1e-9,
		RadialStepFraction: 0.05,
		HorizonStepFactor:  0.1,
		TurnStepFactor:     0.25,
		MaxSteps:           20000,
		HorizonMargin:      0.01,
		DriftTolerance:     1e-6,
	}
}

// Context is the mutable integration state of one ray.
type Context struct {
	Step        float64
	Lambda      float64 // affine parameter travelled backward from the observer
	Steps       int
	Rejected    int
	RadialTurns int
	PolarTurns  int
	Status      core.Status
	Flags       core.Flags
	MaxDrift    float64 // largest relative drift of a step before re-projection
}

// StepObserver receives the initial state and every accepted state of a ray.
type StepObserver func(s core.State, ctx *Context)
