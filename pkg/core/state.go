package core

import "fmt"

// State holds the Boyer-Lindquist position and covariant momenta of a photon.
// Units are geometrized with M = 1.
type State struct {
	R, Theta, Phi, T float64
	Pr, Ptheta       float64
}

// Lerp returns the state a fraction f of the way from s to o.
func (s State) Lerp(o State, f float64) State {
	return State{
		R:      s.R + (o.R-s.R)*f,
		Theta:  s.Theta + (o.Theta-s.Theta)*f,
		Phi:    s.Phi + (o.Phi-s.Phi)*f,
		T:      s.T + (o.T-s.T)*f,
		Pr:     s.Pr + (o.Pr-s.Pr)*f,
		Ptheta: s.Ptheta + (o.Ptheta-s.Ptheta)*f,
	}
}

// Constants are the conserved quantities of a photon geodesic: energy at
// infinity, axial angular momentum and the Carter constant.
type Constants struct {
	E, L, Q float64
}

// SampleKind distinguishes surface crossings from volume segments.
type SampleKind uint8

const (
	SampleSurface SampleKind = iota
	SampleVolume
)

// Sample is a point on the geodesic where the emitter is evaluated.
// DLambda is the affine length represented by a volume sample and zero for
// surface crossings.
type Sample struct {
	State   State
	Lambda  float64
	DLambda float64
	Kind    SampleKind
}

// Emission is the local radiative response at a sample.
// J is the emissivity (erg s^-1 cm^-3 Hz^-1 sr^-1), Alpha the absorptivity
// (cm^-1), both in the emitter's rest frame, and G the redshift factor
// nu_obs / nu_em.
type Emission struct {
	J, Alpha, G float64
}

// Status is the termination state of a ray.
type Status uint8

const (
	StatusActive Status = iota
	StatusTurningPoint
	StatusCaptured
	StatusEscaped
	StatusStepLimitExceeded
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusTurningPoint:
		return "turning-point"
	case StatusCaptured:
		return "captured"
	case StatusEscaped:
		return "escaped"
	case StatusStepLimitExceeded:
		return "step-limit-exceeded"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Terminal reports whether no further integration happens in this status.
func (s Status) Terminal() bool {
	return s == StatusCaptured || s == StatusEscaped || s == StatusStepLimitExceeded
}

// Flags carry per-pixel diagnostics alongside a result.
type Flags uint8

const (
	// FlagStepLimit marks a ray that ran out of its step budget.
	FlagStepLimit Flags = 1 << iota
	// FlagDiverged marks a ray terminated because the integration diverged.
	FlagDiverged
	// FlagPlanar marks a ray confined to the equatorial plane.
	FlagPlanar
	// FlagOpaque marks a ray that ended inside an emitter once its
	// observable was complete.
	FlagOpaque
)

// Has reports whether all bits of o are set.
func (f Flags) Has(o Flags) bool { return f&o == o }

// PixelTask is one pixel of the image plane and its impact parameters.
type PixelTask struct {
	Row, Col int
	Index    int // row-major index
	Alpha    float64
	Beta     float64
}

// PixelResult is the observable computed for a pixel.
type PixelResult struct {
	Alpha  float64
	Beta   float64
	Value  float64
	Status Status
	Flags  Flags
	Steps  int
}
