package kerr

import (
	"math"

	"github.com/df07/go-grrt/pkg/core"
)

// Observer is a distant static observer at radius Distance and polar angle
// Inclination (degrees), located at phi = 0.
type Observer struct {
	Distance    float64
	Inclination float64
}

// angles returns sin and cos of the inclination, exact on the axis and in the
// equatorial plane so the limiting forms are selected without rounding residue.
func (o Observer) angles() (sin, cos float64) {
	switch o.Inclination {
	case 0:
		return 0, 1
	case 180:
		return 0, -1
	case 90:
		return 1, 0
	}
	return math.Sincos(o.Inclination * math.Pi / 180)
}

// OnAxis reports whether the observer sits on the spin axis.
func (o Observer) OnAxis() bool {
	s, _ := o.angles()
	return s == 0
}

// Equatorial reports whether the observer sits in the equatorial plane.
func (o Observer) Equatorial() bool {
	_, c := o.angles()
	return c == 0
}

// Constants returns the conserved quantities of the photon reaching the
// observer with image-plane impact parameters (alpha, beta).
func (o Observer) Constants(m Metric, alpha, beta float64) core.Constants {
	sin, cos := o.angles()
	if sin == 0 {
		return core.Constants{E: 1, L: 0, Q: alpha*alpha + beta*beta - m.A*m.A}
	}
	return core.Constants{
		E: 1,
		L: -alpha * sin,
		Q: beta*beta + cos*cos*(alpha*alpha-m.A*m.A),
	}
}

// Planar reports whether a photon with constants c never leaves the
// equatorial plane.
func (o Observer) Planar(c core.Constants) bool {
	return o.Equatorial() && c.Q == 0
}

// Launch returns the photon state at the observer for pixel (alpha, beta),
// with momenta pointing along the forward (arriving) direction.
func (o Observer) Launch(m Metric, alpha, beta float64) (core.State, core.Constants) {
	c := o.Constants(m, alpha, beta)
	r := o.Distance

	s := core.State{R: r}
	if rr := m.RadialPotential(r, c); rr > 0 {
		s.Pr = math.Sqrt(rr) / m.Delta(r)
	}

	sin, cos := o.angles()
	switch {
	case sin == 0:
		// On the axis phi is degenerate; the pixel azimuth picks the meridian
		// the ray leaves along.
		b := math.Hypot(alpha, beta)
		if cos > 0 {
			s.Theta = 0
			s.Phi = math.Atan2(alpha, -beta)
			s.Ptheta = -b
		} else {
			s.Theta = math.Pi
			s.Phi = math.Atan2(alpha, beta)
			s.Ptheta = b
		}
	case cos == 0:
		s.Theta = math.Pi / 2
		s.Ptheta = beta
	default:
		s.Theta = o.Inclination * math.Pi / 180
		s.Ptheta = beta
	}
	return s, c
}
