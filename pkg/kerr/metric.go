// Package kerr evaluates the Kerr metric in Boyer-Lindquist coordinates and the
// conserved quantities of photon geodesics. Geometrized units with M = 1.
package kerr

import (
	"math"

	"github.com/df07/go-grrt/pkg/core"
)

// Metric is the Kerr spacetime of dimensionless spin A.
type Metric struct {
	A float64
}

// Components holds the non-zero covariant metric coefficients at a point.
type Components struct {
	Tt, Tphi, PhiPhi float64
	Rr, ThetaTheta   float64
}

// Sigma returns r^2 + a^2 cos^2(theta).
func (m Metric) Sigma(r, theta float64) float64 {
	c := math.Cos(theta)
	return r*r + m.A*m.A*c*c
}

// Delta returns r^2 - 2r + a^2.
func (m Metric) Delta(r float64) float64 {
	return r*r - 2*r + m.A*m.A
}

// Horizon returns the outer event horizon radius.
func (m Metric) Horizon() float64 {
	return 1 + math.Sqrt(1-m.A*m.A)
}

// ISCO returns the prograde innermost stable circular orbit radius.
func (m Metric) ISCO() float64 {
	a := m.A
	z1 := 1 + math.Cbrt(1-a*a)*(math.Cbrt(1+a)+math.Cbrt(1-a))
	z2 := math.Sqrt(3*a*a + z1*z1)
	return 3 + z2 - math.Sqrt((3-z1)*(3+z1+2*z2))
}

// Covariant returns the metric coefficients at (r, theta).
func (m Metric) Covariant(r, theta float64) Components {
	sigma := m.Sigma(r, theta)
	s := math.Sin(theta)
	s2 := s * s
	a := m.A
	return Components{
		Tt:         -(1 - 2*r/sigma),
		Tphi:       -2 * a * r * s2 / sigma,
		PhiPhi:     (r*r + a*a + 2*a*a*r*s2/sigma) * s2,
		Rr:         sigma / m.Delta(r),
		ThetaTheta: sigma,
	}
}

// RadialPotential returns R(r) = [E(r^2+a^2) - aL]^2 - Delta[(L - aE)^2 + Q].
func (m Metric) RadialPotential(r float64, c core.Constants) float64 {
	a := m.A
	p := c.E*(r*r+a*a) - a*c.L
	l := c.L - a*c.E
	return p*p - m.Delta(r)*(l*l+c.Q)
}

// PolarPotential returns Theta(theta) = Q - cos^2(theta)(L^2/sin^2(theta) - a^2 E^2).
// The L^2/sin^2 term is dropped when L is zero so the pole stays regular.
func (m Metric) PolarPotential(theta float64, c core.Constants) float64 {
	s, co := math.Sincos(theta)
	term := -m.A * m.A * c.E * c.E
	if c.L != 0 {
		term += c.L * c.L / ClampSin2(s*s)
	}
	return c.Q - co*co*term
}

// Carter recomputes the Carter constant from the polar momentum of a state.
func (m Metric) Carter(s core.State, c core.Constants) float64 {
	sn, co := math.Sincos(s.Theta)
	term := -m.A * m.A * c.E * c.E
	if c.L != 0 {
		term += c.L * c.L / ClampSin2(sn*sn)
	}
	return s.Ptheta*s.Ptheta + co*co*term
}

// minSin2 keeps 1/sin^2(theta) finite on the axis.
const minSin2 = 1e-16

// ClampSin2 bounds sin^2(theta) away from zero.
func ClampSin2(s2 float64) float64 {
	return math.Max(s2, minSin2)
}
