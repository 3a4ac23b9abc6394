// Package geodesic integrates photon geodesics in Kerr spacetime backward from
// the observer.
package geodesic

import (
	"math"

	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/kerr"
)

// vec is the integration vector (r, theta, phi, t, p_r, p_theta).
type vec [6]float64

func toVec(s core.State) vec {
	return vec{s.R, s.Theta, s.Phi, s.T, s.Pr, s.Ptheta}
}

func (v vec) state() core.State {
	return core.State{R: v[0], Theta: v[1], Phi: v[2], T: v[3], Pr: v[4], Ptheta: v[5]}
}

func (v vec) finite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// derivatives returns dy/dlambda of Hamilton's equations for a null geodesic
// with constants c. The L/sin^2 terms are skipped for L = 0 so rays through the
// pole stay regular. Planar rays keep theta and p_theta fixed.
func derivatives(m kerr.Metric, y vec, c core.Constants, planar bool) vec {
	r, theta, pr, pth := y[0], y[1], y[4], y[5]
	a, e, l := m.A, c.E, c.L

	sin, cos := math.Sincos(theta)
	sin2 := kerr.ClampSin2(sin * sin)
	r2a2 := r*r + a*a
	sigma := r*r + a*a*cos*cos
	delta := r*r - 2*r + a*a
	sd := sigma * delta
	kappa := c.Q + l*l + a*a*e*e

	var d vec
	d[0] = delta * pr / sigma
	d[2] = 2 * a * r * e / sd
	if l != 0 {
		d[2] += (sigma - 2*r) * l / (sd * sin2)
	}
	d[3] = e + 2*r*(r2a2*e-a*l)/sd
	d[4] = (-(r-1)*kappa+2*r*r2a2*e*e-2*a*e*l)/sd - 2*pr*pr*(r-1)/sigma

	if planar {
		return d
	}
	d[1] = pth / sigma
	pt := -a * a * e * e
	if l != 0 {
		pt += l * l / (sin2 * sin2)
	}
	d[5] = sin * cos * pt / sigma
	return d
}
