package emission

import (
	"math"

	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/kerr"
)

// KeplerianOmega returns the prograde Keplerian angular velocity at radius r.
func KeplerianOmega(m kerr.Metric, r float64) float64 {
	return 1 / (math.Pow(r, 1.5) + m.A)
}

// Redshift returns g = nu_obs / nu_em for a photon with constants c received
// from gas rotating at angular velocity omega at (r, theta). It returns 0 when
// no timelike orbit with that angular velocity exists there.
func Redshift(m kerr.Metric, r, theta, omega float64, c core.Constants) float64 {
	g := m.Covariant(r, theta)
	norm := -(g.Tt + 2*omega*g.Tphi + omega*omega*g.PhiPhi)
	if norm <= 0 {
		return 0
	}
	ut := 1 / math.Sqrt(norm)
	shift := ut * (c.E - omega*c.L)
	if shift <= 0 {
		return 0
	}
	return 1 / shift
}
