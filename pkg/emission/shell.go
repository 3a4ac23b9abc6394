package emission

import (
	"math"

	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/kerr"
)

// Profile is a radial power law Value * (r / r0)^-Index.
type Profile struct {
	Value float64
	Index float64
}

// At evaluates the profile at r relative to the reference radius r0.
func (p Profile) At(r, r0 float64) float64 {
	if p.Index == 0 {
		return p.Value
	}
	return p.Value * math.Pow(r/r0, -p.Index)
}

// Shell is a spherical shell of gas between Inner and Outer rotating with the
// Keplerian angular velocity of its radius. Profiles are referenced to Inner.
type Shell struct {
	Metric       kerr.Metric
	Inner, Outer float64
	Density      Profile // cm^-3
	Temperature  Profile // kT / (m_e c^2)
	Field        Profile // G
	Frequency    float64 // observing frequency, Hz
}

func (s *Shell) Name() string { return "synchrotron" }

func (s *Shell) Region() core.Region { return shellRegion{inner: s.Inner, outer: s.Outer} }

// Plasma returns the gas state at radius r.
func (s *Shell) Plasma(r float64) Plasma {
	return Plasma{
		Density: s.Density.At(r, s.Inner),
		Theta:   s.Temperature.At(r, s.Inner),
		Field:   s.Field.At(r, s.Inner),
	}
}

// Evaluate returns the rest-frame emissivity and absorptivity at the
// frequency the gas must emit to be observed at s.Frequency.
func (s *Shell) Evaluate(sm core.Sample, c core.Constants) core.Emission {
	r, theta := sm.State.R, sm.State.Theta
	g := Redshift(s.Metric, r, theta, KeplerianOmega(s.Metric, r), c)
	if g <= 0 {
		return core.Emission{}
	}
	j, alpha := ThermalSynchrotron(s.Plasma(r), s.Frequency/g)
	return core.Emission{J: j, Alpha: alpha, G: g}
}

type shellRegion struct {
	inner, outer float64
}

// Crossing returns the first boundary sphere crossed by the segment.
func (s shellRegion) Crossing(prev, cur core.State) (float64, bool) {
	best, found := 0.0, false
	for _, rb := range [2]float64{s.inner, s.outer} {
		d0, d1 := prev.R-rb, cur.R-rb
		if d0 == d1 || d0*d1 > 0 || d0 == 0 {
			continue
		}
		f := d0 / (d0 - d1)
		if !found || f < best {
			best, found = f, true
		}
	}
	return best, found
}

func (s shellRegion) Contains(st core.State) bool {
	return st.R >= s.inner && st.R <= s.outer
}
