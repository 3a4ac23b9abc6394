package emission

import (
	"math"

	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/kerr"
)

// ThinDisk is a geometrically thin Keplerian disk in the equatorial plane
// between Inner and Outer. It has no emissivity of its own; the observable is
// the redshift of the first crossing.
type ThinDisk struct {
	Metric       kerr.Metric
	Inner, Outer float64
}

// NewThinDisk returns a disk extending from the ISCO to outer.
func NewThinDisk(m kerr.Metric, outer float64) *ThinDisk {
	return &ThinDisk{Metric: m, Inner: m.ISCO(), Outer: outer}
}

func (d *ThinDisk) Name() string { return "redshift" }

func (d *ThinDisk) Region() core.Region { return diskRegion{inner: d.Inner, outer: d.Outer} }

func (d *ThinDisk) Evaluate(s core.Sample, c core.Constants) core.Emission {
	r := s.State.R
	return core.Emission{G: Redshift(d.Metric, r, math.Pi/2, KeplerianOmega(d.Metric, r), c)}
}

type diskRegion struct {
	inner, outer float64
}

// Crossing detects a sign change of cos(theta) and accepts it when the
// interpolated radius lies on the disk.
func (d diskRegion) Crossing(prev, cur core.State) (float64, bool) {
	c0, c1 := math.Cos(prev.Theta), math.Cos(cur.Theta)
	if c0 == c1 || c0*c1 > 0 || c0 == 0 {
		return 0, false
	}
	f := c0 / (c0 - c1)
	r := prev.R + f*(cur.R-prev.R)
	if r < d.inner || r > d.outer {
		return 0, false
	}
	return f, true
}

func (diskRegion) Contains(core.State) bool { return false }
