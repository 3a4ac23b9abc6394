package integrator

import (
	"math"

	"github.com/df07/go-grrt/pkg/core"
)

// RedshiftAccumulator records the redshift factor of the first surface
// crossing. A ray that never crosses the emitter keeps the sentinel 0.
type RedshiftAccumulator struct {
	g   float64
	hit bool
}

// NewRedshiftAccumulator is a core.AccumulatorFactory for redshift maps.
func NewRedshiftAccumulator(core.PixelTask) core.Accumulator {
	return &RedshiftAccumulator{}
}

func (a *RedshiftAccumulator) Add(s core.Sample, e core.Emission) bool {
	if s.Kind != core.SampleSurface {
		return a.hit
	}
	if !a.hit {
		a.g = e.G
		a.hit = true
	}
	return true
}

func (a *RedshiftAccumulator) Value() float64 { return a.g }

// DefaultMaxOpticalDepth stops integration once nothing further along the
// ray can be seen.
const DefaultMaxOpticalDepth = 30

// IntensityAccumulator integrates the transfer equation backward from the
// observer using the exponential update
//
//	I += g^3 j dl e^-tau (1 - e^-dtau) / dtau,  tau += dtau
//
// which stays non-negative for any optical depth.
type IntensityAccumulator struct {
	Rg              float64 // cm per unit of affine parameter (GM/c^2)
	MaxOpticalDepth float64
	Scale           float64 // converts observed intensity into the pixel observable

	I   float64 // observed specific intensity, erg s^-1 cm^-2 Hz^-1 sr^-1
	Tau float64 // optical depth from the observer
}

// IntensityFactory returns a factory of intensity accumulators sharing the
// given unit conversions.
func IntensityFactory(rg, maxOpticalDepth, scale float64) core.AccumulatorFactory {
	return func(core.PixelTask) core.Accumulator {
		return &IntensityAccumulator{Rg: rg, MaxOpticalDepth: maxOpticalDepth, Scale: scale}
	}
}

func (a *IntensityAccumulator) Add(s core.Sample, e core.Emission) bool {
	if s.Kind != core.SampleVolume || e.G <= 0 || s.DLambda <= 0 {
		return a.done()
	}
	dl := s.DLambda * a.Rg / e.G
	dtau := e.Alpha * dl
	weight := 1.0
	if dtau > 0 {
		weight = -math.Expm1(-dtau) / dtau
	}
	a.I += e.G * e.G * e.G * e.J * dl * math.Exp(-a.Tau) * weight
	a.Tau += dtau
	return a.done()
}

func (a *IntensityAccumulator) done() bool {
	return a.MaxOpticalDepth > 0 && a.Tau > a.MaxOpticalDepth
}

func (a *IntensityAccumulator) Value() float64 { return a.I * a.Scale }

// LuminosityScale converts observed intensity into the luminosity nu L_nu
// (erg s^-1) of one pixel of angular side pixel (in units of GM/c^2 on the
// image plane) seen from distance (cm).
func LuminosityScale(nu, distance, rg, pixel float64) float64 {
	solidAngle := math.Pow(pixel*rg/distance, 2)
	return 4 * math.Pi * distance * distance * nu * solidAngle
}
