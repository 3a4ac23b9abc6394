package emission

import "math"

// Plasma is the local state of the emitting gas.
type Plasma struct {
	Density float64 // electron number density, cm^-3
	Theta   float64 // electron temperature kT / (m_e c^2)
	Field   float64 // magnetic field strength, G
}

// maxExponent keeps exp() finite for cold plasma where the fit no longer holds.
const maxExponent = 700

// ThermalSynchrotron returns the angle-averaged emissivity j_nu
// (erg s^-1 cm^-3 Hz^-1 sr^-1) and absorptivity alpha_nu (cm^-1) of a
// relativistic Maxwellian at frequency nu, using the Mahadevan, Narayan & Yi
// (1996) fit. Absorption follows from Kirchhoff's law.
func ThermalSynchrotron(p Plasma, nu float64) (j, alpha float64) {
	if p.Density <= 0 || p.Theta <= 0 || p.Field <= 0 || nu <= 0 {
		return 0, 0
	}
	nu0 := ElectronCharge * p.Field / (2 * math.Pi * ElectronMass * SpeedOfLight)
	x := 2 * nu / (3 * nu0 * p.Theta * p.Theta)

	// exp(-1.8899 x^(1/3)) from M(x) and 1/K2(1/Theta) = exp(1/Theta)/K2s share one exponential.
	exponent := 1/p.Theta - 1.8899*math.Cbrt(x)
	if exponent > maxExponent {
		return 0, 0
	}
	m := 4.0505 / math.Pow(x, 1.0/6) * (1 + 0.40/math.Pow(x, 0.25) + 0.5316/math.Sqrt(x))
	j = ElectronCharge * ElectronCharge * p.Density * nu * m * math.Exp(exponent) /
		(math.Sqrt(3) * SpeedOfLight * BesselK2Scaled(1/p.Theta))

	b := PlanckNu(nu, p.Theta*ElectronMass*SpeedOfLight*SpeedOfLight/Boltzmann)
	if b <= 0 {
		return j, 0
	}
	return j, j / b
}

// PlanckNu returns the blackbody specific intensity B_nu(T) in
// erg s^-1 cm^-2 Hz^-1 sr^-1.
func PlanckNu(nu, temperature float64) float64 {
	if temperature <= 0 {
		return 0
	}
	return 2 * Planck * nu * nu * nu / (SpeedOfLight * SpeedOfLight) / math.Expm1(Planck*nu/(Boltzmann*temperature))
}
