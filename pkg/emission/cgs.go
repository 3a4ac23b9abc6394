// Package emission provides the emitters sampled along geodesics: a thin
// Keplerian disk for redshift maps and a Keplerian shell radiating thermal
// synchrotron emission.
package emission

// Physical constants, cgs.
const (
	SpeedOfLight   = 2.99792458e10         // cm s^-1
	ElectronCharge = 4.80320425e-10        // esu
	ElectronMass   = 9.1093837e-28         // g
	Planck         = 6.62607015e-27        // erg s
	Boltzmann      = 1.380649e-16          // erg K^-1
	Gravitational  = 6.6743e-8             // cm^3 g^-1 s^-2
	SolarMass      = 1.98847e33            // g
	Parsec         = 3.0856775814913673e18 // cm
)

// GravitationalRadius returns GM/c^2 in cm for a mass in solar masses.
func GravitationalRadius(solarMasses float64) float64 {
	return Gravitational * solarMasses * SolarMass / (SpeedOfLight * SpeedOfLight)
}
