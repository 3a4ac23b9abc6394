package core

import "math"

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float64
}

// Subtract returns the difference of two vectors
func (v Vec3) Subtract(other Vec3) Vec3 {
	return Vec3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

// Length returns the magnitude of the vector
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Cartesian maps a Boyer-Lindquist position to Kerr-Schild-like Cartesian
// coordinates for a hole of spin a. Used to draw geodesic paths.
func Cartesian(s State, a float64) Vec3 {
	rho := math.Sqrt(s.R*s.R + a*a)
	sin, cos := math.Sincos(s.Theta)
	return Vec3{
		X: rho * sin * math.Cos(s.Phi),
		Y: rho * sin * math.Sin(s.Phi),
		Z: s.R * cos,
	}
}
