package geodesic

import (
	"math"

	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/kerr"
)

// Runge-Kutta-Fehlberg 4(5) tableau.
var (
	fehlbergA = [6][5]float64{
		{},
		{1.0 / 4},
		{3.0 / 32, 9.0 / 32},
		{1932.0 / 2197, -7200.0 / 2197, 7296.0 / 2197},
		{439.0 / 216, -8, 3680.0 / 513, -845.0 / 4104},
		{-8.0 / 27, 2, -3544.0 / 2565, 1859.0 / 4104, -11.0 / 40},
	}
	fehlbergB5 = [6]float64{16.0 / 135, 0, 6656.0 / 12825, 28561.0 / 56430, -9.0 / 50, 2.0 / 55}
	fehlbergB4 = [6]float64{25.0 / 216, 0, 1408.0 / 2565, 2197.0 / 4104, -1.0 / 5, 0}
)

// rkf45 advances y by h along -f (backward in affine parameter) and returns the
// fifth-order solution with its scaled error norm. An error norm <= 1 means the
// step meets tolerance tol.
func rkf45(m kerr.Metric, y vec, c core.Constants, planar bool, h, tol float64) (vec, float64) {
	var k [6]vec
	for i := range k {
		yi := y
		for j := 0; j < i; j++ {
			aij := fehlbergA[i][j]
			if aij == 0 {
				continue
			}
			for n := range yi {
				yi[n] += h * aij * k[j][n]
			}
		}
		d := derivatives(m, yi, c, planar)
		for n := range d {
			k[i][n] = -d[n]
		}
	}

	y5 := y
	var errNorm float64
	for n := range y {
		var s5, s4 float64
		for i := range k {
			s5 += fehlbergB5[i] * k[i][n]
			s4 += fehlbergB4[i] * k[i][n]
		}
		y5[n] += h * s5
		scale := tol
		if n != 1 {
			// Absolute tolerance on theta keeps rays mirrored about the
			// equator on identical steps.
			scale *= math.Max(1, math.Abs(y[n]))
		}
		errNorm = math.Max(errNorm, math.Abs(h*(s5-s4))/scale)
	}
	if !y5.finite() || math.IsNaN(errNorm) {
		return y5, math.Inf(1)
	}
	return y5, errNorm
}

// nextStep scales h from the error norm of the last attempt.
func nextStep(h, errNorm float64) float64 {
	if errNorm == 0 {
		return 5 * h
	}
	f := 0.9 * math.Pow(errNorm, -0.2)
	return h * math.Min(5, math.Max(0.2, f))
}
