package emission

import "math"

// Modified Bessel functions of the second kind from the polynomial
// approximations of Abramowitz & Stegun 9.8.1-9.8.8.

func besselI0(x float64) float64 {
	t := x / 3.75
	t2 := t * t
	return 1 + t2*(3.5156229+t2*(3.0899424+t2*(1.2067492+t2*(0.2659732+t2*(0.0360768+t2*0.0045813)))))
}

func besselI1(x float64) float64 {
	t := x / 3.75
	t2 := t * t
	return x * (0.5 + t2*(0.87890594+t2*(0.51498869+t2*(0.15084934+t2*(0.02658733+t2*(0.00301532+t2*0.00032411))))))
}

// k0Scaled returns e^x K0(x).
func k0Scaled(x float64) float64 {
	if x <= 2 {
		y := x * x / 4
		k := -math.Log(x/2)*besselI0(x) +
			(-0.57721566 + y*(0.42278420+y*(0.23069756+y*(0.03488590+y*(0.00262698+y*(0.00010750+y*0.0000074))))))
		return k * math.Exp(x)
	}
	y := 2 / x
	return (1.25331414 + y*(-0.07832358+y*(0.02189568+y*(-0.01062446+y*(0.00587872+y*(-0.00251540+y*0.00053208)))))) / math.Sqrt(x)
}

// k1Scaled returns e^x K1(x).
func k1Scaled(x float64) float64 {
	if x <= 2 {
		y := x * x / 4
		k := math.Log(x/2)*besselI1(x) +
			(1+y*(0.15443144+y*(-0.67278579+y*(-0.18156897+y*(-0.01919402+y*(-0.00110404+y*-0.00004686))))))/x
		return k * math.Exp(x)
	}
	y := 2 / x
	return (1.25331414 + y*(0.23498619+y*(-0.03655620+y*(0.01504268+y*(-0.00780353+y*(0.00325614+y*-0.00068245)))))) / math.Sqrt(x)
}

// BesselK2Scaled returns e^x K2(x) for x > 0, finite for large x where K2
// itself underflows.
func BesselK2Scaled(x float64) float64 {
	return k0Scaled(x) + 2/x*k1Scaled(x)
}

// BesselK2 returns K2(x) for x > 0.
func BesselK2(x float64) float64 {
	return BesselK2Scaled(x) * math.Exp(-x)
}
