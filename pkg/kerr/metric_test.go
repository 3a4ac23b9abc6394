package kerr

import (
	"math"
	"testing"

	"github.com/df07/go-grrt/pkg/core"
)

func TestHorizonAndISCO(t *testing.T) {
	tests := []struct {
		name    string
		spin    float64
		horizon float64
		isco    float64
	}{
		{"Schwarzschild", 0, 2, 6},
		{"Moderate spin", 0.5, 1 + math.Sqrt(0.75), 4.233},
		{"High spin", 0.998, 1 + math.Sqrt(1-0.998*0.998), 1.237},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Metric{A: tt.spin}
			if math.Abs(m.Horizon()-tt.horizon) > 1e-9 {
				t.Errorf("Expected horizon %v, got %v", tt.horizon, m.Horizon())
			}
			if math.Abs(m.ISCO()-tt.isco) > 1e-3 {
				t.Errorf("Expected ISCO %v, got %v", tt.isco, m.ISCO())
			}
			if d := m.Delta(m.Horizon()); math.Abs(d) > 1e-12 {
				t.Errorf("Expected Delta to vanish on the horizon, got %v", d)
			}
		})
	}
}

func TestCovariantSchwarzschild(t *testing.T) {
	m := Metric{A: 0}
	g := m.Covariant(10, math.Pi/2)
	if math.Abs(g.Tt+0.8) > 1e-12 {
		t.Errorf("Expected g_tt = -0.8, got %v", g.Tt)
	}
	if g.Tphi != 0 {
		t.Errorf("Expected g_tphi = 0, got %v", g.Tphi)
	}
	if math.Abs(g.PhiPhi-100) > 1e-12 {
		t.Errorf("Expected g_phiphi = 100, got %v", g.PhiPhi)
	}
	if math.Abs(g.Rr-1.25) > 1e-12 {
		t.Errorf("Expected g_rr = 1.25, got %v", g.Rr)
	}
}

func TestLaunchSatisfiesPotentials(t *testing.T) {
	tests := []struct {
		name        string
		spin        float64
		inclination float64
		alpha, beta float64
	}{
		{"Inclined Schwarzschild", 0, 45, 3, -4},
		{"Inclined Kerr", 0.9, 60, -5, 2},
		{"Odyssey default", 0, math.Acos(0.25) * 180 / math.Pi, 7, 7},
		{"Face-on", 0.5, 0, 2, 1},
		{"Face-on from below", 0.5, 180, -1, 3},
		{"Edge-on", 0.7, 90, 4, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Metric{A: tt.spin}
			o := Observer{Distance: 1000, Inclination: tt.inclination}
			s, c := o.Launch(m, tt.alpha, tt.beta)

			// Null condition: Delta^2 p_r^2 = R(r) and p_theta^2 = Theta(theta).
			d := m.Delta(s.R)
			R := m.RadialPotential(s.R, c)
			if math.Abs(d*d*s.Pr*s.Pr-R)/R > 1e-9 {
				t.Errorf("Expected radial null condition, got Delta^2 p_r^2 = %v, R = %v", d*d*s.Pr*s.Pr, R)
			}
			th := m.PolarPotential(s.Theta, c)
			if math.Abs(s.Ptheta*s.Ptheta-th) > 1e-9*math.Max(1, th) {
				t.Errorf("Expected polar null condition, got p_theta^2 = %v, Theta = %v", s.Ptheta*s.Ptheta, th)
			}
			if q := m.Carter(s, c); math.Abs(q-c.Q) > 1e-9*math.Max(1, math.Abs(c.Q)) {
				t.Errorf("Expected Carter %v, got %v", c.Q, q)
			}
			if s.Pr <= 0 {
				t.Errorf("Expected outgoing radial momentum at the observer, got %v", s.Pr)
			}
		})
	}
}

func TestLaunchLimitingForms(t *testing.T) {
	m := Metric{A: 0.6}

	onAxis := Observer{Distance: 500, Inclination: 0}
	_, c := onAxis.Launch(m, 3, 4)
	if c.L != 0 {
		t.Errorf("Expected L = 0 on the axis, got %v", c.L)
	}
	if want := 25 - 0.36; math.Abs(c.Q-want) > 1e-12 {
		t.Errorf("Expected Q = %v on the axis, got %v", want, c.Q)
	}

	edgeOn := Observer{Distance: 500, Inclination: 90}
	_, c = edgeOn.Launch(m, 3, 4)
	if c.Q != 16 {
		t.Errorf("Expected Q = beta^2 edge-on with no rounding residue, got %v", c.Q)
	}
	_, c = edgeOn.Launch(m, 3, 0)
	if !edgeOn.Planar(c) {
		t.Errorf("Expected beta = 0 edge-on ray to be planar, got %+v", c)
	}
	if (Observer{Distance: 500, Inclination: 89}).Planar(core.Constants{}) {
		t.Errorf("Expected off-equator observer never to launch planar rays")
	}
}
