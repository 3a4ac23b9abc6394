package emission

import (
	"math"
	"testing"

	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/kerr"
)

func TestBesselK2(t *testing.T) {
	tests := []struct {
		x    float64
		want float64
	}{
		{0.5, 7.550183551},
		{1, 1.624838899},
		{2, 0.2537597546},
		{3, 0.06151045848},
		{10, 2.150981701e-5},
	}
	for _, tt := range tests {
		got := BesselK2(tt.x)
		if math.Abs(got-tt.want)/tt.want > 1e-5 {
			t.Errorf("K2(%v): expected %v, got %v", tt.x, tt.want, got)
		}
	}

	// The scaled form stays finite where K2 underflows.
	if s := BesselK2Scaled(1000); math.IsInf(s, 0) || s <= 0 {
		t.Errorf("Expected finite scaled K2 at x = 1000, got %v", s)
	}
}

func TestKeplerianRedshift(t *testing.T) {
	m := kerr.Metric{A: 0}

	g := Redshift(m, 6, math.Pi/2, KeplerianOmega(m, 6), core.Constants{E: 1})
	if math.Abs(g-math.Sqrt(0.5)) > 1e-12 {
		t.Errorf("Expected transverse redshift sqrt(1/2) at the ISCO, got %v", g)
	}

	// Gas moving towards the observer is blueshifted.
	approaching := Redshift(m, 20, math.Pi/2, KeplerianOmega(m, 20), core.Constants{E: 1, L: 10})
	receding := Redshift(m, 20, math.Pi/2, KeplerianOmega(m, 20), core.Constants{E: 1, L: -10})
	if approaching <= receding {
		t.Errorf("Expected approaching gas (%v) to be bluer than receding gas (%v)", approaching, receding)
	}

	if g := Redshift(m, 2.5, math.Pi/2, KeplerianOmega(m, 2.5), core.Constants{E: 1}); g != 0 {
		t.Errorf("Expected no circular orbit inside the photon sphere, got g = %v", g)
	}
}

func TestThinDisk(t *testing.T) {
	m := kerr.Metric{A: 0}
	disk := NewThinDisk(m, 20)
	if disk.Inner != 6 {
		t.Errorf("Expected disk to start at the ISCO, got %v", disk.Inner)
	}

	tests := []struct {
		name      string
		prev, cur core.State
		crossed   bool
	}{
		{"Crossing on the disk", core.State{R: 10, Theta: math.Pi/2 - 0.1}, core.State{R: 10, Theta: math.Pi/2 + 0.1}, true},
		{"Crossing inside the inner edge", core.State{R: 4, Theta: math.Pi/2 - 0.1}, core.State{R: 4, Theta: math.Pi/2 + 0.1}, false},
		{"Crossing beyond the outer edge", core.State{R: 30, Theta: math.Pi/2 - 0.1}, core.State{R: 30, Theta: math.Pi/2 + 0.1}, false},
		{"Same hemisphere", core.State{R: 10, Theta: 1.2}, core.State{R: 10, Theta: 1.5}, false},
		{"Negative polar angle", core.State{R: 10, Theta: -math.Pi/2 + 0.1}, core.State{R: 10, Theta: -math.Pi/2 - 0.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := disk.Region().Crossing(tt.prev, tt.cur)
			if ok != tt.crossed {
				t.Fatalf("Expected crossed=%v, got %v", tt.crossed, ok)
			}
			if ok && math.Abs(f-0.5) > 1e-2 {
				t.Errorf("Expected crossing near the segment midpoint, got %v", f)
			}
		})
	}

	if disk.Region().Contains(core.State{R: 10, Theta: math.Pi / 2}) {
		t.Errorf("Expected a thin disk to have no volume")
	}
	e := disk.Evaluate(core.Sample{State: core.State{R: 6, Theta: math.Pi / 2}}, core.Constants{E: 1})
	if e.J != 0 || e.Alpha != 0 || math.Abs(e.G-math.Sqrt(0.5)) > 1e-12 {
		t.Errorf("Expected pure redshift emission, got %+v", e)
	}
}

func TestThermalSynchrotron(t *testing.T) {
	p := Plasma{Density: 1e6, Theta: 10, Field: 30}
	j, alpha := ThermalSynchrotron(p, 340e9)
	if j <= 0 || alpha <= 0 || math.IsInf(j, 0) || math.IsInf(alpha, 0) {
		t.Fatalf("Expected finite positive coefficients, got j = %v, alpha = %v", j, alpha)
	}

	dense := p
	dense.Density *= 2
	j2, alpha2 := ThermalSynchrotron(dense, 340e9)
	if math.Abs(j2/j-2) > 1e-12 || math.Abs(alpha2/alpha-2) > 1e-12 {
		t.Errorf("Expected coefficients linear in density, got ratios %v and %v", j2/j, alpha2/alpha)
	}

	temperature := p.Theta * ElectronMass * SpeedOfLight * SpeedOfLight / Boltzmann
	if b := PlanckNu(340e9, temperature); math.Abs(alpha*b/j-1) > 1e-12 {
		t.Errorf("Expected Kirchhoff's law j = alpha B, got ratio %v", alpha*b/j)
	}

	for _, bad := range []Plasma{{0, 10, 30}, {1e6, 0, 30}, {1e6, 10, 0}} {
		if j, a := ThermalSynchrotron(bad, 340e9); j != 0 || a != 0 {
			t.Errorf("Expected no emission from %+v, got %v, %v", bad, j, a)
		}
	}
}

func TestPlanckRayleighJeans(t *testing.T) {
	nu, temp := 1e9, 1e10
	want := 2 * nu * nu * Boltzmann * temp / (SpeedOfLight * SpeedOfLight)
	if got := PlanckNu(nu, temp); math.Abs(got/want-1) > 1e-4 {
		t.Errorf("Expected Rayleigh-Jeans limit %v, got %v", want, got)
	}
}

func TestShell(t *testing.T) {
	m := kerr.Metric{A: 0}
	shell := &Shell{
		Metric:      m,
		Inner:       6,
		Outer:       20,
		Density:     Profile{Value: 1e6, Index: 1.5},
		Temperature: Profile{Value: 10, Index: 1},
		Field:       Profile{Value: 30, Index: 1},
		Frequency:   340e9,
	}

	if p := shell.Plasma(24); math.Abs(p.Density-1e6/8) > 1e-6 || math.Abs(p.Theta-2.5) > 1e-12 {
		t.Errorf("Expected power-law profiles at r = 24, got %+v", p)
	}

	region := shell.Region()
	if !region.Contains(core.State{R: 10}) || region.Contains(core.State{R: 5}) || region.Contains(core.State{R: 21}) {
		t.Errorf("Expected shell to contain exactly 6 <= r <= 20")
	}
	f, ok := region.Crossing(core.State{R: 30}, core.State{R: 4})
	if !ok || math.Abs(f-0.5) > 1e-12 {
		t.Errorf("Expected the outer boundary to be crossed first at f = 0.5, got %v (%v)", f, ok)
	}

	e := shell.Evaluate(core.Sample{State: core.State{R: 10, Theta: 1}}, core.Constants{E: 1, L: 2})
	if e.G <= 0 || e.J <= 0 || e.Alpha <= 0 {
		t.Errorf("Expected emission inside the shell, got %+v", e)
	}
}
