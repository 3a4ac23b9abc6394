package core

import (
	"math"
	"testing"
)

func TestCartesian(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		spin     float64
		expected Vec3
	}{
		{
			name:     "Pole",
			state:    State{R: 10, Theta: 0},
			expected: Vec3{0, 0, 10},
		},
		{
			name:     "Equator along X",
			state:    State{R: 10, Theta: math.Pi / 2},
			expected: Vec3{10, 0, 0},
		},
		{
			name:     "Equator along Y",
			state:    State{R: 4, Theta: math.Pi / 2, Phi: math.Pi / 2},
			expected: Vec3{0, 4, 0},
		},
		{
			name:     "Spinning hole widens the equator",
			state:    State{R: 3, Theta: math.Pi / 2},
			spin:     0.8,
			expected: Vec3{math.Sqrt(9+0.64), 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Cartesian(tt.state, tt.spin)

			const tolerance = 1e-9
			if result.Subtract(tt.expected).Length() > tolerance {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestStateLerp(t *testing.T) {
	a := State{R: 10, Theta: 1, Phi: 0, T: 0, Pr: -1, Ptheta: 2}
	b := State{R: 20, Theta: 2, Phi: 1, T: 4, Pr: 1, Ptheta: 0}

	mid := a.Lerp(b, 0.5)
	if mid.R != 15 || mid.Theta != 1.5 || mid.Phi != 0.5 || mid.T != 2 || mid.Pr != 0 || mid.Ptheta != 1 {
		t.Errorf("Expected midpoint state, got %+v", mid)
	}
	if a.Lerp(b, 0) != a {
		t.Errorf("Expected Lerp(0) to return the start state")
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusActive, false},
		{StatusTurningPoint, false},
		{StatusCaptured, true},
		{StatusEscaped, true},
		{StatusStepLimitExceeded, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("Expected %s terminal=%v, got %v", tt.status, tt.terminal, got)
		}
	}
}

func TestFlagsHas(t *testing.T) {
	f := FlagStepLimit | FlagPlanar
	if !f.Has(FlagStepLimit) || !f.Has(FlagPlanar) {
		t.Errorf("Expected flags %b to contain step-limit and planar", f)
	}
	if f.Has(FlagDiverged) {
		t.Errorf("Expected flags %b not to contain diverged", f)
	}
}
