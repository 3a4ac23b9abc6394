package config

import (
	"errors"
	"strings"
	"testing"
)

func validRun() Run {
	return Run{
		Name:        "test",
		Scenario:    Synchrotron,
		Spin:        0.5,
		Inclination: 45,
		Resolution:  16,
		Frequency:   340e9,
		HalfWidth:   15,
		Distance:    1000,
		Grid:        Grid{BlockX: 16, BlockY: 1, GridX: 1, GridY: 4},
		Disk:        Disk{Outer: 20},
		Shell: Shell{
			Outer:       20,
			Density:     Profile{Value: 1e6, Index: 1.5},
			Temperature: Profile{Value: 10, Index: 1},
			Field:       Profile{Value: 30, Index: 1},
		},
		Source:     Source{Mass: 4.3e6, Distance: 8300},
		Integrator: Integrator{Tolerance: 1e-10, MaxSteps: 1000},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Run)
		field  string
	}{
		{"Valid synchrotron", func(*Run) {}, ""},
		{"Valid redshift", func(r *Run) { r.Scenario = Redshift }, ""},
		{"Unknown scenario", func(r *Run) { r.Scenario = "jet" }, "scenario"},
		{"Negative spin", func(r *Run) { r.Spin = -0.1 }, "spin"},
		{"Extremal spin", func(r *Run) { r.Spin = 1 }, "spin"},
		{"Inclination out of range", func(r *Run) { r.Inclination = 181 }, "inclination"},
		{"Zero resolution", func(r *Run) { r.Resolution = 0 }, "resolution"},
		{"Zero half width", func(r *Run) { r.HalfWidth = 0 }, "half_width"},
		{"Empty grid", func(r *Run) { r.Grid.GridY = 0 }, "grid"},
		{"No step budget", func(r *Run) { r.Integrator.MaxSteps = 0 }, "integrator"},
		{"Missing frequency", func(r *Run) { r.Frequency = 0 }, "frequency"},
		{"Shell inside horizon", func(r *Run) { r.Shell.Inner = 1.5 }, "shell.inner"},
		{"Inverted shell", func(r *Run) { r.Shell.Inner = 30 }, "shell.outer"},
		{"Cold shell", func(r *Run) { r.Shell.Temperature.Value = 0 }, "shell"},
		{"Massless source", func(r *Run) { r.Source.Mass = 0 }, "source"},
		{"Observer inside shell", func(r *Run) { r.Distance = 10 }, "observer_distance"},
		{"Disk inside horizon", func(r *Run) { r.Scenario = Redshift; r.Disk.Inner = 1 }, "disk.inner"},
		{"Inverted disk", func(r *Run) { r.Scenario = Redshift; r.Disk.Inner = 25 }, "disk.outer"},
		{"Disk inside default ISCO", func(r *Run) { r.Scenario = Redshift; r.Spin = 0; r.Disk.Outer = 5 }, "disk.outer"},
		{"Disk just outside default ISCO", func(r *Run) { r.Scenario = Redshift; r.Spin = 0; r.Disk.Outer = 6.5 }, ""},
		{"Shell inside default ISCO", func(r *Run) { r.Shell.Outer = 4 }, "shell.outer"},
		{"Shell with explicit inner below ISCO", func(r *Run) { r.Shell.Inner = 3; r.Shell.Outer = 4 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := validRun()
			tt.mutate(&run)
			err := run.Validate()

			if tt.field == "" {
				if err != nil {
					t.Errorf("Expected valid run, got %v", err)
				}
				return
			}
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("Expected *config.Error, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Expected field %q, got %q (%v)", tt.field, cerr.Field, err)
			}
		})
	}
}

func TestFromYAML(t *testing.T) {
	data := []byte(`
name: kerr-edge-on
spin: 0.9
inclination: 85
grid:
  block_x: 32
  block_y: 1
  grid_x: 1
  grid_y: 8
`)
	run, err := FromYAML(data, validRun())
	if err != nil {
		t.Fatalf("Expected valid YAML, got %v", err)
	}
	if run.Name != "kerr-edge-on" || run.Spin != 0.9 || run.Inclination != 85 {
		t.Errorf("Expected overridden fields, got %+v", run)
	}
	if run.Grid.Device().Units() != 256 {
		t.Errorf("Expected 256 compute units, got %d", run.Grid.Device().Units())
	}
	if run.Frequency != 340e9 || run.Shell.Density.Value != 1e6 {
		t.Errorf("Expected base values to survive, got frequency %v density %v", run.Frequency, run.Shell.Density.Value)
	}

	if _, err := FromYAML([]byte("spin: 2"), validRun()); err == nil {
		t.Errorf("Expected validation failure for spin 2")
	}
	if _, err := FromYAML([]byte("spin: [1"), validRun()); err == nil || !strings.Contains(err.Error(), "invalid run yaml") {
		t.Errorf("Expected a YAML parse error, got %v", err)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	run := validRun()
	data, err := run.YAML()
	if err != nil {
		t.Fatal(err)
	}
	back, err := FromYAML(data, Run{})
	if err != nil {
		t.Fatalf("Expected encoded run to decode, got %v", err)
	}
	if back != run {
		t.Errorf("Expected %+v, got %+v", run, back)
	}
}

func TestDefaultInnerRadius(t *testing.T) {
	run := validRun()
	run.Spin = 0
	if got := run.DiskInner(); got != 6 {
		t.Errorf("Expected the Schwarzschild ISCO 6, got %v", got)
	}
	run.Shell.Inner = 8
	if got := run.ShellInner(); got != 8 {
		t.Errorf("Expected explicit inner radius 8, got %v", got)
	}
}
