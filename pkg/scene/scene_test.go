package scene

import (
	"errors"
	"math"
	"testing"

	"github.com/df07/go-grrt/pkg/config"
	"github.com/df07/go-grrt/pkg/emission"
	"github.com/df07/go-grrt/pkg/integrator"
)

func TestPresetsValidate(t *testing.T) {
	for _, name := range Presets() {
		run, ok := Preset(name)
		if !ok {
			t.Fatalf("Preset(%q) not found", name)
		}
		if err := run.Validate(); err != nil {
			t.Errorf("Preset %q invalid: %v", name, err)
		}
		if run.Scenario != name {
			t.Errorf("Preset %q has scenario %q", name, run.Scenario)
		}
	}
	if _, ok := Preset("nebula"); ok {
		t.Error("Expected unknown preset to be missing")
	}
}

func TestRedshiftPreset(t *testing.T) {
	run := NewRedshiftRun()
	if math.Abs(math.Cos(run.Inclination*math.Pi/180)-0.25) > 1e-12 {
		t.Errorf("Expected cos i = 0.25, got %v", math.Cos(run.Inclination*math.Pi/180))
	}
	if run.Resolution != 512 {
		t.Errorf("Expected resolution 512, got %d", run.Resolution)
	}
}

func TestNewRedshiftScene(t *testing.T) {
	s, err := New(NewRedshiftRun())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	disk, ok := s.Emitter.(*emission.ThinDisk)
	if !ok {
		t.Fatalf("Expected *emission.ThinDisk, got %T", s.Emitter)
	}
	if disk.Inner != 6 {
		t.Errorf("Expected disk from the ISCO r = 6, got %v", disk.Inner)
	}
	if s.Observable() != "redshift" {
		t.Errorf("Expected redshift observable, got %q", s.Observable())
	}
	if s.Pipeline.Geodesic.EscapeRadius != 1000 {
		t.Errorf("Expected escape radius at the observer, got %v", s.Pipeline.Geodesic.EscapeRadius)
	}
	if _, ok := s.Pipeline.NewAccumulator(s.Camera.Task(0, 0)).(*integrator.RedshiftAccumulator); !ok {
		t.Error("Expected redshift accumulator")
	}
}

func TestNewSynchrotronScene(t *testing.T) {
	run := NewSynchrotronRun()
	run.Shell.Inner = 8
	s, err := New(run)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	shell, ok := s.Emitter.(*emission.Shell)
	if !ok {
		t.Fatalf("Expected *emission.Shell, got %T", s.Emitter)
	}
	if shell.Inner != 8 || shell.Outer != 20 {
		t.Errorf("Expected shell [8, 20], got [%v, %v]", shell.Inner, shell.Outer)
	}
	if shell.Density.Value != 1e6 || shell.Density.Index != 1.5 {
		t.Errorf("Expected density profile from run, got %+v", shell.Density)
	}
	if s.Observable() != "luminosity" {
		t.Errorf("Expected luminosity observable, got %q", s.Observable())
	}
	acc, ok := s.Pipeline.NewAccumulator(s.Camera.Task(0, 0)).(*integrator.IntensityAccumulator)
	if !ok {
		t.Fatal("Expected intensity accumulator")
	}
	if acc.Scale <= 0 || acc.Rg <= 0 {
		t.Errorf("Expected positive unit conversions, got scale %v rg %v", acc.Scale, acc.Rg)
	}
}

func TestNewRejectsInvalidRun(t *testing.T) {
	run := NewRedshiftRun()
	run.Resolution = 0
	_, err := New(run)
	var cfgErr *config.Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected *config.Error, got %v", err)
	}
	if cfgErr.Field != "resolution" {
		t.Errorf("Expected resolution field, got %q", cfgErr.Field)
	}
}
