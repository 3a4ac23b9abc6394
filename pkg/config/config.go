// Package config models the parameter set of one render run.
package config

import (
	"fmt"
	"os"

	"github.com/df07/go-grrt/pkg/device"
	"github.com/df07/go-grrt/pkg/kerr"
	"gopkg.in/yaml.v3"
)

// Scenario names.
const (
	Redshift    = "redshift"
	Synchrotron = "synchrotron"
)

// Run is the immutable parameter set of one image. It is passed by value
// into every component and never mutated after Validate.
type Run struct {
	Name        string     `yaml:"name" json:"name"`
	Scenario    string     `yaml:"scenario" json:"scenario"`
	Spin        float64    `yaml:"spin" json:"spin"`
	Inclination float64    `yaml:"inclination" json:"inclination"` // degrees
	Resolution  int        `yaml:"resolution" json:"resolution"`   // pixels per side
	Frequency   float64    `yaml:"frequency" json:"frequency"`     // observing frequency, Hz
	HalfWidth   float64    `yaml:"half_width" json:"half_width"`   // image-plane half side, GM/c^2
	Distance    float64    `yaml:"observer_distance" json:"observer_distance"`
	Grid        Grid       `yaml:"grid" json:"grid"`
	Disk        Disk       `yaml:"disk" json:"disk"`
	Shell       Shell      `yaml:"shell" json:"shell"`
	Source      Source     `yaml:"source" json:"source"`
	Integrator  Integrator `yaml:"integrator" json:"integrator"`
	Device      string     `yaml:"device" json:"device"`
}

// Grid is the compute-grid shape.
type Grid struct {
	BlockX int `yaml:"block_x" json:"block_x"`
	BlockY int `yaml:"block_y" json:"block_y"`
	GridX  int `yaml:"grid_x" json:"grid_x"`
	GridY  int `yaml:"grid_y" json:"grid_y"`
}

// Device converts the shape to a device launch grid.
func (g Grid) Device() device.Grid {
	return device.Grid{BlockX: g.BlockX, BlockY: g.BlockY, GridX: g.GridX, GridY: g.GridY}
}

// Disk configures the thin disk of the redshift scenario.
type Disk struct {
	Inner float64 `yaml:"inner" json:"inner"` // 0 starts the disk at the ISCO
	Outer float64 `yaml:"outer" json:"outer"`
}

// Profile is a radial power law referenced to the shell's inner radius.
type Profile struct {
	Value float64 `yaml:"value" json:"value"`
	Index float64 `yaml:"index" json:"index"`
}

// Shell configures the emitting shell of the synchrotron scenario.
type Shell struct {
	Inner           float64 `yaml:"inner" json:"inner"` // 0 starts the shell at the ISCO
	Outer           float64 `yaml:"outer" json:"outer"`
	Density         Profile `yaml:"density" json:"density"`         // cm^-3
	Temperature     Profile `yaml:"temperature" json:"temperature"` // kT / (m_e c^2)
	Field           Profile `yaml:"field" json:"field"`             // G
	MaxOpticalDepth float64 `yaml:"max_optical_depth" json:"max_optical_depth"`
}

// Source places the black hole in physical units.
type Source struct {
	Mass     float64 `yaml:"mass" json:"mass"`         // solar masses
	Distance float64 `yaml:"distance" json:"distance"` // parsec
}

// Integrator tunes geodesic integration.
type Integrator struct {
	Tolerance float64 `yaml:"tolerance" json:"tolerance"`
	MaxSteps  int     `yaml:"max_steps" json:"max_steps"`
}

// Error reports an invalid parameter.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DiskInner returns the inner disk radius; zero means the ISCO.
func (r Run) DiskInner() float64 {
	if r.Disk.Inner != 0 {
		return r.Disk.Inner
	}
	return kerr.Metric{A: r.Spin}.ISCO()
}

// ShellInner returns the inner shell radius; zero means the ISCO.
func (r Run) ShellInner() float64 {
	if r.Shell.Inner != 0 {
		return r.Shell.Inner
	}
	return kerr.Metric{A: r.Spin}.ISCO()
}

// Validate ensures the run can be dispatched.
func (r Run) Validate() error {
	if r.Scenario != Redshift && r.Scenario != Synchrotron {
		return invalid("scenario", "must be %q or %q, got %q", Redshift, Synchrotron, r.Scenario)
	}
	if !(r.Spin >= 0 && r.Spin < 1) {
		return invalid("spin", "must be in [0, 1), got %v", r.Spin)
	}
	if !(r.Inclination >= 0 && r.Inclination <= 180) {
		return invalid("inclination", "must be in [0, 180] degrees, got %v", r.Inclination)
	}
	if r.Resolution <= 0 {
		return invalid("resolution", "must be positive, got %d", r.Resolution)
	}
	if !(r.HalfWidth > 0) {
		return invalid("half_width", "must be positive, got %v", r.HalfWidth)
	}
	g := r.Grid
	if g.BlockX < 1 || g.BlockY < 1 || g.GridX < 1 || g.GridY < 1 {
		return invalid("grid", "must have at least one compute unit, got blocks %dx%d grid %dx%d", g.BlockX, g.BlockY, g.GridX, g.GridY)
	}
	if r.Integrator.Tolerance <= 0 || r.Integrator.MaxSteps <= 0 {
		return invalid("integrator", "tolerance and max_steps must be positive")
	}

	horizon := kerr.Metric{A: r.Spin}.Horizon()
	switch r.Scenario {
	case Redshift:
		if r.Disk.Inner != 0 && r.Disk.Inner <= horizon {
			return invalid("disk.inner", "must lie outside the horizon r = %.4f, got %v", horizon, r.Disk.Inner)
		}
		if inner := r.DiskInner(); r.Disk.Outer <= inner {
			return invalid("disk.outer", "must exceed the inner radius %.4f, got %v", inner, r.Disk.Outer)
		}
		if r.Distance <= r.Disk.Outer {
			return invalid("observer_distance", "must lie beyond the disk, got %v", r.Distance)
		}
	case Synchrotron:
		if !(r.Frequency > 0) {
			return invalid("frequency", "must be positive, got %v", r.Frequency)
		}
		s := r.Shell
		if s.Inner != 0 && s.Inner <= horizon {
			return invalid("shell.inner", "must lie outside the horizon r = %.4f, got %v", horizon, s.Inner)
		}
		if inner := r.ShellInner(); s.Outer <= inner {
			return invalid("shell.outer", "must exceed the inner radius %.4f, got %v", inner, s.Outer)
		}
		if s.Density.Value <= 0 || s.Temperature.Value <= 0 || s.Field.Value <= 0 {
			return invalid("shell", "density, temperature and field must be positive")
		}
		if r.Distance <= s.Outer {
			return invalid("observer_distance", "must lie beyond the shell, got %v", r.Distance)
		}
		if r.Source.Mass <= 0 || r.Source.Distance <= 0 {
			return invalid("source", "mass and distance must be positive")
		}
	}
	return nil
}

// FromYAML decodes raw YAML over base and validates the result. Fields
// absent from data keep their base values.
func FromYAML(data []byte, base Run) (Run, error) {
	run := base
	if err := yaml.Unmarshal(data, &run); err != nil {
		return Run{}, fmt.Errorf("invalid run yaml: %w", err)
	}
	if err := run.Validate(); err != nil {
		return Run{}, err
	}
	return run, nil
}

// FromFile reads a run file over base.
func FromFile(path string, base Run) (Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Run{}, err
	}
	return FromYAML(data, base)
}

// YAML encodes the run.
func (r Run) YAML() ([]byte, error) {
	return yaml.Marshal(r)
}
