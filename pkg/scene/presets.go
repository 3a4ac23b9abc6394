package scene

import (
	"math"
	"sort"

	"github.com/df07/go-grrt/pkg/config"
)

// defaultGrid is 100 threads per block and 50 blocks, 5000 units per batch.
var defaultGrid = config.Grid{BlockX: 100, BlockY: 1, GridX: 1, GridY: 50}

// NewRedshiftRun returns the redshift map of a thin disk around a
// Schwarzschild hole seen at cos i = 0.25.
func NewRedshiftRun() config.Run {
	return config.Run{
		Name:        "redshift",
		Scenario:    config.Redshift,
		Spin:        0,
		Inclination: math.Acos(0.25) * 180 / math.Pi,
		Resolution:  512,
		HalfWidth:   20,
		Distance:    1000,
		Grid:        defaultGrid,
		Disk:        config.Disk{Inner: 0, Outer: 20},
		Integrator:  config.Integrator{Tolerance: 1e-10, MaxSteps: 20000},
		Device:      "cpu",
	}
}

// NewSynchrotronRun returns a 340 GHz image of a hot Keplerian shell with
// parameters close to Sgr A*.
func NewSynchrotronRun() config.Run {
	return config.Run{
		Name:        "synchrotron",
		Scenario:    config.Synchrotron,
		Spin:        0,
		Inclination: 45,
		Resolution:  128,
		Frequency:   340e9,
		HalfWidth:   20,
		Distance:    1000,
		Grid:        defaultGrid,
		Shell: config.Shell{
			Inner:           0,
			Outer:           20,
			Density:         config.Profile{Value: 1e6, Index: 1.5},
			Temperature:     config.Profile{Value: 10, Index: 1},
			Field:           config.Profile{Value: 30, Index: 1},
			MaxOpticalDepth: 30,
		},
		Source:     config.Source{Mass: 4.3e6, Distance: 8300},
		Integrator: config.Integrator{Tolerance: 1e-10, MaxSteps: 20000},
		Device:     "cpu",
	}
}

var presets = map[string]func() config.Run{
	config.Redshift:    NewRedshiftRun,
	config.Synchrotron: NewSynchrotronRun,
}

// Preset returns the built-in run for a scenario name.
func Preset(name string) (config.Run, bool) {
	fn, ok := presets[name]
	if !ok {
		return config.Run{}, false
	}
	return fn(), true
}

// Presets lists the built-in scenario names.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
