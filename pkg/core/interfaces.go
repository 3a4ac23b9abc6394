package core

// Region describes where along a geodesic an emitter contributes.
type Region interface {
	// Crossing reports the fraction f in (0, 1] of the segment prev -> cur at which
	// the path crosses the region's defining surface.
	Crossing(prev, cur State) (float64, bool)

	// Contains reports whether s lies inside an emitting volume.
	// Regions made of a surface only always return false.
	Contains(s State) bool
}

// Emitter evaluates local emission and absorption at points along a geodesic.
// An emitter is selected once per run and shared read-only by every compute unit.
type Emitter interface {
	Name() string
	Region() Region
	Evaluate(s Sample, c Constants) Emission
}

// Accumulator integrates the samples of a single ray into its observable.
// Accumulators are owned by one compute unit and never shared.
type Accumulator interface {
	// Add consumes a sample and reports whether the ray's observable is final.
	Add(s Sample, e Emission) (done bool)

	// Value returns the observable accumulated so far.
	Value() float64
}

// AccumulatorFactory creates a fresh accumulator for one pixel.
type AccumulatorFactory func(task PixelTask) Accumulator
