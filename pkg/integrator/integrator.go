package integrator

import "github.com/df07/go-grrt/pkg/core"

// Integrator computes the observable of a single pixel.
// Implementations must be safe for concurrent use by many compute units.
type Integrator interface {
	Trace(task core.PixelTask) core.PixelResult
}
