// Package device models the accelerator that executes batches: a grid of
// blocks of threads, one thread per pixel, writing into a bounded device
// buffer.
package device

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"github.com/df07/go-grrt/pkg/core"
)

var (
	// ErrResourceExhausted is returned when a device buffer does not fit in
	// the accelerator's memory budget.
	ErrResourceExhausted = errors.New("device: resource exhausted")

	// ErrNoDevice is returned when no accelerator with the requested name is registered.
	ErrNoDevice = errors.New("device: no such accelerator")

	// ErrClosed is returned when an accelerator is used after Close.
	ErrClosed = errors.New("device: accelerator closed")
)

// Grid is the shape of one launch: GridX x GridY blocks of BlockX x BlockY threads.
type Grid struct {
	BlockX, BlockY int
	GridX, GridY   int
}

// Width returns the number of threads along x.
func (g Grid) Width() int { return g.BlockX * g.GridX }

// Height returns the number of threads along y.
func (g Grid) Height() int { return g.BlockY * g.GridY }

// Units returns the number of compute units in one launch.
func (g Grid) Units() int { return g.Width() * g.Height() }

func (g Grid) String() string {
	return fmt.Sprintf("grid %dx%d of blocks %dx%d", g.GridX, g.GridY, g.BlockX, g.BlockY)
}

// Kernel is executed once per compute unit; (x, y) are the unit's global
// thread coordinates within the launch.
type Kernel func(x, y int)

// Buffer is device memory holding one result slot per compute unit.
type Buffer struct {
	slots []core.PixelResult
	free  func()
}

// Slots returns the buffer contents.
func (b *Buffer) Slots() []core.PixelResult { return b.slots }

// Free releases the buffer. Calling Free more than once is a no-op.
func (b *Buffer) Free() {
	if b.free != nil {
		b.free()
		b.free = nil
	}
	b.slots = nil
}

// SlotSize is the device memory needed per compute unit.
const SlotSize = int64(unsafe.Sizeof(core.PixelResult{}))

// Accelerator executes kernel launches.
type Accelerator interface {
	// Name returns the accelerator name (e.g., "cpu").
	Name() string

	// Init acquires the accelerator's resources. Called once by Select.
	Init() error

	// Close releases the accelerator's resources.
	Close()

	// Alloc reserves a buffer of n result slots, or returns
	// ErrResourceExhausted when it does not fit.
	Alloc(n int) (*Buffer, error)

	// Launch runs k for every unit of grid g and returns once all units
	// have finished. Units are independent and run in any order.
	Launch(ctx context.Context, g Grid, k Kernel) error
}
