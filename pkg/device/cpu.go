package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/df07/go-grrt/pkg/core"
)

// DefaultMemoryLimit is the device memory budget of the CPU accelerator.
const DefaultMemoryLimit int64 = 1 << 30

func init() {
	Register("cpu", func() Accelerator { return NewCPU(0, DefaultMemoryLimit) })
}

// CPU runs launches on a persistent pool of goroutines, one block per task.
type CPU struct {
	workers     int
	memoryLimit int64 // bytes; <= 0 means unlimited

	mu     sync.Mutex
	used   int64
	pool   *WorkerPool
	closed bool
}

// NewCPU creates a CPU accelerator. workers <= 0 uses one worker per CPU.
func NewCPU(workers int, memoryLimit int64) *CPU {
	return &CPU{workers: workers, memoryLimit: memoryLimit}
}

func (c *CPU) Name() string { return "cpu" }

func (c *CPU) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool != nil {
		return nil
	}
	c.pool = NewWorkerPool(c.workers)
	c.pool.Start()
	core.Logger().Debug("device initialized", "device", c.Name(), "workers", c.pool.NumWorkers(), "memory", c.memoryLimit)
	return nil
}

func (c *CPU) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool != nil && !c.closed {
		c.pool.Stop()
	}
	c.closed = true
}

// Used returns the bytes currently allocated.
func (c *CPU) Used() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *CPU) Alloc(n int) (*Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("alloc %d slots: invalid size", n)
	}
	size := int64(n) * SlotSize

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.memoryLimit > 0 && c.used+size > c.memoryLimit {
		return nil, fmt.Errorf("alloc %d bytes with %d of %d in use: %w", size, c.used, c.memoryLimit, ErrResourceExhausted)
	}
	c.used += size

	return &Buffer{
		slots: make([]core.PixelResult, n),
		free: func() {
			c.mu.Lock()
			c.used -= size
			c.mu.Unlock()
		},
	}, nil
}

func (c *CPU) Launch(ctx context.Context, g Grid, k Kernel) error {
	if g.Units() <= 0 {
		return fmt.Errorf("launch %s: no compute units", g)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	pool, closed := c.pool, c.closed
	c.mu.Unlock()
	if closed || pool == nil {
		return ErrClosed
	}

	blocks := g.GridX * g.GridY
	results := make(chan BlockResult, blocks)
	go func() {
		id := 0
		for by := 0; by < g.GridY; by++ {
			for bx := 0; bx < g.GridX; bx++ {
				pool.SubmitTask(BlockTask{BlockX: bx, BlockY: by, Grid: g, Kernel: k, TaskID: id, results: results})
				id++
			}
		}
	}()

	var errs []error
	for i := 0; i < blocks; i++ {
		if r := <-results; r.Error != nil {
			errs = append(errs, r.Error)
		}
	}
	return errors.Join(errs...)
}
