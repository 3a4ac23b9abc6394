package device

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
)

func TestSelect(t *testing.T) {
	acc, err := Select("cpu")
	if err != nil {
		t.Fatalf("Expected cpu accelerator, got error %v", err)
	}
	defer acc.Close()
	if acc.Name() != "cpu" {
		t.Errorf("Expected name cpu, got %s", acc.Name())
	}

	def, err := Select("")
	if err != nil {
		t.Fatalf("Expected a default accelerator, got error %v", err)
	}
	def.Close()

	if _, err := Select("wgpu"); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Expected ErrNoDevice for an unregistered accelerator, got %v", err)
	}
	if !slices.Contains(Available(), "cpu") {
		t.Errorf("Expected cpu in %v", Available())
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	Register("test-cpu", func() Accelerator { return NewCPU(1, 0) })
	defer Unregister("test-cpu")

	acc, err := Select("test-cpu")
	if err != nil {
		t.Fatalf("Expected registered accelerator, got %v", err)
	}
	acc.Close()

	Unregister("test-cpu")
	if _, err := Select("test-cpu"); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Expected ErrNoDevice after Unregister, got %v", err)
	}
}

func TestAllocBudget(t *testing.T) {
	c := NewCPU(1, 10*SlotSize)
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	buf, err := c.Alloc(8)
	if err != nil {
		t.Fatalf("Expected allocation within budget, got %v", err)
	}
	if len(buf.Slots()) != 8 {
		t.Errorf("Expected 8 slots, got %d", len(buf.Slots()))
	}

	if _, err := c.Alloc(3); !errors.Is(err, ErrResourceExhausted) {
		t.Errorf("Expected ErrResourceExhausted beyond the budget, got %v", err)
	}

	buf.Free()
	buf.Free()
	if c.Used() != 0 {
		t.Errorf("Expected all memory released, %d bytes still in use", c.Used())
	}
	if _, err := c.Alloc(10); err != nil {
		t.Errorf("Expected the released memory to be reusable, got %v", err)
	}
}

func TestLaunchCoversEveryUnitOnce(t *testing.T) {
	grids := []Grid{
		{BlockX: 1, BlockY: 1, GridX: 1, GridY: 1},
		{BlockX: 100, BlockY: 1, GridX: 1, GridY: 50},
		{BlockX: 7, BlockY: 3, GridX: 5, GridY: 2},
	}

	c := NewCPU(4, 0)
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	for _, g := range grids {
		t.Run(g.String(), func(t *testing.T) {
			counts := make([]atomic.Int32, g.Units())
			err := c.Launch(context.Background(), g, func(x, y int) {
				counts[y*g.Width()+x].Add(1)
			})
			if err != nil {
				t.Fatalf("Expected launch to succeed, got %v", err)
			}
			for i := range counts {
				if n := counts[i].Load(); n != 1 {
					t.Fatalf("Expected unit %d to run once, ran %d times", i, n)
				}
			}
		})
	}
}

func TestLaunchErrors(t *testing.T) {
	c := NewCPU(2, 0)
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	g := Grid{BlockX: 4, BlockY: 1, GridX: 2, GridY: 2}
	err := c.Launch(context.Background(), g, func(x, y int) {
		if x == 5 && y == 1 {
			panic("boom")
		}
	})
	if err == nil {
		t.Errorf("Expected a panicking kernel to fail the launch")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Launch(ctx, g, func(int, int) {}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	if err := c.Launch(context.Background(), Grid{}, func(int, int) {}); err == nil {
		t.Errorf("Expected an empty grid to be rejected")
	}
}
