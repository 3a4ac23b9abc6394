package renderer

import (
	"math"
	"testing"
)

func TestCameraTask(t *testing.T) {
	cam := NewCamera(8, 20)
	if cam.PixelSize() != 5 {
		t.Errorf("Expected pixel size 5, got %v", cam.PixelSize())
	}

	first := cam.Task(0, 0)
	if first.Alpha != -17.5 || first.Beta != -17.5 || first.Index != 0 {
		t.Errorf("Expected first pixel centre at (-17.5, -17.5), got %+v", first)
	}
	last := cam.Task(7, 7)
	if last.Alpha != 17.5 || last.Beta != 17.5 || last.Index != 63 {
		t.Errorf("Expected last pixel centre at (17.5, 17.5), got %+v", last)
	}
	if task := cam.Task(2, 5); task.Row != 2 || task.Col != 5 || task.Index != 21 {
		t.Errorf("Expected row-major index 21, got %+v", task)
	}
}

func TestCameraPointSymmetry(t *testing.T) {
	for _, size := range []int{8, 9, 32, 513} {
		cam := NewCamera(size, 20)
		for row := 0; row < size; row += 3 {
			for col := 0; col < size; col += 5 {
				a := cam.Task(row, col)
				b := cam.Task(size-1-row, size-1-col)
				if a.Alpha != -b.Alpha || a.Beta != -b.Beta {
					t.Fatalf("Size %d: pixel (%d,%d) at (%v,%v) is not mirrored by (%v,%v)",
						size, row, col, a.Alpha, a.Beta, b.Alpha, b.Beta)
				}
			}
		}
	}

	// Odd sizes put a pixel centre exactly on the optical axis.
	centre := NewCamera(9, 20).Task(4, 4)
	if math.Abs(centre.Alpha) != 0 || math.Abs(centre.Beta) != 0 {
		t.Errorf("Expected centre pixel at the origin, got (%v, %v)", centre.Alpha, centre.Beta)
	}
}
