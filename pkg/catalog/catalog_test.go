package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/df07/go-grrt/pkg/config"
	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/renderer"
)

type testEnv struct {
	Repo Repo
	Ctx  context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := Repo{DB: conn, Now: func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}}
	return testEnv{Repo: repo, Ctx: context.Background()}
}

func testRun() config.Run {
	return config.Run{
		Name:        "face-on",
		Scenario:    config.Redshift,
		Inclination: 0,
		Resolution:  2,
		HalfWidth:   10,
		Distance:    1000,
		Grid:        config.Grid{BlockX: 2, BlockY: 1, GridX: 1, GridY: 2},
		Disk:        config.Disk{Outer: 20},
		Integrator:  config.Integrator{Tolerance: 1e-10, MaxSteps: 20000},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	if err := Migrate(env.Repo.DB); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var version int
	if err := env.Repo.DB.QueryRow(`SELECT version FROM schema_version`).Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != 1 {
		t.Errorf("Expected schema version 1, got %d", version)
	}
}

func TestRunLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.Repo.StartRun(env.Ctx, testRun())
	if err != nil {
		t.Fatalf("start run: %v", err)
	}

	run, err := env.Repo.GetRun(env.Ctx, id)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != StatusRunning {
		t.Errorf("Expected running, got %q", run.Status)
	}
	if run.Params.Disk.Outer != 20 || run.Params.Grid.GridY != 2 {
		t.Errorf("Expected params to round-trip, got %+v", run.Params)
	}

	stats := renderer.RenderStats{TotalPixels: 4, Batches: 1, Duration: 1500 * time.Millisecond, Captured: 1, Escaped: 3, Emitting: 2, Mean: 0.5, Max: 0.7, Total: 1}
	if err := env.Repo.CompleteRun(env.Ctx, id, stats, "out/Output_redshift.txt"); err != nil {
		t.Fatalf("complete run: %v", err)
	}
	run, err = env.Repo.GetRun(env.Ctx, id)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != StatusCompleted || run.DurationMS != 1500 || run.Escaped != 3 || run.MaxValue != 0.7 {
		t.Errorf("Unexpected completed run %+v", run)
	}
	if run.OutputPath != "out/Output_redshift.txt" {
		t.Errorf("Expected output path, got %q", run.OutputPath)
	}
	if run.FinishedAt == "" {
		t.Error("Expected finished_at to be set")
	}
}

func TestFailRun(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.Repo.StartRun(env.Ctx, testRun())
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Repo.FailRun(env.Ctx, id, StatusCancelled, context.Canceled); err != nil {
		t.Fatal(err)
	}
	run, err := env.Repo.GetRun(env.Ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != StatusCancelled || run.Error != context.Canceled.Error() {
		t.Errorf("Expected cancelled run with error, got %q %q", run.Status, run.Error)
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Repo.GetRun(env.Ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from GetRun, got %v", err)
	}
	if err := env.Repo.FailRun(env.Ctx, "missing", StatusFailed, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from FailRun, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := env.Repo.StartRun(env.Ctx, testRun())
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	runs, err := env.Repo.ListRuns(env.Ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Errorf("Expected newest runs first, got %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestRecordDiagnostics(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.Repo.StartRun(env.Ctx, testRun())
	if err != nil {
		t.Fatal(err)
	}

	img := renderer.NewImage(2)
	img.Pixels[0] = core.PixelResult{Status: core.StatusEscaped}
	img.Pixels[1] = core.PixelResult{Alpha: 1, Beta: -1, Status: core.StatusStepLimitExceeded, Flags: core.FlagStepLimit, Steps: 20000}
	img.Pixels[2] = core.PixelResult{Status: core.StatusCaptured, Flags: core.FlagOpaque}
	img.Pixels[3] = core.PixelResult{Alpha: 1, Beta: 1, Status: core.StatusCaptured, Flags: core.FlagDiverged, Steps: 12}

	n, err := env.Repo.RecordDiagnostics(env.Ctx, id, img)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Expected 2 recorded pixels, got %d", n)
	}

	diags, err := env.Repo.Diagnostics(env.Ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(diags) != 2 {
		t.Fatalf("Expected 2 diagnostics, got %d", len(diags))
	}
	if diags[0].Row != 0 || diags[0].Col != 1 || diags[0].Steps != 20000 || diags[0].Status != core.StatusStepLimitExceeded.String() {
		t.Errorf("Unexpected first diagnostic %+v", diags[0])
	}
	if diags[1].Row != 1 || diags[1].Col != 1 || core.Flags(diags[1].Flags) != core.FlagDiverged {
		t.Errorf("Unexpected second diagnostic %+v", diags[1])
	}
}
