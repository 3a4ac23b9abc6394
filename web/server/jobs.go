package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/df07/go-grrt/pkg/catalog"
	"github.com/df07/go-grrt/pkg/config"
	"github.com/df07/go-grrt/pkg/device"
	"github.com/df07/go-grrt/pkg/metrics"
	"github.com/df07/go-grrt/pkg/output"
	"github.com/df07/go-grrt/pkg/renderer"
	"github.com/df07/go-grrt/pkg/scene"
)

// Job states. Finished jobs use the catalog run states.
const (
	JobQueued = "queued"
)

// ErrJobFinished is returned when cancelling a job that already ended.
var ErrJobFinished = errors.New("job already finished")

// Job is one render submitted to the server.
type Job struct {
	ID          string
	Scene       string
	SubmittedBy string
	Run         config.Run
	Created     time.Time

	scene  *scene.Scene
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	status     string
	progress   int
	runID      string
	err        string
	finished   time.Time
	outputPath string
	preview    string
	stats      *renderer.RenderStats
	messages   []ConsoleMessage
	notify     chan struct{} // closed and replaced on every new message
}

// JobView is a snapshot of a job.
type JobView struct {
	ID          string     `json:"id"`
	Scene       string     `json:"scene"`
	Name        string     `json:"name"`
	Scenario    string     `json:"scenario"`
	SubmittedBy string     `json:"submitted_by,omitempty"`
	Status      string     `json:"status" enum:"queued,running,completed,failed,cancelled"`
	Progress    int        `json:"progress" minimum:"0" maximum:"100"`
	RunID       string     `json:"run_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Stats       *StatsView `json:"stats,omitempty"`
	Params      config.Run `json:"params"`
}

// StatsView is the JSON form of renderer.RenderStats.
type StatsView struct {
	TotalPixels  int     `json:"total_pixels"`
	Batches      int     `json:"batches"`
	DurationMS   int64   `json:"duration_ms"`
	Captured     int     `json:"captured"`
	Escaped      int     `json:"escaped"`
	StepLimited  int     `json:"step_limited"`
	Diverged     int     `json:"diverged"`
	Emitting     int     `json:"emitting"`
	AverageSteps float64 `json:"average_steps"`
	MaxSteps     int     `json:"max_steps"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Total        float64 `json:"total"`
}

func statsView(s renderer.RenderStats) *StatsView {
	return &StatsView{
		TotalPixels:  s.TotalPixels,
		Batches:      s.Batches,
		DurationMS:   s.Duration.Milliseconds(),
		Captured:     s.Captured,
		Escaped:      s.Escaped,
		StepLimited:  s.StepLimited,
		Diverged:     s.Diverged,
		Emitting:     s.Emitting,
		AverageSteps: s.AverageSteps,
		MaxSteps:     s.MaxSteps,
		Mean:         s.Mean,
		StdDev:       s.StdDev,
		Min:          s.Min,
		Max:          s.Max,
		Total:        s.Total,
	}
}

// View returns a consistent snapshot of the job.
func (j *Job) View() JobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	v := JobView{
		ID:          j.ID,
		Scene:       j.Scene,
		Name:        j.Run.Name,
		Scenario:    j.Run.Scenario,
		SubmittedBy: j.SubmittedBy,
		Status:      j.status,
		Progress:    j.progress,
		RunID:       j.runID,
		Error:       j.err,
		CreatedAt:   j.Created,
		Params:      j.Run,
	}
	if !j.finished.IsZero() {
		f := j.finished
		v.FinishedAt = &f
	}
	if j.stats != nil {
		v.Stats = statsView(*j.stats)
	}
	return v
}

// Output returns the text output and preview paths of a completed job.
func (j *Job) Output() (text, preview string, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outputPath, j.preview, j.status == catalog.StatusCompleted
}

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// appendMessage records a console line and wakes every subscriber.
func (j *Job) appendMessage(m ConsoleMessage) {
	j.mu.Lock()
	j.messages = append(j.messages, m)
	close(j.notify)
	j.notify = make(chan struct{})
	j.mu.Unlock()
}

// messagesFrom returns the console lines after index next, a channel closed
// when more arrive, and whether the job has finished.
func (j *Job) messagesFrom(next int) ([]ConsoleMessage, <-chan struct{}, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var msgs []ConsoleMessage
	if next < len(j.messages) {
		msgs = append(msgs, j.messages[next:]...)
	}
	finished := j.status != JobQueued && j.status != catalog.StatusRunning
	return msgs, j.notify, finished
}

func (j *Job) setStatus(status string) {
	j.mu.Lock()
	j.status = status
	j.mu.Unlock()
}

func (j *Job) setProgress(p int) {
	j.mu.Lock()
	j.progress = p
	j.mu.Unlock()
}

// ManagerConfig configures the job runner.
type ManagerConfig struct {
	// OutputDir receives one directory per job.
	OutputDir string

	// Catalog records every run; nil disables cataloguing.
	Catalog *catalog.Repo

	// MaxConcurrent bounds the renders running at once. Defaults to 1.
	MaxConcurrent int

	// SelectDevice opens the accelerator of a run. Defaults to device.Select.
	SelectDevice func(name string) (device.Accelerator, error)

	// Logger receives server-side job logs. Defaults to slog.Default().
	Logger *slog.Logger

	// MaxFinished bounds the finished jobs kept in memory. The oldest are
	// dropped first; their runs stay in the catalog. Defaults to 100.
	MaxFinished int
}

// Manager runs render jobs in the background.
type Manager struct {
	cfg   ManagerConfig
	sem   chan struct{}
	group errgroup.Group
	ctx   context.Context
	stop  context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewManager creates a job runner.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.SelectDevice == nil {
		cfg.SelectDevice = device.Select
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if cfg.MaxFinished <= 0 {
		cfg.MaxFinished = 100
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		cfg:  cfg,
		sem:  make(chan struct{}, cfg.MaxConcurrent),
		ctx:  ctx,
		stop: stop,
		jobs: make(map[string]*Job),
	}
}

// Submit validates run and queues it. Invalid runs are rejected before a
// job is created.
func (m *Manager) Submit(sceneID, submittedBy string, run config.Run) (*Job, error) {
	sc, err := scene.New(run)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(m.ctx)
	j := &Job{
		ID:          uuid.NewString(),
		Scene:       sceneID,
		SubmittedBy: submittedBy,
		Run:         run,
		Created:     time.Now().UTC(),
		scene:       sc,
		cancel:      cancel,
		done:        make(chan struct{}),
		status:      JobQueued,
		notify:      make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[j.ID] = j
	m.mu.Unlock()

	m.group.Go(func() error {
		defer cancel()
		defer close(j.done)
		m.run(ctx, j)
		return nil
	})
	return j, nil
}

// Get returns a job by ID.
func (m *Manager) Get(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	return j, ok
}

// List returns all jobs, newest first.
func (m *Manager) List() []JobView {
	m.mu.RLock()
	views := make([]JobView, 0, len(m.jobs))
	for _, j := range m.jobs {
		views = append(views, j.View())
	}
	m.mu.RUnlock()
	sort.Slice(views, func(a, b int) bool {
		if views[a].CreatedAt.Equal(views[b].CreatedAt) {
			return views[a].ID > views[b].ID
		}
		return views[a].CreatedAt.After(views[b].CreatedAt)
	})
	return views
}

// Cancel stops a queued or running job.
func (m *Manager) Cancel(id string) (*Job, error) {
	j, ok := m.Get(id)
	if !ok {
		return nil, catalog.ErrNotFound
	}
	select {
	case <-j.done:
		return j, ErrJobFinished
	default:
	}
	j.cancel()
	return j, nil
}

// Close cancels every job and waits for them to finish.
func (m *Manager) Close() error {
	m.stop()
	return m.group.Wait()
}

func (m *Manager) run(ctx context.Context, j *Job) {
	log := slog.New(NewConsoleHandler(m.cfg.Logger.Handler(), j.appendMessage)).With("job", j.ID)
	scenario := j.Run.Scenario

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		m.finish(j, log, catalog.StatusCancelled, ctx.Err())
		metrics.ObserveRender(scenario, metrics.ResultCancelled, renderer.RenderStats{})
		return
	}

	metrics.JobStarted()
	defer metrics.JobFinished()
	j.setStatus(catalog.StatusRunning)
	log.Info("render started", "scene", j.Scene, "scenario", scenario, "resolution", j.Run.Resolution)

	if m.cfg.Catalog != nil {
		runID, err := m.cfg.Catalog.StartRun(ctx, j.Run)
		if err != nil {
			log.Warn("catalog unavailable", "error", err)
		} else {
			j.mu.Lock()
			j.runID = runID
			j.mu.Unlock()
		}
	}

	stats, err := m.render(ctx, j, log)
	switch {
	case err == nil:
		metrics.ObserveRender(scenario, metrics.ResultOK, stats)
		m.finish(j, log, catalog.StatusCompleted, nil)
	case errors.Is(err, context.Canceled):
		metrics.ObserveRender(scenario, metrics.ResultCancelled, stats)
		m.finish(j, log, catalog.StatusCancelled, err)
	default:
		metrics.ObserveRender(scenario, metrics.ResultError, stats)
		m.finish(j, log, catalog.StatusFailed, err)
	}
}

func (m *Manager) render(ctx context.Context, j *Job, log *slog.Logger) (renderer.RenderStats, error) {
	dev, err := m.cfg.SelectDevice(j.Run.Device)
	if err != nil {
		return renderer.RenderStats{}, err
	}
	defer dev.Close()

	img, stats, err := j.scene.Orchestrator(dev).Render(ctx, func(e renderer.BatchEvent) {
		metrics.ObserveBatch(j.Run.Scenario, e)
		j.setProgress(e.Percent())
		log.Info(fmt.Sprintf("finish %d %%", e.Percent()), "batch", e.Number, "of", e.Total)
	})
	if err != nil {
		return stats, err
	}

	observable := j.scene.Observable()
	dir := filepath.Join(m.cfg.OutputDir, j.ID)
	textPath := filepath.Join(dir, output.DefaultName(j.Run.Scenario))
	if err := output.WriteFile(textPath, img, observable); err != nil {
		return stats, fmt.Errorf("write output: %w", err)
	}
	previewPath := filepath.Join(dir, "preview.png")
	if err := output.WritePNG(previewPath, img, observable); err != nil {
		log.Warn("preview not written", "error", err)
		previewPath = ""
	}

	j.mu.Lock()
	j.outputPath = textPath
	j.preview = previewPath
	j.stats = &stats
	j.progress = 100
	runID := j.runID
	j.mu.Unlock()

	if m.cfg.Catalog != nil && runID != "" {
		if err := m.cfg.Catalog.CompleteRun(ctx, runID, stats, textPath); err != nil {
			log.Warn("catalog update failed", "error", err)
		}
		if n, err := m.cfg.Catalog.RecordDiagnostics(ctx, runID, img); err != nil {
			log.Warn("diagnostics not recorded", "error", err)
		} else if n > 0 {
			log.Info("diagnostics recorded", "pixels", n)
		}
	}

	log.Info("render finished", "pixels", stats.TotalPixels, "batches", stats.Batches,
		"duration", stats.Duration.Round(time.Millisecond), "emitting", stats.Emitting, "output", textPath)
	return stats, nil
}

// finish records the final state. The console gets one last line before the
// status flips so subscribers see it before the stream ends.
func (m *Manager) finish(j *Job, log *slog.Logger, status string, cause error) {
	if cause != nil {
		log.Error("render "+status, "error", cause)
	}

	j.mu.Lock()
	runID := j.runID
	j.mu.Unlock()
	if status != catalog.StatusCompleted && m.cfg.Catalog != nil && runID != "" {
		// The job context may be cancelled already.
		if err := m.cfg.Catalog.FailRun(context.Background(), runID, status, cause); err != nil {
			m.cfg.Logger.Warn("catalog update failed", "job", j.ID, "error", err)
		}
	}

	// Status flip and eviction share the manager lock.
	m.mu.Lock()
	defer m.mu.Unlock()
	j.mu.Lock()
	j.status = status
	if cause != nil {
		j.err = cause.Error()
	}
	j.finished = time.Now().UTC()
	close(j.notify)
	j.notify = make(chan struct{})
	j.mu.Unlock()
	m.evictLocked(j.ID)
}

// evictLocked drops the oldest finished jobs beyond MaxFinished, never the
// job keep. m.mu must be held.
func (m *Manager) evictLocked(keep string) {
	type entry struct {
		id       string
		finished time.Time
	}
	var finished []entry
	for id, j := range m.jobs {
		if id == keep {
			continue
		}
		j.mu.Lock()
		f := j.finished
		j.mu.Unlock()
		if !f.IsZero() {
			finished = append(finished, entry{id, f})
		}
	}
	extra := len(finished) + 1 - m.cfg.MaxFinished
	if extra <= 0 {
		return
	}
	sort.Slice(finished, func(a, b int) bool { return finished[a].finished.Before(finished[b].finished) })
	for _, e := range finished[:extra] {
		delete(m.jobs, e.id)
	}
}
