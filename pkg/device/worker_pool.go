package device

import (
	"fmt"
	"runtime"
	"sync"
)

// BlockTask is one block of a launch for the worker pool
type BlockTask struct {
	BlockX, BlockY int
	Grid           Grid
	Kernel         Kernel
	TaskID         int // For deterministic ordering
	results        chan<- BlockResult
}

// BlockResult contains the result from running a block
type BlockResult struct {
	TaskID int
	Error  error
}

// WorkerPool runs blocks of a launch in parallel
type WorkerPool struct {
	taskQueue  chan BlockTask
	workers    []*Worker
	numWorkers int
	wg         sync.WaitGroup
}

// Worker executes the threads of one block at a time
type Worker struct {
	ID        int
	taskQueue chan BlockTask
}

// NewWorkerPool creates a worker pool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	wp := &WorkerPool{
		taskQueue:  make(chan BlockTask, numWorkers*4),
		numWorkers: numWorkers,
	}

	for i := 0; i < numWorkers; i++ {
		wp.workers = append(wp.workers, &Worker{ID: i, taskQueue: wp.taskQueue})
	}

	return wp
}

// Start begins all workers
func (wp *WorkerPool) Start() {
	for _, worker := range wp.workers {
		wp.wg.Add(1)
		go worker.run(&wp.wg)
	}
}

// Stop gracefully shuts down all workers
func (wp *WorkerPool) Stop() {
	close(wp.taskQueue) // No more tasks
	wp.wg.Wait()        // Wait for workers to finish
}

// SubmitTask submits a block task to the worker pool
func (wp *WorkerPool) SubmitTask(task BlockTask) {
	wp.taskQueue <- task
}

// NumWorkers returns the number of workers in the pool
func (wp *WorkerPool) NumWorkers() int {
	return wp.numWorkers
}

// run is the main worker loop
func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range w.taskQueue {
		task.results <- BlockResult{TaskID: task.TaskID, Error: w.runBlock(task)}
	}
}

// runBlock executes every thread of the block. A panicking kernel fails the
// block instead of the process.
func (w *Worker) runBlock(task BlockTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("block (%d,%d) on worker %d: %v", task.BlockX, task.BlockY, w.ID, r)
		}
	}()

	g := task.Grid
	for ty := 0; ty < g.BlockY; ty++ {
		for tx := 0; tx < g.BlockX; tx++ {
			task.Kernel(task.BlockX*g.BlockX+tx, task.BlockY*g.BlockY+ty)
		}
	}
	return nil
}
