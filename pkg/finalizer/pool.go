// Package finalizer runs the asynchronous tail of an upload once the
// client's combine request has scheduled it: materialize the folder tree,
// assemble the parts server-side, register the file in the metadata catalog,
// publish the activity log, and release the locks the upload held.
package finalizer

import (
	"context"
	"sync"
	"time"

	"github.com/pilotfs/uploadgateway/internal/logger"
)

// Job is everything the finalizer needs to combine, register, and publish
// one upload, carried from Coordinator.Combine.
type Job struct {
	SessionID             string
	ProjectCode           string
	Operator              string
	ResumableIdentifier   string
	ResumableFilename     string
	ResumableRelativePath string
	Tags                  []string
	FolderTags            []string
	DcmID                 string
	ProcessPipeline       string
	FromParents           []string
	UploadMessage         string
	TotalSize             int64
	Bucket                string
	Zone                  int
}

// Config controls the pool's concurrency and backpressure behavior.
type Config struct {
	Workers   int
	QueueSize int
}

// Pool runs Jobs on a bounded number of goroutines, decoupling the
// combine request's HTTP response from the actual finalize work.
type Pool struct {
	process func(context.Context, Job)

	queue     chan Job
	workers   int
	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu      sync.Mutex
	started bool
	pending int
}

// NewPool creates a Pool that hands each dequeued Job to process.
func NewPool(cfg Config, process func(context.Context, Job)) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Pool{
		process:   process,
		queue:     make(chan Job, cfg.QueueSize),
		workers:   cfg.Workers,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run starts the worker goroutines; it returns immediately, workers run
// until ctx is cancelled or Stop is called.
func (p *Pool) Run(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	logger.Info("finalizer pool starting", "workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	go func() {
		p.wg.Wait()
		close(p.stoppedCh)
	}()
}

// Stop signals every worker to drain its remaining queued jobs and exit,
// waiting up to timeout.
func (p *Pool) Stop(timeout time.Duration) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	close(p.stopCh)
	select {
	case <-p.stoppedCh:
		logger.Info("finalizer pool stopped gracefully")
	case <-time.After(timeout):
		logger.Warn("finalizer pool stop timed out", "pending", p.Pending())
	}
}

// Submit enqueues job, returning false (and logging) if the queue is full.
// The combine handler never blocks on finalization.
func (p *Pool) Submit(job Job) bool {
	select {
	case p.queue <- job:
		p.mu.Lock()
		p.pending++
		p.mu.Unlock()
		return true
	default:
		logger.Warn("finalizer queue full, dropping job", logger.KeyResumableIdentifier, job.ResumableIdentifier)
		return false
	}
}

// Pending reports the number of jobs enqueued but not yet started.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			p.drain()
			return
		case <-ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(job)
		}
	}
}

func (p *Pool) drain() {
	for {
		select {
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(job)
		default:
			return
		}
	}
}

// run processes one job on its own bounded context, independent of the
// pool's lifecycle context, so an in-flight finalize survives a Stop call
// long enough to drain.
func (p *Pool) run(job Job) {
	p.mu.Lock()
	p.pending--
	p.mu.Unlock()

	runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	p.process(runCtx, job)
}
