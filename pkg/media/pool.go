package media

import (
	"context"
	"sync"
	"time"

	"instacollector/pkg/instagram"
	"instacollector/pkg/logger"
)

// Job is one entity whose media should be materialized.
type Job struct {
	ID      string
	Payload instagram.Payload
}

// Result reports what landed for one job. Names covers the files
// actually saved, which may be a subset of the plan.
type Result struct {
	ID       string
	Names    []string
	Duration time.Duration
}

// Pool runs materialization jobs over a fixed set of workers. The
// backfill sweeps feed it entities from a storage cursor and consume
// results to record the saved names.
type Pool struct {
	numWorkers   int
	materializer *Materializer
	jobQueue     chan Job
	resultQueue  chan Result
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	logger       logger.Logger
}

// NewPool creates a pool backed by the given materializer.
func NewPool(numWorkers int, m *Materializer, log logger.Logger) *Pool {
	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}

	return &Pool{
		numWorkers:   numWorkers,
		materializer: m,
		jobQueue:     make(chan Job, numWorkers*2),
		resultQueue:  make(chan Result, numWorkers),
		logger:       log,
	}
}

// Start launches the workers. The pool runs under the given context,
// so cancelling it interrupts queued and in-flight downloads.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.logger.InfoWithFields("Starting media pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop drains remaining jobs and shuts the pool down.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()

	p.logger.Info("Media pool stopped")
}

// Submit queues a job, failing only when the pool is shutting down.
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Results exposes the result stream. The channel closes after Stop.
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := p.logger.WithField("worker_id", id)
	log.Debug("Media worker started")

	for job := range p.jobQueue {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		start := time.Now()
		names := p.materializer.Materialize(p.ctx, job.Payload)

		select {
		case p.resultQueue <- Result{ID: job.ID, Names: names, Duration: time.Since(start)}:
		case <-p.ctx.Done():
			return
		}
	}

	log.Debug("Media worker finished")
}
