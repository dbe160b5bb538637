package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"instacollector/pkg/logger"
	"instacollector/pkg/retry"
)

// Task is one supervised sweep. Done closes when the task stops for
// good, which only happens on context cancellation.
type Task struct {
	name     string
	restarts atomic.Int64
	done     chan struct{}
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Restarts reports how many times the task body has been restarted.
func (t *Task) Restarts() int64 { return t.restarts.Load() }

// Done closes when the task has stopped.
func (t *Task) Done() <-chan struct{} { return t.done }

// Supervisor keeps sweep tasks alive. A task body returning for any
// reason other than cancellation is restarted after a bounded backoff;
// a panic inside a sweep must not take the process down with it.
type Supervisor struct {
	backoff retry.BackoffStrategy
	logger  logger.Logger
	wg      sync.WaitGroup
	tasks   []*Task
	mu      sync.Mutex
}

// NewSupervisor creates a supervisor with the default backoff.
func NewSupervisor(log logger.Logger) *Supervisor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Supervisor{
		backoff: DefaultRestartBackoff(),
		logger:  log,
	}
}

// DefaultRestartBackoff is the restart delay schedule: exponential
// from one second, capped at five minutes.
func DefaultRestartBackoff() retry.BackoffStrategy {
	return &retry.ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     5 * time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// Go launches a supervised task and returns its handle.
func (s *Supervisor) Go(ctx context.Context, name string, fn func(ctx context.Context) error) *Task {
	task := &Task{name: name, done: make(chan struct{})}

	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(task.done)

		logger.LogComponentStart(name, nil)

		for {
			err := s.run(ctx, name, fn)

			if ctx.Err() != nil {
				logger.LogComponentStop(name, "context cancelled")
				return
			}

			restarts := task.restarts.Add(1)
			s.logger.WithFields(map[string]interface{}{
				"task":     name,
				"restarts": restarts,
				"error":    errString(err),
			}).Warn("Sweep task exited, restarting")

			delay := s.backoff.NextDelay(int(restarts))
			if werr := retry.Wait(ctx, delay); werr != nil {
				logger.LogComponentStop(name, "context cancelled")
				return
			}
		}
	}()

	return task
}

// run executes one task body, converting a panic into an error return.
func (s *Supervisor) run(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorWithFields("Sweep task panicked", map[string]interface{}{
				"task":  name,
				"panic": r,
			})
			err = &panicError{value: r}
		}
	}()
	return fn(ctx)
}

// Wait blocks until every supervised task has stopped.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Tasks returns handles for all launched tasks.
func (s *Supervisor) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Task(nil), s.tasks...)
}

type panicError struct {
	value interface{}
}

func (p *panicError) Error() string {
	return "task panicked"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
