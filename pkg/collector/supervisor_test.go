package collector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instacollector/pkg/logger"
	"instacollector/pkg/retry"
)

func newTestSupervisor() *Supervisor {
	sup := NewSupervisor(logger.NewNopLogger())
	sup.backoff = &retry.ConstantBackoff{Delay: time.Millisecond}
	return sup
}

func TestSupervisorRestartsCrashedTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := newTestSupervisor()

	var runs atomic.Int64
	task := sup.Go(ctx, "crashy", func(ctx context.Context) error {
		if runs.Add(1) >= 3 {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		}
		return errors.New("boom")
	})

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("task did not stop")
	}

	assert.GreaterOrEqual(t, runs.Load(), int64(3))
	assert.GreaterOrEqual(t, task.Restarts(), int64(2))
}

func TestSupervisorRecoversPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := newTestSupervisor()

	var runs atomic.Int64
	task := sup.Go(ctx, "panicky", func(ctx context.Context) error {
		if runs.Add(1) >= 2 {
			cancel()
			return ctx.Err()
		}
		panic("unexpected state")
	})

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("task did not stop after panic")
	}

	assert.GreaterOrEqual(t, runs.Load(), int64(2))
}

func TestSupervisorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	sup := newTestSupervisor()
	task := sup.Go(ctx, "steady", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	cancel()

	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}

	assert.Zero(t, task.Restarts())
}

func TestSupervisorTracksTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	sup := newTestSupervisor()
	sup.Go(ctx, "one", func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() })
	sup.Go(ctx, "two", func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() })

	tasks := sup.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "one", tasks[0].Name())
	assert.Equal(t, "two", tasks[1].Name())

	cancel()
	sup.Wait()
}
