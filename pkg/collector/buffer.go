package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"instacollector/pkg/classify"
	"instacollector/pkg/instagram"
	"instacollector/pkg/logger"
	"instacollector/pkg/store"
)

// bulkWriter is the slice of the storage collection the buffer needs.
type bulkWriter interface {
	BulkUpsert(ctx context.Context, batch []store.Upsert) error
	Name() string
}

// Materializer saves a payload's media locally and returns the names
// that landed. Optional; a nil materializer stages src as absent.
type Materializer interface {
	Materialize(ctx context.Context, payload instagram.Payload) []string
}

// Buffer accumulates staged feed items and writes them out in batches.
// Within a batch the last staged version of an id wins; across batches
// the unique id index makes every write an overwrite.
type Buffer struct {
	writer       bulkWriter
	materializer Materializer
	threshold    int
	logger       logger.Logger

	mu      sync.Mutex
	pending []store.Upsert
}

// NewBuffer creates a buffer flushing to the writer at the threshold.
func NewBuffer(w bulkWriter, threshold int, m Materializer, log logger.Logger) *Buffer {
	if log == nil {
		log = logger.GetLogger()
	}
	if threshold <= 0 {
		threshold = 1
	}
	return &Buffer{
		writer:       w,
		materializer: m,
		threshold:    threshold,
		logger:       log,
	}
}

// Stage queues one payload for persistence, materializing its media
// when a materializer is attached. Reaching the threshold triggers an
// immediate flush.
func (b *Buffer) Stage(ctx context.Context, payload instagram.Payload) error {
	info, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload %s: %w", payload.EntityID(), err)
	}

	up := store.Upsert{
		ID:        payload.EntityID(),
		Info:      info,
		IsPrivate: payload.Private(),
	}
	if b.materializer != nil {
		up.Src = b.materializer.Materialize(ctx, payload)
		if up.Src == nil {
			up.Src = []string{}
		}
	}

	b.mu.Lock()
	b.pending = append(b.pending, up)
	full := len(b.pending) >= b.threshold
	b.mu.Unlock()

	if full {
		b.Flush(ctx)
	}

	return nil
}

// Flush writes all pending items in one batch. Empty buffers are a
// no-op so opportunistic flushes do not inflate the write count.
// Duplicate-key conflicts are expected under upserts and swallowed;
// any other failure is logged and the batch dropped so the sweep can
// continue.
func (b *Buffer) Flush(ctx context.Context) {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	if err := b.writer.BulkUpsert(ctx, batch); err != nil {
		if classify.Classify(err) != classify.KindDuplicateKey {
			b.logger.ErrorWhen("executing bulk operations on "+b.writer.Name(), err)
		}
		return
	}

	b.logger.DebugWithFields("Flushed buffer", map[string]interface{}{
		"collection": b.writer.Name(),
		"items":      len(batch),
	})
}

// Len reports the number of items currently pending.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
