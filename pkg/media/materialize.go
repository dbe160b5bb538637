package media

import (
	"context"
	"time"

	"instacollector/pkg/classify"
	"instacollector/pkg/instagram"
	"instacollector/pkg/logger"
	"instacollector/pkg/retry"
)

// Downloader fetches the bytes behind a media URL. The session client
// implements it; tests substitute a fake.
type Downloader interface {
	DownloadFile(ctx context.Context, rawURL string) ([]byte, error)
}

// Materializer turns a payload's remote media references into local
// files with deterministic names. Failures on individual files never
// fail the batch; the returned name list covers what actually landed.
type Materializer struct {
	downloader Downloader
	store      *FileStore
	attempts   int
	logger     logger.Logger
}

// NewMaterializer wires a downloader to a file store.
func NewMaterializer(d Downloader, store *FileStore, attempts int, log logger.Logger) *Materializer {
	if log == nil {
		log = logger.GetLogger()
	}
	if attempts <= 0 {
		attempts = 3
	}
	return &Materializer{downloader: d, store: store, attempts: attempts, logger: log}
}

// Materialize downloads every file in the payload's plan and returns
// the names that were saved. Already-present files count as saved
// without a fetch. Expected download failures stay silent; anything
// else is logged and skipped.
func (m *Materializer) Materialize(ctx context.Context, payload instagram.Payload) []string {
	var saved []string
	for _, file := range Files(payload) {
		if m.store.Exists(file.Name) {
			saved = append(saved, file.Name)
			continue
		}

		if err := m.fetch(ctx, file); err != nil {
			if !classify.IgnorableDownload(err) {
				m.logger.ErrorWhen("downloading content from the feed server", err)
			}
			continue
		}
		saved = append(saved, file.Name)
	}
	return saved
}

func (m *Materializer) fetch(ctx context.Context, file File) error {
	return retry.Do(func() error {
		data, err := m.downloader.DownloadFile(ctx, file.URL)
		if err != nil {
			return err
		}
		return m.store.Save(file.Name, data)
	}, &retry.Config{
		MaxAttempts: m.attempts,
		Backoff:     &retry.ConstantBackoff{Delay: 500 * time.Millisecond},
		RetryIf: func(err error) bool {
			// Vanished or redirected files will not reappear on retry.
			if classify.IgnorableDownload(err) {
				return false
			}
			return retry.DefaultRetryIf(err)
		},
		Context: ctx,
		Logger:  m.logger,
	})
}
