package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instacollector/pkg/classify"
	"instacollector/pkg/instagram"
	"instacollector/pkg/logger"
)

type fakeDownloader struct {
	mu        sync.Mutex
	responses map[string][]byte
	errs      map[string]error
	calls     map[string]int
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{
		responses: make(map[string][]byte),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (f *fakeDownloader) DownloadFile(ctx context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[rawURL]++
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	return f.responses[rawURL], nil
}

func newTestMaterializer(t *testing.T, d Downloader) (*Materializer, *FileStore) {
	t.Helper()

	fs, err := NewFileStore(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)

	return NewMaterializer(d, fs, 2, logger.NewNopLogger()), fs
}

func TestMaterializeSavesAllFiles(t *testing.T) {
	d := newFakeDownloader()
	d.responses["http://cdn/1.jpg"] = []byte("one")
	d.responses["http://cdn/2.jpg"] = []byte("two")

	m, fs := newTestMaterializer(t, d)

	names := m.Materialize(context.Background(), &instagram.PostPayload{
		ID:        "9",
		MediaType: instagram.MediaTypeGallery,
		Images: []instagram.MediaVersion{
			{URL: "http://cdn/0.jpg"},
			{URL: "http://cdn/1.jpg"},
			{URL: "http://cdn/2.jpg"},
		},
	})

	assert.Equal(t, []string{"img_9_1.jpg", "img_9_2.jpg"}, names)
	assert.True(t, fs.Exists("img_9_1.jpg"))
	assert.True(t, fs.Exists("img_9_2.jpg"))
}

func TestMaterializePartialFailure(t *testing.T) {
	d := newFakeDownloader()
	d.responses["http://cdn/1.jpg"] = []byte("one")
	d.errs["http://cdn/2.jpg"] = classify.WithCode(classify.KindUnclassified, 404, "unexpected HTTP status code: 404")

	m, _ := newTestMaterializer(t, d)

	names := m.Materialize(context.Background(), &instagram.PostPayload{
		ID:        "9",
		MediaType: instagram.MediaTypeGallery,
		Images: []instagram.MediaVersion{
			{URL: "http://cdn/0.jpg"},
			{URL: "http://cdn/1.jpg"},
			{URL: "http://cdn/2.jpg"},
		},
	})

	// The vanished file is skipped, the rest of the batch lands.
	assert.Equal(t, []string{"img_9_1.jpg"}, names)
}

func TestMaterializeSkipsExistingFiles(t *testing.T) {
	d := newFakeDownloader()
	m, fs := newTestMaterializer(t, d)

	require.NoError(t, fs.Save("pic_5.jpg", []byte("cached")))

	names := m.Materialize(context.Background(), &instagram.UserPayload{ID: "5", Picture: "http://cdn/pp.jpg"})

	assert.Equal(t, []string{"pic_5.jpg"}, names)
	assert.Zero(t, d.calls["http://cdn/pp.jpg"])
}

func TestMaterializeDoesNotRetryVanishedFiles(t *testing.T) {
	d := newFakeDownloader()
	d.errs["http://cdn/pp.jpg"] = classify.WithCode(classify.KindUnclassified, 404, "unexpected HTTP status code: 404")

	m, _ := newTestMaterializer(t, d)
	names := m.Materialize(context.Background(), &instagram.UserPayload{ID: "5", Picture: "http://cdn/pp.jpg"})

	assert.Empty(t, names)
	assert.Equal(t, 1, d.calls["http://cdn/pp.jpg"])
}

func TestMaterializeRetriesOtherFailures(t *testing.T) {
	d := newFakeDownloader()
	d.errs["http://cdn/pp.jpg"] = errors.New("boom")

	m, _ := newTestMaterializer(t, d)
	names := m.Materialize(context.Background(), &instagram.UserPayload{ID: "5", Picture: "http://cdn/pp.jpg"})

	assert.Empty(t, names)
	assert.Equal(t, 2, d.calls["http://cdn/pp.jpg"])
}

func TestFileStoreAtomicSave(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, logger.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, fs.Save("img_1_0.jpg", []byte("data")))

	content, err := os.ReadFile(filepath.Join(dir, "img_1_0.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), content)

	// No temp artifacts left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.True(t, fs.Exists("img_1_0.jpg"))
	assert.False(t, fs.Exists("missing.jpg"))

	require.NoError(t, fs.Remove("img_1_0.jpg"))
	require.NoError(t, fs.Remove("img_1_0.jpg"))
	assert.False(t, fs.Exists("img_1_0.jpg"))
}

func TestPoolProcessesJobs(t *testing.T) {
	d := newFakeDownloader()
	d.responses["http://cdn/a.jpg"] = []byte("a")
	d.responses["http://cdn/b.jpg"] = []byte("b")

	m, _ := newTestMaterializer(t, d)
	pool := NewPool(2, m, logger.NewNopLogger())
	pool.Start(context.Background())

	jobs := []Job{
		{ID: "1", Payload: &instagram.UserPayload{ID: "1", Picture: "http://cdn/a.jpg"}},
		{ID: "2", Payload: &instagram.UserPayload{ID: "2", Picture: "http://cdn/b.jpg"}},
	}
	for _, job := range jobs {
		require.NoError(t, pool.Submit(job))
	}

	results := make(map[string][]string)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range pool.Results() {
			results[result.ID] = result.Names
		}
	}()

	pool.Stop()
	<-done

	assert.Equal(t, []string{"pic_1.jpg"}, results["1"])
	assert.Equal(t, []string{"pic_2.jpg"}, results["2"])
}

// blockingDownloader never completes a download until its context ends.
type blockingDownloader struct{}

func (blockingDownloader) DownloadFile(ctx context.Context, rawURL string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPoolCancellationInterruptsDownloads(t *testing.T) {
	m, _ := newTestMaterializer(t, blockingDownloader{})

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(1, m, logger.NewNopLogger())
	pool.Start(ctx)

	// One job in flight plus a full queue of stalled downloads.
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, pool.Submit(Job{ID: id, Payload: &instagram.UserPayload{ID: id, Picture: "http://cdn/pp.jpg"}}))
	}

	cancel()

	// Cancellation must reach the stalled downloads; without it, Stop
	// would sit on the full queue forever.
	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not shut down after cancellation")
	}
}
