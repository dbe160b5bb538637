package media

import (
	"fmt"
	"os"
	"path/filepath"

	"instacollector/pkg/logger"
)

// FileStore persists downloaded media under one directory. Writes are
// atomic so a crashed download never leaves a truncated file behind.
type FileStore struct {
	dir    string
	logger logger.Logger
}

// NewFileStore creates the directory if needed and returns a store
// rooted there.
func NewFileStore(dir string, log logger.Logger) (*FileStore, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &FileStore{dir: dir, logger: log}, nil
}

// Dir returns the store's root directory.
func (fs *FileStore) Dir() string { return fs.dir }

// Exists reports whether a file with this name is already materialized.
func (fs *FileStore) Exists(name string) bool {
	info, err := os.Stat(filepath.Join(fs.dir, name))
	return err == nil && !info.IsDir()
}

// Save writes data under the given name via a temp file and rename.
func (fs *FileStore) Save(name string, data []byte) error {
	path := filepath.Join(fs.dir, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize file: %w", err)
	}

	fs.logger.DebugWithFields("Saved media file", map[string]interface{}{
		"file": name,
		"size": len(data),
	})

	return nil
}

// Remove deletes a materialized file, ignoring files already gone.
func (fs *FileStore) Remove(name string) error {
	err := os.Remove(filepath.Join(fs.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
