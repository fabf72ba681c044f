// internal/store/store.go
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Store is the persistence boundary of the engine. Snapshots, credential pool state
// and the entity registry all go through it as opaque bytes; what lies behind a key
// is the caller's business.
type Store interface {
	Load(key string) (data []byte, ok bool, err error)
	Save(key string, data []byte) error
	Delete(key string) error
}

// FileStore keeps one JSON file per key inside a data directory. Writes go through
// a temp file and rename so a crash mid-write never leaves a half-written state file.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	logger *zap.Logger
}

func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("store: data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger.Named("store")}, nil
}

func (fs *FileStore) Load(key string) ([]byte, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: load %q: %w", key, err)
	}
	return data, true, nil
}

func (fs *FileStore) Save(key string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: save %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: save %q: %w", key, err)
	}
	fs.logger.Debug("State saved", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

func (fs *FileStore) Delete(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	err := os.Remove(fs.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: delete %q: %w", key, err)
	}
	return nil
}

// path maps a logical key to a file name. Key segments may contain addresses and
// handles, so everything outside a safe character set is flattened.
func (fs *FileStore) path(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return filepath.Join(fs.dir, b.String()+".json")
}
