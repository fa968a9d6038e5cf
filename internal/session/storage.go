package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/msu-forum/client_layer/internal/gateway"
)

// Storage persists the last known session snapshot. Absence means logged
// out; presence is trusted without re-validation until an explicit logout or
// a failed auth check.
type Storage interface {
	// Load returns the stored session, or nil when none is stored.
	Load() (*gateway.Session, error)
	// Save writes the session through to the backing store.
	Save(*gateway.Session) error
	// Clear removes any stored session.
	Clear() error
}

// FileStorage keeps the snapshot as one JSON blob on disk, written
// atomically via a temp file rename.
type FileStorage struct {
	path string
}

// NewFileStorage creates storage at path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) Load() (*gateway.Session, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session snapshot: %w", err)
	}
	var sess gateway.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		// A corrupt snapshot is treated as absent so a bad write can
		// never wedge startup.
		return nil, nil
	}
	return &sess, nil
}

func (f *FileStorage) Save(sess *gateway.Session) error {
	if sess == nil {
		return f.Clear()
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write session snapshot: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStorage) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session snapshot: %w", err)
	}
	return nil
}

// MemoryStorage is an in-process Storage for tests and for running without
// persistence configured.
type MemoryStorage struct {
	mu   sync.Mutex
	sess *gateway.Session
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load() (*gateway.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, nil
	}
	clone := *m.sess
	return &clone, nil
}

func (m *MemoryStorage) Save(sess *gateway.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess == nil {
		m.sess = nil
		return nil
	}
	clone := *sess
	m.sess = &clone
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}
