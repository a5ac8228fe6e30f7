package securestore

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"
)

// FS stores each value as a file under dataDir with a write-through
// cache. File names are the base64url of the key, mode 0600.
type FS struct {
	mu      sync.RWMutex
	dataDir string
	cache   map[string][]byte
}

func NewFS(dataDir string) (*FS, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, err
	}
	s := &FS{
		dataDir: dataDir,
		cache:   make(map[string][]byte),
	}
	if err := s.loadFromDisk(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FS) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path(key), value, 0600); err != nil {
		return err
	}
	s.cache[key] = append([]byte(nil), value...)
	return nil
}

func (s *FS) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	if v, ok := s.cache[key]; ok {
		out := append([]byte(nil), v...)
		s.mu.RUnlock()
		return out, true, nil
	}
	s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	s.mu.Lock()
	s.cache[key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return data, true, nil
}

func (s *FS) path(key string) string {
	return filepath.Join(s.dataDir, base64.RawURLEncoding.EncodeToString([]byte(key))+".json")
}

func (s *FS) loadFromDisk() error {
	files, err := os.ReadDir(s.dataDir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		name := f.Name()[:len(f.Name())-5]
		raw, err := base64.RawURLEncoding.DecodeString(name)
		if err != nil {
			continue // not one of ours
		}
		data, err := os.ReadFile(filepath.Join(s.dataDir, f.Name()))
		if err != nil {
			continue
		}
		s.cache[string(raw)] = data
	}
	return nil
}
