// Package datastore is a small JSON-file key-value store with
// periodic autosave. It backs per-guild bot settings; it is not a
// database and does not try to be one.
package datastore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const autoSaveInterval = 10 * time.Second

type Store struct {
	mu   sync.RWMutex
	data map[string]any
	file string
	log  *zap.Logger

	// checksum of the last written payload, used to skip no-op saves
	lastChecksum string

	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup
}

// Open loads the store from filePath, creating an empty file when it
// does not exist yet. A background goroutine flushes changes every few
// seconds; Close performs the final flush.
func Open(filePath string, log *zap.Logger) (*Store, error) {
	if filePath == "" {
		return nil, fmt.Errorf("datastore: file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("datastore: create directory: %w", err)
	}

	s := &Store{
		data: make(map[string]any),
		file: filePath,
		log:  log.Named("datastore"),
		done: make(chan struct{}),
	}

	raw, err := os.ReadFile(filePath)
	switch {
	case os.IsNotExist(err):
		if err := s.writeFileAtomic([]byte("{}")); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("datastore: read file: %w", err)
	default:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("datastore: invalid JSON in %s: %w", filePath, err)
		}
		s.lastChecksum = checksum(raw)
	}

	s.wg.Add(1)
	go s.autoSave()
	return s, nil
}

// Set stores a value under key. The value must be JSON-serializable.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Get returns the raw stored value for key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	return value, ok
}

// Delete removes key from the store.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Save flushes the store to disk immediately.
func (s *Store) Save() error {
	s.mu.RLock()
	raw, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("datastore: marshal: %w", err)
	}

	sum := checksum(raw)
	if sum == s.lastChecksum {
		return nil
	}
	if err := s.writeFileAtomic(raw); err != nil {
		return err
	}
	s.lastChecksum = sum
	return nil
}

// Close stops the autosave loop and writes the final state.
func (s *Store) Close() error {
	var err error
	s.closed.Do(func() {
		close(s.done)
		s.wg.Wait()
		err = s.Save()
	})
	return err
}

func (s *Store) autoSave() {
	defer s.wg.Done()
	ticker := time.NewTicker(autoSaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.Save(); err != nil {
				s.log.Error("autosave failed", zap.Error(err))
			}
		}
	}
}

// writeFileAtomic writes via a temp file and rename so a crash mid
// write never leaves a truncated store behind.
func (s *Store) writeFileAtomic(raw []byte) error {
	tmp := s.file + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("datastore: write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.file); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("datastore: rename temp file: %w", err)
	}
	return nil
}

func checksum(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
