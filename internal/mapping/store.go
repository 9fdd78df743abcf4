package mapping

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"padsynth/internal/fileutil"
)

// Store reads and writes the mapping document at a fixed path.
type Store struct {
	path   string
	mu     sync.Mutex
	cached *Config
}

// NewStore returns a store for path. Nothing is read until Load.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load reads, validates and caches the document.
func (s *Store) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", s.path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load mapping %s: %w", s.path, err)
	}
	s.cached = cfg
	return cfg.Clone(), nil
}

// Cached returns the last loaded or saved document, loading it on first use.
func (s *Store) Cached() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		return s.loadLocked()
	}
	return s.cached.Clone(), nil
}

// Save validates cfg and atomically replaces the document. The normalized
// copy that was written is returned and cached.
func (s *Store) Save(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, invalidf("document is empty")
	}
	next := cfg.Clone()
	if err := next.Normalize(); err != nil {
		return nil, err
	}
	data, err := Marshal(next)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return nil, err
	}
	s.cached = next
	return next.Clone(), nil
}

// EnsureDefault loads the document, writing the factory mapping first when the
// file does not exist. The boolean reports whether the default was created.
func (s *Store) EnsureDefault() (*Config, bool, error) {
	cfg, err := s.Load()
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	cfg, err = s.Save(Default())
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// Backup copies the current document to path+".bak" and returns that path.
func (s *Store) Backup() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dst := s.path + ".bak"
	if err := fileutil.CopyFile(s.path, dst); err != nil {
		return "", fmt.Errorf("backup mapping: %w", err)
	}
	return dst, nil
}
