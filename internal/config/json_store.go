package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dpmst/rtd2142fw/internal/models"
)

const (
	configFileName = "quirks.json"
	debounceDelay  = 500 * time.Millisecond
)

// JSONStore is an atomic JSON file store with debounced writes.
type JSONStore struct {
	mu      sync.Mutex
	path    string
	timer   *time.Timer
	pending *models.QuirkConfig
}

// NewJSONStore creates a new JSON store in the given config directory.
func NewJSONStore(configDir string) *JSONStore {
	return &JSONStore{
		path: filepath.Join(configDir, configFileName),
	}
}

// Path returns the file path used by this store.
func (s *JSONStore) Path() string { return s.path }

// Load reads the config from disk. Returns DefaultQuirkConfig on ENOENT or parse errors.
func (s *JSONStore) Load() (*models.QuirkConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			def := models.DefaultQuirkConfig()
			return &def, nil
		}
		return nil, err
	}

	var cfg models.QuirkConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		slog.Warn("config: corrupt quirk config, using defaults", "path", s.path, "err", err)
		def := models.DefaultQuirkConfig()
		return &def, nil
	}

	return &cfg, nil
}

// Save schedules a debounced write of the config to disk.
// The actual write happens after 500ms of no further Save calls.
func (s *JSONStore) Save(cfg *models.QuirkConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Take a copy so we don't hold a reference to the caller's config
	cp := *cfg
	s.pending = &cp

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(debounceDelay, func() {
		s.mu.Lock()
		cfg := s.pending
		s.mu.Unlock()
		if cfg != nil {
			if err := s.writeAtomic(cfg); err != nil {
				slog.Error("config: failed to write quirk config", "path", s.path, "err", err)
			}
		}
	})
	return nil
}

// Flush forces an immediate write of any pending config.
func (s *JSONStore) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	cfg := s.pending
	s.mu.Unlock()
	if cfg == nil {
		return nil
	}
	return s.writeAtomic(cfg)
}

func (s *JSONStore) writeAtomic(cfg *models.QuirkConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	// Write to temp file, then rename (atomic on Linux)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}
