package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

const fileName = "settings.json"

// Store is the settings file of one data directory.
type Store struct {
	path string

	mu   sync.RWMutex
	data Settings
}

// NewStore reads <dataDir>/settings.json. A file that does not parse is
// renamed to settings.json.corrupt and the store starts empty, so the
// operator is asked for a trainee folder again without losing the old file.
func NewStore(dataDir string) (*Store, error) {
	s := &Store{path: filepath.Join(dataDir, fileName), data: Settings{}}
	data, err := s.read()
	if err != nil {
		return nil, err
	}
	s.data = data
	return s, nil
}

// Path returns the location of the settings file.
func (s *Store) Path() string { return s.path }

func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[key]
}

// Snapshot returns a copy of all settings.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data)
}

// Set stores value under key and writes the file. An empty value removes
// the key.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.data)
	if value == "" {
		delete(next, key)
	} else {
		next[key] = value
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if err := s.write(next); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.data = next
	return nil
}

func (s *Store) read() (Settings, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var loaded Settings
	if err := json.Unmarshal(raw, &loaded); err != nil {
		aside := s.path + ".corrupt"
		slog.Warn("settings file is corrupt, starting empty", "file", s.path, "movedTo", aside, "error", err)
		if err := os.Rename(s.path, aside); err != nil {
			slog.Warn("failed to move corrupt settings aside", "file", s.path, "error", err)
		}
		return Settings{}, nil
	}

	out := Settings{}
	for k, v := range loaded {
		if knownKeys[k] {
			out[k] = v
		}
	}
	return out, nil
}

func (s *Store) write(data Settings) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, fileName+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
