package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kassabot/internal/models"
)

// Store persists the daily export time as a single scalar file.
type Store struct {
	path string
}

// NewStore points the store at the schedule file.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted "HH:MM" value, falling back to the default when
// the file does not exist yet.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return models.DefaultScheduleTime, nil
	}
	if err != nil {
		return "", fmt.Errorf("read schedule file: %w", err)
	}

	value := strings.TrimSpace(string(data))
	if !ValidTime(value) {
		return "", fmt.Errorf("schedule file %s holds invalid time %q", s.path, value)
	}
	return value, nil
}

// Save writes the value atomically: temp file in the same directory, then
// rename, so a concurrent reader never observes a partial write.
func (s *Store) Save(value string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create schedule directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "schedule-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp schedule file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(value + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write schedule: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close schedule file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace schedule file: %w", err)
	}
	return nil
}
