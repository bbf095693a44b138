// Package settings persists small user preferences such as the auto-save flag.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/ibeckermayer/feedrelay/internal/config"
)

// KeyAutoSave holds the feature flag that gates scroll-triggered scanning.
const KeyAutoSave = "autoSaveEnabled"

// Store is a key-value settings collaborator.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// FileStore keeps settings in a TOML file. Every Get re-reads the file so
// changes made by another process (e.g. `feedrelay toggle`) are visible.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// DefaultPath returns settings.toml in the config directory.
func DefaultPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.toml"), nil
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	values[key] = value
	return s.write(values)
}

func (s *FileStore) read() (map[string]string, error) {
	values := make(map[string]string)
	if _, err := toml.DecodeFile(s.path, &values); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return values, nil
}

func (s *FileStore) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(values); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// AutoSaveEnabled reads the feature flag. A missing or malformed value is false.
func AutoSaveEnabled(ctx context.Context, s Store) (bool, error) {
	v, ok, err := s.Get(ctx, KeyAutoSave)
	if err != nil || !ok {
		return false, err
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return false, nil
	}
	return enabled, nil
}

// SetAutoSave persists the feature flag.
func SetAutoSave(ctx context.Context, s Store, enabled bool) error {
	return s.Set(ctx, KeyAutoSave, strconv.FormatBool(enabled))
}
