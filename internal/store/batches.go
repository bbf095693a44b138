package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ibeckermayer/feedrelay/internal/config"
	"github.com/ibeckermayer/feedrelay/internal/types"
)

// BatchCacheDir returns the directory delivered batches are archived in.
// On macOS this is ~/Library/Caches/feedrelay/batches/
func BatchCacheDir() (string, error) {
	cacheDir, err := config.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "batches"), nil
}

// SaveBatch serializes one delivered batch to JSON and writes it to
// dir/<timestamp>-<batchID>.json. Returns the path to the saved file.
func SaveBatch(dir, batchID string, records []types.Record) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create batch directory: %w", err)
	}

	// Dashes instead of colons for filesystem compatibility
	filename := fmt.Sprintf("%s-%s.json", time.Now().Format("2006-01-02T15-04-05"), batchID)
	path := filepath.Join(dir, filename)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode batch: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write batch: %w", err)
	}

	return path, nil
}
