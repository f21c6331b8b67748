package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"bookgraph/pkg/logger"
)

// FileCache stores JSON blobs as files under a root directory. Keys are
// composed from path-like parts, category first, so ids never collide with
// delimiters. Entries live until an external purge removes the files; the
// cache itself never expires anything.
type FileCache struct {
	root string
}

// NewFileCacheParams defines the configuration for creating a FileCache.
type NewFileCacheParams struct {
	Root string
}

// NewFileCache creates a FileCache rooted at params.Root, creating the
// directory if needed.
func NewFileCache(params NewFileCacheParams) (*FileCache, error) {
	if params.Root == "" {
		return nil, fmt.Errorf("cache root directory is required")
	}
	if err := os.MkdirAll(params.Root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", params.Root, err)
	}
	return &FileCache{root: params.Root}, nil
}

func (c *FileCache) path(parts ...string) (string, error) {
	if len(parts) == 0 {
		return "", fmt.Errorf("cache key requires at least one part")
	}
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, `/\`) || p == "." || p == ".." {
			return "", fmt.Errorf("invalid cache key part %q", p)
		}
	}
	return filepath.Join(append([]string{c.root}, parts...)...) + ".json", nil
}

// Load reads the entry for the key into out. The boolean reports whether the
// entry exists; a missing entry is not an error. A corrupt entry is removed
// and reported as absent so the caller recomputes it.
func (c *FileCache) Load(out any, parts ...string) (bool, error) {
	path, err := c.path(parts...)
	if err != nil {
		return false, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read cache entry %s: %w", path, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		logger.Warn("Removing corrupt cache entry", "path", path, "err", err)
		if rmErr := os.Remove(path); rmErr != nil {
			logger.Error("Failed to remove corrupt cache entry", "path", path, "err", rmErr)
		}
		return false, nil
	}
	return true, nil
}

// Save writes v as the entry for the key, creating intermediate directories
// and replacing any previous entry.
func (c *FileCache) Save(v any, parts ...string) error {
	path, err := c.path(parts...)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache subdirectory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", path, err)
	}
	return nil
}
