package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CacheDirName is the hidden folder created inside the ranked folder
const CacheDirName = ".cache_edit_scores"

const cacheFileExt = ".json"

// FileCache stores one indented JSON file per document identity
type FileCache struct {
	dir string
}

// NewFileCache creates the cache directory if needed
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &FileCache{dir: dir}, nil
}

// Dir returns the cache directory
func (c *FileCache) Dir() string {
	return c.dir
}

// path keeps every entry directly inside the cache directory
func (c *FileCache) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCacheKey, id)
	}
	return filepath.Join(c.dir, id+cacheFileExt), nil
}

// Get reads the record stored for id
func (c *FileCache) Get(_ context.Context, id string) (Record, bool, error) {
	path, err := c.path(id)
	if err != nil {
		return Record{}, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read cache entry %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, id, err)
	}
	return rec, true, nil
}

// Put writes rec for id through a temporary file and a rename
func (c *FileCache) Put(_ context.Context, id string, rec Record) error {
	path, err := c.path(id)
	if err != nil {
		return err
	}
	data, err := EncodeRecord(rec)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", id, err)
	}

	tmp, err := os.CreateTemp(c.dir, "."+id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache entry %s: %w", id, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache entry %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache entry %s: %w", id, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to store cache entry %s: %w", id, err)
	}
	return nil
}

// Delete removes the entry for id; a missing entry is not an error
func (c *FileCache) Delete(_ context.Context, id string) error {
	path, err := c.path(id)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache entry %s: %w", id, err)
	}
	return nil
}

// Keys lists stored identities in lexical order
func (c *FileCache) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory %s: %w", c.dir, err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != cacheFileExt {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, cacheFileExt))
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes every stored entry
func (c *FileCache) Clear(ctx context.Context) (int, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range keys {
		if err := c.Delete(ctx, id); err != nil {
			return i, err
		}
	}
	return len(keys), nil
}

// EncodeRecord renders rec as two-space indented JSON without HTML escaping
func EncodeRecord(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
