// Package cache implements the on-disk directory of verified ciphertext
// parts keyed by archive id and part index.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Cache is rooted at a single directory:
// <app_cache_root>/offload_parts.
type Cache struct {
	root string
}

// New returns a Cache rooted at root.
func New(root string) *Cache {
	return &Cache{root: root}
}

// ArchiveDir returns the path of the per-archive cache subdirectory,
// creating it if absent.
func (c *Cache) ArchiveDir(archiveID string) (string, error) {
	dir := filepath.Join(c.root, archiveID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cache: failed to create %s: %w", dir, err)
	}
	return dir, nil
}

// PartPath returns the on-disk path for a cached part, without creating
// anything.
func (c *Cache) PartPath(archiveID string, index int64) string {
	return filepath.Join(c.root, archiveID, fmt.Sprintf("part_%d", index))
}

// IsValid reports whether the cached part at (archiveID, index) exists,
// has exactly wantSize bytes, and its SHA-256 equals wantHash (lowercase
// hex). Validity is recomputed on every call; no trust is placed in prior
// runs.
func (c *Cache) IsValid(archiveID string, index int64, wantSize int64, wantHash string) (bool, error) {
	path := c.PartPath(archiveID, index)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("cache: failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("cache: failed to stat %s: %w", path, err)
	}
	if info.Size() != wantSize {
		return false, nil
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, fmt.Errorf("cache: failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)) == wantHash, nil
}

// OpenPart opens a cached part for streaming, in ascending-index order, to
// satisfy crypto.PartOpener.
func (c *Cache) OpenPart(archiveID string, index int64) (*os.File, error) {
	return os.Open(c.PartPath(archiveID, index))
}

// Purge removes the archive's cache subdirectory entirely. Called after a
// successful decrypt; retained on cancellation or error so resume
// is possible.
func (c *Cache) Purge(archiveID string) error {
	dir := filepath.Join(c.root, archiveID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("cache: failed to purge %s: %w", dir, err)
	}
	return nil
}

// ForArchive returns an opener bound to one archive, implementing
// crypto.PartOpener.
func (c *Cache) ForArchive(archiveID string) *ArchiveOpener {
	return &ArchiveOpener{cache: c, archiveID: archiveID}
}

// ArchiveOpener adapts Cache to crypto.PartOpener for one archive.
type ArchiveOpener struct {
	cache     *Cache
	archiveID string
}

// OpenPart implements crypto.PartOpener.
func (a *ArchiveOpener) OpenPart(index int64) (io.ReadCloser, error) {
	return a.cache.OpenPart(a.archiveID, index)
}
