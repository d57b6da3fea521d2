// Package container implements the single-entry extractor: once the
// plaintext intermediate has been decrypted, pull exactly one named entry
// out of it and drop the intermediate. The container format itself is
// treated as an opaque collaborator, realized here with the standard
// library's archive/zip: this is the one component whose contract
// treats the underlying archive format as an external black box rather
// than something to parse from scratch.
package container

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/offloadhq/offload-client/internal/models"
)

// ErrEntryIsDir is returned when the selected entry is a directory, not a
// file.
var ErrEntryIsDir = fmt.Errorf("zip_entry_is_dir")

// ExtractEntry opens plaintextPath as a container, selects the entry named
// by fileIndex in the manifest (falling back to positional selection), and
// copies its bytes to destPath, truncating any prior contents. On success
// the intermediate plaintext is deleted.
func ExtractEntry(manifest *models.Manifest, plaintextPath string, fileIndex int, destPath string) error {
	targetName := targetNameFor(manifest, fileIndex)

	r, err := zip.OpenReader(plaintextPath)
	if err != nil {
		return fmt.Errorf("container: failed to open %s: %w", plaintextPath, err)
	}
	defer r.Close()

	entry := selectEntry(r.File, targetName, fileIndex)
	if entry == nil {
		return fmt.Errorf("container: no entry for file_index %d", fileIndex)
	}
	if entry.FileInfo().IsDir() {
		return ErrEntryIsDir
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("container: failed to create output directory: %w", err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("container: failed to open entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("container: failed to create %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("container: failed to copy entry bytes: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("container: failed to finalize %s: %w", destPath, err)
	}

	r.Close()
	if err := os.Remove(plaintextPath); err != nil {
		return fmt.Errorf("container: failed to delete intermediate plaintext: %w", err)
	}
	return nil
}

// targetNameFor builds target_name per: the manifest's
// original_name for fileIndex, else a positional placeholder, with path
// separators neutralized so the name can never address a path outside the
// container's own namespace.
func targetNameFor(manifest *models.Manifest, fileIndex int) string {
	name := fmt.Sprintf("file_%d", fileIndex+1)
	if fileIndex >= 0 && fileIndex < len(manifest.Files) {
		if manifest.Files[fileIndex].OriginalName != "" {
			name = manifest.Files[fileIndex].OriginalName
		}
	}
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "/", "_")
	return name
}

// selectEntry picks the entry named exactly targetName if one exists,
// otherwise the entry at position fileIndex.
func selectEntry(files []*zip.File, targetName string, fileIndex int) *zip.File {
	for _, f := range files {
		if f.Name == targetName {
			return f
		}
	}
	if fileIndex >= 0 && fileIndex < len(files) {
		return files[fileIndex]
	}
	return nil
}

