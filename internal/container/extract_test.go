package container

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/offloadhq/offload-client/internal/models"
)

func writeTestZip(t *testing.T, path string, entries map[string]string, dirs []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("os.Create: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		ew, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip.Create: %v", err)
		}
		if _, err := ew.Write([]byte(content)); err != nil {
			t.Fatalf("zip entry write: %v", err)
		}
	}
	for _, name := range dirs {
		if _, err := w.Create(name + "/"); err != nil {
			t.Fatalf("zip.Create dir: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip.Close: %v", err)
	}
}

func TestExtractEntry_SelectsNamedEntryForFileIndex(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "plaintext.download.zip")
	writeTestZip(t, zipPath, map[string]string{
		"a.txt": "AAA",
		"b.txt": "BBB",
		"c.txt": "CCC",
	}, nil)

	manifest := &models.Manifest{
		IsBundle: true,
		Files: []models.FileEntry{
			{OriginalName: "a.txt"},
			{OriginalName: "b.txt"},
			{OriginalName: "c.txt"},
		},
	}

	destPath := filepath.Join(dir, "out", "b.txt")
	if err := ExtractEntry(manifest, zipPath, 1, destPath); err != nil {
		t.Fatalf("ExtractEntry: %v", err)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "BBB" {
		t.Fatalf("got %q, want %q", got, "BBB")
	}

	if _, err := os.Stat(zipPath); !os.IsNotExist(err) {
		t.Fatal("expected intermediate plaintext to be deleted")
	}
}

func TestExtractEntry_DirectoryEntryFails(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "plaintext.download.zip")
	writeTestZip(t, zipPath, map[string]string{"a.txt": "AAA"}, []string{"subdir"})

	manifest := &models.Manifest{
		IsBundle: true,
		Files: []models.FileEntry{
			{OriginalName: "a.txt"},
			{OriginalName: "subdir"},
		},
	}

	destPath := filepath.Join(dir, "out", "subdir")
	err := ExtractEntry(manifest, zipPath, 1, destPath)
	if err != ErrEntryIsDir {
		t.Fatalf("expected ErrEntryIsDir, got %v", err)
	}
}

func TestTargetNameFor_NeutralizesSeparators(t *testing.T) {
	manifest := &models.Manifest{
		Files: []models.FileEntry{{OriginalName: `a\b/c.txt`}},
	}
	got := targetNameFor(manifest, 0)
	if bytes.ContainsAny([]byte(got), `\/`) {
		t.Fatalf("expected separators replaced, got %q", got)
	}
}

func TestTargetNameFor_FallsBackToPositionalName(t *testing.T) {
	manifest := &models.Manifest{Files: nil}
	got := targetNameFor(manifest, 2)
	if got != "file_3" {
		t.Fatalf("got %q, want %q", got, "file_3")
	}
}
