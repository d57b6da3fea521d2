package driver

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/offloadhq/offload-client/internal/api"
	"github.com/offloadhq/offload-client/internal/config"
	"github.com/offloadhq/offload-client/internal/crypto"
	"github.com/offloadhq/offload-client/internal/events"
	"github.com/offloadhq/offload-client/internal/tasks"
)

// buildArchive produces ciphertext parts and a manifest for a given
// plaintext, split at the given part sizes, ready to be served by a test
// HTTP server.
func buildArchive(t *testing.T, masterKey string, plaintext []byte, partSizes []int) (iv []byte, tag []byte, parts [][]byte, hashes []string) {
	t.Helper()
	key := crypto.DeriveKey(masterKey)
	iv = []byte("000000000000")[:12]

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		t.Fatalf("cipher.NewGCM: %v", err)
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ciphertext := sealed[:len(sealed)-gcm.Overhead()]
	tag = sealed[len(sealed)-gcm.Overhead():]

	offset := 0
	for _, size := range partSizes {
		part := ciphertext[offset : offset+size]
		parts = append(parts, part)
		hashes = append(hashes, hashHex(part))
		offset += size
	}
	return iv, tag, parts, hashes
}

func hashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestDriver_StartDownloadsAndDecryptsArchive(t *testing.T) {
	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	partSizes := []int{20, len(plaintext) - 20}
	iv, tag, parts, hashes := buildArchive(t, "test-master-key", plaintext, partSizes)

	var partURLs []string
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	for i, part := range parts {
		i, part := i, part
		path := fmt.Sprintf("/parts/%d", i)
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Write(part)
		})
		partURLs = append(partURLs, server.URL+path)
	}

	mux.HandleFunc("/api/archives/archive-1/parts", func(w http.ResponseWriter, r *http.Request) {
		manifest := map[string]interface{}{
			"archive_id": "archive-1",
			"is_bundle":  false,
			"iv":         base64.StdEncoding.EncodeToString(iv),
			"auth_tag":   base64.StdEncoding.EncodeToString(tag),
			"download_name": "output.bin",
			"parts":      []map[string]interface{}{},
		}
		partsField := manifest["parts"].([]map[string]interface{})
		for i := range parts {
			partsField = append(partsField, map[string]interface{}{
				"index": i,
				"size":  len(parts[i]),
				"hash":  hashes[i],
				"url":   partURLs[i],
			})
		}
		manifest["parts"] = partsField
		json.NewEncoder(w).Encode(manifest)
	})

	cfg := config.Default()
	cfg.APIBaseURL = server.URL
	cfg.MasterKey = "test-master-key"
	cfg.CacheRoot = t.TempDir()

	apiClient, err := api.NewClient(cfg)
	if err != nil {
		t.Fatalf("api.NewClient: %v", err)
	}

	registry := tasks.NewRegistry()
	bus := events.NewBus()
	d := New(cfg, apiClient, registry, bus)

	downloadDir := t.TempDir()
	taskID, err := d.Start(context.Background(), "archive-1", downloadDir, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	task, ok := registry.Get(taskID)
	if !ok {
		t.Fatal("expected task to be registered")
	}
	if task.Status != tasks.StatusCompleted {
		t.Fatalf("expected StatusCompleted, got %v", task.Status)
	}

	got, err := os.ReadFile(filepath.Join(downloadDir, "output.bin"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("got %q, want %q", got, plaintext)
	}
}

func TestDriver_MissingMasterKeyFails(t *testing.T) {
	cfg := config.Default()
	cfg.APIBaseURL = "http://example.invalid"
	cfg.CacheRoot = t.TempDir()

	apiClient, err := api.NewClient(cfg)
	if err != nil {
		t.Fatalf("api.NewClient: %v", err)
	}

	d := New(cfg, apiClient, tasks.NewRegistry(), events.NewBus())
	if _, err := d.Start(context.Background(), "archive-1", t.TempDir(), nil); err != config.ErrMissingMasterKey {
		t.Fatalf("expected ErrMissingMasterKey, got %v", err)
	}
}

func TestDirectRelayState_BacksOffAfterFailure(t *testing.T) {
	s := &directRelayState{}
	now := time.Now()
	if !s.shouldTryDirect(now) {
		t.Fatal("expected fresh state to prefer direct")
	}
	s.recordDirectFailure(now)
	if s.shouldTryDirect(now.Add(time.Second)) {
		t.Fatal("expected back-off window to skip direct")
	}
	if !s.shouldTryDirect(now.Add(301 * time.Second)) {
		t.Fatal("expected back-off window to expire after 300s")
	}
	s.recordSuccess()
	if !s.shouldTryDirect(now) {
		t.Fatal("expected success to clear back-off")
	}
}
