// Package driver implements the archive download driver: it
// orchestrates the manifest fetch, the part cache, the part fetcher, the
// streaming decryptor, and the single-entry extractor into one
// long-running task per archive, publishing progress through the event
// bus and the task registry. The task record is a passive struct updated
// by the driver loop, with an event published on every state change.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/offloadhq/offload-client/internal/api"
	"github.com/offloadhq/offload-client/internal/cache"
	"github.com/offloadhq/offload-client/internal/config"
	"github.com/offloadhq/offload-client/internal/constants"
	"github.com/offloadhq/offload-client/internal/container"
	"github.com/offloadhq/offload-client/internal/crypto"
	"github.com/offloadhq/offload-client/internal/diskspace"
	"github.com/offloadhq/offload-client/internal/events"
	"github.com/offloadhq/offload-client/internal/fetch"
	"github.com/offloadhq/offload-client/internal/models"
	"github.com/offloadhq/offload-client/internal/sanitize"
	"github.com/offloadhq/offload-client/internal/tasks"
)

// directRelayState tracks the per-archive direct/relay back-off state
// machine: a fresh instance is created for every Start call, never shared
// across archives.
type directRelayState struct {
	preferRelay     bool
	nextDirectCheck time.Time
}

func (s *directRelayState) shouldTryDirect(now time.Time) bool {
	if !s.preferRelay {
		return true
	}
	return !now.Before(s.nextDirectCheck)
}

func (s *directRelayState) recordDirectFailure(now time.Time) {
	s.preferRelay = true
	s.nextDirectCheck = now.Add(constants.DirectBackoff)
}

func (s *directRelayState) recordSuccess() {
	s.preferRelay = false
	s.nextDirectCheck = time.Time{}
}

// Driver wires together the fetch engine, the part cache, the decryptor,
// and the extractor behind the two commands this core exposes.
type Driver struct {
	cfg       *config.Config
	apiClient *api.Client
	fetcher   *fetch.Fetcher
	cache     *cache.Cache
	registry  *tasks.Registry
	bus       *events.Bus
}

// New builds a Driver from its collaborators. apiClient and the cache root
// are expected to be long-lived, process-wide singletons.
func New(cfg *config.Config, apiClient *api.Client, registry *tasks.Registry, bus *events.Bus) *Driver {
	return &Driver{
		cfg:       cfg,
		apiClient: apiClient,
		fetcher:   fetch.New(apiClient),
		cache:     cache.New(cfg.CacheRoot),
		registry:  registry,
		bus:       bus,
	}
}

// Start runs start_archive_download: it registers a task and runs the
// download synchronously on the calling goroutine. Callers that want a
// long-running background task should invoke Start in its own goroutine
// and use List/RequestCancel to observe and control it.
func (d *Driver) Start(ctx context.Context, archiveID, downloadDir string, fileIndex *int) (string, error) {
	key, err := d.cfg.RequireMasterKey()
	if err != nil {
		return "", err
	}

	manifest, err := d.apiClient.FetchManifest(ctx, archiveID)
	if err != nil {
		return "", fmt.Errorf("server_error: %w", err)
	}

	displayName := sanitize.Name(manifest.DisplayNameFor(fileIndex))

	if total := manifest.TotalBytes(); total != nil {
		// Parts land in the cache and are then decrypted into a second
		// copy before the cache is purged, so reserve roughly double the
		// plaintext size with a 10% safety margin.
		if err := diskspace.CheckAvailableSpace(downloadDir, *total*2, 1.1); err != nil {
			return "", err
		}
	}

	if _, err := d.cache.ArchiveDir(archiveID); err != nil {
		return "", fmt.Errorf("driver: failed to create cache directory: %w", err)
	}

	task := d.registry.Insert(archiveID, displayName, manifest.TotalBytes())
	d.publish(task.ID, 0, manifest.TotalBytes(), 0, tasks.StatusQueued, displayName)

	if err := d.run(ctx, task, manifest, key, downloadDir, displayName, fileIndex); err != nil {
		d.registry.SetStatus(task.ID, tasks.StatusError)
		d.publish(task.ID, currentBytes(d.registry, task.ID), manifest.TotalBytes(), 0, tasks.StatusError, displayName)
		return task.ID, err
	}
	return task.ID, nil
}

// Pause requests cancellation of a running task. It is
// non-blocking; the running download observes the flag at its own pace.
func (d *Driver) Pause(taskID string) {
	d.registry.RequestCancel(taskID)
}

// List returns a snapshot of every tracked task.
func (d *Driver) List() []tasks.Task {
	return d.registry.List()
}

func currentBytes(registry *tasks.Registry, taskID string) int64 {
	if t, ok := registry.Get(taskID); ok {
		return t.DownloadedBytes
	}
	return 0
}

// run downloads every part, decrypts the assembled ciphertext, and
// installs the plaintext (or, for a bundle, one extracted entry) for one
// archive.
func (d *Driver) run(ctx context.Context, task *tasks.Task, manifest *models.Manifest, key, downloadDir, displayName string, fileIndex *int) error {
	d.registry.SetStatus(task.ID, tasks.StatusDownloading)

	iv, err := manifest.DecodedIV()
	if err != nil {
		return err
	}
	authTag, err := manifest.DecodedAuthTag()
	if err != nil {
		return err
	}
	derivedKey := crypto.DeriveKey(key)

	parts := manifest.SortedParts()
	state := &directRelayState{}

	var downloaded int64
	lastEmit := time.Now()
	var bytesSinceEmit int64

	for _, part := range parts {
		if task.Cancelled() {
			d.registry.SetStatus(task.ID, tasks.StatusPaused)
			d.publish(task.ID, downloaded, manifest.TotalBytes(), 0, tasks.StatusPaused, displayName)
			return nil
		}

		if ok, err := d.cache.IsValid(manifest.ArchiveID, part.Index, part.Size, part.Hash); err == nil && ok {
			downloaded += part.Size
			continue
		}

		if err := d.fetchPart(ctx, manifest.ArchiveID, part, state, task); err != nil {
			if errors.Is(err, fetch.ErrCancelled) {
				d.registry.SetStatus(task.ID, tasks.StatusPaused)
				d.publish(task.ID, downloaded, manifest.TotalBytes(), 0, tasks.StatusPaused, displayName)
				return nil
			}
			return err
		}

		ok, err := d.cache.IsValid(manifest.ArchiveID, part.Index, part.Size, part.Hash)
		if err != nil {
			return fmt.Errorf("driver: failed to verify part %d: %w", part.Index, err)
		}
		if !ok {
			return fmt.Errorf("driver: part %d failed hash verification after download", part.Index)
		}

		downloaded += part.Size
		bytesSinceEmit += part.Size

		now := time.Now()
		if elapsed := now.Sub(lastEmit); elapsed >= constants.ProgressEmitInterval {
			speed := float64(bytesSinceEmit) / elapsed.Seconds()
			d.publish(task.ID, downloaded, manifest.TotalBytes(), speed, tasks.StatusDownloading, displayName)
			lastEmit = now
			bytesSinceEmit = 0
		}
	}

	outputPath := d.intermediatePath(downloadDir, displayName, manifest, fileIndex)

	indices := make([]int64, len(parts))
	for i, p := range parts {
		indices[i] = p.Index
	}

	if err := d.decrypt(manifest.ArchiveID, indices, derivedKey, iv, authTag, outputPath); err != nil {
		return err
	}

	finalPath := filepath.Join(downloadDir, displayName)
	if fileIndex != nil {
		if err := container.ExtractEntry(manifest, outputPath, *fileIndex, finalPath); err != nil {
			os.Remove(outputPath)
			return err
		}
	} else if err := os.Rename(outputPath, finalPath); err != nil {
		return fmt.Errorf("driver: failed to install output file: %w", err)
	}

	if err := d.cache.Purge(manifest.ArchiveID); err != nil {
		return fmt.Errorf("driver: failed to purge cache: %w", err)
	}

	d.registry.SetStatus(task.ID, tasks.StatusCompleted)
	d.publish(task.ID, downloaded, manifest.TotalBytes(), 0, tasks.StatusCompleted, displayName)
	return nil
}

// intermediatePath computes the sibling ".download"/".download.zip" path
// written during decryption before the atomic rename to the final name.
func (d *Driver) intermediatePath(downloadDir, displayName string, manifest *models.Manifest, fileIndex *int) string {
	ext := ".download"
	if manifest.IsBundle || fileIndex != nil {
		ext = ".download.zip"
	}
	return filepath.Join(downloadDir, displayName+ext)
}

// fetchPart implements the direct/relay back-off state machine for a
// single part.
func (d *Driver) fetchPart(ctx context.Context, archiveID string, part models.PartInfo, state *directRelayState, task *tasks.Task) error {
	destPath := d.cache.PartPath(archiveID, part.Index)
	cancelled := task.Cancelled

	now := time.Now()
	if state.shouldTryDirect(now) {
		err := d.fetcher.Direct(ctx, part.URL, destPath, cancelled)
		if err == nil {
			state.recordSuccess()
			return nil
		}
		if errors.Is(err, fetch.ErrCancelled) {
			return err
		}
		if errors.Is(err, fetch.ErrExpired) {
			refreshed, rerr := d.fetcher.Refresh(ctx, archiveID, part.Index)
			if rerr == nil {
				if err := d.fetcher.Direct(ctx, refreshed, destPath, cancelled); err == nil {
					state.recordSuccess()
					return nil
				}
			}
		}
		state.recordDirectFailure(now)
	}

	if err := d.fetcher.Relay(ctx, archiveID, part.Index, destPath, cancelled); err != nil {
		if errors.Is(err, fetch.ErrCancelled) {
			return err
		}
		return fmt.Errorf("driver: part %d failed on both direct and relay: %w", part.Index, err)
	}
	state.recordSuccess()
	return nil
}

// decrypt runs the streaming GCM decryptor against the cached
// parts, deleting the partially-written output on tag mismatch.
func (d *Driver) decrypt(archiveID string, indices []int64, key, iv, authTag []byte, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("driver: failed to create output file: %w", err)
	}

	opener := d.cache.ForArchive(archiveID)
	err = crypto.StreamDecrypt(indices, opener, key, iv, authTag, out)
	closeErr := out.Close()

	if err != nil {
		os.Remove(outputPath)
		return err
	}
	if closeErr != nil {
		os.Remove(outputPath)
		return fmt.Errorf("driver: failed to finalize output file: %w", closeErr)
	}
	return nil
}

func (d *Driver) publish(taskID string, downloaded int64, total *int64, speed float64, status tasks.Status, name string) {
	d.registry.SetProgress(taskID, downloaded)
	d.bus.Publish(events.DownloadProgress{
		ID:         taskID,
		Downloaded: downloaded,
		Total:      total,
		Speed:      speed,
		Status:     status,
		Name:       name,
		EmittedAt:  time.Now(),
	})
}
