// Package tasks implements the process-wide task registry: a
// per-archive cancellation flag and status record, guarded by a single
// mutex held only for O(1) operations, tracking a closed five-state
// status set.
package tasks

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Status is the closed set of download task statuses.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// Task is the per-archive download task record.
type Task struct {
	ID              string
	ArchiveID       string
	DisplayName     string
	DownloadedBytes int64
	TotalBytes      *int64
	Status          Status

	cancel *atomic.Bool
}

// Cancelled reports whether request_cancel has been called for this task.
func (t *Task) Cancelled() bool {
	return t.cancel.Load()
}

// Registry is the process-wide mapping from task id to task record plus
// cancellation flag. All operations are individually atomic under a
// single mutex; no cross-task transactions are needed.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Insert creates a new task for archiveID with a fresh id and cancel
// flag, in StatusQueued, and returns it.
func (r *Registry) Insert(archiveID, displayName string, totalBytes *int64) *Task {
	t := &Task{
		ID:          uuid.NewString(),
		ArchiveID:   archiveID,
		DisplayName: displayName,
		TotalBytes:  totalBytes,
		Status:      StatusQueued,
		cancel:      &atomic.Bool{},
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()

	return t
}

// Get returns a copy of the task record for id, or false if absent.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// SetStatus updates a task's status in place.
func (r *Registry) SetStatus(id string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tasks[id]; ok {
		t.Status = status
	}
}

// SetProgress updates a task's downloaded-bytes counter in place.
func (r *Registry) SetProgress(id string, downloadedBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tasks[id]; ok {
		t.DownloadedBytes = downloadedBytes
	}
}

// List returns a snapshot of every tracked task.
func (r *Registry) List() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, *t)
	}
	return out
}

// RequestCancel sets the cancellation flag for id. It only sets the flag —
// the driver is responsible for observing it and transitioning the task to
// StatusPaused.
func (r *Registry) RequestCancel(id string) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()

	if ok {
		t.cancel.Store(true)
	}
}
