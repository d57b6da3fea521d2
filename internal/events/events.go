// Package events implements a small typed event bus the driver uses to
// emit download-progress events to whatever hosts it (CLI, GUI, tray),
// following the pattern of a events.EventBus (non-blocking publish, one
// mutex, buffered subscriber channels).
package events

import (
	"sync"
	"time"

	"github.com/offloadhq/offload-client/internal/tasks"
)

const defaultBufferSize = 256

// DownloadProgress is the `download-progress` event emitted to the host
// application: { id, downloaded, total?, speed, status, name }.
type DownloadProgress struct {
	ID         string
	Downloaded int64
	Total      *int64
	Speed      float64 // bytes/sec since the previous emission
	Status     tasks.Status
	Name       string
	EmittedAt  time.Time
}

// Bus is a non-blocking publish/subscribe bus for DownloadProgress events.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan DownloadProgress
	closed      bool
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a buffered channel receiving every published event
// from this point on.
func (b *Bus) Subscribe() <-chan DownloadProgress {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan DownloadProgress, defaultBufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Publish sends an event to every subscriber. It never blocks: a
// subscriber with a full buffer silently misses the event, a drop-on-full-buffer
// policy suited to UI-facing events.
func (b *Bus) Publish(ev DownloadProgress) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close shuts down the bus and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
}
