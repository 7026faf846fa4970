// Package watcher hands audio files dropped into a directory to a handler.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"voicenotes/internal/audio"
	"voicenotes/internal/logger"
)

// EventHandler processes one new file.
type EventHandler func(ctx context.Context, path string) error

type Watcher struct {
	dir       string
	handler   EventHandler
	log       logger.Logger
	watcher   *fsnotify.Watcher
	settle    time.Duration
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// New watches dir. maxConcurrent <= 0 processes one file at a time.
func New(dir string, handler EventHandler, log logger.Logger, maxConcurrent int) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &Watcher{
		dir:       dir,
		handler:   handler,
		log:       log,
		watcher:   fw,
		settle:    500 * time.Millisecond,
		semaphore: make(chan struct{}, maxConcurrent),
	}, nil
}

// Start blocks until ctx is canceled or the watcher fails. It waits for
// handlers in flight before returning.
func (w *Watcher) Start(ctx context.Context) error {
	w.log.Info(ctx, "watching %s for audio files (max concurrent: %d)", w.dir, cap(w.semaphore))
	defer w.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !audio.HasAllowedExtension(event.Name) {
				w.log.Debug(ctx, "ignoring %s", event.Name)
				continue
			}
			w.log.Info(ctx, "new audio file: %s", event.Name)

			// Give the writer a moment to finish the file.
			select {
			case <-time.After(w.settle):
			case <-ctx.Done():
				return ctx.Err()
			}

			select {
			case w.semaphore <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			w.wg.Add(1)
			go func(path string) {
				defer w.wg.Done()
				defer func() { <-w.semaphore }()

				if err := w.handler(ctx, path); err != nil {
					w.log.Error(ctx, "process %s: %v", path, err)
				}
			}(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.log.Error(ctx, "watcher error: %v", err)
		}
	}
}

func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
