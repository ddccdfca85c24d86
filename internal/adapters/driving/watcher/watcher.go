// Package watcher monitors an ingest directory and submits an upload event
// for every file that lands in it, so documents can be fed to the pipeline
// by dropping files instead of calling the API.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driving"
)

// DefaultSettle is how long a file must stay quiet before it is submitted.
// Editors and copies emit bursts of writes; submitting on the first one
// would ingest a half-written file.
const DefaultSettle = 2 * time.Second

// Config holds the watcher configuration.
type Config struct {
	// Dir is the directory to watch (required).
	Dir string

	// Extensions limits which files are picked up (default: .pdf, .txt, .md).
	Extensions []string

	// Settle is the quiet period before a file is submitted.
	Settle time.Duration
}

// Watcher submits upload events for files appearing in a directory.
type Watcher struct {
	dispatcher driving.EventDispatcher
	watcher    *fsnotify.Watcher
	dir        string
	extensions map[string]bool
	settle     time.Duration
	log        zerolog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// NewWatcher creates the directory watcher.
func NewWatcher(cfg Config, dispatcher driving.EventDispatcher, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = []string{".pdf", ".txt", ".md"}
	}
	extensions := make(map[string]bool, len(exts))
	for _, e := range exts {
		extensions[strings.ToLower(e)] = true
	}

	settle := cfg.Settle
	if settle == 0 {
		settle = DefaultSettle
	}

	return &Watcher{
		dispatcher: dispatcher,
		watcher:    fsw,
		dir:        cfg.Dir,
		extensions: extensions,
		settle:     settle,
		log:        log.With().Str("component", "watcher").Logger(),
		pending:    make(map[string]*time.Timer),
	}, nil
}

// Start begins watching. It returns once the watch is registered; event
// handling runs in a goroutine until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.log.Info().Str("dir", w.dir).Msg("watching ingest directory")

	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// Stop closes the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	for _, timer := range w.pending {
		timer.Stop()
	}
	w.pending = make(map[string]*time.Timer)
	w.mu.Unlock()
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.extensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// schedule (re)arms the settle timer for a path. Every write pushes the
// submission back, so the file is only ingested once it stops changing.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.submit(ctx, path)
	})
}

func (w *Watcher) submit(ctx context.Context, path string) {
	receipt, err := w.dispatcher.Submit(ctx, &domain.Event{
		Type: domain.EventDocumentUpload,
		Payload: &domain.UploadPayload{
			Filename: filepath.Base(path),
			FilePath: path,
		},
	})
	if err != nil {
		w.log.Error().Err(err).Str("path", path).Msg("submit upload failed")
		return
	}
	w.log.Info().
		Str("path", path).
		Stringer("event_id", receipt.EventID).
		Msg("submitted upload for watched file")
}
