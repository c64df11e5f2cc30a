package corpus

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nephrag/nephrag/internal/core/ports/driving"
	"github.com/nephrag/nephrag/internal/logger"
)

// debounceWindow coalesces the burst of write events editors and copy
// tools emit for a single file change.
const debounceWindow = 2 * time.Second

// Watcher re-ingests registered documents when their backing files
// change on disk.
type Watcher struct {
	loader   *Loader
	registry driving.Registry
	ingest   driving.IngestService
}

// NewWatcher creates a corpus watcher.
func NewWatcher(loader *Loader, registry driving.Registry, ingest driving.IngestService) *Watcher {
	return &Watcher{
		loader:   loader,
		registry: registry,
		ingest:   ingest,
	}
}

// Run watches the corpus directory until ctx is cancelled. Writes and
// creates under the directory are debounced and, when the path belongs
// to a registered active document, the document is re-ingested.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.loader.BaseDir()); err != nil {
		return fmt.Errorf("watching %s: %w", w.loader.BaseDir(), err)
	}
	logger.Info("Watching corpus directory %s", w.loader.BaseDir())

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)

		case <-ticker.C:
			for path, seen := range pending {
				if time.Since(seen) < debounceWindow {
					continue
				}
				delete(pending, path)
				w.reingest(ctx, path)
			}
		}
	}
}

// reingest maps a changed file back to its document and runs ingestion.
func (w *Watcher) reingest(ctx context.Context, path string) {
	docs, err := w.registry.GetActive(ctx)
	if err != nil {
		logger.Warn("Registry unavailable, skipping %s: %v", path, err)
		return
	}

	for i := range docs {
		full, err := w.loader.Resolve(&docs[i])
		if err != nil {
			continue
		}
		if full != filepath.Clean(path) {
			continue
		}

		logger.Info("Corpus file changed, re-ingesting %q", docs[i].Slug)
		summary, err := w.ingest.Ingest(ctx, docs[i].Slug)
		if err != nil {
			logger.Warn("Re-ingest of %q failed: %v", docs[i].Slug, err)
			return
		}
		logger.Info("Re-ingested %q: %d chunks, %d embedded, %d stored in %s",
			summary.DocumentSlug, summary.ChunksCreated, summary.EmbeddingsSucceeded,
			summary.RowsStored, summary.Duration.Round(time.Millisecond))
		return
	}

	logger.Debug("Changed file %s is not a registered document, ignoring", path)
}
