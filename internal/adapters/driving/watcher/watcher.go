// Package watcher turns an inbox directory into an ingestion trigger: files
// dropped into it are registered as documents and ingested, and rewritten
// files are ingested again.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
	"github.com/custodia-labs/studyrag/internal/extractors"
	"github.com/custodia-labs/studyrag/internal/logger"
)

// DefaultInclude matches the formats the extractors understand.
var DefaultInclude = []string{
	"**/*.{pdf,docx,xlsx,md,markdown,txt,html,htm}",
}

// Config configures the inbox.
type Config struct {
	Dir     string
	Owner   string
	Include []string
	Exclude []string

	// Settle is how long a file must stay unchanged before it is ingested.
	Settle time.Duration

	// ScanExisting ingests files already in the inbox at start-up.
	ScanExisting bool
}

// Deps are the services the watcher drives.
type Deps struct {
	Documents driving.DocumentService
	Ingestion driving.IngestionService

	// Locator maps a file path to the storage locator the blob store resolves.
	Locator func(path string) (string, error)
}

// Watcher registers and ingests files that appear in an inbox directory.
type Watcher struct {
	cfg  Config
	deps Deps

	// Owned by the Run goroutine.
	pending map[string]*time.Timer
	known   map[string]string // path -> document id
	settled chan string
}

// New creates a watcher. Nil patterns fall back to DefaultInclude.
func New(cfg Config, deps Deps) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: inbox directory is required", domain.ErrInvalidInput)
	}
	if cfg.Owner == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	if len(cfg.Include) == 0 {
		cfg.Include = DefaultInclude
	}
	for _, p := range append(append([]string{}, cfg.Include...), cfg.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: bad pattern %q", domain.ErrInvalidInput, p)
		}
	}
	if cfg.Settle <= 0 {
		cfg.Settle = time.Second
	}
	if deps.Locator == nil {
		deps.Locator = filepath.Abs
	}
	abs, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, err
	}
	cfg.Dir = abs

	return &Watcher{
		cfg:     cfg,
		deps:    deps,
		pending: make(map[string]*time.Timer),
		known:   make(map[string]string),
		settled: make(chan string, 64),
	}, nil
}

// Run watches the inbox until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.cfg.Dir); err != nil {
		return err
	}
	if err := w.loadKnown(ctx); err != nil {
		return err
	}
	if w.cfg.ScanExisting {
		w.scan()
	}
	logger.Info("watching %s", w.cfg.Dir)

	defer func() {
		for _, t := range w.pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !isHidden(w.rel(ev.Name)) {
					if err := w.addTree(fsw, ev.Name); err != nil {
						logger.Warn("watch %s: %v", ev.Name, err)
					}
					continue
				}
			}
			if path, ok := w.accept(ev); ok {
				w.schedule(ctx, path)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: %v", err)

		case path := <-w.settled:
			delete(w.pending, path)
			if err := w.ingest(ctx, path); err != nil {
				logger.Warn("inbox %s: %v", w.rel(path), err)
			}
		}
	}
}

// accept filters events down to settled-file candidates.
func (w *Watcher) accept(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}
	info, err := os.Stat(ev.Name)
	if err != nil || info.IsDir() {
		return "", false
	}
	return ev.Name, w.Matches(w.rel(ev.Name))
}

// Matches reports whether a path relative to the inbox should be ingested.
func (w *Watcher) Matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	if rel == "" || isHidden(rel) {
		return false
	}
	return matchesAny(rel, w.cfg.Include) && !matchesAny(rel, w.cfg.Exclude)
}

func matchesAny(rel string, patterns []string) bool {
	base := rel[strings.LastIndex(rel, "/")+1:]
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}

// schedule (re)starts the settle timer for path. Editors write files in
// several steps; only the last one triggers ingestion.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if t, ok := w.pending[path]; ok {
		t.Reset(w.cfg.Settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.cfg.Settle, func() {
		select {
		case w.settled <- path:
		case <-ctx.Done():
		}
	})
}

// ingest registers path on first sight and (re)ingests it.
func (w *Watcher) ingest(ctx context.Context, path string) error {
	docID, ok := w.known[path]
	if !ok {
		locator, err := w.deps.Locator(path)
		if err != nil {
			return err
		}
		doc, err := w.deps.Documents.Register(ctx, driving.RegisterRequest{
			OwnerID:        w.cfg.Owner,
			Title:          strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			StorageLocator: locator,
			MIMEType:       extractors.DetectMIMEType("", path, nil),
		})
		if err != nil {
			return err
		}
		docID = doc.ID
		w.known[path] = docID
		logger.Info("registered %s as %s", w.rel(path), docID)
	}

	handle, err := w.deps.Ingestion.Ingest(ctx, domain.IngestionTrigger{
		DocumentID: docID,
		OwnerID:    w.cfg.Owner,
	})
	if errors.Is(err, domain.ErrIngestionInProgress) {
		// The running job will see the old bytes; pick the change up next write.
		logger.Debug("%s already ingesting", docID)
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("ingesting %s (job %s)", w.rel(path), handle.JobID)
	return nil
}

// loadKnown maps existing documents back to inbox paths so restarts
// re-ingest instead of registering duplicates.
func (w *Watcher) loadKnown(ctx context.Context) error {
	docs, err := w.deps.Documents.List(ctx, w.cfg.Owner)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	byLocator := make(map[string]string, len(docs))
	for i := range docs {
		byLocator[docs[i].StorageLocator] = docs[i].ID
	}

	return filepath.WalkDir(w.cfg.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if locator, err := w.deps.Locator(path); err == nil {
			if id, ok := byLocator[locator]; ok {
				w.known[path] = id
			}
		}
		return nil
	})
}

// scan schedules every matching file that has no document yet.
func (w *Watcher) scan() {
	filepath.WalkDir(w.cfg.Dir, func(path string, d fs.DirEntry, err error) error { //nolint:errcheck
		if err != nil || d.IsDir() {
			return nil
		}
		if _, ok := w.known[path]; ok || !w.Matches(w.rel(path)) {
			return nil
		}
		select {
		case w.settled <- path:
		default:
			logger.Warn("inbox scan backlog full, skipping %s", w.rel(path))
		}
		return nil
	})
}

// addTree watches dir and its visible subdirectories. fsnotify is not recursive.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.cfg.Dir && isHidden(w.rel(path)) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.cfg.Dir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// isHidden reports whether any element of a slash path starts with a dot.
func isHidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}
