package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ─────────────────────────────────────────────────────────────
// Watcher: rebuild triggers (file_watch + schedule)
// ─────────────────────────────────────────────────────────────

// Builder runs one complete build.
type Builder interface {
	Build(ctx context.Context, only ...string) (*BuildResult, error)
}

// Watcher rebuilds every time the source file is written (debounced) and,
// when a schedule is set, on a cron schedule. Every trigger is a full build.
type Watcher struct {
	builder  Builder
	source   string
	debounce time.Duration
	schedule string
	logger   *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending sync.WaitGroup
}

// NewWatcher creates a Watcher for source.
func NewWatcher(builder Builder, source string, debounce time.Duration, schedule string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		builder:  builder,
		source:   source,
		debounce: debounce,
		schedule: schedule,
		logger:   logger,
	}
}

// ValidateSchedule parses a cron expression the way the watcher does.
func ValidateSchedule(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// Run blocks until ctx is cancelled, rebuilding on every trigger. It returns
// nil on cancellation and an error only if the triggers cannot be set up.
func (w *Watcher) Run(ctx context.Context) error {
	absPath, err := filepath.Abs(w.source)
	if err != nil {
		return fmt.Errorf("watch: bad path %q: %w", w.source, err)
	}

	// ── Cron schedule ──
	if w.schedule != "" {
		if err := ValidateSchedule(w.schedule); err != nil {
			return err
		}
		c := cron.New()
		if _, err := c.AddFunc(w.schedule, func() { w.rebuild(ctx, "schedule") }); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", w.schedule, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		w.logger.Info("[WATCH] schedule active", zap.String("schedule", w.schedule))
	}

	// ── File watcher ──
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer watcher.Close()

	// fsnotify watches dirs for file events; editors often replace the
	// file instead of writing it in place.
	dir := filepath.Dir(absPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch: failed to watch dir %q: %w", dir, err)
	}
	w.logger.Info("[WATCH] watching source", zap.String("source", absPath))

	defer w.pending.Wait()
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name, _ := filepath.Abs(event.Name)
			if name != absPath {
				continue
			}
			w.schedulePending(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("[WATCH] watcher error", zap.Error(err))
		}
	}
}

// schedulePending (re)arms the debounce timer.
func (w *Watcher) schedulePending(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil && w.timer.Stop() {
		w.pending.Done()
	}
	w.pending.Add(1)
	w.timer = time.AfterFunc(w.debounce, func() {
		defer w.pending.Done()
		w.rebuild(ctx, "file_watch")
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil && w.timer.Stop() {
		w.pending.Done()
	}
	w.timer = nil
}

func (w *Watcher) rebuild(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	w.logger.Info("[WATCH] rebuilding", zap.String("trigger", trigger), zap.String("source", w.source))
	if _, err := w.builder.Build(ctx); err != nil {
		w.logger.Error("[WATCH] rebuild failed", zap.String("trigger", trigger), zap.Error(err))
	}
}
