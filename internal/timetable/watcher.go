package timetable

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kelo-robotics/fmlib/internal/eventbus"
)

// DebounceInterval is the delay after a filesystem event before reloading a
// timetable, letting atomic write-then-rename sequences settle.
const DebounceInterval = 100 * time.Millisecond

// Watcher observes the directory the solver writes timetables into and
// publishes an update event whenever a robot's schedule is replaced. The
// solver hands over each timetable as one atomically renamed file, so every
// event corresponds to a complete ztp/graph pair.
type Watcher struct {
	dir       string
	repo      Repository
	publisher Publisher

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher watches dir (the timetables prefix resolved against the local
// storage root) and reloads through repo.
func NewWatcher(dir string, repo Repository, publisher Publisher) *Watcher {
	return &Watcher{
		dir:       dir,
		repo:      repo,
		publisher: publisher,
		timers:    make(map[string]*time.Timer),
	}
}

// Run blocks until ctx is cancelled, forwarding debounced solver writes as
// TIMETABLE-UPDATE events.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}
	slog.InfoContext(ctx, "watching timetable directory", "dir", w.dir)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".yaml") {
				continue
			}
			// Atomic replace lands as Create (rename) or Write.
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			robotID := strings.TrimSuffix(name, ".yaml")
			w.debounce(ctx, robotID)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "timetable watcher error", "error", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) debounce(ctx context.Context, robotID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[robotID]; ok {
		timer.Stop()
	}
	w.timers[robotID] = time.AfterFunc(DebounceInterval, func() {
		w.reload(ctx, robotID)
	})
}

func (w *Watcher) reload(ctx context.Context, robotID string) {
	t, err := w.repo.Get(ctx, robotID)
	if err != nil {
		slog.WarnContext(ctx, "failed to reload timetable", "robot_id", robotID, "error", err)
		return
	}
	w.publisher.PublishNew(eventbus.TypeTimetableUpdate, robotID, map[string]any{
		"ztp":   t.ZTP,
		"tasks": t.TaskIDs(),
	})
	slog.InfoContext(ctx, "timetable updated", "robot_id", robotID, "tasks", len(t.TaskIDs()))
}
