package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadTarget is a watched file and what to do when it changes.
type ReloadTarget struct {
	Path   string
	Reload func() error
}

// Reloader watches oracle tables and the config file and re-reads them on
// change.
type Reloader struct {
	watcher  *fsnotify.Watcher
	targets  map[string]ReloadTarget
	logger   *slog.Logger
	debounce time.Duration
}

// NewReloader creates a file watcher for targets. Targets with an empty or
// missing path are skipped.
func NewReloader(targets []ReloadTarget, logger *slog.Logger) (*Reloader, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	watched := make(map[string]ReloadTarget, len(targets))
	for _, t := range targets {
		if t.Path == "" || t.Reload == nil {
			continue
		}
		if _, err := os.Stat(t.Path); err != nil {
			continue
		}
		if err := watcher.Add(t.Path); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", t.Path, err)
		}
		watched[t.Path] = t
	}

	return &Reloader{
		watcher:  watcher,
		targets:  watched,
		logger:   logger,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Watched returns the number of files being watched.
func (r *Reloader) Watched() int { return len(r.targets) }

// Run watches for file changes and reloads. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	// One debounce timer per file: editors write in several steps.
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			target, ok := r.targets[event.Name]
			if !ok {
				continue
			}
			if t := timers[event.Name]; t != nil {
				t.Stop()
			}
			timers[event.Name] = time.AfterFunc(r.debounce, func() {
				if err := target.Reload(); err != nil {
					r.logger.Warn("hot-reload failed", "path", target.Path, "error", err)
					return
				}
				r.logger.Info("hot-reload applied", "path", target.Path)
			})

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("file watcher error", "error", err)
		}
	}
}
