package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 2 * time.Second

// WatchOption alters the behavior of Watch
type WatchOption func(*watchSettings)

type watchSettings struct {
	debounce time.Duration
	autoPush bool
}

// Debounce sets how long the watcher waits after the last filesystem event
// before triggering a rescan
func Debounce(d time.Duration) WatchOption {
	return func(s *watchSettings) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// AutoPush makes the watcher run a push after every merged rescan
func AutoPush(enabled bool) WatchOption {
	return func(s *watchSettings) {
		s.autoPush = enabled
	}
}

// Watch observes a cave's mounted tree and re-pulls it whenever local files
// change, debouncing bursts of events. It blocks until the context is
// cancelled or the watcher fails.
//
// Partial-transfer leftovers are ignored, and new directories are picked up
// as they appear so the whole tree stays covered.
func (h *Hoard) Watch(ctx context.Context, caveID string, opts ...WatchOption) error {
	settings := &watchSettings{debounce: defaultDebounce}
	for _, apply := range opts {
		apply(settings)
	}

	cave, err := h.Cave(caveID)
	if err != nil {
		return err
	}
	id := cave.Descriptor.ID
	root := cave.Descriptor.MountPath

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err = addDirsRecursive(watcher, root); err != nil {
		return err
	}

	h.l.Info("watching cave",
		zap.String("cave", id),
		zap.String("root", root),
		zap.Duration("debounce", settings.debounce))

	var timer *time.Timer
	var timerC <-chan time.Time

	rescan := func() {
		report, err := h.Pull(ctx, id)
		if err != nil {
			h.l.Warn("watch: rescan failed", zap.String("cave", id), zap.Error(err))
			return
		}
		h.l.Info("watch: rescan merged",
			zap.String("cave", id),
			zap.Int("added", report.Added),
			zap.Int("updated", report.Updated),
			zap.Int("removed", report.Removed))
		if !settings.autoPush {
			return
		}
		events, _, err := h.Push(ctx, id)
		if err != nil {
			h.l.Warn("watch: push failed", zap.String("cave", id), zap.Error(err))
			return
		}
		for range events {
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if strings.HasSuffix(event.Name, partialSuffix) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					_ = addDirsRecursive(watcher, event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(settings.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(settings.debounce)
			}
			timerC = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.l.Warn("watch: filesystem watcher error", zap.String("cave", id), zap.Error(err))

		case <-timerC:
			timerC = nil
			rescan()
		}
	}
}

// addDirsRecursive registers a directory and everything under it
func addDirsRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(pth string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(pth)
		}
		return nil
	})
}
