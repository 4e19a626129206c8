package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/evan-idocoding/framekit/rt/clock"
)

const defaultDebounce = 100 * time.Millisecond

// WatchOptions controls Watch.
type WatchOptions struct {
	// Debounce coalesces bursts of writes. Default is 100ms.
	Debounce time.Duration
	Logger   *slog.Logger
	Clock    clock.Clock
}

// Watch calls onChange with the reloaded scenario each time the file at path is
// written or replaced, until ctx ends. The directory is watched rather than the file
// so editors that save by rename keep working. Files that fail to load are logged
// and skipped. onChange runs on the watch goroutine, one call at a time.
func Watch(ctx context.Context, path string, onChange func(*Scenario), opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("scenario: watch %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("scenario: watch %s: %w", path, err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("scenario: watch %s: %w", path, err)
	}

	fire := make(chan struct{}, 1)
	var (
		mu    sync.Mutex
		timer clock.Timer
	)
	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = opts.Clock.AfterFunc(opts.Debounce, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			schedule()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Warn("scenario watch error", slog.String("path", abs), slog.Any("err", err))
		case <-fire:
			sc, err := Load(abs)
			if err != nil {
				opts.Logger.Warn("scenario reload skipped", slog.String("path", abs), slog.Any("err", err))
				continue
			}
			opts.Logger.Info("scenario reloaded", slog.String("path", abs), slog.Int("frames", sc.FrameCount()))
			onChange(sc)
		}
	}
}
