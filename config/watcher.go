package config

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounce = 250 * time.Millisecond

// Watcher re-reads the config file whenever it changes on disk.
type Watcher struct {
	path     string
	onReload func(*Config, error)
	logger   *zap.Logger

	mu      sync.RWMutex
	current *Config
	reloads atomic.Uint32
}

// NewWatcher loads path once and returns a watcher over it. Run starts
// watching.
func NewWatcher(path string, onReload func(*Config, error), logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     path,
		onReload: onReload,
		logger:   logger,
		current:  cfg,
	}, nil
}

// Run watches until ctx is done. The parent directory is watched so that
// editors replacing the file by rename are picked up.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	target := filepath.Clean(w.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	count := w.reloads.Add(1)
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed", zap.String("path", w.path), zap.Error(err))
		if w.onReload != nil {
			w.onReload(nil, err)
		}
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	w.logger.Info("config reloaded", zap.String("path", w.path), zap.Uint32("count", count))
	if w.onReload != nil {
		w.onReload(cfg, nil)
	}
}

// Snapshot returns the most recently loaded config.
func (w *Watcher) Snapshot() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// ReloadCount returns how many reloads have been attempted.
func (w *Watcher) ReloadCount() uint32 {
	return w.reloads.Load()
}
