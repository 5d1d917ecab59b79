package settings

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Provider supplies the current defaults used to resolve settings.
type Provider interface {
	Defaults() Settings
}

// Static is a Provider with fixed defaults.
type Static Settings

// Defaults returns the fixed defaults.
func (s Static) Defaults() Settings { return Settings(s) }

// Watcher is a Provider backed by a YAML defaults file that is reloaded
// whenever the file changes on disk.
type Watcher struct {
	path    string
	mu      sync.RWMutex
	current Settings
}

// NewWatcher loads the defaults file at path. Run must be called to pick up changes.
func NewWatcher(path string) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("settings defaults path is required")
	}

	d, err := LoadDefaults(path)
	if err != nil {
		return nil, err
	}

	return &Watcher{path: path, current: d}, nil
}

// Defaults returns the most recently loaded defaults.
func (w *Watcher) Defaults() Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Reload re-reads the defaults file. On failure the previous defaults are kept.
func (w *Watcher) Reload() error {
	d, err := LoadDefaults(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.current = d
	w.mu.Unlock()

	return nil
}

// Run watches the defaults file until ctx is canceled.
// The parent directory is watched so editors that replace the file on save are handled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	slog.Info("watching settings defaults", "path", w.path)

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := w.Reload(); err != nil {
				slog.Error("failed to reload settings defaults", "path", w.path, "error", err)
				continue
			}
			slog.Info("settings defaults reloaded", "path", w.path)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Error("settings watcher error", "error", err)
		}
	}
}
