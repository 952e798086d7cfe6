package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay is how long the file must stay quiet before it is re-read.
const reloadDelay = 100 * time.Millisecond

// errEmptyFile marks a read that raced a truncate-then-write save.
var errEmptyFile = errors.New("config file is empty")

// Watch monitors path for changes and calls onChange with the newly loaded
// Config once the file has been quiet for reloadDelay. It runs until ctx is
// cancelled.
//
// The parent directory is watched so saves that replace the file (write to a
// temp file, then rename over path) are seen as well as in-place writes.
// An empty read is skipped. If a reload fails (e.g., invalid YAML), the
// error is logged and the previous config remains active; onChange is not
// called.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	target := filepath.Clean(path)
	if _, err := os.Stat(target); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", target)

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			reload = time.After(reloadDelay)

		case <-reload:
			reload = nil
			cfg, err := loadSettled(target)
			switch {
			case errors.Is(err, errEmptyFile):
				slog.Debug("config: empty read, waiting for the next write", "path", target)
				continue
			case err != nil:
				slog.Error("config: reload failed, keeping previous config",
					"path", target, "err", err)
				continue
			}

			slog.Info("config: reloaded", "path", target)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// loadSettled is Load for a file that may be caught mid-save. A file with no
// content yields errEmptyFile instead of the defaults.
func loadSettled(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyFile
	}
	return parse(data)
}
