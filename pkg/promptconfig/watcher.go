package promptconfig

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the registry whenever a file under configDir changes and
// swaps its contents in place via replace, so callers holding the original
// *RoutingRegistry pointer see the update without re-fetching it. Blocks
// until ctx is cancelled; run it in its own goroutine.
func Watch(ctx context.Context, configDir string, registry *RoutingRegistry) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addRecursive(watcher, configDir); err != nil {
		return err
	}

	log := slog.With("config_dir", configDir)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			reloaded, err := Load(configDir)
			if err != nil {
				log.Warn("routing config reload failed, keeping previous registry", "error", err)
				continue
			}
			registry.replace(reloaded)
			log.Info("routing config reloaded", "routes", reloaded.Len())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("routing config watcher error", "error", err)
		}
	}
}

// addRecursive watches root and every subdirectory under it (providers/,
// routings/), since fsnotify does not watch directory trees natively.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
