package detection

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"platecam/errors"
)

// WaitForDataset blocks until path exists or ctx is done. The parent
// directory is watched rather than the file, since the file does not exist
// yet when the render stage is queued behind interpolation.
func WaitForDataset(ctx context.Context, path string) error {
	if fileExists(path) {
		return nil
	}

	dir := filepath.Dir(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed to create fsnotify watcher"), errors.ErrIO)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to watch directory %s", dir), errors.ErrIO)
	}

	// the file may have appeared between the first check and Add
	if fileExists(path) {
		return nil
	}

	logger.Info("Waiting for dataset", "path", path)

	target := filepath.Clean(path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.Mark(errors.New("dataset watcher closed"), errors.ErrIO)
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if fileExists(path) {
				logger.Info("Dataset appeared", "path", path, "op", event.Op.String())
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.Mark(errors.New("dataset watcher closed"), errors.ErrIO)
			}
			logger.Warn("Dataset watcher error", "error", err)

		case <-ctx.Done():
			return errors.WithHint(
				errors.Mark(errors.Wrapf(ctx.Err(), "waiting for dataset %s", path), errors.ErrIO),
				"the interpolation stage did not produce the dataset in time")
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
