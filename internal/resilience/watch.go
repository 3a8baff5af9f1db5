package resilience

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/elchinoo/moviesync/internal/logging"
)

// CheckpointWatcher observes external mutation of the checkpoint file — an
// administrative reset performed by another process or operator while the
// supervisor is sleeping between passes — and logs it as it happens, rather
// than leaving the operator to infer it from the next pass's behavior. It
// never drives pipeline logic itself: the supervisor still reloads the
// checkpoint at the top of every pass regardless of whether this fired.
type CheckpointWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	logger  logging.Logger
}

// NewCheckpointWatcher starts watching the directory containing path for
// writes and removals of that file.
func NewCheckpointWatcher(path string, logger logging.Logger) (*CheckpointWatcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create checkpoint watcher")
	}

	dir := dirOrDot(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "failed to watch checkpoint directory %q", dir)
	}

	return &CheckpointWatcher{watcher: w, path: path, logger: logger}, nil
}

// Run blocks, logging external mutations of the checkpoint file until ctx
// is cancelled. Call it from its own goroutine.
func (w *CheckpointWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			switch {
			case event.Op&fsnotify.Remove != 0:
				w.logger.Info("checkpoint file removed externally, next pass will reprocess from the beginning",
					zap.String("path", w.path))
			case event.Op&fsnotify.Write != 0 || event.Op&fsnotify.Rename != 0:
				w.logger.Info("checkpoint file changed externally",
					zap.String("path", w.path))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("checkpoint watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher.
func (w *CheckpointWatcher) Close() error {
	return w.watcher.Close()
}

func dirOrDot(path string) string {
	dir := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			dir = path[:i]
			if dir == "" {
				dir = "/"
			}
			return dir
		}
	}
	return "."
}
