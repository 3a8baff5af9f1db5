// Package resilience provides the durability and fault-tolerance primitives
// shared by the extractor and loader: the checkpoint store, the
// exponential-backoff retry harness, and the circuit breakers guarding the
// database and search-index connections.
package resilience

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/elchinoo/moviesync/internal/logging"
	"github.com/elchinoo/moviesync/pkg/types"
	"go.uber.org/zap"
)

// CheckpointStore durably holds the single high-water-mark timestamp the
// supervisor resumes from. Load/Save are safe for concurrent use, though in
// practice only the supervisor ever calls them, once per pass and once per
// page respectively.
type CheckpointStore struct {
	mu     sync.Mutex
	path   string
	logger logging.Logger
}

// NewCheckpointStore returns a store persisting to path.
func NewCheckpointStore(path string, logger logging.Logger) *CheckpointStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CheckpointStore{path: path, logger: logger}
}

// Load reads the stored checkpoint. A missing or malformed file resets to
// the minimum UTC timestamp rather than erroring: this is safe because
// upserts are idempotent and reprocessing from the beginning converges to
// the correct index contents.
func (s *CheckpointStore) Load() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read checkpoint file, resetting to minimum", zap.Error(err))
		}
		return types.MinCheckpoint()
	}

	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(data)))
	if err != nil {
		s.logger.Warn("malformed checkpoint file, resetting to minimum",
			zap.String("path", s.path), zap.Error(err))
		return types.MinCheckpoint()
	}

	return t.UTC()
}

// Save atomically replaces the persisted checkpoint with t. The new value
// is written to a temp file in the same directory, flushed, and then
// renamed over the destination, so a crash mid-write never leaves a
// partially-written checkpoint file behind.
func (s *CheckpointStore) Save(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint file: %w", err)
	}
	tmpPath := tmp.Name()

	// time.Format always renders a zero UTC offset as "Z"; the external
	// contract's example checkpoints use "+00:00" (as Python's isoformat()
	// does), so swap the suffix. Load accepts both forms.
	formatted := strings.TrimSuffix(t.UTC().Format(time.RFC3339Nano), "Z") + "+00:00"
	if _, err := tmp.WriteString(formatted); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to fsync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close checkpoint temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}

	return nil
}

// Reset destroys the persisted checkpoint, the administrative operation
// referenced by the data model's lifecycle: the next Load() returns the
// minimum timestamp and the following pass reprocesses the whole catalog.
func (s *CheckpointStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	s.logger.Info("checkpoint reset", zap.String("path", s.path))
	return nil
}
