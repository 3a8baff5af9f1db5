package resilience

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/elchinoo/moviesync/internal/logging"
	"github.com/elchinoo/moviesync/pkg/types"
)

func TestCheckpointLoadMissingFileReturnsMinimum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewCheckpointStore(path, logging.NewNop())

	got := store.Load()
	if !got.Equal(types.MinCheckpoint()) {
		t.Fatalf("got %v, want minimum checkpoint", got)
	}
}

func TestCheckpointSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := NewCheckpointStore(path, logging.NewNop())

	want := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	if err := store.Save(want); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got := store.Load()
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCheckpointLoadMalformedFileResetsToMinimum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("not-a-timestamp"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	store := NewCheckpointStore(path, logging.NewNop())
	got := store.Load()
	if !got.Equal(types.MinCheckpoint()) {
		t.Fatalf("got %v, want minimum checkpoint for malformed file", got)
	}
}

func TestCheckpointResetRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewCheckpointStore(path, logging.NewNop())

	if err := store.Save(time.Now().UTC()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := store.Reset(); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}

	got := store.Load()
	if !got.Equal(types.MinCheckpoint()) {
		t.Fatalf("got %v after reset, want minimum checkpoint", got)
	}
}

func TestCheckpointResetToleratesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewCheckpointStore(path, logging.NewNop())

	if err := store.Reset(); err != nil {
		t.Fatalf("Reset on a never-created file should not error, got: %v", err)
	}
}
