// Package checkpoint persists training state so runs can resume after the
// final iteration they reached.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TCord/padertorch/internal/domain/training"
)

// DirName is the subdirectory of the storage dir holding checkpoints.
const DirName = "checkpoints"

// LatestFileName points at the most recent checkpoint for resume.
const LatestFileName = "latest.json"

// ErrStorageDirUnset is returned when saving without a storage dir.
var ErrStorageDirUnset = errors.New("storage dir not set")

// ErrNoCheckpoint is returned by Latest when the run has none yet.
var ErrNoCheckpoint = errors.New("no checkpoint found")

// StateDict exposes model parameters for serialization. Models that carry
// no parameters worth persisting simply do not implement it.
type StateDict interface {
	StateDict() map[string][]float64
}

// Snapshot is the persisted form of one checkpoint.
type Snapshot struct {
	Iteration  int                  `json:"iteration"`
	Epoch      int                  `json:"epoch"`
	CreatedAt  time.Time            `json:"created_at"`
	Parameters map[string][]float64 `json:"parameters,omitempty"`
}

// JSONSaver writes one JSON file per checkpoint under
// {storageDir}/checkpoints and keeps latest.json pointing at the newest.
type JSONSaver struct {
	dir   string
	model StateDict
}

// NewJSONSaver creates a saver rooted at the storage dir. model may be nil
// when only the loop counters need persisting.
func NewJSONSaver(storageDir string, model StateDict) (*JSONSaver, error) {
	if storageDir == "" {
		return nil, ErrStorageDirUnset
	}
	return &JSONSaver{dir: filepath.Join(storageDir, DirName), model: model}, nil
}

// SaveCheckpoint implements training.CheckpointSaver.
func (s *JSONSaver) SaveCheckpoint(state *training.State) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	snap := Snapshot{
		Iteration: state.Iteration,
		Epoch:     state.Epoch,
		CreatedAt: time.Now().UTC(),
	}
	if s.model != nil {
		snap.Parameters = s.model.StateDict()
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	name := fmt.Sprintf("ckpt_%d.json", state.Iteration)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, LatestFileName), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", LatestFileName, err)
	}
	return nil
}

// Latest loads the most recent checkpoint of a run.
func Latest(storageDir string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(storageDir, DirName, LatestFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCheckpoint
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &snap, nil
}
