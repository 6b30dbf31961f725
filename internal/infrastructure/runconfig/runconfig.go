// Package runconfig persists the configuration of a training run and
// compares it against a previously persisted one when the run resumes.
package runconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// InitFileName is the file written into the storage dir on first start.
const InitFileName = "init.json"

var (
	// ErrStorageDirUnset is returned when persistence is requested without a
	// storage dir.
	ErrStorageDirUnset = errors.New("storage dir not set")
	// ErrMissingKey is returned when a previously persisted configuration key
	// is absent from the current configuration.
	ErrMissingKey = errors.New("persisted configuration key missing")
)

// Snapshot is the persisted form of a run configuration.
type Snapshot struct {
	RunID string         `json:"run_id"`
	Raw   map[string]any `json:"config"`
}

// Flatten collapses a nested map into dotted keys so configurations can be
// compared key by key regardless of nesting.
func Flatten(config map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", config)
	return out
}

func flattenInto(out map[string]any, prefix string, value map[string]any) {
	for key, v := range value {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(out, full, nested)
			continue
		}
		out[full] = v
	}
}

// Persist writes the flattened configuration and a fresh run ID to
// init.json in the storage dir. An existing file is left untouched and its
// run ID is returned instead, so resumed runs keep their identity.
func Persist(storageDir string, config map[string]any) (*Snapshot, error) {
	if storageDir == "" {
		return nil, ErrStorageDirUnset
	}
	path := filepath.Join(storageDir, InitFileName)
	if existing, err := Load(storageDir); err == nil {
		return existing, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	snap := &Snapshot{
		RunID: uuid.New().String(),
		Raw:   Flatten(config),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode run config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", InitFileName, err)
	}
	return snap, nil
}

// Load reads a persisted snapshot from the storage dir.
func Load(storageDir string) (*Snapshot, error) {
	if storageDir == "" {
		return nil, ErrStorageDirUnset
	}
	data, err := os.ReadFile(filepath.Join(storageDir, InitFileName))
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", InitFileName, err)
	}
	return &snap, nil
}

// Compare checks the current configuration against a persisted snapshot.
// Keys present in the snapshot but absent now are a hard error, since the
// resumed run would silently diverge from what it was started with. Changed
// values and brand-new keys are reported as warnings only.
func Compare(persisted *Snapshot, current map[string]any) error {
	flat := Flatten(current)
	log := logrus.WithField("component", "runconfig")

	keys := make([]string, 0, len(persisted.Raw))
	for key := range persisted.Raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		old := persisted.Raw[key]
		now, ok := flat[key]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingKey, key)
		}
		if !equalValue(old, now) {
			log.WithFields(logrus.Fields{
				"key":       key,
				"persisted": old,
				"current":   now,
			}).Warn("configuration value changed since run start")
		}
	}

	newKeys := make([]string, 0)
	for key := range flat {
		if _, ok := persisted.Raw[key]; !ok {
			newKeys = append(newKeys, key)
		}
	}
	sort.Strings(newKeys)
	for _, key := range newKeys {
		log.WithField("key", key).Warn("configuration key added since run start")
	}
	return nil
}

// equalValue compares through a JSON round trip so values that only differ
// in Go type after decoding (int vs float64) still compare equal.
func equalValue(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}
