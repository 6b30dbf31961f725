package metrics

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/TCord/padertorch/internal/shared"
)

// SQLiteWriter implements training.SummaryWriter on a SQLite database inside
// the run's storage dir. Writes are append-only; readers resolve duplicate
// (tag, iteration) keys by taking the newest row.
type SQLiteWriter struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// NewSQLiteWriter opens (or creates) the metrics database under storageDir.
func NewSQLiteWriter(storageDir string) (*SQLiteWriter, error) {
	if storageDir == "" {
		return nil, ErrStorageDirUnset
	}
	if err := os.MkdirAll(storageDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create storage dir: %v", ErrStoreInitFailed, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(storageDir, "metrics.db"))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrStoreInitFailed, err)
	}

	w := &SQLiteWriter{db: db}
	if err := w.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLiteWriter) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS metrics (
			id TEXT PRIMARY KEY,
			tag TEXT NOT NULL,
			kind TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			value REAL,
			payload BLOB,
			sample_rate INTEGER,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_metrics_tag ON metrics(tag, iteration);
		CREATE INDEX IF NOT EXISTS idx_metrics_kind ON metrics(kind);
	`
	if _, err := w.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: failed to create schema: %v", ErrStoreInitFailed, err)
	}
	return nil
}

// AddScalar appends a scalar row.
func (w *SQLiteWriter) AddScalar(tag string, value float64, iteration int) error {
	return w.insert(tag, KindScalar, iteration, value, nil, 0)
}

// AddHistogram appends a histogram row with the values as a JSON payload.
func (w *SQLiteWriter) AddHistogram(tag string, values []float64, iteration int) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return w.insert(tag, KindHistogram, iteration, 0, payload, 0)
}

// AddAudio appends an audio row with the waveform as a JSON payload.
func (w *SQLiteWriter) AddAudio(tag string, audio shared.Audio, iteration int) error {
	payload, err := json.Marshal(audio.Waveform)
	if err != nil {
		return err
	}
	return w.insert(tag, KindAudio, iteration, 0, payload, audio.SampleRate)
}

// AddImage appends an image row with the full image as a JSON payload.
func (w *SQLiteWriter) AddImage(tag string, image shared.Image, iteration int) error {
	payload, err := json.Marshal(image)
	if err != nil {
		return err
	}
	return w.insert(tag, KindImage, iteration, 0, payload, 0)
}

// Close closes the database handle.
func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.db.Close()
}

func (w *SQLiteWriter) insert(tag string, kind Kind, iteration int, value float64, payload []byte, sampleRate int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	_, err := w.db.Exec(`
		INSERT INTO metrics (id, tag, kind, iteration, value, payload, sample_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), tag, string(kind), iteration, value, payload, sampleRate, time.Now().UnixNano())
	return err
}

// Scalar reads back the effective scalar value for a tag and iteration.
func (w *SQLiteWriter) Scalar(tag string, iteration int) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrWriterClosed
	}
	row := w.db.QueryRow(`
		SELECT value FROM metrics
		WHERE tag = ? AND iteration = ? AND kind = ?
		ORDER BY created_at DESC LIMIT 1
	`, tag, iteration, string(KindScalar))
	var value float64
	if err := row.Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}
