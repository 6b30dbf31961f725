package metrics

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/TCord/padertorch/internal/shared"
)

// PostgresWriter implements training.SummaryWriter on a shared Postgres
// instance, for runs whose metrics should be queryable across machines. Rows
// are partitioned by run ID.
type PostgresWriter struct {
	mu     sync.Mutex
	db     *sql.DB
	runID  string
	closed bool
}

// NewPostgresWriter connects to Postgres and ensures the metrics table
// exists. An empty runID gets a fresh UUID.
func NewPostgresWriter(connStr, runID string) (*PostgresWriter, error) {
	if runID == "" {
		runID = uuid.NewString()
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open connection: %v", ErrStoreInitFailed, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to reach database: %v", ErrStoreInitFailed, err)
	}

	w := &PostgresWriter{db: db, runID: runID}
	if err := w.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

func (w *PostgresWriter) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS training_metrics (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			tag TEXT NOT NULL,
			kind TEXT NOT NULL,
			iteration BIGINT NOT NULL,
			value DOUBLE PRECISION,
			payload JSONB,
			sample_rate INTEGER,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_training_metrics_run_tag
			ON training_metrics(run_id, tag, iteration);
	`
	if _, err := w.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: failed to create schema: %v", ErrStoreInitFailed, err)
	}
	return nil
}

// RunID returns the run identity rows are written under.
func (w *PostgresWriter) RunID() string {
	return w.runID
}

// AddScalar appends a scalar row.
func (w *PostgresWriter) AddScalar(tag string, value float64, iteration int) error {
	return w.insert(tag, KindScalar, iteration, value, nil, 0)
}

// AddHistogram appends a histogram row.
func (w *PostgresWriter) AddHistogram(tag string, values []float64, iteration int) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return w.insert(tag, KindHistogram, iteration, 0, payload, 0)
}

// AddAudio appends an audio row.
func (w *PostgresWriter) AddAudio(tag string, audio shared.Audio, iteration int) error {
	payload, err := json.Marshal(audio.Waveform)
	if err != nil {
		return err
	}
	return w.insert(tag, KindAudio, iteration, 0, payload, audio.SampleRate)
}

// AddImage appends an image row.
func (w *PostgresWriter) AddImage(tag string, image shared.Image, iteration int) error {
	payload, err := json.Marshal(image)
	if err != nil {
		return err
	}
	return w.insert(tag, KindImage, iteration, 0, payload, 0)
}

// Close closes the connection.
func (w *PostgresWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.db.Close()
}

func (w *PostgresWriter) insert(tag string, kind Kind, iteration int, value float64, payload []byte, sampleRate int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	_, err := w.db.Exec(`
		INSERT INTO training_metrics (id, run_id, tag, kind, iteration, value, payload, sample_rate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.NewString(), w.runID, tag, string(kind), iteration, value, payload, sampleRate, time.Now().UTC())
	return err
}
