package metrics

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TCord/padertorch/internal/shared"
)

// MemoryWriter implements training.SummaryWriter with in-memory storage. It
// is the test double and the fallback when no storage dir is configured.
type MemoryWriter struct {
	mu      sync.RWMutex
	records []Record
	closed  bool
}

// NewMemoryWriter creates an empty MemoryWriter.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{records: make([]Record, 0)}
}

// AddScalar appends a scalar record.
func (w *MemoryWriter) AddScalar(tag string, value float64, iteration int) error {
	return w.append(Record{Tag: tag, Kind: KindScalar, Iteration: iteration, Value: value})
}

// AddHistogram appends a histogram record.
func (w *MemoryWriter) AddHistogram(tag string, values []float64, iteration int) error {
	return w.append(Record{
		Tag:       tag,
		Kind:      KindHistogram,
		Iteration: iteration,
		Values:    shared.CloneFloats(values),
	})
}

// AddAudio appends an audio record.
func (w *MemoryWriter) AddAudio(tag string, audio shared.Audio, iteration int) error {
	return w.append(Record{
		Tag:        tag,
		Kind:       KindAudio,
		Iteration:  iteration,
		Values:     shared.CloneFloats(audio.Waveform),
		SampleRate: audio.SampleRate,
	})
}

// AddImage appends an image record.
func (w *MemoryWriter) AddImage(tag string, image shared.Image, iteration int) error {
	cloned := image.Clone()
	return w.append(Record{Tag: tag, Kind: KindImage, Iteration: iteration, Image: &cloned})
}

// Close marks the writer closed; subsequent writes fail.
func (w *MemoryWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *MemoryWriter) append(record Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	record.ID = uuid.NewString()
	record.CreatedAt = time.Now()
	w.records = append(w.records, record)
	return nil
}

// Records returns a copy of all appended records in write order.
func (w *MemoryWriter) Records() []Record {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Record, len(w.records))
	copy(out, w.records)
	return out
}

// Scalar returns the effective scalar value for a tag and iteration: the last
// write wins.
func (w *MemoryWriter) Scalar(tag string, iteration int) (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for i := len(w.records) - 1; i >= 0; i-- {
		r := w.records[i]
		if r.Kind == KindScalar && r.Tag == tag && r.Iteration == iteration {
			return r.Value, true
		}
	}
	return 0, false
}

// Tags returns the distinct tags written so far.
func (w *MemoryWriter) Tags() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	seen := make(map[string]bool)
	var tags []string
	for _, r := range w.records {
		if !seen[r.Tag] {
			seen[r.Tag] = true
			tags = append(tags, r.Tag)
		}
	}
	return tags
}
