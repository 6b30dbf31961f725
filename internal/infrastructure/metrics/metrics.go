// Package metrics provides the append-only time-series sinks summaries are
// flushed into.
package metrics

import (
	"errors"
	"time"

	"github.com/TCord/padertorch/internal/shared"
)

// Errors for metric sink construction and use.
var (
	// ErrStorageDirUnset indicates a writer was needed before a storage
	// location was configured.
	ErrStorageDirUnset = errors.New("storage dir is unset")

	// ErrWriterClosed indicates a write after Close.
	ErrWriterClosed = errors.New("metrics writer is closed")

	// ErrStoreInitFailed indicates the backing store could not be opened.
	ErrStoreInitFailed = errors.New("metrics store initialization failed")
)

// Kind discriminates the record payloads.
type Kind string

const (
	KindScalar    Kind = "scalar"
	KindHistogram Kind = "histogram"
	KindAudio     Kind = "audio"
	KindImage     Kind = "image"
)

// Record is one append-only time-series entry: a tag, the iteration it was
// written at, and one of the payload kinds. For a given tag and iteration the
// last write wins.
type Record struct {
	ID         string        `json:"id"`
	Tag        string        `json:"tag"`
	Kind       Kind          `json:"kind"`
	Iteration  int           `json:"iteration"`
	Value      float64       `json:"value,omitempty"`
	Values     []float64     `json:"values,omitempty"`
	SampleRate int           `json:"sampleRate,omitempty"`
	Image      *shared.Image `json:"image,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}
