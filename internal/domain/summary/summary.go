// Package summary provides the hook-owned accumulator that aggregates
// Reviews between flushes.
package summary

import (
	"github.com/TCord/padertorch/internal/shared"
)

// HistogramLimit caps each histogram buffer at the most recent values so a
// long flush interval cannot grow memory without bound.
const HistogramLimit = 10000

// Summary mirrors the sub-mapping shapes of a Review but aggregates across
// all steps since the last reset: losses and scalars as series for later
// averaging, histograms as a capped concatenated buffer, audios and images as
// latest-value snapshots.
type Summary struct {
	Losses     map[string][]float64
	Scalars    map[string][]float64
	Histograms map[string][]float64
	Audios     map[string]shared.Audio
	Images     map[string]shared.Image
}

// New creates an empty Summary.
func New() *Summary {
	s := &Summary{}
	s.Reset()
	return s
}

// Reset clears all accumulated entries.
func (s *Summary) Reset() {
	s.Losses = make(map[string][]float64)
	s.Scalars = make(map[string][]float64)
	s.Histograms = make(map[string][]float64)
	s.Audios = make(map[string]shared.Audio)
	s.Images = make(map[string]shared.Image)
}

// Empty reports whether nothing has been accumulated since the last reset.
func (s *Summary) Empty() bool {
	return len(s.Losses) == 0 && len(s.Scalars) == 0 &&
		len(s.Histograms) == 0 && len(s.Audios) == 0 && len(s.Images) == 0
}

// Update folds one Review into the accumulator. The Review itself is not
// mutated; snapshot values are cloned.
func (s *Summary) Update(review *shared.Review) {
	if review == nil {
		return
	}
	for key, loss := range review.Losses {
		s.Losses[key] = append(s.Losses[key], loss)
	}
	for key, scalar := range review.Scalars {
		s.Scalars[key] = append(s.Scalars[key], scalar)
	}
	for key, histogram := range review.Histograms {
		buffer := append(s.Histograms[key], histogram...)
		if len(buffer) > HistogramLimit {
			buffer = buffer[len(buffer)-HistogramLimit:]
		}
		s.Histograms[key] = buffer
	}
	for key, audio := range review.Audios {
		s.Audios[key] = audio.Clone()
	}
	for key, image := range review.Images {
		s.Images[key] = image.Clone()
	}
}

// Mean returns the arithmetic mean of a sample series.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
