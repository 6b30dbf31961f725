package hooks

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/TCord/padertorch/internal/domain/summary"
	"github.com/TCord/padertorch/internal/domain/training"
	"github.com/TCord/padertorch/internal/domain/trigger"
	"github.com/TCord/padertorch/internal/infrastructure/metrics"
	"github.com/TCord/padertorch/internal/shared"
)

// Relative timer keys derived at flush time.
const (
	timerRelDataLoading = "time_rel_data_loading"
	timerRelTrainStep   = "time_rel_train_step"
)

// WriterFactory lazily builds the time-series writer once the storage dir is
// known.
type WriterFactory func(storageDir string) (training.SummaryWriter, error)

// SummaryHook aggregates Reviews into a Summary and flushes it to the
// time-series sink whenever its trigger fires, on the very first step, and on
// Close.
type SummaryHook struct {
	trigger *trigger.Trigger
	prefix  string
	summary *summary.Summary
	factory WriterFactory
	writer  training.SummaryWriter
	log     *logrus.Entry
}

// SummaryOption configures a SummaryHook.
type SummaryOption func(*SummaryHook) error

// WithValidateTrigger composes the flush trigger with the validation trigger
// so summaries are always flushed immediately before a validation run.
func WithValidateTrigger(spec any) SummaryOption {
	return func(h *SummaryHook) error {
		validate, err := trigger.AsInterval(spec)
		if err != nil {
			return err
		}
		h.trigger = trigger.NewOr(h.trigger, validate)
		return nil
	}
}

// WithPrefix sets the key prefix identifying the metric stream.
func WithPrefix(prefix string) SummaryOption {
	return func(h *SummaryHook) error {
		h.prefix = prefix
		return nil
	}
}

// WithWriter injects an already constructed writer, bypassing the lazy
// factory. Used by tests and by callers sharing a sink.
func WithWriter(w training.SummaryWriter) SummaryOption {
	return func(h *SummaryHook) error {
		h.writer = w
		return nil
	}
}

// WithWriterFactory replaces the default SQLite-backed writer factory.
func WithWriterFactory(factory WriterFactory) SummaryOption {
	return func(h *SummaryHook) error {
		h.factory = factory
		return nil
	}
}

// NewSummaryHook creates a SummaryHook firing on the given trigger spec or
// trigger instance.
func NewSummaryHook(spec any, opts ...SummaryOption) (*SummaryHook, error) {
	trig, err := trigger.AsInterval(spec)
	if err != nil {
		return nil, err
	}
	h := &SummaryHook{
		trigger: trig,
		prefix:  "training",
		summary: summary.New(),
		factory: defaultWriterFactory,
		log:     logrus.WithField("component", "summary_hook"),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	h.log = h.log.WithField("prefix", h.prefix)
	return h, nil
}

func defaultWriterFactory(storageDir string) (training.SummaryWriter, error) {
	return metrics.NewSQLiteWriter(storageDir)
}

// Priority implements training.Hook. The summary flush runs before every
// other hook so validation and checkpointing see a clean timer.
func (h *SummaryHook) Priority() int {
	return training.PrioritySummary
}

// PreStep flushes when the trigger fires, and unconditionally on the very
// first step to seed empty baselines.
func (h *SummaryHook) PreStep(state *training.State) error {
	fired := h.trigger.Fire(state.Iteration, state.Epoch)
	if fired || state.Iteration == 1 {
		return h.flush(state)
	}
	return nil
}

// PostStep folds the step's review into the summary. It runs on every step
// regardless of trigger state.
func (h *SummaryHook) PostStep(state *training.State, example, modelOutput any, review *shared.Review) {
	h.summary.Update(review)
}

// Close forces a final flush so no buffered metrics are lost, then releases
// the writer.
func (h *SummaryHook) Close(state *training.State) error {
	if h.writer == nil && h.summary.Empty() {
		return nil
	}
	flushErr := h.flush(state)
	if h.writer != nil {
		if err := h.writer.Close(); err != nil && flushErr == nil {
			flushErr = err
		}
	}
	return flushErr
}

// flush writes the aggregated summary and the derived timer statistics at the
// current iteration, then clears the summary and resets the shared timer.
func (h *SummaryHook) flush(state *training.State) error {
	w, err := h.ensureWriter(state)
	if err != nil {
		return err
	}

	iteration := state.Iteration
	for key, series := range h.summary.Losses {
		if err := w.AddScalar(h.tag(key), summary.Mean(series), iteration); err != nil {
			return err
		}
	}
	for key, series := range h.summary.Scalars {
		if err := w.AddScalar(h.tag(key), summary.Mean(series), iteration); err != nil {
			return err
		}
	}
	if state.Timer != nil {
		for key, value := range h.timerEntries(state.Timer.AsDict()) {
			if err := w.AddScalar(h.tag(key), value, iteration); err != nil {
				return err
			}
		}
	}
	for key, buffer := range h.summary.Histograms {
		if err := w.AddHistogram(h.tag(key), buffer, iteration); err != nil {
			return err
		}
	}
	for key, audio := range h.summary.Audios {
		if err := w.AddAudio(h.tag(key), audio, iteration); err != nil {
			return err
		}
	}
	for key, image := range h.summary.Images {
		if err := w.AddImage(h.tag(key), image, iteration); err != nil {
			return err
		}
	}

	h.summary.Reset()
	if state.Timer != nil {
		state.Timer.Reset()
	}
	return nil
}

// timerEntries turns the raw timer series into reported scalars. The loading
// and train-step series are reported as fractions of the total step time;
// when the sample counts disagree (an exception skipped a recording) the raw
// mean is reported instead of a broken ratio.
func (h *SummaryHook) timerEntries(dict map[string][]float64) map[string]float64 {
	out := make(map[string]float64, len(dict))
	stepSeries, hasStep := dict[training.TimerStep]
	stepTotal := 0.0
	for _, v := range stepSeries {
		stepTotal += v
	}

	for key, series := range dict {
		if (key == training.TimerDataLoading || key == training.TimerTrainStep) && hasStep {
			if len(series) != len(stepSeries) || stepTotal == 0 {
				h.log.WithFields(logrus.Fields{
					"series":       key,
					"samples":      len(series),
					"step_samples": len(stepSeries),
				}).Warn("timer series out of sync, reporting the raw mean")
			} else {
				total := 0.0
				for _, v := range series {
					total += v
				}
				if key == training.TimerDataLoading {
					out[timerRelDataLoading] = total / stepTotal
				} else {
					out[timerRelTrainStep] = total / stepTotal
				}
				continue
			}
		}
		out[key] = summary.Mean(series)
	}
	return out
}

func (h *SummaryHook) ensureWriter(state *training.State) (training.SummaryWriter, error) {
	if h.writer != nil {
		return h.writer, nil
	}
	if state.StorageDir == "" {
		return nil, fmt.Errorf("%w: summary hook cannot construct its writer", metrics.ErrStorageDirUnset)
	}
	w, err := h.factory(state.StorageDir)
	if err != nil {
		return nil, err
	}
	h.writer = w
	return w, nil
}

func (h *SummaryHook) tag(key string) string {
	return h.prefix + "/" + key
}
