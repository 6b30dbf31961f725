// Package shared provides shared types used across all modules in padertorch.
package shared

// ============================================================================
// Trigger Types
// ============================================================================

// Unit is the counting unit a trigger period is expressed in.
type Unit string

const (
	UnitIteration Unit = "iteration"
	UnitEpoch     Unit = "epoch"
)

// Valid reports whether the unit is one of the recognized units.
func (u Unit) Valid() bool {
	return u == UnitIteration || u == UnitEpoch
}

// TriggerSpec is a (period, unit) pair describing when a periodic or terminal
// action should fire. Hooks accept either a TriggerSpec or an already built
// trigger instance.
type TriggerSpec struct {
	Period int  `json:"period" yaml:"period"`
	Unit   Unit `json:"unit" yaml:"unit"`
}

// Every is a convenience constructor for a TriggerSpec.
func Every(period int, unit Unit) TriggerSpec {
	return TriggerSpec{Period: period, Unit: unit}
}

// ============================================================================
// Review Types
// ============================================================================

// Audio is a waveform snapshot carried in a Review.
type Audio struct {
	Waveform   []float64 `json:"waveform"`
	SampleRate int       `json:"sampleRate"`
}

// Image is an image snapshot carried in a Review. Pixels are stored row-major
// as channels x height x width.
type Image struct {
	Channels int       `json:"channels"`
	Height   int       `json:"height"`
	Width    int       `json:"width"`
	Pixels   []float64 `json:"pixels"`
}

// Review is the structured per-step output of a model. Hooks read it without
// mutating it; no hook owns it.
type Review struct {
	// Losses are averaged into the optimized objective and summarized.
	Losses map[string]float64 `json:"losses,omitempty"`
	// Scalars are additional per-step metrics.
	Scalars map[string]float64 `json:"scalars,omitempty"`
	// Histograms are numeric arrays; accumulators cap them at the most
	// recent 10k values.
	Histograms map[string][]float64 `json:"histograms,omitempty"`
	// Audios are last-value-wins snapshots.
	Audios map[string]Audio `json:"audios,omitempty"`
	// Images are last-value-wins snapshots.
	Images map[string]Image `json:"images,omitempty"`
}

// ============================================================================
// Trainer Configuration
// ============================================================================

// TrainerConfig holds the trigger wiring and storage location for a training
// run.
type TrainerConfig struct {
	StorageDir        string      `json:"storageDir" yaml:"storage_dir"`
	MaxTrigger        TriggerSpec `json:"maxTrigger" yaml:"max_trigger"`
	SummaryTrigger    TriggerSpec `json:"summaryTrigger" yaml:"summary_trigger"`
	CheckpointTrigger TriggerSpec `json:"checkpointTrigger" yaml:"checkpoint_trigger"`
	ValidationTrigger TriggerSpec `json:"validationTrigger" yaml:"validation_trigger"`
	ProgressTrigger   TriggerSpec `json:"progressTrigger" yaml:"progress_trigger"`
	Seed              int64       `json:"seed" yaml:"seed"`
}

// DefaultTrainerConfig returns the default trigger wiring.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		MaxTrigger:        Every(100000, UnitIteration),
		SummaryTrigger:    Every(500, UnitIteration),
		CheckpointTrigger: Every(500, UnitIteration),
		ValidationTrigger: Every(1, UnitEpoch),
		ProgressTrigger:   Every(100, UnitIteration),
	}
}
