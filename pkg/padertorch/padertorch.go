// Package padertorch provides the public API for assembling training runs.
//
// A run pairs a Model with a Trainer whose hooks are wired from a
// TrainerConfig:
//
//	tr, err := padertorch.NewTrainer(model, padertorch.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := tr.Train(ctx, trainIterator); err != nil {
//	    log.Fatal(err)
//	}
package padertorch

import (
	"encoding/json"
	"fmt"

	"github.com/TCord/padertorch/internal/application/trainer"
	"github.com/TCord/padertorch/internal/domain/tensor"
	"github.com/TCord/padertorch/internal/domain/training"
	"github.com/TCord/padertorch/internal/infrastructure/checkpoint"
	"github.com/TCord/padertorch/internal/infrastructure/hooks"
	"github.com/TCord/padertorch/internal/infrastructure/losses"
	"github.com/TCord/padertorch/internal/shared"
)

// Version is the release version of the module.
const Version = "0.1.0"

// Re-export types for the public API.
type (
	// Review types
	Review = shared.Review
	Audio  = shared.Audio
	Image  = shared.Image

	// Trigger configuration
	Unit          = shared.Unit
	TriggerSpec   = shared.TriggerSpec
	TrainerConfig = shared.TrainerConfig

	// Training loop contracts
	Model        = training.Model
	Hook         = training.Hook
	Iterator     = training.Iterator
	ReviewStream = training.ReviewStream
	StopTraining = training.StopTraining
	Trainer      = trainer.Trainer

	// Tensors
	Tensor         = tensor.Tensor
	IntTensor      = tensor.Int
	PackedSequence = tensor.PackedSequence

	// Loss distributions
	Normal             = losses.Normal
	MultivariateNormal = losses.MultivariateNormal
)

// Trigger units.
const (
	UnitIteration = shared.UnitIteration
	UnitEpoch     = shared.UnitEpoch
)

// Every builds a TriggerSpec firing every period units.
func Every(period int, unit Unit) TriggerSpec {
	return shared.Every(period, unit)
}

// DefaultConfig returns the default trigger wiring.
func DefaultConfig() TrainerConfig {
	return shared.DefaultTrainerConfig()
}

// Loss functions.
var (
	SoftmaxCrossEntropy         = losses.SoftmaxCrossEntropy
	SoftmaxCrossEntropyPacked   = losses.SoftmaxCrossEntropyPacked
	DeepClusteringLoss          = losses.DeepClusteringLoss
	DeepClusteringLossPacked    = losses.DeepClusteringLossPacked
	PITMSELoss                  = losses.PITMSELoss
	KLNormalMultivariateNormals = losses.KLNormalMultivariateNormals
)

type builder struct {
	validation Iterator
	saver      training.CheckpointSaver
	writer     training.SummaryWriter
	extraHooks []Hook
}

// Option customizes trainer assembly.
type Option func(*builder)

// WithValidation adds a validation hook running over it on the config's
// validation trigger.
func WithValidation(it Iterator) Option {
	return func(b *builder) { b.validation = it }
}

// WithCheckpointSaver replaces the default JSON checkpoint saver.
func WithCheckpointSaver(saver training.CheckpointSaver) Option {
	return func(b *builder) { b.saver = saver }
}

// WithSummaryWriter replaces the default SQLite metrics store.
func WithSummaryWriter(writer training.SummaryWriter) Option {
	return func(b *builder) { b.writer = writer }
}

// WithHook registers an additional custom hook.
func WithHook(hook Hook) Option {
	return func(b *builder) { b.extraHooks = append(b.extraHooks, hook) }
}

// NewTrainer assembles a Trainer with the standard hooks wired from cfg:
// summary, progress, checkpoint, and the stop hook on the max trigger, plus
// a validation hook when WithValidation is given. The run configuration is
// persisted to the storage dir and compared on resume.
func NewTrainer(model Model, cfg TrainerConfig, opts ...Option) (*Trainer, error) {
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}

	trainerCfg := trainer.Config{StorageDir: cfg.StorageDir}
	if cfg.StorageDir != "" {
		runCfg, err := configMap(cfg)
		if err != nil {
			return nil, err
		}
		trainerCfg.RunConfig = runCfg
	}
	tr, err := trainer.New(model, trainerCfg)
	if err != nil {
		return nil, err
	}

	var summaryOpts []hooks.SummaryOption
	if b.writer != nil {
		summaryOpts = append(summaryOpts, hooks.WithWriter(b.writer))
	}
	trainingSummaryOpts := summaryOpts
	if b.validation != nil {
		// Flushing on the validation trigger resets the shared timer, which
		// the validation hook requires to be empty.
		trainingSummaryOpts = append(trainingSummaryOpts,
			hooks.WithValidateTrigger(cfg.ValidationTrigger))
	}
	summary, err := hooks.NewSummaryHook(cfg.SummaryTrigger, trainingSummaryOpts...)
	if err != nil {
		return nil, fmt.Errorf("summary hook: %w", err)
	}
	progress, err := hooks.NewProgressHook(cfg.ProgressTrigger)
	if err != nil {
		return nil, fmt.Errorf("progress hook: %w", err)
	}
	stop, err := hooks.NewStopTrainingHook(cfg.MaxTrigger)
	if err != nil {
		return nil, fmt.Errorf("stop hook: %w", err)
	}
	assembled := []Hook{summary, progress, stop}

	saver := b.saver
	if saver == nil && cfg.StorageDir != "" {
		jsonSaver, err := checkpoint.NewJSONSaver(cfg.StorageDir, stateDictOf(model))
		if err != nil {
			return nil, fmt.Errorf("checkpoint saver: %w", err)
		}
		saver = jsonSaver
	}
	if saver != nil {
		ckpt, err := hooks.NewCheckpointHook(cfg.CheckpointTrigger, saver)
		if err != nil {
			return nil, fmt.Errorf("checkpoint hook: %w", err)
		}
		assembled = append(assembled, ckpt)
	}

	if b.validation != nil {
		validation, err := hooks.NewValidationHook(cfg.ValidationTrigger, tr, b.validation, summaryOpts...)
		if err != nil {
			return nil, fmt.Errorf("validation hook: %w", err)
		}
		assembled = append(assembled, validation)
	}
	assembled = append(assembled, b.extraHooks...)

	for _, hook := range assembled {
		if err := tr.Register(hook); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

// stateDictOf returns the model's parameter exporter when it implements one.
func stateDictOf(model Model) checkpoint.StateDict {
	if sd, ok := model.(checkpoint.StateDict); ok {
		return sd
	}
	return nil
}

// configMap converts the config to a nested map through its JSON form so it
// can be flattened and persisted for resume comparison.
func configMap(cfg TrainerConfig) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode trainer config: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode trainer config: %w", err)
	}
	return out, nil
}
