// Package main provides the CLI entry point for padertorch.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/TCord/padertorch/internal/domain/tensor"
	"github.com/TCord/padertorch/internal/infrastructure/checkpoint"
	"github.com/TCord/padertorch/internal/infrastructure/losses"
	"github.com/TCord/padertorch/internal/infrastructure/runconfig"
	"github.com/TCord/padertorch/pkg/padertorch"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "padertorch",
	Short: "Padertorch - training loop orchestration",
	Long: `Padertorch drives neural network training runs: it steps a model over
data iterators and dispatches trigger-gated hooks for summaries, progress
reporting, validation, checkpointing, and run termination.

It provides:
  - Interval, end, and composed triggers counted in iterations or epochs
  - Priority-ordered hooks sharing one step timer
  - Scalar, histogram, audio, and image summaries in SQLite or Postgres
  - Checkpointing with resume-safe run configuration comparison`,
	Version: padertorch.Version,
}

// ============================================================================
// Train Command
// ============================================================================

var (
	trainConfigPath string
	trainStorageDir string
	trainDryRun     bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run a training loop with the demo model",
	Long: `Run a training loop over a synthetic classification task. The demo
model draws random batches and minimizes a softmax cross entropy, which
exercises the full hook pipeline: summaries, progress logging, validation,
checkpoints, and the stop trigger.`,
	Example: `  # Train with defaults into ./storage
  padertorch train --storage-dir ./storage

  # Train with a YAML config
  padertorch train --config experiment.yaml

  # Sanity-check the wiring without training
  padertorch train --storage-dir ./storage --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(trainConfigPath)
		if err != nil {
			return err
		}
		if trainStorageDir != "" {
			cfg.StorageDir = trainStorageDir
		}
		if cfg.StorageDir == "" {
			return fmt.Errorf("a storage dir is required (--storage-dir or config)")
		}

		model := newDemoModel(cfg.Seed)
		tr, err := padertorch.NewTrainer(model, cfg,
			padertorch.WithValidation(newBatchIterator(10)),
		)
		if err != nil {
			return fmt.Errorf("assemble trainer: %w", err)
		}

		train := newBatchIterator(100)
		if trainDryRun {
			if err := tr.TestRun(train, newBatchIterator(10)); err != nil {
				return err
			}
			fmt.Println("test run passed")
			return nil
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return tr.Train(ctx, train)
	},
}

// ============================================================================
// Inspect Command
// ============================================================================

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <storage-dir>",
	Short: "Show the persisted state of a run",
	Long:  `Show the run configuration and latest checkpoint of a storage dir.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		storageDir := args[0]
		report := map[string]any{"storage_dir": storageDir}

		if snap, err := runconfig.Load(storageDir); err == nil {
			report["run_id"] = snap.RunID
			report["config"] = snap.Raw
		} else {
			report["config_error"] = err.Error()
		}

		if ckpt, err := checkpoint.Latest(storageDir); err == nil {
			report["checkpoint"] = map[string]any{
				"iteration":  ckpt.Iteration,
				"epoch":      ckpt.Epoch,
				"created_at": ckpt.CreatedAt,
			}
		} else {
			report["checkpoint_error"] = err.Error()
		}

		if inspectFormat == "json" {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		data, err := yaml.Marshal(report)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	trainCmd.Flags().StringVarP(&trainConfigPath, "config", "c", "", "YAML config file")
	trainCmd.Flags().StringVarP(&trainStorageDir, "storage-dir", "s", "", "run storage directory")
	trainCmd.Flags().BoolVar(&trainDryRun, "dry-run", false, "run wiring checks instead of training")
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "yaml", "output format (yaml|json)")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(inspectCmd)
}

// loadConfig reads a YAML config over the defaults.
func loadConfig(path string) (padertorch.TrainerConfig, error) {
	cfg := padertorch.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ============================================================================
// Demo Model
// ============================================================================

const (
	demoBatchSize = 8
	demoClasses   = 4
)

// demoModel is a logit table over a synthetic classification task. Each step
// draws a random batch, nudges the logits toward the targets, and reports
// the softmax cross entropy so summaries carry a decreasing loss.
type demoModel struct {
	rng    *rand.Rand
	logits []float64
}

func newDemoModel(seed int64) *demoModel {
	rng := rand.New(rand.NewSource(seed))
	logits := make([]float64, demoClasses)
	for i := range logits {
		logits[i] = rng.NormFloat64()
	}
	return &demoModel{rng: rng, logits: logits}
}

func (m *demoModel) Step(example any) (any, *padertorch.Review, error) {
	targets := make([]int, demoBatchSize)
	data := make([]float64, demoBatchSize*demoClasses)
	for b := 0; b < demoBatchSize; b++ {
		targets[b] = m.rng.Intn(demoClasses)
		copy(data[b*demoClasses:], m.logits)
	}

	logits, err := tensor.New([]int{demoBatchSize, demoClasses}, data)
	if err != nil {
		return nil, nil, err
	}
	targetTensor, err := tensor.NewInt([]int{demoBatchSize}, targets)
	if err != nil {
		return nil, nil, err
	}
	loss, err := losses.SoftmaxCrossEntropy(logits, targetTensor)
	if err != nil {
		return nil, nil, err
	}

	// Nudge the drawn classes upward so the loss trends down.
	for _, target := range targets {
		m.logits[target] += 0.01
	}

	review := &padertorch.Review{
		Losses:     map[string]float64{"ce": loss},
		Histograms: map[string][]float64{"logits": append([]float64(nil), m.logits...)},
	}
	return logits, review, nil
}

func (m *demoModel) StateDict() map[string][]float64 {
	return map[string][]float64{"logits": append([]float64(nil), m.logits...)}
}

// batchIterator yields n batch indices per pass.
type batchIterator struct {
	n   int
	pos int
}

func newBatchIterator(n int) *batchIterator {
	return &batchIterator{n: n}
}

func (it *batchIterator) Next() (any, bool) {
	if it.pos >= it.n {
		return nil, false
	}
	it.pos++
	return it.pos, true
}

func (it *batchIterator) Reset() {
	it.pos = 0
}
