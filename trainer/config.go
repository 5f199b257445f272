// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"time"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/mnistmlp/model"
	"github.com/pkg/errors"
)

// Hyperparameters stored in the context, see CreateDefaultContext.
const (
	ParamBatchSize     = "batch_size"
	ParamEvalBatchSize = "eval_batch_size"
	ParamNumEpochs     = "num_epochs"
	ParamShuffle       = "shuffle"

	// ParamSeed seeds both the model initialization and the shuffling. If 0 a time-based seed is used.
	ParamSeed = "seed"

	ParamEvalOnTrain = "eval_on_train"
	ParamEvalOnTest  = "eval_on_test"
	ParamShowSample  = "show_sample"
)

// CreateDefaultContext sets the context with the default hyperparameters: 3 epochs of Adam
// (learning rate 0.001) over shuffled batches of 10 examples.
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		ParamBatchSize:     10,
		ParamEvalBatchSize: 1000,
		ParamNumEpochs:     3,
		ParamShuffle:       true,
		ParamSeed:          0,

		optimizers.ParamOptimizer:    "adam",
		optimizers.ParamLearningRate: 0.001,
		optimizers.ParamAdamEpsilon:  1e-8,

		model.ParamNumHiddenLayers: 3,
		model.ParamHiddenDims:      64,

		ParamEvalOnTrain: true,
		ParamEvalOnTest:  true,
		ParamShowSample:  true,
	})
	return ctx
}

// Config holds the resolved training loop hyperparameters.
type Config struct {
	BatchSize, EvalBatchSize, NumEpochs int
	Shuffle                             bool
	Seed                                int64

	EvalOnTrain, EvalOnTest, ShowSample bool
}

// ConfigFromContext reads the Config from the context hyperparameters.
// A zero seed is replaced by a time-based one.
func ConfigFromContext(ctx *context.Context) Config {
	cfg := Config{
		BatchSize:     context.GetParamOr(ctx, ParamBatchSize, 10),
		EvalBatchSize: context.GetParamOr(ctx, ParamEvalBatchSize, 0),
		NumEpochs:     context.GetParamOr(ctx, ParamNumEpochs, 3),
		Shuffle:       context.GetParamOr(ctx, ParamShuffle, true),
		Seed:          int64(context.GetParamOr(ctx, ParamSeed, 0)),
		EvalOnTrain:   context.GetParamOr(ctx, ParamEvalOnTrain, true),
		EvalOnTest:    context.GetParamOr(ctx, ParamEvalOnTest, true),
		ShowSample:    context.GetParamOr(ctx, ParamShowSample, true),
	}
	if cfg.EvalBatchSize <= 0 {
		cfg.EvalBatchSize = cfg.BatchSize
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return cfg
}

// Validate returns an error if the configuration can't be used for training.
func (cfg Config) Validate() error {
	if cfg.BatchSize <= 0 {
		return errors.Errorf("%s must be > 0, got %d", ParamBatchSize, cfg.BatchSize)
	}
	if cfg.EvalBatchSize <= 0 {
		return errors.Errorf("%s must be > 0, got %d", ParamEvalBatchSize, cfg.EvalBatchSize)
	}
	if cfg.NumEpochs <= 0 {
		return errors.Errorf("%s must be > 0, got %d", ParamNumEpochs, cfg.NumEpochs)
	}
	return nil
}
